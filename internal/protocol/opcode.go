package protocol

import "fmt"

type Opcode uint8

const (
	OpRequestJob       Opcode = 0
	OpPlaceBid         Opcode = 1
	OpEndAuction       Opcode = 2
	OpCloseBid         Opcode = 3
	OpSubmitJobOutput  Opcode = 4
	OpCancelBundle     Opcode = 5
	OpInitBundle       Opcode = 6
	OpSubmitValidation Opcode = 7
	OpRevealBid        Opcode = 8
	OpCloseRequest     Opcode = 9
	OpAppendData       Opcode = 10
	// OpInitConfig decodes only in builds tagged globalconfig.
	OpInitConfig Opcode = 11
)

var opcodeNames = [...]string{
	OpRequestJob:       "request_job",
	OpPlaceBid:         "place_bid",
	OpEndAuction:       "end_auction",
	OpCloseBid:         "close_bid",
	OpSubmitJobOutput:  "submit_job_output",
	OpCancelBundle:     "cancel_bundle",
	OpInitBundle:       "init_bundle",
	OpSubmitValidation: "submit_validation",
	OpRevealBid:        "reveal_bid",
	OpCloseRequest:     "close_request",
	OpAppendData:       "append_data",
	OpInitConfig:       "init_config",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// Enabled reports whether o is accepted by this build.
func (o Opcode) Enabled() bool {
	if o == OpInitConfig {
		return GlobalConfigEnabled
	}
	return o <= OpAppendData
}

// Opcodes lists every opcode accepted by this build.
func Opcodes() []Opcode {
	out := make([]Opcode, 0, len(opcodeNames))
	for i := range opcodeNames {
		if op := Opcode(i); op.Enabled() {
			out = append(out, op)
		}
	}
	return out
}
