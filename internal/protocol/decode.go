package protocol

import (
	"encoding/binary"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type argReader struct {
	dec *bin.Decoder
	err error
}

func (r *argReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *argReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(binary.LittleEndian)
	r.err = err
	return v
}

func (r *argReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(binary.LittleEndian)
	r.err = err
	return v
}

func (r *argReader) fill(dst []byte) {
	if r.err != nil {
		return
	}
	b, err := r.dec.ReadNBytes(len(dst))
	if err != nil {
		r.err = err
		return
	}
	copy(dst, b)
}

func (r *argReader) key() solana.PublicKey {
	var k solana.PublicKey
	r.fill(k[:])
	return k
}

func (r *argReader) ip() state.IPAddr {
	var ip state.IPAddr
	ip.Kind = state.IPKind(r.u32())
	r.fill(ip.Payload[:])
	return ip
}

// Decode parses an instruction buffer. Empty or unknown opcodes fail with
// UnknownInstruction. An argument record of the wrong size fails with
// TruncatedInput; only AppendData carries bytes past its record.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, auctionerr.UnknownInstruction.Errorf("decode: empty instruction")
	}
	op := Opcode(data[0])
	args, ok := newArgs(op)
	if !ok {
		return Instruction{}, auctionerr.UnknownInstruction.Errorf("decode: opcode %d", data[0])
	}
	body := data[1:]
	size := args.Size()
	if len(body) < size {
		return Instruction{}, auctionerr.TruncatedInput.Errorf("decode %s: have %d arg bytes, need %d", op, len(body), size)
	}
	if op != OpAppendData && len(body) != size {
		return Instruction{}, auctionerr.TruncatedInput.Errorf("decode %s: %d trailing bytes after %d arg bytes", op, len(body)-size, size)
	}
	r := &argReader{dec: bin.NewBinDecoder(body[:size])}
	args.decode(r)
	if r.err != nil {
		return Instruction{}, auctionerr.TruncatedInput.Errorf("decode %s: %v", op, r.err)
	}
	ins := Instruction{Opcode: op, Args: args}
	if op == OpAppendData && len(body) > size {
		ins.Payload = append([]byte(nil), body[size:]...)
	}
	return ins, nil
}

func newArgs(op Opcode) (Args, bool) {
	if !op.Enabled() {
		return nil, false
	}
	switch op {
	case OpRequestJob:
		return &RequestJobArgs{}, true
	case OpPlaceBid:
		return &PlaceBidArgs{}, true
	case OpEndAuction:
		return &EndAuctionArgs{}, true
	case OpCloseBid:
		return &CloseBidArgs{}, true
	case OpSubmitJobOutput:
		return &SubmitJobOutputArgs{}, true
	case OpCancelBundle:
		return &CancelBundleArgs{}, true
	case OpInitBundle:
		return &InitBundleArgs{}, true
	case OpSubmitValidation:
		return &SubmitValidationArgs{}, true
	case OpRevealBid:
		return &RevealBidArgs{}, true
	case OpCloseRequest:
		return &CloseRequestArgs{}, true
	case OpAppendData:
		return &AppendDataArgs{}, true
	case OpInitConfig:
		return &InitConfigArgs{}, true
	}
	return nil, false
}
