package protocol

import (
	"bytes"
	"encoding/binary"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type argWriter struct {
	buf *bytes.Buffer
	enc *bin.Encoder
	err error
}

func (w *argWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *argWriter) u32(v uint32) {
	if w.err == nil {
		w.err = w.enc.WriteUint32(v, binary.LittleEndian)
	}
}

func (w *argWriter) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, binary.LittleEndian)
	}
}

func (w *argWriter) raw(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *argWriter) key(k solana.PublicKey) {
	w.raw(k[:])
}

func (w *argWriter) ip(ip state.IPAddr) {
	w.u32(uint32(ip.Kind))
	w.raw(ip.Payload[:])
}

// Encode serializes ins as opcode byte, fixed args, then payload (AppendData only).
func Encode(ins Instruction) ([]byte, error) {
	if ins.Args == nil {
		return nil, auctionerr.UnknownInstruction.Errorf("encode: nil args")
	}
	op := ins.Args.Opcode()
	if !op.Enabled() {
		return nil, auctionerr.UnknownInstruction.Errorf("encode: %s not enabled in this build", op)
	}
	if len(ins.Payload) > 0 && op != OpAppendData {
		return nil, auctionerr.Bug.Errorf("encode: %s carries no payload", op)
	}
	size := ins.Args.Size()
	buf := bytes.NewBuffer(make([]byte, 0, 1+size+len(ins.Payload)))
	buf.WriteByte(byte(op))
	w := &argWriter{buf: buf, enc: bin.NewBinEncoder(buf)}
	ins.Args.encode(w)
	w.raw(ins.Payload)
	if w.err != nil {
		return nil, auctionerr.Bug.Errorf("encode %s: %v", op, w.err)
	}
	if got := buf.Len() - 1 - len(ins.Payload); got != size {
		return nil, auctionerr.Bug.Errorf("encode %s: wrote %d arg bytes, layout is %d", op, got, size)
	}
	return buf.Bytes(), nil
}

// EncodeArgs is Encode without a payload.
func EncodeArgs(a Args) ([]byte, error) {
	return Encode(Instruction{Args: a})
}
