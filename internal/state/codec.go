package state

import (
	"bytes"
	"encoding/binary"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// recordWriter appends little-endian fields and keeps the first error.
type recordWriter struct {
	buf *bytes.Buffer
	enc *bin.Encoder
	err error
}

func newRecordWriter(size int) *recordWriter {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	return &recordWriter{buf: buf, enc: bin.NewBinEncoder(buf)}
}

func (w *recordWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *recordWriter) u32(v uint32) {
	if w.err == nil {
		w.err = w.enc.WriteUint32(v, binary.LittleEndian)
	}
}

func (w *recordWriter) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, binary.LittleEndian)
	}
}

func (w *recordWriter) raw(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *recordWriter) key(k solana.PublicKey) {
	w.raw(k[:])
}

func (w *recordWriter) pad(n int) {
	w.raw(make([]byte, n))
}

// finish returns the encoded record; a size mismatch is a layout bug.
func (w *recordWriter) finish(name string, size int) ([]byte, error) {
	if w.err != nil {
		return nil, auctionerr.Bug.Errorf("encode %s: %v", name, w.err)
	}
	if w.buf.Len() != size {
		return nil, auctionerr.Bug.Errorf("encode %s: wrote %d bytes, layout is %d", name, w.buf.Len(), size)
	}
	return w.buf.Bytes(), nil
}

// recordReader consumes little-endian fields and keeps the first error.
type recordReader struct {
	dec *bin.Decoder
	err error
}

func newRecordReader(name string, data []byte, size int) (*recordReader, error) {
	if len(data) < size {
		return nil, auctionerr.TruncatedInput.Errorf("decode %s: have %d bytes, need %d", name, len(data), size)
	}
	return &recordReader{dec: bin.NewBinDecoder(data[:size])}, nil
}

func (r *recordReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordReader) fill(dst []byte) {
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

func (r *recordReader) key() solana.PublicKey {
	var k solana.PublicKey
	r.fill(k[:])
	return k
}

func (r *recordReader) maybeKey() MaybePubkey {
	return MaybePubkey(r.key())
}

func (r *recordReader) maybeU64() MaybeU64 {
	return MaybeU64(r.u64())
}

func (r *recordReader) skip(n int) {
	if r.err != nil {
		return
	}
	_, r.err = r.dec.ReadNBytes(n)
}

func (r *recordReader) done(name string) error {
	if r.err != nil {
		return auctionerr.TruncatedInput.Errorf("decode %s: %v", name, r.err)
	}
	return nil
}

// IsZeroed reports whether buf holds no initialized record.
func IsZeroed(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
