package processor

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
)

type pending struct {
	acc   *Account
	rec   state.Record
	patch []byte
	off   int
	close bool
}

// txn buffers account changes so a failed instruction leaves every account untouched.
type txn struct {
	writes []pending
}

func (t *txn) put(acc *Account, rec state.Record) {
	t.writes = append(t.writes, pending{acc: acc, rec: rec})
}

func (t *txn) patchAt(acc *Account, off int, b []byte) {
	t.writes = append(t.writes, pending{acc: acc, off: off, patch: b})
}

func (t *txn) close(acc *Account) {
	t.writes = append(t.writes, pending{acc: acc, close: true})
}

// apply commits the buffered writes. Any write to an account the caller did not
// mark writable fails the whole instruction before a byte changes.
func (t *txn) apply() error {
	for _, w := range t.writes {
		if !w.acc.IsWritable {
			return auctionerr.InvalidAccountId.Errorf("account %s written but not writable", w.acc.Key)
		}
	}
	encoded := make([][]byte, len(t.writes))
	for i, w := range t.writes {
		if w.rec == nil {
			continue
		}
		b, err := w.rec.MarshalBinary()
		if err != nil {
			return err
		}
		encoded[i] = b
	}
	for i, w := range t.writes {
		switch {
		case w.close:
			w.acc.Data = nil
		case w.rec != nil:
			w.acc.Data = grow(w.acc.Data, len(encoded[i]))
			copy(w.acc.Data, encoded[i])
		default:
			w.acc.Data = grow(w.acc.Data, w.off+len(w.patch))
			copy(w.acc.Data[w.off:], w.patch)
		}
	}
	return nil
}

func grow(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
