package processor

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
)

// CommitmentVerifier checks a revealed price against the hash committed at bid time.
type CommitmentVerifier interface {
	Verify(hash [32]byte, price uint64, seed [32]byte) bool
}

// CommitmentFunc adapts a function to CommitmentVerifier.
type CommitmentFunc func(hash [32]byte, price uint64, seed [32]byte) bool

func (f CommitmentFunc) Verify(hash [32]byte, price uint64, seed [32]byte) bool {
	return f(hash, price, seed)
}

// SHA256Commitment hashes price (u64 little-endian) followed by seed.
type SHA256Commitment struct{}

func (SHA256Commitment) Commit(price uint64, seed [32]byte) [32]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[:8], price)
	copy(buf[8:], seed[:])
	return sha256.Sum256(buf[:])
}

func (c SHA256Commitment) Verify(hash [32]byte, price uint64, seed [32]byte) bool {
	want := c.Commit(price, seed)
	return subtle.ConstantTimeCompare(want[:], hash[:]) == 1
}
