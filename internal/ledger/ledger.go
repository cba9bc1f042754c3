// Package ledger stores program accounts for the development runtime.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var ErrNotFound = errors.New("ledger: account not found")

// Account is one stored account buffer. Slot is the slot of the last write.
type Account struct {
	Key  solana.PublicKey
	Data []byte
	Slot uint64
}

// Batch is the write set of one instruction.
type Batch struct {
	Puts    []Account
	Deletes []solana.PublicKey
}

func (b Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

type Store interface {
	Get(ctx context.Context, key solana.PublicKey) (Account, error)
	Put(ctx context.Context, acc Account) error
	Delete(ctx context.Context, key solana.PublicKey) error
	// Apply writes every put and delete of b or none of them.
	Apply(ctx context.Context, b Batch) error
	List(ctx context.Context) ([]Account, error)
	Close() error
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open returns the store for driver. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("ledger: sqlite driver requires a path")
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", driver)
	}
}

// EncodeKey is the text form used as the storage key.
func EncodeKey(k solana.PublicKey) string {
	return base58.Encode(k[:])
}

func DecodeKey(s string) (solana.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("ledger: decode key %q: %w", s, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("ledger: key %q is %d bytes, expected %d", s, len(raw), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// sortAccounts orders by raw key bytes.
func sortAccounts(accs []Account) {
	sort.Slice(accs, func(i, j int) bool {
		return bytes.Compare(accs[i].Key[:], accs[j].Key[:]) < 0
	})
}
