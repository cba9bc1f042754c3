package ledger

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Memory keeps accounts in a map. Buffers are copied in and out.
type Memory struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]Account
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[solana.PublicKey]Account)}
}

func (m *Memory) Get(_ context.Context, key solana.PublicKey) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[key]
	if !ok {
		return Account{}, ErrNotFound
	}
	acc.Data = clone(acc.Data)
	return acc, nil
}

func (m *Memory) Put(_ context.Context, acc Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc.Data = clone(acc.Data)
	m.accounts[acc.Key] = acc
	return nil
}

func (m *Memory) Delete(_ context.Context, key solana.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, key)
	return nil
}

func (m *Memory) Apply(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range b.Puts {
		acc.Data = clone(acc.Data)
		m.accounts[acc.Key] = acc
	}
	for _, key := range b.Deletes {
		delete(m.accounts, key)
	}
	return nil
}

// List returns every account ordered by key.
func (m *Memory) List(_ context.Context) ([]Account, error) {
	m.mu.RLock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		acc.Data = clone(acc.Data)
		out = append(out, acc)
	}
	m.mu.RUnlock()
	sortAccounts(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
