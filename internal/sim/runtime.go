// Package sim runs the processor against a ledger the way a validator would:
// a slot clock, account loading and write-back after each instruction.
package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/bundlebid/internal/address"
	"github.com/danmuck/bundlebid/internal/ledger"
	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/danmuck/bundlebid/internal/observability"
	"github.com/danmuck/bundlebid/internal/processor"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

var ErrWrongProgram = errors.New("sim: instruction targets another program")

// Runtime serializes instructions against one store.
type Runtime struct {
	mu    sync.Mutex
	store ledger.Store
	proc  *processor.Processor
	slot  uint64
	log   zerolog.Logger
}

func NewRuntime(store ledger.Store, proc *processor.Processor) *Runtime {
	return &Runtime{store: store, proc: proc, log: logging.Component("sim")}
}

func (r *Runtime) Addresses() address.Deriver {
	return r.proc.Addresses()
}

func (r *Runtime) Slot() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot
}

// Advance moves the clock forward n slots and returns the new slot.
func (r *Runtime) Advance(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slot += n
	return r.slot
}

// Allocate creates a zeroed account of size bytes, as a system program
// create-account would before the program writes to it.
func (r *Runtime) Allocate(ctx context.Context, key solana.PublicKey, size int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.store.Get(ctx, key); err == nil {
		return fmt.Errorf("sim: account %s already exists", key)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}
	return r.store.Put(ctx, ledger.Account{Key: key, Data: make([]byte, size), Slot: r.slot})
}

// Account reads one stored account buffer.
func (r *Runtime) Account(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	acc, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return acc.Data, nil
}

// Build encodes ins for the runtime's program.
func (r *Runtime) Build(ins protocol.Instruction, keys ...solana.PublicKey) (*solana.GenericInstruction, error) {
	return protocol.BuildInstruction(r.proc.Addresses().Program, ins, keys)
}

// Invoke runs one instruction at the current slot. Accounts repeated in the
// meta list share one buffer. Changed accounts are written back and closed
// accounts deleted in one store batch.
func (r *Runtime) Invoke(ctx context.Context, ix *solana.GenericInstruction) (err error) {
	if !ix.ProgramID().Equals(r.proc.Addresses().Program) {
		return fmt.Errorf("%w: %s", ErrWrongProgram, ix.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("sim: instruction data: %w", err)
	}
	start := time.Now()
	defer func() {
		observability.RecordInstruction(opName(data), err, time.Since(start))
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	metas := ix.Accounts()
	byKey := make(map[solana.PublicKey]*processor.Account, len(metas))
	before := make(map[solana.PublicKey][]byte, len(metas))
	existed := make(map[solana.PublicKey]bool, len(metas))
	accounts := make([]*processor.Account, 0, len(metas))
	for _, meta := range metas {
		acc, ok := byKey[meta.PublicKey]
		if !ok {
			stored, err := r.store.Get(ctx, meta.PublicKey)
			switch {
			case err == nil:
				existed[meta.PublicKey] = true
			case !errors.Is(err, ledger.ErrNotFound):
				return err
			}
			acc = &processor.Account{Key: meta.PublicKey, Data: stored.Data}
			before[meta.PublicKey] = append([]byte(nil), stored.Data...)
			byKey[meta.PublicKey] = acc
		}
		acc.IsSigner = acc.IsSigner || meta.IsSigner
		acc.IsWritable = acc.IsWritable || meta.IsWritable
		accounts = append(accounts, acc)
	}

	if err := r.proc.Process(r.slot, data, accounts); err != nil {
		return err
	}

	var batch ledger.Batch
	for key, acc := range byKey {
		if !acc.IsWritable {
			continue
		}
		switch {
		case acc.Data == nil:
			if existed[key] {
				batch.Deletes = append(batch.Deletes, key)
			}
		case !bytes.Equal(acc.Data, before[key]):
			batch.Puts = append(batch.Puts, ledger.Account{Key: key, Data: acc.Data, Slot: r.slot})
		}
	}
	if err := r.store.Apply(ctx, batch); err != nil {
		return err
	}
	puts, deletes := len(batch.Puts), len(batch.Deletes)
	observability.RecordAccountWrites(puts, deletes)
	r.log.Debug().Uint64("slot", r.slot).Int("accounts", len(byKey)).Int("puts", puts).Int("deletes", deletes).Msg("instruction persisted")
	return nil
}

func opName(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	return protocol.Opcode(data[0]).String()
}

// Run builds and invokes ins in one step.
func (r *Runtime) Run(ctx context.Context, ins protocol.Instruction, keys ...solana.PublicKey) error {
	ix, err := r.Build(ins, keys...)
	if err != nil {
		return err
	}
	return r.Invoke(ctx, ix)
}
