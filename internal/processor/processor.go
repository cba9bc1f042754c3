// Package processor applies decoded instructions to account buffers.
//
// Ownership boundary:
// - account binding and legality checks per opcode
// - all-or-nothing mutation of Account.Data
//
// Signer flags and account storage belong to the caller. The processor never
// retries and never panics on input bytes; every rejection is an auctionerr code.
package processor

import (
	"errors"
	"fmt"

	"github.com/danmuck/bundlebid/internal/address"
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/lifecycle"
	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

var ErrNoCommitmentVerifier = errors.New("processor: commitment verifier is required")

// Account is one positional account handed to Process. Creating an account
// means filling an empty or zeroed Data; closing it sets Data to nil. Only
// accounts with IsWritable set may be created, changed or closed.
type Account struct {
	Key        solana.PublicKey
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

// Options configures a Processor.
type Options struct {
	ProgramID solana.PublicKey
	// MinimumPairs applies when no config account is initialized.
	MinimumPairs uint64
	Quorum       lifecycle.QuorumRule
	Commitments  CommitmentVerifier
	Logger       *zerolog.Logger
}

type Processor struct {
	addr        address.Deriver
	minPairs    uint64
	quorum      lifecycle.QuorumRule
	commitments CommitmentVerifier
	log         zerolog.Logger
}

func New(opts Options) (*Processor, error) {
	if opts.Commitments == nil {
		return nil, ErrNoCommitmentVerifier
	}
	p := &Processor{
		addr:        address.New(opts.ProgramID),
		minPairs:    opts.MinimumPairs,
		quorum:      opts.Quorum,
		commitments: opts.Commitments,
	}
	if opts.ProgramID.IsZero() {
		p.addr = address.Default()
	}
	if p.minPairs == 0 {
		p.minPairs = state.MinimumBundleAuctionPairs
	}
	if p.quorum == nil {
		p.quorum = lifecycle.MajorityQuorum
	}
	if opts.Logger != nil {
		p.log = *opts.Logger
	} else {
		p.log = logging.Component("processor")
	}
	return p, nil
}

// Addresses returns the deriver bound to the processor's program.
func (p *Processor) Addresses() address.Deriver {
	return p.addr
}

// Process decodes data and applies it at slot. On error no account is modified.
func (p *Processor) Process(slot uint64, data []byte, accounts []*Account) error {
	ins, err := protocol.Decode(data)
	if err != nil {
		p.log.Debug().Err(err).Int("len", len(data)).Msg("instruction rejected at decode")
		return err
	}
	tx := &txn{}
	err = p.dispatch(tx, slot, ins, accounts)
	if err == nil {
		err = tx.apply()
	}
	if err != nil {
		p.log.Debug().Err(err).Str("op", ins.Opcode.String()).Uint64("slot", slot).Msg("instruction rejected")
		return fmt.Errorf("%s: %w", ins.Opcode, err)
	}
	p.log.Info().Str("op", ins.Opcode.String()).Uint64("slot", slot).Int("writes", len(tx.writes)).Msg("instruction committed")
	return nil
}

func (p *Processor) dispatch(tx *txn, slot uint64, ins protocol.Instruction, accounts []*Account) error {
	switch a := ins.Args.(type) {
	case *protocol.RequestJobArgs:
		return p.requestJob(tx, slot, a, accounts)
	case *protocol.PlaceBidArgs:
		return p.placeBid(tx, slot, a, accounts)
	case *protocol.EndAuctionArgs:
		return p.endAuction(tx, slot, a, accounts)
	case *protocol.CloseBidArgs:
		return p.closeBid(tx, accounts)
	case *protocol.SubmitJobOutputArgs:
		return p.submitJobOutput(tx, slot, a, accounts)
	case *protocol.CancelBundleArgs:
		return p.cancelBundle(tx, slot, a, accounts)
	case *protocol.InitBundleArgs:
		return p.initBundle(tx, slot, a, accounts)
	case *protocol.SubmitValidationArgs:
		return p.submitValidation(tx, a, accounts)
	case *protocol.RevealBidArgs:
		return p.revealBid(tx, slot, a, accounts)
	case *protocol.CloseRequestArgs:
		return p.closeRequest(tx, accounts)
	case *protocol.AppendDataArgs:
		return p.appendData(tx, a, ins.Payload, accounts)
	case *protocol.InitConfigArgs:
		return p.initConfig(tx, a, accounts)
	}
	return auctionerr.UnknownInstruction.Errorf("dispatch %s", ins.Opcode)
}

func requireSigner(acc *Account, role string) error {
	if !acc.IsSigner {
		return auctionerr.InvalidAccountId.Errorf("%s %s must sign", role, acc.Key)
	}
	return nil
}

func initialized(acc *Account, size int) bool {
	return len(acc.Data) >= size && !state.IsZeroed(acc.Data[:size])
}

// load decodes rec from acc, failing with missing when the account holds no record.
func load(acc *Account, rec state.Record, missing auctionerr.Code) error {
	if !initialized(acc, rec.Size()) {
		return missing.Errorf("account %s holds no record", acc.Key)
	}
	return rec.UnmarshalBinary(acc.Data)
}

func uninitialized(acc *Account, size int) bool {
	return !initialized(acc, size)
}
