package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/bundlebid/internal/lifecycle"
	"github.com/danmuck/bundlebid/internal/processor"
	"github.com/danmuck/bundlebid/internal/sim"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ParseKey decodes a base58 account key and reports the decoded length on mismatch.
func ParseKey(raw string) (solana.PublicKey, error) {
	b, err := base58.Decode(strings.TrimSpace(raw))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("key %q is not base58: %w", raw, err)
	}
	if len(b) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("key %q decodes to %d bytes, expected %d", raw, len(b), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(b), nil
}

// ProcessorOptions maps the program section onto processor options. An empty
// program_id keeps the default program.
func (p Program) ProcessorOptions() (processor.Options, error) {
	opts := processor.Options{
		MinimumPairs: p.MinimumBundleAuctionPairs,
		Commitments:  processor.SHA256Commitment{},
		Quorum:       lifecycle.MajorityQuorum,
	}
	if p.Quorum == QuorumUnanimous {
		opts.Quorum = lifecycle.UnanimousQuorum
	}
	if strings.TrimSpace(p.ProgramID) != "" {
		key, err := ParseKey(p.ProgramID)
		if err != nil {
			return processor.Options{}, err
		}
		opts.ProgramID = key
	}
	return opts, nil
}

func (p Program) Scenario() (sim.Scenario, error) {
	ctx, ok := state.ParseTier(p.Sim.Context)
	if !ok {
		return sim.Scenario{}, fmt.Errorf("context tier %q", p.Sim.Context)
	}
	exp, ok := state.ParseTier(p.Sim.Expiry)
	if !ok {
		return sim.Scenario{}, fmt.Errorf("expiry tier %q", p.Sim.Expiry)
	}
	return sim.Scenario{
		Context:      ctx,
		Expiry:       exp,
		Jobs:         p.Sim.Jobs,
		Bidders:      p.Sim.Bidders,
		Pairs:        p.Sim.Pairs,
		InputTokens:  p.Sim.InputTokens,
		OutputTokens: p.Sim.OutputTokens,
		MaxPrice:     p.Sim.MaxPrice,
		InputBytes:   p.Sim.InputBytes,
	}, nil
}
