package address

import (
	"testing"

	"github.com/danmuck/bundlebid/internal/state"
	"github.com/danmuck/bundlebid/internal/testutil/testlog"
	"github.com/gagliardetto/solana-go"
)

func TestFindThenVerify(t *testing.T) {
	testlog.Start(t)
	d := Default()
	reg, bump, err := d.Registry(state.TierEco, state.TierPro)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if !d.Matches(reg, RegistrySeeds(state.TierEco, state.TierPro), uint64(bump)) {
		t.Fatalf("expected registry to verify with its canonical bump")
	}
	other, _, _ := d.Registry(state.TierPro, state.TierEco)
	if other.Equals(reg) {
		t.Fatalf("expected tier order to matter")
	}
	if d.Matches(reg, RegistrySeeds(state.TierEco, state.TierPro), 256) {
		t.Fatalf("expected out-of-range bump to fail")
	}
}

func TestChainedDerivations(t *testing.T) {
	testlog.Start(t)
	d := Default()
	reg, _, _ := d.Registry(state.TierStandard, state.TierStandard)
	first, _, err := d.Bundle(reg)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	child, _, _ := d.Bundle(first)
	auction, _, _ := d.Auction(first)
	if child.Equals(first) || auction.Equals(child) {
		t.Fatalf("expected distinct addresses")
	}
	authority := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	bid1, _, _ := d.Bid(auction, authority)
	bid2, _, _ := d.Bid(child, authority)
	if bid1.Equals(bid2) {
		t.Fatalf("expected bid address to depend on auction")
	}
	job, bump, err := d.JobRequest(authority, [32]byte{1})
	if err != nil || !d.Matches(job, JobRequestSeeds(authority, [32]byte{1}), uint64(bump)) {
		t.Fatalf("expected job request to verify, err=%v", err)
	}
}

func TestWithSeed(t *testing.T) {
	testlog.Start(t)
	d := Default()
	authority := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	a, err := d.WithSeed(authority, []byte("input-1"))
	if err != nil {
		t.Fatalf("with seed: %v", err)
	}
	b, _ := d.WithSeed(authority, []byte("input-2"))
	if a.Equals(b) {
		t.Fatalf("expected seed to change address")
	}
	again, _ := d.WithSeed(authority, []byte("input-1"))
	if !again.Equals(a) {
		t.Fatalf("expected deterministic address")
	}
}
