package processor

import (
	"testing"

	"github.com/danmuck/bundlebid/internal/address"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

func actor(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = 0xAC
	k[1] = b
	return k
}

// world keeps account buffers across instructions the way a runtime would.
type world struct {
	t        *testing.T
	p        *Processor
	d        address.Deriver
	accounts map[solana.PublicKey]*Account
	slot     uint64
}

func newWorld(t *testing.T) *world {
	t.Helper()
	p, err := New(Options{Commitments: SHA256Commitment{}})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return &world{t: t, p: p, d: p.Addresses(), accounts: make(map[solana.PublicKey]*Account), slot: 10}
}

func (w *world) acct(k solana.PublicKey) *Account {
	a, ok := w.accounts[k]
	if !ok {
		a = &Account{Key: k, IsWritable: true}
		w.accounts[k] = a
	}
	return a
}

func (w *world) run(args protocol.Args, signers []solana.PublicKey, keys ...solana.PublicKey) error {
	return w.runPayload(args, nil, signers, keys...)
}

func (w *world) runPayload(args protocol.Args, payload []byte, signers []solana.PublicKey, keys ...solana.PublicKey) error {
	w.t.Helper()
	data, err := protocol.Encode(protocol.Instruction{Args: args, Payload: payload})
	if err != nil {
		w.t.Fatalf("encode %s: %v", args.Opcode(), err)
	}
	accs := make([]*Account, len(keys))
	for i, k := range keys {
		a := w.acct(k)
		a.IsSigner = false
		for _, s := range signers {
			if s.Equals(k) {
				a.IsSigner = true
			}
		}
		accs[i] = a
	}
	return w.p.Process(w.slot, data, accs)
}

func (w *world) must(err error) {
	w.t.Helper()
	if err != nil {
		w.t.Fatalf("unexpected error: %v", err)
	}
}

func (w *world) find(k solana.PublicKey, _ uint8, err error) solana.PublicKey {
	w.t.Helper()
	if err != nil {
		w.t.Fatalf("derive: %v", err)
	}
	return k
}

func (w *world) bump(_ solana.PublicKey, b uint8, err error) uint64 {
	w.t.Helper()
	if err != nil {
		w.t.Fatalf("derive: %v", err)
	}
	return uint64(b)
}

func (w *world) bundle(k solana.PublicKey) state.RequestBundle {
	w.t.Helper()
	var b state.RequestBundle
	if err := b.UnmarshalBinary(w.acct(k).Data); err != nil {
		w.t.Fatalf("decode bundle %s: %v", k, err)
	}
	return b
}

func (w *world) auction(k solana.PublicKey) state.Auction {
	w.t.Helper()
	var a state.Auction
	if err := a.UnmarshalBinary(w.acct(k).Data); err != nil {
		w.t.Fatalf("decode auction %s: %v", k, err)
	}
	return a
}

func (w *world) registry(k solana.PublicKey) state.BundleRegistry {
	w.t.Helper()
	var r state.BundleRegistry
	if err := r.UnmarshalBinary(w.acct(k).Data); err != nil {
		w.t.Fatalf("decode registry %s: %v", k, err)
	}
	return r
}

func (w *world) job(k solana.PublicKey) state.JobRequest {
	w.t.Helper()
	var j state.JobRequest
	if err := j.UnmarshalBinary(w.acct(k).Data); err != nil {
		w.t.Fatalf("decode job %s: %v", k, err)
	}
	return j
}

// market holds the derived keys of one eco/eco chain.
type market struct {
	payer    solana.PublicKey
	registry solana.PublicKey
	bundles  [4]solana.PublicKey
	auctions [3]solana.PublicKey
	config   solana.PublicKey
	jobs     []solana.PublicKey
}

func (w *world) initMarket() *market {
	w.t.Helper()
	m := &market{payer: actor(1)}
	regBump := w.bump(w.d.Registry(state.TierEco, state.TierEco))
	m.registry = w.find(w.d.Registry(state.TierEco, state.TierEco))
	bundleBump := w.bump(w.d.Bundle(m.registry))
	m.bundles[0] = w.find(w.d.Bundle(m.registry))
	m.bundles[1] = w.find(w.d.Bundle(m.bundles[0]))
	m.bundles[2] = w.find(w.d.Bundle(m.bundles[1]))
	m.bundles[3] = w.find(w.d.Bundle(m.bundles[2]))
	m.auctions[0] = w.find(w.d.Auction(m.bundles[0]))
	m.auctions[1] = w.find(w.d.Auction(m.bundles[1]))
	m.auctions[2] = w.find(w.d.Auction(m.bundles[2]))
	m.config = w.find(w.d.Config())
	w.must(w.run(&protocol.InitBundleArgs{
		ContextLengthTier: state.TierEco, ExpiryDurationTier: state.TierEco,
		BundleBump: bundleBump, RegistryBump: regBump,
	}, []solana.PublicKey{m.payer}, m.payer, m.bundles[0], m.registry, solana.SystemProgramID))
	return m
}

// latest is the market index of the registry's latest bundle.
func (w *world) latest(m *market) int {
	w.t.Helper()
	head := w.registry(m.registry).LatestBundle
	for i, b := range m.bundles {
		if b.Equals(head) {
			return i
		}
	}
	return 0
}

// requestJob sends two pairs starting at the latest bundle.
func (w *world) requestJob(m *market, n byte, inputTokens uint64) error {
	w.t.Helper()
	i := w.latest(m)
	authority := actor(100 + n)
	seed := [32]byte{n}
	job := w.find(w.d.JobRequest(authority, seed))
	bump := w.bump(w.d.JobRequest(authority, seed))
	err := w.run(&protocol.RequestJobArgs{
		MaxPricePerOutputToken: 10,
		MaxOutputTokens:        90,
		Authority:              authority,
		JobRequestSeed:         seed,
		InputTokens:            inputTokens,
		Bump:                   bump,
	}, []solana.PublicKey{m.payer},
		m.payer, job, m.registry, actor(250), solana.SystemProgramID, m.config,
		m.bundles[i], m.auctions[i], m.bundles[i+1], m.auctions[i+1], m.bundles[i+2])
	if err == nil {
		m.jobs = append(m.jobs, job)
	}
	return err
}
