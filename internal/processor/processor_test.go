package processor

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/danmuck/bundlebid/internal/testutil/testlog"
	"github.com/gagliardetto/solana-go"
)

func TestNewRequiresCommitments(t *testing.T) {
	testlog.Start(t)
	if _, err := New(Options{}); !errors.Is(err, ErrNoCommitmentVerifier) {
		t.Fatalf("expected ErrNoCommitmentVerifier, got %v", err)
	}
}

func TestProcessRejectsUndecodable(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	if err := w.p.Process(0, nil, nil); !errors.Is(err, auctionerr.UnknownInstruction) {
		t.Fatalf("expected UnknownInstruction, got %v", err)
	}
	if err := w.p.Process(0, []byte{byte(protocol.OpRevealBid), 1}, nil); !errors.Is(err, auctionerr.TruncatedInput) {
		t.Fatalf("expected TruncatedInput, got %v", err)
	}
	data, _ := protocol.EncodeArgs(&protocol.PlaceBidArgs{})
	if err := w.p.Process(0, data, []*Account{{}, {}}); !errors.Is(err, auctionerr.NotEnoughAccounts) {
		t.Fatalf("expected NotEnoughAccounts, got %v", err)
	}
}

func TestInitBundle(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()

	reg := w.registry(m.registry)
	if !reg.LatestBundle.Equals(m.bundles[0]) || reg.ContextLengthTier != state.TierEco || !reg.Payer.Equals(m.payer) {
		t.Fatalf("unexpected registry %+v", reg)
	}
	b := w.bundle(m.bundles[0])
	if b.Status != state.BundleActive || !b.ParentBundleKey.Equals(m.registry) || b.MaxContextLength != 43_000 {
		t.Fatalf("unexpected first bundle %+v", b)
	}

	regBump := w.bump(w.d.Registry(state.TierEco, state.TierEco))
	bundleBump := w.bump(w.d.Bundle(m.registry))
	err := w.run(&protocol.InitBundleArgs{BundleBump: bundleBump, RegistryBump: regBump},
		[]solana.PublicKey{m.payer}, m.payer, m.bundles[0], m.registry, solana.SystemProgramID)
	if !errors.Is(err, auctionerr.InvalidRegistry) {
		t.Fatalf("expected InvalidRegistry on re-init, got %v", err)
	}

	proReg := w.find(w.d.Registry(state.TierPro, state.TierEco))
	proBump := w.bump(w.d.Registry(state.TierPro, state.TierEco))
	err = w.run(&protocol.InitBundleArgs{ContextLengthTier: state.TierPro, RegistryBump: proBump, BundleBump: bundleBump},
		[]solana.PublicKey{m.payer}, m.payer, m.bundles[1], proReg, solana.SystemProgramID)
	if !errors.Is(err, auctionerr.InvalidAccountId) {
		t.Fatalf("expected InvalidAccountId for a foreign bundle key, got %v", err)
	}
	err = w.run(&protocol.InitBundleArgs{ContextLengthTier: state.TierPro, RegistryBump: proBump},
		nil, m.payer, m.bundles[1], proReg, solana.SystemProgramID)
	if !errors.Is(err, auctionerr.InvalidAccountId) {
		t.Fatalf("expected unsigned payer rejected, got %v", err)
	}
}

func TestRequestJobFillsBundleAtTwenty(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	for i := 0; i < state.RequestsPerBundle-1; i++ {
		w.must(w.requestJob(m, byte(i), 1000))
	}
	b := w.bundle(m.bundles[0])
	if b.RequestsLen != 19 || b.Status != state.BundleActive || len(w.acct(m.auctions[0]).Data) != 0 {
		t.Fatalf("expected 19 requests without auction, got %+v", b)
	}

	w.slot = 50
	w.must(w.requestJob(m, 19, 1000))
	b = w.bundle(m.bundles[0])
	if b.RequestsLen != 20 || b.Status != state.BundleFull {
		t.Fatalf("expected full bundle, got %d/%s", b.RequestsLen, b.Status)
	}
	if !b.Auction.Is(m.auctions[0]) || !b.ChildBundleKey.Is(m.bundles[1]) {
		t.Fatalf("expected auction and child linked, got %+v", b)
	}
	if b.TotalInputTokens != 20_000 || b.MaximumOutputTokens != 1800 || b.RequestCommittedAmount != 18_000 {
		t.Fatalf("unexpected aggregates %+v", b)
	}
	auction := w.auction(m.auctions[0])
	if auction.Status != state.AuctionActive || auction.ExpirySlot != 53 || !auction.RequestBundle.Equals(m.bundles[0]) {
		t.Fatalf("unexpected auction %+v", auction)
	}
	child := w.bundle(m.bundles[1])
	if child.Status != state.BundleActive || child.RequestsLen != 0 || !child.ParentBundleKey.Equals(m.bundles[0]) {
		t.Fatalf("unexpected child %+v", child)
	}
	if !w.registry(m.registry).LatestBundle.Equals(m.bundles[1]) {
		t.Fatalf("expected registry advanced to child")
	}
	if len(w.acct(m.bundles[2]).Data) != 0 || len(w.acct(m.auctions[1]).Data) != 0 {
		t.Fatalf("expected exactly one child bundle and one auction")
	}

	w.must(w.requestJob(m, 20, 1000))
	if got := w.bundle(m.bundles[1]).RequestsLen; got != 1 {
		t.Fatalf("expected 21st request in child, got %d", got)
	}
	if j := w.job(m.jobs[20]); !j.Bundle.Equals(m.bundles[1]) || j.Status != state.JobWaitingForOutput {
		t.Fatalf("unexpected job %+v", j)
	}
}

func TestRequestJobRejections(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	before := append([]byte(nil), w.acct(m.bundles[0]).Data...)

	if err := w.requestJob(m, 1, 43_001); !errors.Is(err, auctionerr.UnableToAddNewJobReqToBundle) {
		t.Fatalf("expected UnableToAddNewJobReqToBundle, got %v", err)
	}
	authority := actor(101)
	seed := [32]byte{1}
	job := w.find(w.d.JobRequest(authority, seed))
	bump := w.bump(w.d.JobRequest(authority, seed))
	args := &protocol.RequestJobArgs{Authority: authority, JobRequestSeed: seed, Bump: bump, MaxOutputTokens: 1}

	err := w.run(args, []solana.PublicKey{m.payer},
		m.payer, job, m.registry, actor(250), solana.SystemProgramID, m.config,
		m.bundles[0], m.auctions[0], m.bundles[1])
	if !errors.Is(err, auctionerr.NotEnoughBundleAuctionAccounts) {
		t.Fatalf("expected NotEnoughBundleAuctionAccounts, got %v", err)
	}
	err = w.run(args, []solana.PublicKey{m.payer},
		m.payer, actor(99), m.registry, actor(250), solana.SystemProgramID, m.config,
		m.bundles[0], m.auctions[0], m.bundles[1], m.auctions[1], m.bundles[2])
	if !errors.Is(err, auctionerr.InvalidRequestId) {
		t.Fatalf("expected InvalidRequestId, got %v", err)
	}
	err = w.run(args, []solana.PublicKey{m.payer},
		m.payer, job, actor(98), actor(250), solana.SystemProgramID, m.config,
		m.bundles[0], m.auctions[0], m.bundles[1], m.auctions[1], m.bundles[2])
	if !errors.Is(err, auctionerr.InvalidRegistry) {
		t.Fatalf("expected InvalidRegistry, got %v", err)
	}
	if !bytes.Equal(before, w.acct(m.bundles[0]).Data) {
		t.Fatalf("expected rejected instructions to leave the bundle untouched")
	}

	w.must(w.requestJob(m, 1, 10))
	if err := w.requestJob(m, 1, 10); !errors.Is(err, auctionerr.InvalidRequestId) {
		t.Fatalf("expected duplicate job rejected, got %v", err)
	}
}

func TestFillRejectsWrongAuctionKey(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	for i := 0; i < state.RequestsPerBundle-1; i++ {
		w.must(w.requestJob(m, byte(i), 1))
	}
	good := m.auctions[0]
	m.auctions[0] = actor(77)
	if err := w.requestJob(m, 19, 1); !errors.Is(err, auctionerr.IncorrectChildAuctionPubkey) {
		t.Fatalf("expected IncorrectChildAuctionPubkey, got %v", err)
	}
	m.auctions[0] = good
	if got := w.bundle(m.bundles[0]).RequestsLen; got != 19 {
		t.Fatalf("expected failed fill to leave 19 requests, got %d", got)
	}
	m.bundles[1] = actor(78)
	if err := w.requestJob(m, 19, 1); !errors.Is(err, auctionerr.IncorrectChildBundlePubkey) {
		t.Fatalf("expected IncorrectChildBundlePubkey, got %v", err)
	}
}

func TestConfigAccountRaisesMinimumPairs(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	cfg := state.Config{MinimumBundleAuctionPairs: 3, Bump: 1}
	raw, _ := cfg.MarshalBinary()
	w.acct(m.config).Data = raw
	if err := w.requestJob(m, 1, 1); !errors.Is(err, auctionerr.NotEnoughBundleAuctionAccounts) {
		t.Fatalf("expected config minimum of 3 pairs enforced, got %v", err)
	}
}

func TestCancelBundle(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	bundleBump := w.bump(w.d.Bundle(m.registry))
	childBump := w.bump(w.d.Bundle(m.bundles[0]))
	args := &protocol.CancelBundleArgs{ParentBundleKey: m.registry, BundleBump: bundleBump, ChildBundleBump: childBump}
	signers := []solana.PublicKey{m.payer}

	err := w.run(args, signers, m.payer, m.bundles[0], m.bundles[1], m.registry, solana.SystemProgramID)
	if !errors.Is(err, auctionerr.BundleNotExpired) {
		t.Fatalf("expected BundleNotExpired, got %v", err)
	}
	if err := state.WriteU64At(w.acct(m.bundles[0]).Data, state.BundleOffsetExpirySlot, 5); err != nil {
		t.Fatalf("write expiry: %v", err)
	}
	err = w.run(args, signers, m.payer, m.bundles[0], actor(5), m.registry, solana.SystemProgramID)
	if !errors.Is(err, auctionerr.LatestBundleCanceled) {
		t.Fatalf("expected LatestBundleCanceled, got %v", err)
	}
	bad := *args
	bad.ContextLengthTier = state.TierPro
	if err := w.run(&bad, signers, m.payer, m.bundles[0], m.bundles[1], m.registry, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidRequestBundleState) {
		t.Fatalf("expected InvalidRequestBundleState, got %v", err)
	}

	w.must(w.run(args, signers, m.payer, m.bundles[0], m.bundles[1], m.registry, solana.SystemProgramID))
	if status, _ := state.BundleStatusFromBytes(w.acct(m.bundles[0]).Data); status != state.BundleCanceled {
		t.Fatalf("expected canceled, got %s", status)
	}
	if !w.registry(m.registry).LatestBundle.Equals(m.bundles[1]) || w.bundle(m.bundles[1]).Status != state.BundleActive {
		t.Fatalf("expected replacement child as latest")
	}
	if err := w.run(args, signers, m.payer, m.bundles[0], m.bundles[1], m.registry, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidBundleStatus) {
		t.Fatalf("expected second cancel refused, got %v", err)
	}

	w.must(w.requestJob(m, 1, 1))
	if w.bundle(m.bundles[1]).RequestsLen != 1 || w.bundle(m.bundles[0]).RequestsLen != 0 {
		t.Fatalf("expected request placed in the replacement bundle")
	}
}

func TestRequestJobStartsAtLatestBundle(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	for i := 0; i < state.RequestsPerBundle; i++ {
		w.must(w.requestJob(m, byte(i), 1))
	}
	if w.latest(m) != 1 {
		t.Fatalf("expected registry latest at bundle 1, got %d", w.latest(m))
	}

	authority := actor(180)
	seed := [32]byte{80}
	job := w.find(w.d.JobRequest(authority, seed))
	bump := w.bump(w.d.JobRequest(authority, seed))
	args := &protocol.RequestJobArgs{Authority: authority, JobRequestSeed: seed, Bump: bump, InputTokens: 1, MaxOutputTokens: 1}
	before := append([]byte(nil), w.acct(m.bundles[1]).Data...)
	err := w.run(args, []solana.PublicKey{m.payer},
		m.payer, job, m.registry, actor(250), solana.SystemProgramID, m.config,
		m.bundles[0], m.auctions[0], m.bundles[1], m.auctions[1], m.bundles[2])
	if !errors.Is(err, auctionerr.FailedToFindAValidBundle) {
		t.Fatalf("expected FailedToFindAValidBundle for a walk behind the latest bundle, got %v", err)
	}
	if !bytes.Equal(before, w.acct(m.bundles[1]).Data) || len(w.acct(job).Data) != 0 {
		t.Fatalf("expected rejected request to leave accounts untouched")
	}

	w.must(w.run(args, []solana.PublicKey{m.payer},
		m.payer, job, m.registry, actor(250), solana.SystemProgramID, m.config,
		m.bundles[1], m.auctions[1], m.bundles[2], m.auctions[2], m.bundles[3]))
	if got := w.bundle(m.bundles[1]).RequestsLen; got != 1 {
		t.Fatalf("expected 1 request in the latest bundle, got %d", got)
	}
}

func TestReadOnlyAccountRejectsWrites(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	for i := 0; i < state.RequestsPerBundle-1; i++ {
		w.must(w.requestJob(m, byte(i), 1))
	}
	bundle := append([]byte(nil), w.acct(m.bundles[0]).Data...)
	registry := append([]byte(nil), w.acct(m.registry).Data...)

	w.acct(m.auctions[0]).IsWritable = false
	if err := w.requestJob(m, 19, 1); !errors.Is(err, auctionerr.InvalidAccountId) {
		t.Fatalf("expected InvalidAccountId for a read-only auction, got %v", err)
	}
	if !bytes.Equal(bundle, w.acct(m.bundles[0]).Data) || !bytes.Equal(registry, w.acct(m.registry).Data) {
		t.Fatalf("expected bundle and registry untouched")
	}
	if len(w.acct(m.auctions[0]).Data) != 0 || len(w.acct(m.bundles[1]).Data) != 0 {
		t.Fatalf("expected no auction or child created")
	}

	w.acct(m.auctions[0]).IsWritable = true
	w.must(w.requestJob(m, 19, 1))
	if w.bundle(m.bundles[0]).Status != state.BundleFull {
		t.Fatalf("expected bundle full once the auction is writable")
	}
}

func TestAppendDataAndInputBinding(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	authority := actor(140)
	seed := [32]byte{'i', 'n'}
	dataKey, err := w.d.WithSeed(authority, seed[:2])
	if err != nil {
		t.Fatalf("with seed: %v", err)
	}
	w.acct(dataKey).Data = make([]byte, 200)
	signers := []solana.PublicKey{authority}
	args := &protocol.AppendDataArgs{Offset: state.MetadataSize, Seed: seed, SeedLen: 2}

	if err := w.runPayload(&protocol.AppendDataArgs{Offset: 10, Seed: seed, SeedLen: 2}, []byte("x"), signers,
		authority, dataKey, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidMetadata) {
		t.Fatalf("expected offset inside metadata refused, got %v", err)
	}
	if err := w.runPayload(args, make([]byte, 113), signers, authority, dataKey, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidMetadata) {
		t.Fatalf("expected oversize payload refused, got %v", err)
	}
	if err := w.runPayload(args, []byte("x"), signers, authority, actor(9), solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidMetadata) {
		t.Fatalf("expected foreign account refused, got %v", err)
	}
	w.must(w.runPayload(args, []byte("hello"), signers, authority, dataKey, solana.SystemProgramID))
	more := *args
	more.Offset = state.MetadataSize + 5
	more.DecompressedLen = state.SomeU64(64)
	w.must(w.runPayload(&more, []byte(" world"), signers, authority, dataKey, solana.SystemProgramID))

	var meta state.Metadata
	data := w.acct(dataKey).Data
	_ = meta.UnmarshalBinary(data)
	if meta.PayloadLen != 11 || meta.DecompressedLen != 64 || string(data[88:99]) != "hello world" {
		t.Fatalf("unexpected metadata %+v payload %q", meta, data[88:99])
	}

	jobSeed := [32]byte{7}
	job := w.find(w.d.JobRequest(authority, jobSeed))
	bump := w.bump(w.d.JobRequest(authority, jobSeed))
	w.must(w.run(&protocol.RequestJobArgs{
		Authority: authority, JobRequestSeed: jobSeed, Bump: bump, MaxOutputTokens: 5,
		InputDataAccount: state.SomePubkey(dataKey),
	}, []solana.PublicKey{m.payer},
		m.payer, job, m.registry, dataKey, solana.SystemProgramID, m.config,
		m.bundles[0], m.auctions[0], m.bundles[1], m.auctions[1], m.bundles[2]))

	_ = meta.UnmarshalBinary(w.acct(dataKey).Data)
	if !meta.JobRequestKey.Is(job) || !w.job(job).InputDataAccount.Is(dataKey) {
		t.Fatalf("expected metadata bound to job")
	}
	if err := w.runPayload(args, []byte("late"), signers, authority, dataKey, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidMetadata) {
		t.Fatalf("expected bound data account to refuse appends, got %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	cfgKey := w.find(w.d.Config())
	if !protocol.GlobalConfigEnabled {
		data := append([]byte{byte(protocol.OpInitConfig)}, make([]byte, protocol.InitConfigArgsSize)...)
		if err := w.p.Process(0, data, nil); !errors.Is(err, auctionerr.UnknownInstruction) {
			t.Fatalf("expected UnknownInstruction without globalconfig, got %v", err)
		}
		return
	}
	admin := actor(1)
	w.must(w.run(&protocol.InitConfigArgs{MinimumBundleAuctionPairs: 3, UpdateAuthority: state.SomePubkey(admin)},
		[]solana.PublicKey{admin}, admin, cfgKey, solana.SystemProgramID))
	if err := w.run(&protocol.InitConfigArgs{MinimumBundleAuctionPairs: 1}, []solana.PublicKey{actor(2)},
		actor(2), cfgKey, solana.SystemProgramID); !errors.Is(err, auctionerr.InvalidAccountId) {
		t.Fatalf("expected non-authority update refused, got %v", err)
	}
	w.must(w.run(&protocol.InitConfigArgs{MinimumBundleAuctionPairs: 4}, []solana.PublicKey{admin}, admin, cfgKey, solana.SystemProgramID))
	var cfg state.Config
	_ = cfg.UnmarshalBinary(w.acct(cfgKey).Data)
	if cfg.MinimumBundleAuctionPairs != 4 || !cfg.UpdateAuthority.Is(admin) {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
