package processor

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/danmuck/bundlebid/internal/testutil/testlog"
	"github.com/gagliardetto/solana-go"
)

var verifiers = [state.VerifiersPerAuction]solana.PublicKey{actor(20), actor(21), actor(22)}

type bidder struct {
	authority solana.PublicKey
	bid       solana.PublicKey
	price     uint64
	seed      [32]byte
}

// fillBundle puts RequestsPerBundle jobs into the first bundle at slot 50.
func (w *world) fillBundle(m *market) {
	w.t.Helper()
	w.slot = 50
	for i := 0; i < state.RequestsPerBundle; i++ {
		w.must(w.requestJob(m, byte(i), 1000))
	}
}

func (w *world) placeBid(m *market, authority solana.PublicKey, price uint64) (bidder, error) {
	w.t.Helper()
	b := bidder{authority: authority, price: price, seed: [32]byte{byte(price), 0x5E}}
	b.bid = w.find(w.d.Bid(m.auctions[0], authority))
	bump := w.bump(w.d.Bid(m.auctions[0], authority))
	ip, err := state.IPAddrFrom(netip.MustParseAddr("10.0.0.7"))
	if err != nil {
		w.t.Fatalf("ip: %v", err)
	}
	err = w.run(&protocol.PlaceBidArgs{
		PriceHash:   SHA256Commitment{}.Commit(price, b.seed),
		BidBump:     bump,
		BidLamports: state.BidCommitmentBase,
		IP:          ip,
		Port:        8899,
		PublicKey:   [32]byte{byte(price)},
	}, []solana.PublicKey{authority}, authority, b.bid, m.auctions[0], m.bundles[0], solana.SystemProgramID)
	return b, err
}

func (w *world) revealBid(m *market, b bidder, price uint64) error {
	return w.run(&protocol.RevealBidArgs{PricePerOutputToken: price, PriceHashSeed: b.seed},
		[]solana.PublicKey{b.authority}, b.authority, b.bid, m.auctions[0], m.bundles[0], actor(200), b.authority)
}

func (w *world) endAuction(m *market) error {
	return w.run(&protocol.EndAuctionArgs{Verifiers: verifiers}, []solana.PublicKey{m.payer},
		m.auctions[0], m.bundles[0], actor(200), m.payer)
}

// runAuction fills a bundle and walks its auction to Ended with one bid per price.
func (w *world) runAuction(m *market, prices ...uint64) []bidder {
	w.t.Helper()
	w.fillBundle(m)
	w.slot = 51
	bids := make([]bidder, len(prices))
	for i, price := range prices {
		b, err := w.placeBid(m, actor(byte(10+i)), price)
		w.must(err)
		bids[i] = b
	}
	w.slot = 53
	w.must(w.endAuction(m))
	w.slot = 54
	for _, b := range bids {
		w.must(w.revealBid(m, b, b.price))
	}
	w.slot = 56
	w.must(w.endAuction(m))
	return bids
}

func (w *world) submitOutput(m *market, b bidder, job solana.PublicKey, tokens uint64) error {
	return w.run(&protocol.SubmitJobOutputArgs{OutputTokenCount: tokens, InputTokenCount: 1000, OutputHash: [32]byte{1}},
		[]solana.PublicKey{b.authority}, b.authority, m.bundles[0], job, b.bid, m.auctions[0], actor(251))
}

func (w *world) validate(m *market, verifier, job solana.PublicKey, ok, failed uint64) error {
	return w.run(&protocol.SubmitValidationArgs{NumSuccesses: ok, NumFailures: failed},
		[]solana.PublicKey{verifier}, m.bundles[0], actor(200), actor(201), verifier, job)
}

func (w *world) closeBid(m *market, b bidder) error {
	return w.run(&protocol.CloseBidArgs{}, []solana.PublicKey{b.authority},
		b.authority, b.bid, m.payer, m.auctions[0], m.bundles[0], actor(200), actor(202), actor(201))
}

func (w *world) closeRequest(m *market, n int) error {
	authority := actor(byte(100 + n))
	return w.run(&protocol.CloseRequestArgs{}, []solana.PublicKey{authority},
		authority, m.jobs[n], m.payer, m.bundles[0])
}

func TestAuctionPhases(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	w.fillBundle(m)

	w.slot = 51
	high, err := w.placeBid(m, actor(10), 50)
	w.must(err)
	if _, err := w.placeBid(m, actor(10), 50); !errors.Is(err, auctionerr.UnexpectedBidState) {
		t.Fatalf("expected duplicate bid refused, got %v", err)
	}
	low, err := w.placeBid(m, actor(11), 40)
	w.must(err)
	mid, err := w.placeBid(m, actor(12), 45)
	w.must(err)
	if w.auction(m.auctions[0]).BidsPlaced != 3 {
		t.Fatalf("expected 3 bids placed")
	}
	if err := w.endAuction(m); !errors.Is(err, auctionerr.AuctionNotExpired) {
		t.Fatalf("expected AuctionNotExpired, got %v", err)
	}
	if err := w.revealBid(m, low, 40); !errors.Is(err, auctionerr.InvalidAuctionStatus) {
		t.Fatalf("expected reveal refused while Active, got %v", err)
	}

	w.slot = 53
	if _, err := w.placeBid(m, actor(13), 30); !errors.Is(err, auctionerr.AuctionIsExpired) {
		t.Fatalf("expected late bid refused, got %v", err)
	}
	w.must(w.endAuction(m))
	a := w.auction(m.auctions[0])
	if a.Status != state.AuctionRevealingBids || a.ExpirySlot != 56 {
		t.Fatalf("expected revealing until 56, got %s until %d", a.Status, a.ExpirySlot)
	}

	w.slot = 54
	if err := w.revealBid(m, high, 49); !errors.Is(err, auctionerr.UnexpectedBidState) {
		t.Fatalf("expected wrong price refused, got %v", err)
	}
	w.must(w.revealBid(m, high, 50))
	w.must(w.revealBid(m, low, 40))
	w.must(w.revealBid(m, mid, 45))
	if err := w.revealBid(m, mid, 45); !errors.Is(err, auctionerr.UnexpectedBidState) {
		t.Fatalf("expected second reveal refused, got %v", err)
	}

	w.slot = 56
	w.must(w.endAuction(m))
	a = w.auction(m.auctions[0])
	if a.Status != state.AuctionEnded || !a.LowestBid.Is(low.bid) || !a.WinningBid.Is(mid.bid) {
		t.Fatalf("unexpected extrema %+v", a)
	}
	b := w.bundle(m.bundles[0])
	if price, ok := b.PricePerOutputToken.Get(); !ok || price != 45 || b.Verifiers != verifiers {
		t.Fatalf("expected clearing price 45 and verifiers set, got %+v", b)
	}
	if err := w.endAuction(m); !errors.Is(err, auctionerr.InvalidAuctionStatus) {
		t.Fatalf("expected ended auction to stay ended, got %v", err)
	}
}

func TestAuctionWithoutBidsCancelsBundle(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	w.fillBundle(m)
	w.slot = 53
	w.must(w.endAuction(m))
	if a := w.auction(m.auctions[0]); a.Status != state.AuctionCanceled {
		t.Fatalf("expected canceled auction, got %s", a.Status)
	}
	if b := w.bundle(m.bundles[0]); b.Status != state.BundleCanceled {
		t.Fatalf("expected canceled bundle, got %s", b.Status)
	}
	w.must(w.closeRequest(m, 0))
	if len(w.acct(m.jobs[0]).Data) != 0 {
		t.Fatalf("expected job closed")
	}
}

func TestBundleVerifiedEndToEnd(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	bids := w.runAuction(m, 50, 40, 45)
	winner := bids[1]

	if err := w.submitOutput(m, bids[0], m.jobs[0], 90); !errors.Is(err, auctionerr.UnexpectedBidState) {
		t.Fatalf("expected losing bid refused, got %v", err)
	}
	if err := w.submitOutput(m, winner, m.jobs[0], 91); !errors.Is(err, auctionerr.UnexpectedRequestState) {
		t.Fatalf("expected output above max refused, got %v", err)
	}
	if err := w.closeBid(m, winner); !errors.Is(err, auctionerr.InvalidBundleStatus) {
		t.Fatalf("expected executing bid held until verification, got %v", err)
	}
	w.must(w.closeBid(m, bids[0]))
	if err := w.closeRequest(m, 0); !errors.Is(err, auctionerr.UnexpectedRequestState) {
		t.Fatalf("expected waiting job to stay open, got %v", err)
	}

	for i, job := range m.jobs {
		w.must(w.submitOutput(m, winner, job, 90))
		if i == 0 {
			if b := w.bundle(m.bundles[0]); b.Status != state.BundlePendingVerification {
				t.Fatalf("expected pending verification, got %s", b.Status)
			}
			j := w.job(job)
			if j.Status != state.JobOutputReceived || j.Verification.TokenRanges != [6]uint64{0, 30, 30, 60, 60, 90} {
				t.Fatalf("unexpected job after output %+v", j.Verification)
			}
			if err := w.validate(m, actor(23), job, 30, 0); !errors.Is(err, auctionerr.VerifierNotAssigned) {
				t.Fatalf("expected VerifierNotAssigned, got %v", err)
			}
		}
	}
	for i, job := range m.jobs {
		w.must(w.validate(m, verifiers[0], job, 30, 0))
		if i == 0 && w.job(job).Status != state.JobOutputReceived {
			t.Fatalf("expected one verifier short of quorum")
		}
		w.must(w.validate(m, verifiers[1], job, 30, 0))
		if w.job(job).Status != state.JobOutputVerified {
			t.Fatalf("expected job %d verified", i)
		}
	}
	b := w.bundle(m.bundles[0])
	if b.Status != state.BundleVerified || b.NumVerifiedRequests != 20 || b.OutputTokensGenerated != 1800 {
		t.Fatalf("unexpected verified bundle %+v", b)
	}

	w.must(w.closeBid(m, bids[2]))
	w.must(w.closeBid(m, winner))
	if len(w.acct(m.auctions[0]).Data) != 0 || len(w.acct(winner.bid).Data) != 0 {
		t.Fatalf("expected auction closed with its last bid")
	}
	for n := range m.jobs {
		w.must(w.closeRequest(m, n))
	}
	if w.bundle(m.bundles[0]).Status != state.BundleVerified {
		t.Fatalf("expected bundle to outlive its requests")
	}
}

func TestBadJobOutput(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	bids := w.runAuction(m, 40)
	winner := bids[0]

	w.must(w.submitOutput(m, winner, m.jobs[0], 90))
	w.must(w.validate(m, verifiers[2], m.jobs[0], 10, 0))
	if j := w.job(m.jobs[0]); j.Verification.VerifierStates[2] != state.VerificationInProgress || j.Verification.VerifiedTokens[2] != 10 {
		t.Fatalf("expected partial progress, got %+v", j.Verification)
	}
	w.must(w.validate(m, verifiers[0], m.jobs[0], 0, 1))
	if b := w.bundle(m.bundles[0]); b.Status != state.BundleBadJobOutput {
		t.Fatalf("expected bad job output, got %s", b.Status)
	}
	if err := w.submitOutput(m, winner, m.jobs[1], 90); !errors.Is(err, auctionerr.InvalidBundleStatus) {
		t.Fatalf("expected no output after bad output, got %v", err)
	}
	w.must(w.closeRequest(m, 1))
	w.must(w.closeBid(m, winner))
}

func TestOutputDeadline(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	bids := w.runAuction(m, 40)
	policy, _ := state.TierEco.Policy()
	w.slot = 56 + policy.JobSubmissionDuration + 1
	if err := w.submitOutput(m, bids[0], m.jobs[0], 1); !errors.Is(err, auctionerr.AuctionIsExpired) {
		t.Fatalf("expected AuctionIsExpired, got %v", err)
	}
}

func TestEncryptedOutputNamesBidKey(t *testing.T) {
	testlog.Start(t)
	w := newWorld(t)
	m := w.initMarket()
	bids := w.runAuction(m, 40)
	b := bids[0]
	args := &protocol.SubmitJobOutputArgs{OutputTokenCount: 5, OutputHashIV: [16]byte{9}, EncryptionNodePublicKey: [32]byte{1}}
	keys := []solana.PublicKey{b.authority, m.bundles[0], m.jobs[0], b.bid, m.auctions[0], actor(251)}
	if err := w.run(args, []solana.PublicKey{b.authority}, keys...); !errors.Is(err, auctionerr.UnexpectedBidState) {
		t.Fatalf("expected foreign encryption key refused, got %v", err)
	}
	args.EncryptionNodePublicKey = [32]byte{40}
	w.must(w.run(args, []solana.PublicKey{b.authority}, keys...))
	if !w.job(m.jobs[0]).Verification.OutputEncrypted() {
		t.Fatalf("expected encrypted output recorded")
	}
}
