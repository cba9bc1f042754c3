package lifecycle

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

var bundleTransitions = map[state.BundleStatus][]state.BundleStatus{
	state.BundleActive:              {state.BundleFull, state.BundleCanceled},
	state.BundleFull:                {state.BundlePendingVerification, state.BundleCanceled},
	state.BundlePendingVerification: {state.BundleVerified, state.BundleBadJobOutput},
}

// CanTransitionBundle reports whether from -> to is legal.
func CanTransitionBundle(from, to state.BundleStatus) bool {
	for _, s := range bundleTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionBundle moves b to status to or fails with InvalidBundleStatus.
func TransitionBundle(b *state.RequestBundle, to state.BundleStatus) error {
	if !CanTransitionBundle(b.Status, to) {
		return auctionerr.InvalidBundleStatus.Errorf("bundle %s -> %s", b.Status, to)
	}
	b.Status = to
	return nil
}

// NewBundle builds an empty Active bundle for the tier pair.
func NewBundle(ctx, exp state.RequestTier, parent, payer solana.PublicKey, bump uint64, slot uint64) (state.RequestBundle, error) {
	cp, ok := ctx.Policy()
	if !ok {
		return state.RequestBundle{}, auctionerr.InvalidRequestBundleState.Errorf("context tier %s", ctx)
	}
	ep, ok := exp.Policy()
	if !ok {
		return state.RequestBundle{}, auctionerr.InvalidRequestBundleState.Errorf("expiry tier %s", exp)
	}
	return state.RequestBundle{
		Status:                state.BundleActive,
		ContextLengthTier:     ctx,
		ExpiryDurationTier:    exp,
		ExpirySlot:            satAdd(slot, ep.BundleDuration),
		MaxContextLength:      cp.MaxContextLength,
		JobSubmissionDuration: cp.JobSubmissionDuration,
		ParentBundleKey:       parent,
		Bump:                  bump,
		Payer:                 payer,
	}, nil
}

// HasRoom reports whether b accepts another request.
func HasRoom(b *state.RequestBundle) bool {
	return b.Status == state.BundleActive && b.RequestsLen < state.RequestsPerBundle
}

// IsExpired: no requests and the expiry slot has been reached.
func IsExpired(b *state.RequestBundle, slot uint64) bool {
	return b.RequestsLen < 1 && b.ExpirySlot <= slot
}

// RequestRecord is the per-request contribution to bundle aggregates.
type RequestRecord struct {
	InputTokens     uint64
	MaxOutputTokens uint64
	MaxPrice        uint64
}

// Committed is the client's maximum spend: price x output tokens, saturating.
func (r RequestRecord) Committed() uint64 {
	return satMul(r.MaxPrice, r.MaxOutputTokens)
}

// AddRequestRecord counts one request into b and reports whether it filled the
// bundle. Aggregates saturate; a full bundle refuses with TooManyJobsInBundle.
func AddRequestRecord(b *state.RequestBundle, rec RequestRecord) (bool, error) {
	if b.Status != state.BundleActive {
		return false, auctionerr.InvalidBundleStatus.Errorf("add request to %s bundle", b.Status)
	}
	if b.RequestsLen >= state.RequestsPerBundle {
		return false, auctionerr.TooManyJobsInBundle.Errorf("bundle holds %d requests", b.RequestsLen)
	}
	b.RequestsLen++
	b.TotalInputTokens = satAdd(b.TotalInputTokens, rec.InputTokens)
	b.MaximumOutputTokens = satAdd(b.MaximumOutputTokens, rec.MaxOutputTokens)
	b.RequestCommittedAmount = satAdd(b.RequestCommittedAmount, rec.Committed())
	return b.RequestsLen == state.RequestsPerBundle, nil
}

// LinkChild records the child bundle. An existing different child is refused.
func LinkChild(b *state.RequestBundle, child solana.PublicKey, bump uint64) error {
	if existing, ok := b.ChildBundleKey.Get(); ok {
		if existing.Equals(child) {
			return nil
		}
		return auctionerr.IncorrectChildBundlePubkey.Errorf("child already %s", existing)
	}
	b.ChildBundleKey = state.SomePubkey(child)
	b.ChildBundleBump = state.SomeU64(bump)
	return nil
}

// MarkFull closes b to new requests and links its auction.
func MarkFull(b *state.RequestBundle, auction solana.PublicKey, auctionBump uint64) error {
	if err := TransitionBundle(b, state.BundleFull); err != nil {
		return err
	}
	b.Auction = state.SomePubkey(auction)
	b.AuctionBump = state.SomeU64(auctionBump)
	return nil
}

// MatchesTiers reports whether b belongs to the (ctx, exp) registry.
func MatchesTiers(b *state.RequestBundle, ctx, exp state.RequestTier) bool {
	return b.ContextLengthTier == ctx && b.ExpiryDurationTier == exp
}
