package lifecycle

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

// BundleSlot is one supplied bundle position. Bundle is nil when the account
// is uninitialized.
type BundleSlot struct {
	Key    solana.PublicKey
	Bundle *state.RequestBundle
}

// Placement is where the walk decided a new request goes.
type Placement struct {
	// Index is the slot receiving the request.
	Index int
	// Append is set when slot Index must be created as the child of slot Index-1.
	Append bool
}

// WalkChain finds the bundle for a new request. slots holds the bundle of
// every supplied pair followed by the trailing creation slot; pairs is the
// number of pair slots. The trailing slot is never walked into.
func WalkChain(slots []BundleSlot, pairs int, ctx, exp state.RequestTier) (Placement, error) {
	if pairs < 1 || len(slots) != pairs+1 {
		return Placement{}, auctionerr.FailedToFindAValidBundle.Errorf("walk: %d slots for %d pairs", len(slots), pairs)
	}
	for i := 0; i < pairs; i++ {
		b := slots[i].Bundle
		if b == nil {
			return Placement{}, auctionerr.DecodeRequestBundleFailed.Errorf("walk: slot %d (%s) uninitialized", i, slots[i].Key)
		}
		if !MatchesTiers(b, ctx, exp) {
			return Placement{}, auctionerr.InvalidRequestBundleState.Errorf(
				"walk: slot %d tiers %s/%s, registry %s/%s", i, b.ContextLengthTier, b.ExpiryDurationTier, ctx, exp)
		}
		if HasRoom(b) {
			return Placement{Index: i}, nil
		}
		child, ok := b.ChildBundleKey.Get()
		if !ok {
			next := slots[i+1]
			if next.Bundle != nil {
				return Placement{}, auctionerr.InvalidChildRequestBundleState.Errorf("walk: append target %s already initialized", next.Key)
			}
			return Placement{Index: i + 1, Append: true}, nil
		}
		if i+1 == pairs {
			break
		}
		if !slots[i+1].Key.Equals(child) {
			return Placement{}, auctionerr.IncorrectChildBundlePubkey.Errorf("walk: slot %d child %s, supplied %s", i, child, slots[i+1].Key)
		}
	}
	return Placement{}, auctionerr.FailedToFindAValidBundle.Errorf("walk: chain longer than %d supplied pairs", pairs)
}
