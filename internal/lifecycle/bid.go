package lifecycle

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
)

// RevealBidRecord opens a concealed bid. The transition is one-way.
func RevealBidRecord(b *state.Bid, price uint64) error {
	if b.Status != state.BidConcealed {
		return auctionerr.UnexpectedBidState.Errorf("reveal %s bid", b.Status)
	}
	if price == 0 {
		return auctionerr.UnexpectedBidState.Errorf("reveal: zero price")
	}
	b.PricePerOutputToken = state.SomeU64(price)
	b.Status = state.BidRevealed
	return nil
}
