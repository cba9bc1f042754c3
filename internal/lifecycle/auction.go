package lifecycle

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

// NewAuction opens the Active auction selling bundle.
func NewAuction(bundleKey solana.PublicKey, b *state.RequestBundle, slot, bump uint64, payer solana.PublicKey) (state.Auction, error) {
	p, ok := b.ContextLengthTier.Policy()
	if !ok {
		return state.Auction{}, auctionerr.InvalidRequestBundleState.Errorf("context tier %s", b.ContextLengthTier)
	}
	return state.Auction{
		ContextLengthTier:   b.ContextLengthTier,
		ExpiryDurationTier:  b.ExpiryDurationTier,
		RequestBundle:       bundleKey,
		ExpirySlot:          satAdd(slot, p.ActiveAuctionDuration),
		MaxContextLength:    b.MaxContextLength,
		Status:              state.AuctionActive,
		BidCommitmentAmount: satMul(state.BidCommitmentBase, p.BidCommitmentMultiplier),
		AuctionBump:         bump,
		Payer:               payer,
	}, nil
}

func IsAuctionExpired(a *state.Auction, slot uint64) bool {
	return a.ExpirySlot <= slot
}

// PlaceBid counts a concealed bid into an Active, unexpired auction.
func PlaceBid(a *state.Auction, slot uint64) error {
	if a.Status != state.AuctionActive {
		return auctionerr.InvalidAuctionStatus.Errorf("place bid on %s auction", a.Status)
	}
	if IsAuctionExpired(a, slot) {
		return auctionerr.AuctionIsExpired.Errorf("place bid at slot %d, expiry %d", slot, a.ExpirySlot)
	}
	a.BidsPlaced = satAdd(a.BidsPlaced, 1)
	return nil
}

// RevealBid records a revealed price and updates the extrema. Ties keep the
// first-seen bid as lowest.
func RevealBid(a *state.Auction, bid solana.PublicKey, bump, price, slot uint64) error {
	if a.Status != state.AuctionRevealingBids {
		return auctionerr.InvalidAuctionStatus.Errorf("reveal on %s auction", a.Status)
	}
	if IsAuctionExpired(a, slot) {
		return auctionerr.AuctionIsExpired.Errorf("reveal at slot %d, expiry %d", slot, a.ExpirySlot)
	}
	if price == 0 {
		return auctionerr.UnexpectedBidState.Errorf("reveal: zero price")
	}
	if a.BidsRevealed >= a.BidsPlaced {
		return auctionerr.UnexpectedState.Errorf("reveal: %d of %d bids already revealed", a.BidsRevealed, a.BidsPlaced)
	}
	lowest, hasLowest := a.LowestBidPrice.Get()
	winning, hasWinning := a.WinningBidPrice.Get()
	switch {
	case !hasLowest:
		a.LowestBidPrice = state.SomeU64(price)
		a.LowestBid = state.SomePubkey(bid)
		a.LowestBidBump = state.SomeU64(bump)
	case price < lowest:
		a.WinningBidPrice = a.LowestBidPrice
		a.WinningBid = a.LowestBid
		a.WinningBidBump = a.LowestBidBump
		a.LowestBidPrice = state.SomeU64(price)
		a.LowestBid = state.SomePubkey(bid)
		a.LowestBidBump = state.SomeU64(bump)
	case !hasWinning || price < winning:
		a.WinningBidPrice = state.SomeU64(price)
		a.WinningBid = state.SomePubkey(bid)
		a.WinningBidBump = state.SomeU64(bump)
	}
	a.BidsRevealed++
	return nil
}

// EndAuction advances an expired auction one phase and returns the new status.
func EndAuction(a *state.Auction, slot uint64) (state.AuctionStatus, error) {
	if !IsAuctionExpired(a, slot) {
		return a.Status, auctionerr.AuctionNotExpired.Errorf("end at slot %d, expiry %d", slot, a.ExpirySlot)
	}
	switch a.Status {
	case state.AuctionActive:
		if a.BidsPlaced == 0 {
			a.Status = state.AuctionCanceled
			break
		}
		p, ok := a.ContextLengthTier.Policy()
		if !ok {
			return a.Status, auctionerr.InvalidAuctionStatus.Errorf("context tier %s", a.ContextLengthTier)
		}
		a.Status = state.AuctionRevealingBids
		a.ExpirySlot = satAdd(slot, p.BidRevealDuration)
	case state.AuctionRevealingBids:
		if a.BidsRevealed == 0 {
			a.Status = state.AuctionCanceled
		} else {
			a.Status = state.AuctionEnded
		}
	default:
		return a.Status, auctionerr.InvalidAuctionStatus.Errorf("end %s auction", a.Status)
	}
	return a.Status, nil
}

// ClearingPrice is the second-lowest revealed price, or the lowest when only
// one bid was revealed.
func ClearingPrice(a *state.Auction) (uint64, bool) {
	if p, ok := a.WinningBidPrice.Get(); ok {
		return p, true
	}
	return a.LowestBidPrice.Get()
}

// IsExecutingBid reports whether bid is the one that runs the bundle.
func IsExecutingBid(a *state.Auction, bid solana.PublicKey) bool {
	return a.LowestBid.Is(bid)
}

// CloseBid removes one bid from the auction counters and reports whether the
// auction has no bids left.
func CloseBid(a *state.Auction, revealed bool) (bool, error) {
	if a.Status != state.AuctionEnded && a.Status != state.AuctionCanceled {
		return false, auctionerr.InvalidAuctionStatus.Errorf("close bid on %s auction", a.Status)
	}
	if a.BidsPlaced == 0 {
		return true, auctionerr.NoBidsFound.Errorf("close bid: auction has no bids")
	}
	a.BidsPlaced--
	if revealed && a.BidsRevealed > 0 {
		a.BidsRevealed--
	}
	return a.BidsPlaced == 0, nil
}
