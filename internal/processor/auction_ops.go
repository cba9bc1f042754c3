package processor

import (
	"github.com/danmuck/bundlebid/internal/address"
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/lifecycle"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
)

// loadAuctionPair decodes an auction and its bundle and checks they reference each other.
func loadAuctionPair(auctionAcc, bundleAcc *Account) (*state.Auction, *state.RequestBundle, error) {
	auction := &state.Auction{}
	if err := load(auctionAcc, auction, auctionerr.IncorrectAuction); err != nil {
		return nil, nil, err
	}
	bundle := &state.RequestBundle{}
	if err := load(bundleAcc, bundle, auctionerr.DecodeRequestBundleFailed); err != nil {
		return nil, nil, err
	}
	if !auction.RequestBundle.Equals(bundleAcc.Key) || !bundle.Auction.Is(auctionAcc.Key) {
		return nil, nil, auctionerr.IncorrectAuction.Errorf("auction %s does not sell bundle %s", auctionAcc.Key, bundleAcc.Key)
	}
	return auction, bundle, nil
}

func (p *Processor) placeBid(tx *txn, slot uint64, args *protocol.PlaceBidArgs, accounts []*Account) error {
	acc, err := protocol.BindPlaceBid(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.BidAuthority, "bid authority"); err != nil {
		return err
	}
	auction, bundle, err := loadAuctionPair(acc.Auction, acc.Bundle)
	if err != nil {
		return err
	}
	if bundle.Status != state.BundleFull {
		return auctionerr.InvalidBundleStatus.Errorf("bid on %s bundle", bundle.Status)
	}
	if !p.addr.Matches(acc.Bid.Key, address.BidSeeds(acc.Auction.Key, acc.BidAuthority.Key), args.BidBump) {
		return auctionerr.InvalidAccountId.Errorf("bid %s does not derive from auction and authority", acc.Bid.Key)
	}
	if !uninitialized(acc.Bid, state.BidSize) {
		return auctionerr.UnexpectedBidState.Errorf("bid %s already placed", acc.Bid.Key)
	}
	if !args.IP.Valid() {
		return auctionerr.UnexpectedBidState.Errorf("bid endpoint kind %d", args.IP.Kind)
	}
	if args.BidLamports < auction.BidCommitmentAmount {
		return auctionerr.IncorrectBalance.Errorf("bid escrow %d below commitment %d", args.BidLamports, auction.BidCommitmentAmount)
	}
	if err := lifecycle.PlaceBid(auction, slot); err != nil {
		return err
	}
	bid := &state.Bid{
		Authority:     acc.BidAuthority.Key,
		Auction:       acc.Auction.Key,
		PriceHash:     args.PriceHash,
		Status:        state.BidConcealed,
		CanonicalBump: args.BidBump,
		IP:            args.IP,
		Port:          args.Port,
		PublicKey:     args.PublicKey,
	}
	tx.put(acc.Bid, bid)
	tx.put(acc.Auction, auction)
	return nil
}

func (p *Processor) revealBid(tx *txn, slot uint64, args *protocol.RevealBidArgs, accounts []*Account) error {
	acc, err := protocol.BindRevealBid(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.BidAuthority, "bid authority"); err != nil {
		return err
	}
	auction := &state.Auction{}
	if err := load(acc.Auction, auction, auctionerr.IncorrectAuction); err != nil {
		return err
	}
	if !auction.RequestBundle.Equals(acc.Bundle.Key) {
		return auctionerr.IncorrectAuction.Errorf("auction %s does not sell bundle %s", acc.Auction.Key, acc.Bundle.Key)
	}
	bid := &state.Bid{}
	if err := load(acc.Bid, bid, auctionerr.AccountNotFound); err != nil {
		return err
	}
	if !bid.Auction.Equals(acc.Auction.Key) {
		return auctionerr.IncorrectAuction.Errorf("bid %s belongs to %s", acc.Bid.Key, bid.Auction)
	}
	if !bid.Authority.Equals(acc.BidAuthority.Key) {
		return auctionerr.InvalidAccountId.Errorf("bid %s owned by %s", acc.Bid.Key, bid.Authority)
	}
	if bid.Status != state.BidConcealed {
		return auctionerr.UnexpectedBidState.Errorf("reveal %s bid", bid.Status)
	}
	if !p.commitments.Verify(bid.PriceHash, args.PricePerOutputToken, args.PriceHashSeed) {
		return auctionerr.UnexpectedBidState.Errorf("price does not open commitment of bid %s", acc.Bid.Key)
	}
	if err := lifecycle.RevealBid(auction, acc.Bid.Key, bid.CanonicalBump, args.PricePerOutputToken, slot); err != nil {
		return err
	}
	if err := lifecycle.RevealBidRecord(bid, args.PricePerOutputToken); err != nil {
		return err
	}
	tx.put(acc.Bid, bid)
	tx.put(acc.Auction, auction)
	return nil
}

func (p *Processor) endAuction(tx *txn, slot uint64, args *protocol.EndAuctionArgs, accounts []*Account) error {
	acc, err := protocol.BindEndAuction(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.Payer, "payer"); err != nil {
		return err
	}
	auction, bundle, err := loadAuctionPair(acc.Auction, acc.Bundle)
	if err != nil {
		return err
	}
	status, err := lifecycle.EndAuction(auction, slot)
	if err != nil {
		return err
	}
	switch status {
	case state.AuctionCanceled:
		if err := lifecycle.TransitionBundle(bundle, state.BundleCanceled); err != nil {
			return err
		}
	case state.AuctionEnded:
		for i, v := range args.Verifiers {
			if v.IsZero() {
				return auctionerr.VerifierNotAssigned.Errorf("verifier %d missing", i)
			}
		}
		price, ok := lifecycle.ClearingPrice(auction)
		if !ok {
			return auctionerr.NoBidsFound.Errorf("auction %s ended without a revealed price", acc.Auction.Key)
		}
		bundle.PricePerOutputToken = state.SomeU64(price)
		bundle.Verifiers = args.Verifiers
	}
	p.log.Info().Str("auction", acc.Auction.Key.String()).Str("status", status.String()).Msg("auction advanced")
	tx.put(acc.Auction, auction)
	tx.put(acc.Bundle, bundle)
	return nil
}

func (p *Processor) closeBid(tx *txn, accounts []*Account) error {
	acc, err := protocol.BindCloseBid(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.BidAuthority, "bid authority"); err != nil {
		return err
	}
	bid := &state.Bid{}
	if err := load(acc.Bid, bid, auctionerr.AccountNotFound); err != nil {
		return err
	}
	if !bid.Authority.Equals(acc.BidAuthority.Key) {
		return auctionerr.InvalidAccountId.Errorf("bid %s owned by %s", acc.Bid.Key, bid.Authority)
	}
	if !bid.Auction.Equals(acc.Auction.Key) {
		return auctionerr.IncorrectAuction.Errorf("bid %s belongs to %s", acc.Bid.Key, bid.Auction)
	}
	auction, bundle, err := loadAuctionPair(acc.Auction, acc.Bundle)
	if err != nil {
		return err
	}
	if !auction.Payer.Equals(acc.AuctionPayer.Key) {
		return auctionerr.InvalidAccountId.Errorf("auction payer %s, supplied %s", auction.Payer, acc.AuctionPayer.Key)
	}
	if auction.Status == state.AuctionEnded && lifecycle.IsExecutingBid(auction, acc.Bid.Key) &&
		bundle.Status != state.BundleVerified && bundle.Status != state.BundleBadJobOutput {
		return auctionerr.InvalidBundleStatus.Errorf("executing bid closes after verification, bundle is %s", bundle.Status)
	}
	last, err := lifecycle.CloseBid(auction, bid.Status == state.BidRevealed)
	if err != nil {
		return err
	}
	tx.close(acc.Bid)
	if last {
		tx.close(acc.Auction)
	} else {
		tx.put(acc.Auction, auction)
	}
	return nil
}
