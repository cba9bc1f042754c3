package processor

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/lifecycle"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
)

func (p *Processor) submitJobOutput(tx *txn, slot uint64, args *protocol.SubmitJobOutputArgs, accounts []*Account) error {
	acc, err := protocol.BindSubmitJobOutput(accounts)
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
	if auction.Status != state.AuctionEnded {
		return auctionerr.InvalidAuctionStatus.Errorf("submit output for %s auction", auction.Status)
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
	if !lifecycle.IsExecutingBid(auction, acc.Bid.Key) {
		return auctionerr.UnexpectedBidState.Errorf("bid %s did not win %s", acc.Bid.Key, acc.Auction.Key)
	}
	if bundle.Status != state.BundleFull && bundle.Status != state.BundlePendingVerification {
		return auctionerr.InvalidBundleStatus.Errorf("submit output to %s bundle", bundle.Status)
	}
	deadline := lifecycle.SaturatingAdd(auction.ExpirySlot, bundle.JobSubmissionDuration)
	if slot > deadline {
		return auctionerr.AuctionIsExpired.Errorf("output at slot %d after deadline %d", slot, deadline)
	}
	job := &state.JobRequest{}
	if err := load(acc.JobRequest, job, auctionerr.InvalidRequestId); err != nil {
		return err
	}
	if !job.Bundle.Equals(acc.Bundle.Key) {
		return auctionerr.InvalidRequestId.Errorf("job %s belongs to %s", acc.JobRequest.Key, job.Bundle)
	}
	if args.InputTokenCount > bundle.MaxContextLength {
		return auctionerr.UnexpectedRequestState.Errorf("%d input tokens exceed context %d", args.InputTokenCount, bundle.MaxContextLength)
	}
	if args.OutputHashIV != ([16]byte{}) && args.EncryptionNodePublicKey != bid.PublicKey {
		return auctionerr.UnexpectedBidState.Errorf("output encrypted to a key other than the bid's")
	}

	out := lifecycle.JobOutput{
		OutputTokens: args.OutputTokenCount,
		MerkleRoot:   args.MerkleRoot,
		OutputHash:   args.OutputHash,
		MerkleRootIV: args.MerkleRootIV,
		OutputHashIV: args.OutputHashIV,
	}
	if initialized(acc.OutputDataAccount, state.MetadataSize) {
		if err := p.bindMetadata(tx, acc.OutputDataAccount, acc.OutputDataAccount.Key, acc.JobRequest.Key, acc.BidAuthority.Key); err != nil {
			return err
		}
		out.OutputAccount = state.SomePubkey(acc.OutputDataAccount.Key)
	}
	if err := lifecycle.SubmitOutput(job, out, bundle.Verifiers); err != nil {
		return err
	}
	if bundle.Status == state.BundleFull {
		if err := lifecycle.TransitionBundle(bundle, state.BundlePendingVerification); err != nil {
			return err
		}
	}
	bundle.OutputTokensGenerated = lifecycle.SaturatingAdd(bundle.OutputTokensGenerated, args.OutputTokenCount)
	tx.put(acc.JobRequest, job)
	tx.put(acc.Bundle, bundle)
	return nil
}

func (p *Processor) submitValidation(tx *txn, args *protocol.SubmitValidationArgs, accounts []*Account) error {
	acc, err := protocol.BindSubmitValidation(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.VoteAuthority, "vote authority"); err != nil {
		return err
	}
	bundle := &state.RequestBundle{}
	if err := load(acc.Bundle, bundle, auctionerr.DecodeRequestBundleFailed); err != nil {
		return err
	}
	if bundle.Status != state.BundlePendingVerification {
		return auctionerr.InvalidBundleStatus.Errorf("validate %s bundle", bundle.Status)
	}
	job := &state.JobRequest{}
	if err := load(acc.JobRequest, job, auctionerr.InvalidRequestId); err != nil {
		return err
	}
	if !job.Bundle.Equals(acc.Bundle.Key) {
		return auctionerr.InvalidRequestId.Errorf("job %s belongs to %s", acc.JobRequest.Key, job.Bundle)
	}
	res, err := lifecycle.RecordValidation(job, lifecycle.Validation{
		Verifier:  acc.VoteAuthority.Key,
		Successes: args.NumSuccesses,
		Failures:  args.NumFailures,
	}, p.quorum)
	if err != nil {
		return err
	}
	switch {
	case res.Failed:
		if err := lifecycle.TransitionBundle(bundle, state.BundleBadJobOutput); err != nil {
			return err
		}
		p.log.Info().Str("bundle", acc.Bundle.Key.String()).Str("verifier", acc.VoteAuthority.Key.String()).Msg("bad job output reported")
	case res.Verified:
		bundle.NumVerifiedRequests = lifecycle.SaturatingAdd(bundle.NumVerifiedRequests, 1)
		if bundle.NumVerifiedRequests >= bundle.RequestsLen {
			if err := lifecycle.TransitionBundle(bundle, state.BundleVerified); err != nil {
				return err
			}
		}
	}
	tx.put(acc.JobRequest, job)
	tx.put(acc.Bundle, bundle)
	return nil
}

// closeRequest closes a finished job. The bundle stays open; its rent is the
// bundle payer's and is reclaimed outside this program.
func (p *Processor) closeRequest(tx *txn, accounts []*Account) error {
	acc, err := protocol.BindCloseRequest(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.RequestAuthority, "request authority"); err != nil {
		return err
	}
	job := &state.JobRequest{}
	if err := load(acc.JobRequest, job, auctionerr.InvalidRequestId); err != nil {
		return err
	}
	if !job.Authority.Equals(acc.RequestAuthority.Key) {
		return auctionerr.InvalidAccountId.Errorf("job %s owned by %s", acc.JobRequest.Key, job.Authority)
	}
	if !job.Bundle.Equals(acc.Bundle.Key) {
		return auctionerr.InvalidRequestId.Errorf("job %s belongs to %s", acc.JobRequest.Key, job.Bundle)
	}
	bundle := &state.RequestBundle{}
	if err := load(acc.Bundle, bundle, auctionerr.DecodeRequestBundleFailed); err != nil {
		return err
	}
	if !bundle.Payer.Equals(acc.BundlePayer.Key) {
		return auctionerr.InvalidAccountId.Errorf("bundle payer %s, supplied %s", bundle.Payer, acc.BundlePayer.Key)
	}
	finished := job.Status == state.JobOutputVerified ||
		bundle.Status == state.BundleCanceled || bundle.Status == state.BundleBadJobOutput
	if !finished {
		return auctionerr.UnexpectedRequestState.Errorf("close %s job in %s bundle", job.Status, bundle.Status)
	}
	tx.close(acc.JobRequest)
	return nil
}
