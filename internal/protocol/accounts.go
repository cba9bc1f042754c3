package protocol

import (
	"github.com/danmuck/bundlebid/internal/auctionerr"
)

// RequestJobPrefix is the count of fixed accounts before the bundle/auction pairs.
const RequestJobPrefix = 6

func exact[T any](op Opcode, accounts []T, n int) error {
	if len(accounts) != n {
		return auctionerr.NotEnoughAccounts.Errorf("%s: expected %d accounts, got %d", op, n, len(accounts))
	}
	return nil
}

func atLeast[T any](op Opcode, accounts []T, n int) error {
	if len(accounts) < n {
		return auctionerr.NotEnoughAccounts.Errorf("%s: expected at least %d accounts, got %d", op, n, len(accounts))
	}
	return nil
}

// BundleAuction is one candidate slot in the bundle chain.
type BundleAuction[T any] struct {
	Bundle  T
	Auction T
}

type RequestJobAccounts[T any] struct {
	Payer         T
	JobRequest    T
	Registry      T
	InputData     T
	SystemProgram T
	Config        T
	Pairs         []BundleAuction[T]
	// LastBundle is only a creation target for a bundle appended after the last pair.
	LastBundle T
}

// BindRequestJob splits accounts into the fixed prefix, the pair segment and
// the trailing bundle. The pair segment must be even and hold at least minPairs pairs.
func BindRequestJob[T any](accounts []T, minPairs uint64) (RequestJobAccounts[T], error) {
	var out RequestJobAccounts[T]
	if err := atLeast(OpRequestJob, accounts, RequestJobPrefix+1); err != nil {
		return out, err
	}
	middle := accounts[RequestJobPrefix : len(accounts)-1]
	if len(middle)%2 != 0 || uint64(len(middle)) < 2*minPairs {
		return out, auctionerr.NotEnoughBundleAuctionAccounts.Errorf(
			"%s: %d bundle/auction accounts, need an even count of at least %d", OpRequestJob, len(middle), 2*minPairs)
	}
	out.Payer = accounts[0]
	out.JobRequest = accounts[1]
	out.Registry = accounts[2]
	out.InputData = accounts[3]
	out.SystemProgram = accounts[4]
	out.Config = accounts[5]
	out.Pairs = make([]BundleAuction[T], 0, len(middle)/2)
	for i := 0; i < len(middle); i += 2 {
		out.Pairs = append(out.Pairs, BundleAuction[T]{Bundle: middle[i], Auction: middle[i+1]})
	}
	out.LastBundle = accounts[len(accounts)-1]
	return out, nil
}

type PlaceBidAccounts[T any] struct {
	BidAuthority  T
	Bid           T
	Auction       T
	Bundle        T
	SystemProgram T
}

func BindPlaceBid[T any](accounts []T) (PlaceBidAccounts[T], error) {
	if err := exact(OpPlaceBid, accounts, 5); err != nil {
		return PlaceBidAccounts[T]{}, err
	}
	return PlaceBidAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]}, nil
}

type EndAuctionAccounts[T any] struct {
	Auction     T
	Bundle      T
	VoteAccount T
	Payer       T
}

func BindEndAuction[T any](accounts []T) (EndAuctionAccounts[T], error) {
	if err := exact(OpEndAuction, accounts, 4); err != nil {
		return EndAuctionAccounts[T]{}, err
	}
	return EndAuctionAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3]}, nil
}

type CloseBidAccounts[T any] struct {
	BidAuthority  T
	Bid           T
	AuctionPayer  T
	Auction       T
	Bundle        T
	VoteAccount   T
	VoteAuthority T
	VoteProgram   T
}

func BindCloseBid[T any](accounts []T) (CloseBidAccounts[T], error) {
	if err := atLeast(OpCloseBid, accounts, 8); err != nil {
		return CloseBidAccounts[T]{}, err
	}
	return CloseBidAccounts[T]{
		accounts[0], accounts[1], accounts[2], accounts[3],
		accounts[4], accounts[5], accounts[6], accounts[7],
	}, nil
}

type SubmitJobOutputAccounts[T any] struct {
	BidAuthority      T
	Bundle            T
	JobRequest        T
	Bid               T
	Auction           T
	OutputDataAccount T
}

func BindSubmitJobOutput[T any](accounts []T) (SubmitJobOutputAccounts[T], error) {
	if err := exact(OpSubmitJobOutput, accounts, 6); err != nil {
		return SubmitJobOutputAccounts[T]{}, err
	}
	return SubmitJobOutputAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]}, nil
}

type CancelBundleAccounts[T any] struct {
	Payer         T
	Bundle        T
	ChildBundle   T
	Registry      T
	SystemProgram T
}

func BindCancelBundle[T any](accounts []T) (CancelBundleAccounts[T], error) {
	if err := exact(OpCancelBundle, accounts, 5); err != nil {
		return CancelBundleAccounts[T]{}, err
	}
	return CancelBundleAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]}, nil
}

type InitBundleAccounts[T any] struct {
	Payer         T
	Bundle        T
	Registry      T
	SystemProgram T
}

func BindInitBundle[T any](accounts []T) (InitBundleAccounts[T], error) {
	if err := exact(OpInitBundle, accounts, 4); err != nil {
		return InitBundleAccounts[T]{}, err
	}
	return InitBundleAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3]}, nil
}

type SubmitValidationAccounts[T any] struct {
	Bundle        T
	VoteAccount   T
	VoteProgram   T
	VoteAuthority T
	JobRequest    T
}

func BindSubmitValidation[T any](accounts []T) (SubmitValidationAccounts[T], error) {
	if err := atLeast(OpSubmitValidation, accounts, 5); err != nil {
		return SubmitValidationAccounts[T]{}, err
	}
	return SubmitValidationAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]}, nil
}

type RevealBidAccounts[T any] struct {
	BidAuthority  T
	Bid           T
	Auction       T
	Bundle        T
	VoteAccount   T
	VoteAuthority T
}

func BindRevealBid[T any](accounts []T) (RevealBidAccounts[T], error) {
	if err := exact(OpRevealBid, accounts, 6); err != nil {
		return RevealBidAccounts[T]{}, err
	}
	return RevealBidAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]}, nil
}

type CloseRequestAccounts[T any] struct {
	RequestAuthority T
	JobRequest       T
	BundlePayer      T
	Bundle           T
}

func BindCloseRequest[T any](accounts []T) (CloseRequestAccounts[T], error) {
	if err := exact(OpCloseRequest, accounts, 4); err != nil {
		return CloseRequestAccounts[T]{}, err
	}
	return CloseRequestAccounts[T]{accounts[0], accounts[1], accounts[2], accounts[3]}, nil
}

type AppendDataAccounts[T any] struct {
	DataAuthority T
	DataAccount   T
	SystemProgram T
}

func BindAppendData[T any](accounts []T) (AppendDataAccounts[T], error) {
	if err := exact(OpAppendData, accounts, 3); err != nil {
		return AppendDataAccounts[T]{}, err
	}
	return AppendDataAccounts[T]{accounts[0], accounts[1], accounts[2]}, nil
}

type InitConfigAccounts[T any] struct {
	Payer         T
	Config        T
	SystemProgram T
}

func BindInitConfig[T any](accounts []T) (InitConfigAccounts[T], error) {
	if err := exact(OpInitConfig, accounts, 3); err != nil {
		return InitConfigAccounts[T]{}, err
	}
	return InitConfigAccounts[T]{accounts[0], accounts[1], accounts[2]}, nil
}
