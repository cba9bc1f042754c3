package state

import "fmt"

// BundleStatus is stored as u64. Value 1 is unassigned.
type BundleStatus uint64

const (
	BundleActive              BundleStatus = 0
	BundleFull                BundleStatus = 2
	BundlePendingVerification BundleStatus = 3
	BundleVerified            BundleStatus = 4
	BundleBadJobOutput        BundleStatus = 5
	BundleCanceled            BundleStatus = 6
)

func (s BundleStatus) Valid() bool {
	switch s {
	case BundleActive, BundleFull, BundlePendingVerification, BundleVerified, BundleBadJobOutput, BundleCanceled:
		return true
	}
	return false
}

func (s BundleStatus) String() string {
	switch s {
	case BundleActive:
		return "active"
	case BundleFull:
		return "full"
	case BundlePendingVerification:
		return "pending_verification"
	case BundleVerified:
		return "verified"
	case BundleBadJobOutput:
		return "bad_job_output"
	case BundleCanceled:
		return "canceled"
	}
	return fmt.Sprintf("bundle_status(%d)", uint64(s))
}

type AuctionStatus uint64

const (
	AuctionActive        AuctionStatus = 0
	AuctionRevealingBids AuctionStatus = 1
	AuctionEnded         AuctionStatus = 2
	AuctionCanceled      AuctionStatus = 3
)

func (s AuctionStatus) Valid() bool {
	return s <= AuctionCanceled
}

func (s AuctionStatus) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionRevealingBids:
		return "revealing_bids"
	case AuctionEnded:
		return "ended"
	case AuctionCanceled:
		return "canceled"
	}
	return fmt.Sprintf("auction_status(%d)", uint64(s))
}

type BidStatus uint64

const (
	BidConcealed BidStatus = 0
	BidRevealed  BidStatus = 1
)

func (s BidStatus) Valid() bool {
	return s <= BidRevealed
}

func (s BidStatus) String() string {
	switch s {
	case BidConcealed:
		return "concealed"
	case BidRevealed:
		return "revealed"
	}
	return fmt.Sprintf("bid_status(%d)", uint64(s))
}

type JobRequestStatus uint64

const (
	JobWaitingForOutput JobRequestStatus = 0
	JobOutputReceived   JobRequestStatus = 1
	JobOutputVerified   JobRequestStatus = 2
)

func (s JobRequestStatus) Valid() bool {
	return s <= JobOutputVerified
}

func (s JobRequestStatus) String() string {
	switch s {
	case JobWaitingForOutput:
		return "waiting_for_output"
	case JobOutputReceived:
		return "output_received"
	case JobOutputVerified:
		return "output_verified"
	}
	return fmt.Sprintf("job_status(%d)", uint64(s))
}

// JobVerificationState tracks one assigned verifier's progress.
type JobVerificationState uint64

const (
	VerificationNotStarted JobVerificationState = 0
	VerificationInProgress JobVerificationState = 1
	VerificationCompleted  JobVerificationState = 2
)

func (s JobVerificationState) Valid() bool {
	return s <= VerificationCompleted
}

func (s JobVerificationState) String() string {
	switch s {
	case VerificationNotStarted:
		return "not_started"
	case VerificationInProgress:
		return "in_progress"
	case VerificationCompleted:
		return "completed"
	}
	return fmt.Sprintf("verification_state(%d)", uint64(s))
}
