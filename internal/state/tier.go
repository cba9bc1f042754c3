package state

import (
	"fmt"
	"math"
)

const (
	RequestsPerBundle         = 20
	VerifiersPerAuction       = 3
	MinimumBundleAuctionPairs = 2
	ActiveAuctionDuration     = 3
	BidRevealDuration         = 3
	BundleDuration            = math.MaxUint64
	// BidCommitmentBase is scaled by the tier's commitment multiplier.
	BidCommitmentBase = 1_000_000
)

// RequestTier classifies both context length and expiry duration. Stored as u64.
type RequestTier uint64

const (
	TierEco      RequestTier = 0
	TierStandard RequestTier = 1
	TierPro      RequestTier = 2
)

func (t RequestTier) Valid() bool {
	return t <= TierPro
}

func (t RequestTier) String() string {
	switch t {
	case TierEco:
		return "eco"
	case TierStandard:
		return "standard"
	case TierPro:
		return "pro"
	}
	return fmt.Sprintf("tier(%d)", uint64(t))
}

// ParseTier accepts the lowercase tier name.
func ParseTier(raw string) (RequestTier, bool) {
	for _, t := range Tiers() {
		if t.String() == raw {
			return t, true
		}
	}
	return 0, false
}

type TierPolicy struct {
	MaxContextLength         uint64
	JobSubmissionDuration    uint64
	BidCommitmentMultiplier  uint64
	AuctionCreditsMultiplier uint64
	Verifiers                uint64
	BidRevealDuration        uint64
	ActiveAuctionDuration    uint64
	BundleDuration           uint64
	RequestsPerBundle        uint64
}

var tierTable = [...]TierPolicy{
	TierEco: {
		MaxContextLength:         43_000,
		JobSubmissionDuration:    155,
		BidCommitmentMultiplier:  1,
		AuctionCreditsMultiplier: 1,
	},
	TierStandard: {
		MaxContextLength:         86_000,
		JobSubmissionDuration:    145,
		BidCommitmentMultiplier:  2,
		AuctionCreditsMultiplier: 2,
	},
	TierPro: {
		MaxContextLength:         131_072,
		JobSubmissionDuration:    135,
		BidCommitmentMultiplier:  3,
		AuctionCreditsMultiplier: 3,
	},
}

// Policy returns the static parameters for t.
func (t RequestTier) Policy() (TierPolicy, bool) {
	if !t.Valid() {
		return TierPolicy{}, false
	}
	p := tierTable[t]
	p.Verifiers = VerifiersPerAuction
	p.BidRevealDuration = BidRevealDuration
	p.ActiveAuctionDuration = ActiveAuctionDuration
	p.BundleDuration = BundleDuration
	p.RequestsPerBundle = RequestsPerBundle
	return p, true
}

// BidCommitment is the amount a bidder escrows on this tier.
func (t RequestTier) BidCommitment() uint64 {
	p, ok := t.Policy()
	if !ok {
		return 0
	}
	return BidCommitmentBase * p.BidCommitmentMultiplier
}

func Tiers() []RequestTier {
	return []RequestTier{TierEco, TierStandard, TierPro}
}

// ContextTierForTokens returns the smallest tier whose context window covers n.
func ContextTierForTokens(n uint64) (RequestTier, bool) {
	for _, t := range Tiers() {
		if p, _ := t.Policy(); n <= p.MaxContextLength {
			return t, true
		}
	}
	return 0, false
}
