// Package auctionerr owns the closed failure taxonomy surfaced to the runtime.
//
// Every decode and validation failure maps to exactly one Code. Codes are
// comparable values implementing error, so call sites wrap them with %w and
// callers recover them with errors.Is or CodeOf.
package auctionerr

import (
	"errors"
	"fmt"
)

// Code is a numbered failure reported to the external runtime.
type Code uint32

const (
	Unknown                        Code = 0
	UnexpectedState                Code = 1
	UnexpectedRequestState         Code = 2
	UnexpectedBidState             Code = 3
	AuctionNotExpired              Code = 4
	IncorrectBalance               Code = 5
	NonZeroBalance                 Code = 6
	SolanaRpc                      Code = 7
	AccountNotFound                Code = 8
	Bug                            Code = 9
	InvalidAccountId               Code = 10
	IncorrectAuction               Code = 11
	InvalidAuctionStatus           Code = 12
	AuctionIsExpired               Code = 13
	InvalidRequestId               Code = 14
	InvalidRequestBundleState      Code = 16
	UnableToAddNewJobReqToBundle   Code = 17
	TooManyJobsInBundle            Code = 18
	DecodeRequestBundleFailed      Code = 19
	IncorrectChildBundlePubkey     Code = 20
	IncorrectChildAuctionPubkey    Code = 21
	InvalidBundleStatus            Code = 22
	BundleNotExpired               Code = 23
	InvalidChildRequestBundleState Code = 24
	VerifierNotAssigned            Code = 25
	NoBidsFound                    Code = 26
	NotEnoughBundleAuctionAccounts Code = 27
	FailedToFindAValidBundle       Code = 28
	BundleNotAuctioned             Code = 29
	InvalidRegistry                Code = 30
	InvalidMetadata                Code = 31
	LatestBundleCanceled           Code = 32
	NotEnoughAccounts              Code = 33
	TruncatedInput                 Code = 34
	UnknownInstruction             Code = 35
)

var labels = map[Code]string{
	Unknown:                        "unknown error",
	UnexpectedState:                "auction in unexpected state",
	UnexpectedRequestState:         "job request in unexpected state",
	UnexpectedBidState:             "bid in unexpected state",
	AuctionNotExpired:              "auction not expired",
	IncorrectBalance:               "incorrect balance",
	NonZeroBalance:                 "non-zero balance",
	SolanaRpc:                      "rpc failure",
	AccountNotFound:                "account not found",
	Bug:                            "programmer bug",
	InvalidAccountId:               "invalid account id",
	IncorrectAuction:               "incorrect auction account",
	InvalidAuctionStatus:           "invalid auction status",
	AuctionIsExpired:               "auction is expired",
	InvalidRequestId:               "invalid job request account",
	InvalidRequestBundleState:      "invalid request bundle state",
	UnableToAddNewJobReqToBundle:   "unable to add job request to bundle",
	TooManyJobsInBundle:            "too many jobs in bundle",
	DecodeRequestBundleFailed:      "request bundle decode failed",
	IncorrectChildBundlePubkey:     "incorrect child bundle key",
	IncorrectChildAuctionPubkey:    "incorrect child auction key",
	InvalidBundleStatus:            "invalid bundle status",
	BundleNotExpired:               "bundle not expired",
	InvalidChildRequestBundleState: "invalid child request bundle state",
	VerifierNotAssigned:            "verifier not assigned",
	NoBidsFound:                    "no bids found",
	NotEnoughBundleAuctionAccounts: "not enough bundle/auction accounts",
	FailedToFindAValidBundle:       "failed to find a valid bundle",
	BundleNotAuctioned:             "bundle not auctioned",
	InvalidRegistry:                "invalid bundle registry",
	InvalidMetadata:                "invalid data account metadata",
	LatestBundleCanceled:           "latest bundle can not be canceled",
	NotEnoughAccounts:              "not enough accounts",
	TruncatedInput:                 "truncated input",
	UnknownInstruction:             "unknown instruction",
}

// FromCode maps a raw numeric code onto the taxonomy. Unassigned values map to Unknown.
func FromCode(raw uint32) Code {
	c := Code(raw)
	if _, ok := labels[c]; !ok {
		return Unknown
	}
	return c
}

// Label returns the human-readable label for c.
func (c Code) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return labels[Unknown]
}

func (c Code) Error() string {
	return fmt.Sprintf("auction error %d: %s", uint32(c), c.Label())
}

// Errorf wraps c with formatted context.
func (c Code) Errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), c)
}

// CodeOf extracts the taxonomy code from err. Errors outside the taxonomy report Unknown.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return Unknown, false
}

// All returns every assigned code in ascending order.
func All() []Code {
	out := make([]Code, 0, len(labels))
	for c := Code(0); c <= UnknownInstruction; c++ {
		if _, ok := labels[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
