package state

// Byte offsets read and written without decoding the whole record.
const (
	BundleOffsetStatus             = 0
	BundleOffsetContextLengthTier  = 8
	BundleOffsetExpiryDurationTier = 16
	BundleOffsetAuction            = 24
	BundleOffsetVerifiers          = 56
	BundleOffsetExpirySlot         = 152
	BundleOffsetRequestsLen        = 168
	BundleOffsetParent             = 224
	BundleOffsetChild              = 256
	BundleOffsetPrice              = 344

	AuctionOffsetRequestBundle = 16
	AuctionOffsetStatus        = 144

	BidOffsetIP        = 120
	BidOffsetPort      = 140
	BidOffsetPublicKey = 142

	JobOffsetStatus       = 200
	JobOffsetVerification = 208
	JobOffsetInputData    = 496
	JobOffsetOutputData   = 528
)
