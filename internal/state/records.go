package state

import (
	"encoding"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/gagliardetto/solana-go"
)

const (
	ConfigSize         = 48
	BundleRegistrySize = 88
	RequestBundleSize  = 352
	AuctionSize        = 232
	BidSize            = 176
	JobRequestSize     = 560
	VerificationSize   = 288
	MetadataSize       = 88
)

// Record is implemented by every persisted account layout.
type Record interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Size() int
}

// Store encodes rec into the head of dst.
func Store(dst []byte, rec Record) error {
	if len(dst) < rec.Size() {
		return auctionerr.TruncatedInput.Errorf("store: account holds %d bytes, record needs %d", len(dst), rec.Size())
	}
	b, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// Config is the program-wide singleton.
type Config struct {
	UpdateAuthority           MaybePubkey
	MinimumBundleAuctionPairs uint64
	Bump                      uint64
}

func (*Config) Size() int { return ConfigSize }

func (c Config) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(ConfigSize)
	w.key(solana.PublicKey(c.UpdateAuthority))
	w.u64(c.MinimumBundleAuctionPairs)
	w.u64(c.Bump)
	return w.finish("config", ConfigSize)
}

func (c *Config) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("config", data, ConfigSize)
	if err != nil {
		return err
	}
	c.UpdateAuthority = r.maybeKey()
	c.MinimumBundleAuctionPairs = r.u64()
	c.Bump = r.u64()
	return r.done("config")
}

// BundleRegistry points at the newest bundle of one (context tier, expiry tier) pair.
type BundleRegistry struct {
	ContextLengthTier  RequestTier
	ExpiryDurationTier RequestTier
	LatestBundle       solana.PublicKey
	Payer              solana.PublicKey
	Bump               uint64
}

func (*BundleRegistry) Size() int { return BundleRegistrySize }

func (g BundleRegistry) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(BundleRegistrySize)
	w.u64(uint64(g.ContextLengthTier))
	w.u64(uint64(g.ExpiryDurationTier))
	w.key(g.LatestBundle)
	w.key(g.Payer)
	w.u64(g.Bump)
	return w.finish("bundle registry", BundleRegistrySize)
}

func (g *BundleRegistry) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("bundle registry", data, BundleRegistrySize)
	if err != nil {
		return err
	}
	g.ContextLengthTier = RequestTier(r.u64())
	g.ExpiryDurationTier = RequestTier(r.u64())
	g.LatestBundle = r.key()
	g.Payer = r.key()
	g.Bump = r.u64()
	return r.done("bundle registry")
}

// RequestBundle groups up to RequestsPerBundle job requests sold in one auction.
type RequestBundle struct {
	Status                 BundleStatus
	ContextLengthTier      RequestTier
	ExpiryDurationTier     RequestTier
	Auction                MaybePubkey
	Verifiers              [VerifiersPerAuction]solana.PublicKey
	ExpirySlot             uint64
	MaxContextLength       uint64
	RequestsLen            uint64
	NumVerifiedRequests    uint64
	JobSubmissionDuration  uint64
	RequestCommittedAmount uint64
	TotalInputTokens       uint64
	MaximumOutputTokens    uint64
	OutputTokensGenerated  uint64
	ParentBundleKey        solana.PublicKey
	ChildBundleKey         MaybePubkey
	Bump                   uint64
	ChildBundleBump        MaybeU64
	AuctionBump            MaybeU64
	Payer                  solana.PublicKey
	PricePerOutputToken    MaybeU64
}

func (*RequestBundle) Size() int { return RequestBundleSize }

func (b RequestBundle) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(RequestBundleSize)
	w.u64(uint64(b.Status))
	w.u64(uint64(b.ContextLengthTier))
	w.u64(uint64(b.ExpiryDurationTier))
	w.key(solana.PublicKey(b.Auction))
	for _, v := range b.Verifiers {
		w.key(v)
	}
	w.u64(b.ExpirySlot)
	w.u64(b.MaxContextLength)
	w.u64(b.RequestsLen)
	w.u64(b.NumVerifiedRequests)
	w.u64(b.JobSubmissionDuration)
	w.u64(b.RequestCommittedAmount)
	w.u64(b.TotalInputTokens)
	w.u64(b.MaximumOutputTokens)
	w.u64(b.OutputTokensGenerated)
	w.key(b.ParentBundleKey)
	w.key(solana.PublicKey(b.ChildBundleKey))
	w.u64(b.Bump)
	w.u64(uint64(b.ChildBundleBump))
	w.u64(uint64(b.AuctionBump))
	w.key(b.Payer)
	w.u64(uint64(b.PricePerOutputToken))
	return w.finish("request bundle", RequestBundleSize)
}

func (b *RequestBundle) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("request bundle", data, RequestBundleSize)
	if err != nil {
		return err
	}
	b.Status = BundleStatus(r.u64())
	b.ContextLengthTier = RequestTier(r.u64())
	b.ExpiryDurationTier = RequestTier(r.u64())
	b.Auction = r.maybeKey()
	for i := range b.Verifiers {
		b.Verifiers[i] = r.key()
	}
	b.ExpirySlot = r.u64()
	b.MaxContextLength = r.u64()
	b.RequestsLen = r.u64()
	b.NumVerifiedRequests = r.u64()
	b.JobSubmissionDuration = r.u64()
	b.RequestCommittedAmount = r.u64()
	b.TotalInputTokens = r.u64()
	b.MaximumOutputTokens = r.u64()
	b.OutputTokensGenerated = r.u64()
	b.ParentBundleKey = r.key()
	b.ChildBundleKey = r.maybeKey()
	b.Bump = r.u64()
	b.ChildBundleBump = r.maybeU64()
	b.AuctionBump = r.maybeU64()
	b.Payer = r.key()
	b.PricePerOutputToken = r.maybeU64()
	return r.done("request bundle")
}

// Auction is the reverse auction selling one full bundle.
type Auction struct {
	ContextLengthTier   RequestTier
	ExpiryDurationTier  RequestTier
	RequestBundle       solana.PublicKey
	ExpirySlot          uint64
	MaxContextLength    uint64
	LowestBidPrice      MaybeU64
	WinningBidPrice     MaybeU64
	WinningBid          MaybePubkey
	LowestBid           MaybePubkey
	Status              AuctionStatus
	BidsRevealed        uint64
	BidsPlaced          uint64
	BidCommitmentAmount uint64
	WinningBidBump      MaybeU64
	LowestBidBump       MaybeU64
	AuctionBump         uint64
	Payer               solana.PublicKey
}

func (*Auction) Size() int { return AuctionSize }

func (a Auction) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(AuctionSize)
	w.u64(uint64(a.ContextLengthTier))
	w.u64(uint64(a.ExpiryDurationTier))
	w.key(a.RequestBundle)
	w.u64(a.ExpirySlot)
	w.u64(a.MaxContextLength)
	w.u64(uint64(a.LowestBidPrice))
	w.u64(uint64(a.WinningBidPrice))
	w.key(solana.PublicKey(a.WinningBid))
	w.key(solana.PublicKey(a.LowestBid))
	w.u64(uint64(a.Status))
	w.u64(a.BidsRevealed)
	w.u64(a.BidsPlaced)
	w.u64(a.BidCommitmentAmount)
	w.u64(uint64(a.WinningBidBump))
	w.u64(uint64(a.LowestBidBump))
	w.u64(a.AuctionBump)
	w.key(a.Payer)
	return w.finish("auction", AuctionSize)
}

func (a *Auction) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("auction", data, AuctionSize)
	if err != nil {
		return err
	}
	a.ContextLengthTier = RequestTier(r.u64())
	a.ExpiryDurationTier = RequestTier(r.u64())
	a.RequestBundle = r.key()
	a.ExpirySlot = r.u64()
	a.MaxContextLength = r.u64()
	a.LowestBidPrice = r.maybeU64()
	a.WinningBidPrice = r.maybeU64()
	a.WinningBid = r.maybeKey()
	a.LowestBid = r.maybeKey()
	a.Status = AuctionStatus(r.u64())
	a.BidsRevealed = r.u64()
	a.BidsPlaced = r.u64()
	a.BidCommitmentAmount = r.u64()
	a.WinningBidBump = r.maybeU64()
	a.LowestBidBump = r.maybeU64()
	a.AuctionBump = r.u64()
	a.Payer = r.key()
	return r.done("auction")
}

// Bid is one provider's sealed (then revealed) offer on an auction.
type Bid struct {
	Authority           solana.PublicKey
	Auction             solana.PublicKey
	PriceHash           [32]byte
	PricePerOutputToken MaybeU64
	Status              BidStatus
	CanonicalBump       uint64
	IP                  IPAddr
	Port                uint16
	PublicKey           [32]byte
}

func (*Bid) Size() int { return BidSize }

func (b Bid) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(BidSize)
	w.key(b.Authority)
	w.key(b.Auction)
	w.raw(b.PriceHash[:])
	w.u64(uint64(b.PricePerOutputToken))
	w.u64(uint64(b.Status))
	w.u64(b.CanonicalBump)
	b.IP.encode(w)
	w.u16(b.Port)
	w.raw(b.PublicKey[:])
	w.pad(2)
	return w.finish("bid", BidSize)
}

func (b *Bid) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("bid", data, BidSize)
	if err != nil {
		return err
	}
	b.Authority = r.key()
	b.Auction = r.key()
	r.fill(b.PriceHash[:])
	b.PricePerOutputToken = r.maybeU64()
	b.Status = BidStatus(r.u64())
	b.CanonicalBump = r.u64()
	b.IP.decode(r)
	b.Port = r.u16()
	r.fill(b.PublicKey[:])
	r.skip(2)
	return r.done("bid")
}

// VerificationState is embedded in JobRequest and tracks verifier progress.
type VerificationState struct {
	MerkleRoot        [32]byte
	AssignedVerifiers [VerifiersPerAuction]solana.PublicKey
	// TokenRanges holds a [start, end) pair per assigned verifier.
	TokenRanges    [VerifiersPerAuction * 2]uint64
	VerifierStates [VerifiersPerAuction]JobVerificationState
	VerifiedTokens [VerifiersPerAuction]uint64
	OutputHash     [32]byte
	OutputHashIV   [16]byte
	MerkleRootIV   [16]byte
}

func (v VerificationState) encode(w *recordWriter) {
	w.raw(v.MerkleRoot[:])
	for _, k := range v.AssignedVerifiers {
		w.key(k)
	}
	for _, t := range v.TokenRanges {
		w.u64(t)
	}
	for _, s := range v.VerifierStates {
		w.u64(uint64(s))
	}
	for _, t := range v.VerifiedTokens {
		w.u64(t)
	}
	w.raw(v.OutputHash[:])
	w.raw(v.OutputHashIV[:])
	w.raw(v.MerkleRootIV[:])
}

func (v *VerificationState) decode(r *recordReader) {
	r.fill(v.MerkleRoot[:])
	for i := range v.AssignedVerifiers {
		v.AssignedVerifiers[i] = r.key()
	}
	for i := range v.TokenRanges {
		v.TokenRanges[i] = r.u64()
	}
	for i := range v.VerifierStates {
		v.VerifierStates[i] = JobVerificationState(r.u64())
	}
	for i := range v.VerifiedTokens {
		v.VerifiedTokens[i] = r.u64()
	}
	r.fill(v.OutputHash[:])
	r.fill(v.OutputHashIV[:])
	r.fill(v.MerkleRootIV[:])
}

// OutputEncrypted reports whether the output hash carries a non-zero IV.
func (v VerificationState) OutputEncrypted() bool {
	return v.OutputHashIV != [16]byte{}
}

// VerifierIndex returns the slot assigned to k.
func (v VerificationState) VerifierIndex(k solana.PublicKey) (int, bool) {
	if k.IsZero() {
		return 0, false
	}
	for i, a := range v.AssignedVerifiers {
		if a.Equals(k) {
			return i, true
		}
	}
	return 0, false
}

// JobRequest is one client's request for output tokens from a bundle.
type JobRequest struct {
	Bundle                 solana.PublicKey
	MaxPricePerOutputToken uint64
	MaxOutputTokens        uint64
	ContextLengthTier      RequestTier
	ExpiryDurationTier     RequestTier
	Authority              solana.PublicKey
	InputHash              [32]byte
	InputHashIV            [16]byte
	Seed                   [32]byte
	Bump                   uint64
	OutputTokenCount       uint64
	InputTokenCount        uint64
	Status                 JobRequestStatus
	Verification           VerificationState
	InputDataAccount       MaybePubkey
	OutputDataAccount      MaybePubkey
}

func (*JobRequest) Size() int { return JobRequestSize }

func (j JobRequest) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(JobRequestSize)
	w.key(j.Bundle)
	w.u64(j.MaxPricePerOutputToken)
	w.u64(j.MaxOutputTokens)
	w.u64(uint64(j.ContextLengthTier))
	w.u64(uint64(j.ExpiryDurationTier))
	w.key(j.Authority)
	w.raw(j.InputHash[:])
	w.raw(j.InputHashIV[:])
	w.raw(j.Seed[:])
	w.u64(j.Bump)
	w.u64(j.OutputTokenCount)
	w.u64(j.InputTokenCount)
	w.u64(uint64(j.Status))
	j.Verification.encode(w)
	w.key(solana.PublicKey(j.InputDataAccount))
	w.key(solana.PublicKey(j.OutputDataAccount))
	return w.finish("job request", JobRequestSize)
}

func (j *JobRequest) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("job request", data, JobRequestSize)
	if err != nil {
		return err
	}
	j.Bundle = r.key()
	j.MaxPricePerOutputToken = r.u64()
	j.MaxOutputTokens = r.u64()
	j.ContextLengthTier = RequestTier(r.u64())
	j.ExpiryDurationTier = RequestTier(r.u64())
	j.Authority = r.key()
	r.fill(j.InputHash[:])
	r.fill(j.InputHashIV[:])
	r.fill(j.Seed[:])
	j.Bump = r.u64()
	j.OutputTokenCount = r.u64()
	j.InputTokenCount = r.u64()
	j.Status = JobRequestStatus(r.u64())
	j.Verification.decode(r)
	j.InputDataAccount = r.maybeKey()
	j.OutputDataAccount = r.maybeKey()
	return r.done("job request")
}

// Metadata heads a large-payload data account; payload bytes follow it.
type Metadata struct {
	DecompressedLen MaybeU64
	JobRequestKey   MaybePubkey
	Seed            [32]byte
	SeedLen         uint64
	PayloadLen      uint64
}

func (*Metadata) Size() int { return MetadataSize }

func (m Metadata) MarshalBinary() ([]byte, error) {
	w := newRecordWriter(MetadataSize)
	w.u64(uint64(m.DecompressedLen))
	w.key(solana.PublicKey(m.JobRequestKey))
	w.raw(m.Seed[:])
	w.u64(m.SeedLen)
	w.u64(m.PayloadLen)
	return w.finish("metadata", MetadataSize)
}

func (m *Metadata) UnmarshalBinary(data []byte) error {
	r, err := newRecordReader("metadata", data, MetadataSize)
	if err != nil {
		return err
	}
	m.DecompressedLen = r.maybeU64()
	m.JobRequestKey = r.maybeKey()
	r.fill(m.Seed[:])
	m.SeedLen = r.u64()
	m.PayloadLen = r.u64()
	return r.done("metadata")
}

// SeedBytes returns the used prefix of Seed.
func (m Metadata) SeedBytes() []byte {
	n := m.SeedLen
	if n > uint64(len(m.Seed)) {
		n = uint64(len(m.Seed))
	}
	return m.Seed[:n]
}
