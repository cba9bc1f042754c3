package protocol

import (
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

// Argument record sizes, excluding the opcode byte.
const (
	RequestJobArgsSize       = 192
	PlaceBidArgsSize         = 104
	EndAuctionArgsSize       = 96
	CloseBidArgsSize         = 0
	SubmitJobOutputArgsSize  = 144
	CancelBundleArgsSize     = 72
	InitBundleArgsSize       = 48
	SubmitValidationArgsSize = 16
	RevealBidArgsSize        = 40
	CloseRequestArgsSize     = 0
	AppendDataArgsSize       = 56
	InitConfigArgsSize       = 48
)

// Args is the closed set of per-opcode argument records.
type Args interface {
	Opcode() Opcode
	Size() int
	encode(w *argWriter)
	decode(r *argReader)
}

// Instruction is a decoded instruction buffer.
type Instruction struct {
	Opcode  Opcode
	Args    Args
	Payload []byte
}

// RequestJobArgs submits one job request into the bundle chain of a tier pair.
type RequestJobArgs struct {
	MaxPricePerOutputToken uint64
	MaxOutputTokens        uint64
	Authority              solana.PublicKey
	InputHash              [32]byte
	InputHashIV            [16]byte
	JobRequestSeed         [32]byte
	NewBundleLamports      uint64
	InputTokens            uint64
	Bump                   uint64
	NewAuctionLamports     uint64
	InputDataAccount       state.MaybePubkey
}

func (*RequestJobArgs) Opcode() Opcode { return OpRequestJob }
func (*RequestJobArgs) Size() int      { return RequestJobArgsSize }

func (a *RequestJobArgs) encode(w *argWriter) {
	w.u64(a.MaxPricePerOutputToken)
	w.u64(a.MaxOutputTokens)
	w.key(a.Authority)
	w.raw(a.InputHash[:])
	w.raw(a.InputHashIV[:])
	w.raw(a.JobRequestSeed[:])
	w.u64(a.NewBundleLamports)
	w.u64(a.InputTokens)
	w.u64(a.Bump)
	w.u64(a.NewAuctionLamports)
	w.key(solana.PublicKey(a.InputDataAccount))
}

func (a *RequestJobArgs) decode(r *argReader) {
	a.MaxPricePerOutputToken = r.u64()
	a.MaxOutputTokens = r.u64()
	a.Authority = r.key()
	r.fill(a.InputHash[:])
	r.fill(a.InputHashIV[:])
	r.fill(a.JobRequestSeed[:])
	a.NewBundleLamports = r.u64()
	a.InputTokens = r.u64()
	a.Bump = r.u64()
	a.NewAuctionLamports = r.u64()
	a.InputDataAccount = state.MaybePubkey(r.key())
}

// PlaceBidArgs commits a hidden price and the provider's endpoint.
type PlaceBidArgs struct {
	PriceHash   [32]byte
	BidBump     uint64
	BidLamports uint64
	IP          state.IPAddr
	Port        uint16
	PublicKey   [32]byte
}

func (*PlaceBidArgs) Opcode() Opcode { return OpPlaceBid }
func (*PlaceBidArgs) Size() int      { return PlaceBidArgsSize }

func (a *PlaceBidArgs) encode(w *argWriter) {
	w.raw(a.PriceHash[:])
	w.u64(a.BidBump)
	w.u64(a.BidLamports)
	w.ip(a.IP)
	w.u16(a.Port)
	w.raw(a.PublicKey[:])
	w.raw([]byte{0, 0})
}

func (a *PlaceBidArgs) decode(r *argReader) {
	r.fill(a.PriceHash[:])
	a.BidBump = r.u64()
	a.BidLamports = r.u64()
	a.IP = r.ip()
	a.Port = r.u16()
	r.fill(a.PublicKey[:])
	var pad [2]byte
	r.fill(pad[:])
}

// EndAuctionArgs names the verifiers recorded on the bundle when an auction ends.
type EndAuctionArgs struct {
	Verifiers [state.VerifiersPerAuction]solana.PublicKey
}

func (*EndAuctionArgs) Opcode() Opcode { return OpEndAuction }
func (*EndAuctionArgs) Size() int      { return EndAuctionArgsSize }

func (a *EndAuctionArgs) encode(w *argWriter) {
	for _, v := range a.Verifiers {
		w.key(v)
	}
}

func (a *EndAuctionArgs) decode(r *argReader) {
	for i := range a.Verifiers {
		a.Verifiers[i] = r.key()
	}
}

type CloseBidArgs struct{}

func (*CloseBidArgs) Opcode() Opcode      { return OpCloseBid }
func (*CloseBidArgs) Size() int           { return CloseBidArgsSize }
func (*CloseBidArgs) encode(w *argWriter) {}
func (*CloseBidArgs) decode(r *argReader) {}

// SubmitJobOutputArgs reports a provider's output for one job request.
// Zero IVs mean the hashes are not encrypted.
type SubmitJobOutputArgs struct {
	OutputTokenCount        uint64
	InputTokenCount         uint64
	MerkleRoot              [32]byte
	OutputHash              [32]byte
	MerkleRootIV            [16]byte
	OutputHashIV            [16]byte
	EncryptionNodePublicKey [32]byte
}

func (*SubmitJobOutputArgs) Opcode() Opcode { return OpSubmitJobOutput }
func (*SubmitJobOutputArgs) Size() int      { return SubmitJobOutputArgsSize }

func (a *SubmitJobOutputArgs) encode(w *argWriter) {
	w.u64(a.OutputTokenCount)
	w.u64(a.InputTokenCount)
	w.raw(a.MerkleRoot[:])
	w.raw(a.OutputHash[:])
	w.raw(a.MerkleRootIV[:])
	w.raw(a.OutputHashIV[:])
	w.raw(a.EncryptionNodePublicKey[:])
}

func (a *SubmitJobOutputArgs) decode(r *argReader) {
	a.OutputTokenCount = r.u64()
	a.InputTokenCount = r.u64()
	r.fill(a.MerkleRoot[:])
	r.fill(a.OutputHash[:])
	r.fill(a.MerkleRootIV[:])
	r.fill(a.OutputHashIV[:])
	r.fill(a.EncryptionNodePublicKey[:])
}

type CancelBundleArgs struct {
	ParentBundleKey    solana.PublicKey
	BundleBump         uint64
	ChildBundleBump    uint64
	ContextLengthTier  state.RequestTier
	ExpiryDurationTier state.RequestTier
	BundleLamports     uint64
}

func (*CancelBundleArgs) Opcode() Opcode { return OpCancelBundle }
func (*CancelBundleArgs) Size() int      { return CancelBundleArgsSize }

func (a *CancelBundleArgs) encode(w *argWriter) {
	w.key(a.ParentBundleKey)
	w.u64(a.BundleBump)
	w.u64(a.ChildBundleBump)
	w.u64(uint64(a.ContextLengthTier))
	w.u64(uint64(a.ExpiryDurationTier))
	w.u64(a.BundleLamports)
}

func (a *CancelBundleArgs) decode(r *argReader) {
	a.ParentBundleKey = r.key()
	a.BundleBump = r.u64()
	a.ChildBundleBump = r.u64()
	a.ContextLengthTier = state.RequestTier(r.u64())
	a.ExpiryDurationTier = state.RequestTier(r.u64())
	a.BundleLamports = r.u64()
}

type InitBundleArgs struct {
	ContextLengthTier  state.RequestTier
	ExpiryDurationTier state.RequestTier
	BundleLamports     uint64
	RegistryLamports   uint64
	BundleBump         uint64
	RegistryBump       uint64
}

func (*InitBundleArgs) Opcode() Opcode { return OpInitBundle }
func (*InitBundleArgs) Size() int      { return InitBundleArgsSize }

func (a *InitBundleArgs) encode(w *argWriter) {
	w.u64(uint64(a.ContextLengthTier))
	w.u64(uint64(a.ExpiryDurationTier))
	w.u64(a.BundleLamports)
	w.u64(a.RegistryLamports)
	w.u64(a.BundleBump)
	w.u64(a.RegistryBump)
}

func (a *InitBundleArgs) decode(r *argReader) {
	a.ContextLengthTier = state.RequestTier(r.u64())
	a.ExpiryDurationTier = state.RequestTier(r.u64())
	a.BundleLamports = r.u64()
	a.RegistryLamports = r.u64()
	a.BundleBump = r.u64()
	a.RegistryBump = r.u64()
}

type SubmitValidationArgs struct {
	NumSuccesses uint64
	NumFailures  uint64
}

func (*SubmitValidationArgs) Opcode() Opcode { return OpSubmitValidation }
func (*SubmitValidationArgs) Size() int      { return SubmitValidationArgsSize }

func (a *SubmitValidationArgs) encode(w *argWriter) {
	w.u64(a.NumSuccesses)
	w.u64(a.NumFailures)
}

func (a *SubmitValidationArgs) decode(r *argReader) {
	a.NumSuccesses = r.u64()
	a.NumFailures = r.u64()
}

// RevealBidArgs opens a previously committed price.
type RevealBidArgs struct {
	PricePerOutputToken uint64
	PriceHashSeed       [32]byte
}

func (*RevealBidArgs) Opcode() Opcode { return OpRevealBid }
func (*RevealBidArgs) Size() int      { return RevealBidArgsSize }

func (a *RevealBidArgs) encode(w *argWriter) {
	w.u64(a.PricePerOutputToken)
	w.raw(a.PriceHashSeed[:])
}

func (a *RevealBidArgs) decode(r *argReader) {
	a.PricePerOutputToken = r.u64()
	r.fill(a.PriceHashSeed[:])
}

type CloseRequestArgs struct{}

func (*CloseRequestArgs) Opcode() Opcode      { return OpCloseRequest }
func (*CloseRequestArgs) Size() int           { return CloseRequestArgsSize }
func (*CloseRequestArgs) encode(w *argWriter) {}
func (*CloseRequestArgs) decode(r *argReader) {}

// AppendDataArgs writes the trailing instruction payload into a data account at Offset.
type AppendDataArgs struct {
	Offset          uint64
	Seed            [32]byte
	SeedLen         uint64
	DecompressedLen state.MaybeU64
}

func (*AppendDataArgs) Opcode() Opcode { return OpAppendData }
func (*AppendDataArgs) Size() int      { return AppendDataArgsSize }

func (a *AppendDataArgs) encode(w *argWriter) {
	w.u64(a.Offset)
	w.raw(a.Seed[:])
	w.u64(a.SeedLen)
	w.u64(uint64(a.DecompressedLen))
}

func (a *AppendDataArgs) decode(r *argReader) {
	a.Offset = r.u64()
	r.fill(a.Seed[:])
	a.SeedLen = r.u64()
	a.DecompressedLen = state.MaybeU64(r.u64())
}

// SeedBytes returns the used prefix of Seed, clamped to its capacity.
func (a *AppendDataArgs) SeedBytes() []byte {
	n := a.SeedLen
	if n > uint64(len(a.Seed)) {
		n = uint64(len(a.Seed))
	}
	return a.Seed[:n]
}

type InitConfigArgs struct {
	MinimumBundleAuctionPairs uint64
	UpdateAuthority           state.MaybePubkey
	ConfigLamports            uint64
}

func (*InitConfigArgs) Opcode() Opcode { return OpInitConfig }
func (*InitConfigArgs) Size() int      { return InitConfigArgsSize }

func (a *InitConfigArgs) encode(w *argWriter) {
	w.u64(a.MinimumBundleAuctionPairs)
	w.key(solana.PublicKey(a.UpdateAuthority))
	w.u64(a.ConfigLamports)
}

func (a *InitConfigArgs) decode(r *argReader) {
	a.MinimumBundleAuctionPairs = r.u64()
	a.UpdateAuthority = state.MaybePubkey(r.key())
	a.ConfigLamports = r.u64()
}
