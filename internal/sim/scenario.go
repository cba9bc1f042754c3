package sim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/danmuck/bundlebid/internal/logging"
	"github.com/danmuck/bundlebid/internal/processor"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

// Scenario describes one market round on a fresh ledger.
type Scenario struct {
	Context state.RequestTier
	Expiry  state.RequestTier
	Jobs    int
	Bidders int
	// Pairs is the bundle/auction pair count sent with each RequestJob.
	Pairs        int
	InputTokens  uint64
	OutputTokens uint64
	MaxPrice     uint64
	// InputBytes > 0 stages each job's input through AppendData first.
	InputBytes int
}

func DefaultScenario() Scenario {
	return Scenario{
		Context:      state.TierEco,
		Expiry:       state.TierEco,
		Jobs:         state.RequestsPerBundle + 1,
		Bidders:      3,
		Pairs:        state.MinimumBundleAuctionPairs,
		InputTokens:  1_000,
		OutputTokens: 300,
		MaxPrice:     100,
	}
}

func (s Scenario) Validate() error {
	if !s.Context.Valid() || !s.Expiry.Valid() {
		return fmt.Errorf("scenario tiers %s/%s", s.Context, s.Expiry)
	}
	if s.Jobs < 0 || s.Bidders < 0 || s.InputBytes < 0 {
		return fmt.Errorf("scenario counts must not be negative")
	}
	if s.Pairs < 1 {
		return fmt.Errorf("scenario needs at least one bundle/auction pair")
	}
	if p, _ := s.Context.Policy(); s.InputTokens > p.MaxContextLength {
		return fmt.Errorf("scenario input tokens %d exceed %s context", s.InputTokens, s.Context)
	}
	if s.MaxPrice == 0 {
		return fmt.Errorf("scenario max price must be positive")
	}
	return nil
}

// BundleOutcome is the final state of one bundle that filled.
type BundleOutcome struct {
	Bundle        solana.PublicKey
	Auction       solana.PublicKey
	Status        state.BundleStatus
	ClearingPrice uint64
	Winner        solana.PublicKey
	Verified      uint64
}

type Report struct {
	Registry solana.PublicKey
	Jobs     int
	Bundles  []BundleOutcome
	// OpenJobs are requests left in a bundle that never filled.
	OpenJobs int
	Slot     uint64
}

type bidder struct {
	authority solana.PublicKey
	bid       solana.PublicKey
	price     uint64
	seed      [32]byte
}

type round struct {
	rt       *Runtime
	sc       Scenario
	payer    solana.PublicKey
	registry solana.PublicKey
	chain    []solana.PublicKey
	jobs     []solana.PublicKey
	clients  []solana.PublicKey
}

// participant derives a stable key for a named actor of the round.
func participant(program solana.PublicKey, label string) solana.PublicKey {
	k, err := solana.CreateWithSeed(program, label, solana.SystemProgramID)
	if err != nil {
		panic(err)
	}
	return k
}

// Run drives the scenario through rt. Every filled bundle is auctioned,
// executed by the lowest bidder, validated and closed out.
func (s Scenario) Run(ctx context.Context, rt *Runtime) (Report, error) {
	if err := s.Validate(); err != nil {
		return Report{}, err
	}
	log := logging.Component("scenario")
	r := &round{rt: rt, sc: s, payer: participant(rt.Addresses().Program, "payer")}

	if err := r.initBundle(ctx); err != nil {
		return Report{}, fmt.Errorf("init bundle: %w", err)
	}
	for k := 0; k < s.Jobs; k++ {
		if err := r.requestJob(ctx, k); err != nil {
			return Report{}, fmt.Errorf("request job %d: %w", k, err)
		}
	}
	full := s.Jobs / state.RequestsPerBundle
	log.Info().Int("jobs", s.Jobs).Int("full_bundles", full).Uint64("slot", rt.Slot()).Msg("requests submitted")

	bids := make([][]bidder, full)
	for i := 0; i < full; i++ {
		var err error
		if bids[i], err = r.placeBids(ctx, i); err != nil {
			return Report{}, fmt.Errorf("bundle %d: place bids: %w", i, err)
		}
	}
	rt.Advance(state.ActiveAuctionDuration)
	for i := 0; i < full; i++ {
		if err := r.endAuction(ctx, i); err != nil {
			return Report{}, fmt.Errorf("bundle %d: close bidding: %w", i, err)
		}
		for _, b := range bids[i] {
			if err := r.reveal(ctx, i, b); err != nil {
				return Report{}, fmt.Errorf("bundle %d: reveal: %w", i, err)
			}
		}
	}
	rt.Advance(state.BidRevealDuration)

	report := Report{Registry: r.registry, Jobs: s.Jobs, OpenJobs: s.Jobs - full*state.RequestsPerBundle}
	for i := 0; i < full; i++ {
		if len(bids[i]) > 0 {
			if err := r.endAuction(ctx, i); err != nil {
				return Report{}, fmt.Errorf("bundle %d: end auction: %w", i, err)
			}
		}
		out, err := r.execute(ctx, i, bids[i])
		if err != nil {
			return Report{}, fmt.Errorf("bundle %d: %w", i, err)
		}
		log.Info().Str("bundle", out.Bundle.String()).Str("status", out.Status.String()).
			Uint64("price", out.ClearingPrice).Uint64("verified", out.Verified).Msg("bundle settled")
		report.Bundles = append(report.Bundles, out)
	}
	report.Slot = rt.Slot()
	return report, nil
}

func (r *round) program() solana.PublicKey {
	return r.rt.Addresses().Program
}

func (r *round) load(ctx context.Context, key solana.PublicKey, rec state.Record) error {
	data, err := r.rt.Account(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return rec.UnmarshalBinary(data)
}

// bundle returns the i-th bundle of the chain, deriving children as needed.
func (r *round) bundle(i int) (solana.PublicKey, error) {
	for len(r.chain) <= i {
		parent := r.registry
		if n := len(r.chain); n > 0 {
			parent = r.chain[n-1]
		}
		k, _, err := r.rt.Addresses().Bundle(parent)
		if err != nil {
			return solana.PublicKey{}, err
		}
		r.chain = append(r.chain, k)
	}
	return r.chain[i], nil
}

func (r *round) auction(i int) (solana.PublicKey, error) {
	b, err := r.bundle(i)
	if err != nil {
		return solana.PublicKey{}, err
	}
	k, _, err := r.rt.Addresses().Auction(b)
	return k, err
}

func (r *round) initBundle(ctx context.Context) error {
	d := r.rt.Addresses()
	registry, regBump, err := d.Registry(r.sc.Context, r.sc.Expiry)
	if err != nil {
		return err
	}
	r.registry = registry
	first, err := r.bundle(0)
	if err != nil {
		return err
	}
	_, bundleBump, err := d.Bundle(registry)
	if err != nil {
		return err
	}
	return r.rt.Run(ctx, protocol.Instruction{Args: &protocol.InitBundleArgs{
		ContextLengthTier:  r.sc.Context,
		ExpiryDurationTier: r.sc.Expiry,
		BundleBump:         uint64(bundleBump),
		RegistryBump:       uint64(regBump),
	}}, r.payer, first, registry, solana.SystemProgramID)
}

func (r *round) requestJob(ctx context.Context, k int) error {
	d := r.rt.Addresses()
	authority := participant(r.program(), fmt.Sprintf("client-%d", k))
	var seed [32]byte
	copy(seed[:], fmt.Sprintf("job-%d", k))
	job, jobBump, err := d.JobRequest(authority, seed)
	if err != nil {
		return err
	}

	args := &protocol.RequestJobArgs{
		MaxPricePerOutputToken: r.sc.MaxPrice,
		MaxOutputTokens:        r.sc.OutputTokens,
		Authority:              authority,
		JobRequestSeed:         seed,
		InputTokens:            r.sc.InputTokens,
		Bump:                   uint64(jobBump),
	}
	input := solana.SystemProgramID
	if r.sc.InputBytes > 0 {
		if input, err = r.stageInput(ctx, authority, k); err != nil {
			return err
		}
		args.InputDataAccount = state.SomePubkey(input)
	}
	cfg, _, err := d.Config()
	if err != nil {
		return err
	}

	// the walk starts at the registry's latest bundle
	start := k / state.RequestsPerBundle
	keys := []solana.PublicKey{r.payer, job, r.registry, input, solana.SystemProgramID, cfg}
	for i := start; i < start+r.sc.Pairs; i++ {
		b, err := r.bundle(i)
		if err != nil {
			return err
		}
		a, err := r.auction(i)
		if err != nil {
			return err
		}
		keys = append(keys, b, a)
	}
	last, err := r.bundle(start + r.sc.Pairs)
	if err != nil {
		return err
	}
	keys = append(keys, last)
	if err := r.rt.Run(ctx, protocol.Instruction{Args: args}, keys...); err != nil {
		return err
	}
	r.jobs = append(r.jobs, job)
	r.clients = append(r.clients, authority)
	return nil
}

// stageInput allocates the job's data account and writes its input payload.
func (r *round) stageInput(ctx context.Context, authority solana.PublicKey, k int) (solana.PublicKey, error) {
	var seed [32]byte
	n := copy(seed[:], fmt.Sprintf("in-%d", k))
	key, err := r.rt.Addresses().WithSeed(authority, seed[:n])
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := r.rt.Allocate(ctx, key, state.MetadataSize+r.sc.InputBytes); err != nil {
		return solana.PublicKey{}, err
	}
	payload := bytes.Repeat([]byte{byte('a' + k%26)}, r.sc.InputBytes)
	err = r.rt.Run(ctx, protocol.Instruction{
		Args:    &protocol.AppendDataArgs{Offset: state.MetadataSize, Seed: seed, SeedLen: uint64(n)},
		Payload: payload,
	}, authority, key, solana.SystemProgramID)
	return key, err
}

func (r *round) verifiers() [state.VerifiersPerAuction]solana.PublicKey {
	var out [state.VerifiersPerAuction]solana.PublicKey
	for i := range out {
		out[i] = participant(r.program(), fmt.Sprintf("verifier-%d", i))
	}
	return out
}

func (r *round) placeBids(ctx context.Context, i int) ([]bidder, error) {
	bundle, err := r.bundle(i)
	if err != nil {
		return nil, err
	}
	auction, err := r.auction(i)
	if err != nil {
		return nil, err
	}
	commitment := r.sc.Context.BidCommitment()
	out := make([]bidder, 0, r.sc.Bidders)
	for j := 0; j < r.sc.Bidders; j++ {
		b := bidder{authority: participant(r.program(), fmt.Sprintf("provider-%d", j))}
		b.price = r.sc.MaxPrice - uint64(j)%r.sc.MaxPrice
		b.seed = [32]byte{byte(i), byte(i >> 8), byte(j), 0xB1}
		bid, bump, err := r.rt.Addresses().Bid(auction, b.authority)
		if err != nil {
			return nil, err
		}
		b.bid = bid
		ip := state.IPAddr{Kind: state.IPv4, Payload: [16]byte{10, 0, 0, byte(j + 1)}}
		err = r.rt.Run(ctx, protocol.Instruction{Args: &protocol.PlaceBidArgs{
			PriceHash:   processor.SHA256Commitment{}.Commit(b.price, b.seed),
			BidBump:     uint64(bump),
			BidLamports: commitment,
			IP:          ip,
			Port:        uint16(9000 + j),
			PublicKey:   [32]byte(b.authority),
		}}, b.authority, bid, auction, bundle, solana.SystemProgramID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *round) endAuction(ctx context.Context, i int) error {
	bundle, err := r.bundle(i)
	if err != nil {
		return err
	}
	auction, err := r.auction(i)
	if err != nil {
		return err
	}
	vote := participant(r.program(), "vote-account")
	return r.rt.Run(ctx, protocol.Instruction{Args: &protocol.EndAuctionArgs{Verifiers: r.verifiers()}},
		auction, bundle, vote, r.payer)
}

func (r *round) reveal(ctx context.Context, i int, b bidder) error {
	bundle, err := r.bundle(i)
	if err != nil {
		return err
	}
	auction, err := r.auction(i)
	if err != nil {
		return err
	}
	vote := participant(r.program(), "vote-account")
	return r.rt.Run(ctx, protocol.Instruction{Args: &protocol.RevealBidArgs{PricePerOutputToken: b.price, PriceHashSeed: b.seed}},
		b.authority, b.bid, auction, bundle, vote, b.authority)
}

// execute runs outputs, validations and closes for bundle i.
func (r *round) execute(ctx context.Context, i int, bids []bidder) (BundleOutcome, error) {
	bundleKey, err := r.bundle(i)
	if err != nil {
		return BundleOutcome{}, err
	}
	auctionKey, err := r.auction(i)
	if err != nil {
		return BundleOutcome{}, err
	}
	out := BundleOutcome{Bundle: bundleKey, Auction: auctionKey}
	var auction state.Auction
	if err := r.load(ctx, auctionKey, &auction); err != nil {
		return out, err
	}
	jobs := r.jobs[i*state.RequestsPerBundle : (i+1)*state.RequestsPerBundle]
	clients := r.clients[i*state.RequestsPerBundle : (i+1)*state.RequestsPerBundle]

	var winner *bidder
	for j := range bids {
		if auction.LowestBid.Is(bids[j].bid) {
			winner = &bids[j]
		}
	}
	if auction.Status == state.AuctionEnded && winner != nil {
		out.Winner = winner.authority
		if err := r.submitOutputs(ctx, bundleKey, auctionKey, *winner, jobs); err != nil {
			return out, err
		}
		if err := r.validate(ctx, bundleKey, jobs); err != nil {
			return out, err
		}
	}

	vote := participant(r.program(), "vote-account")
	closing := make([]bidder, 0, len(bids))
	for _, b := range bids {
		if winner == nil || !b.bid.Equals(winner.bid) {
			closing = append(closing, b)
		}
	}
	if winner != nil {
		closing = append(closing, *winner)
	}
	for _, b := range closing {
		err := r.rt.Run(ctx, protocol.Instruction{Args: &protocol.CloseBidArgs{}},
			b.authority, b.bid, r.payer, auctionKey, bundleKey, vote, r.verifiers()[0], solana.VoteProgramID)
		if err != nil {
			return out, fmt.Errorf("close bid %s: %w", b.bid, err)
		}
	}

	var bundle state.RequestBundle
	if err := r.load(ctx, bundleKey, &bundle); err != nil {
		return out, err
	}
	for n, job := range jobs {
		var rec state.JobRequest
		if err := r.load(ctx, job, &rec); err != nil {
			return out, err
		}
		if rec.Status != state.JobOutputVerified && bundle.Status != state.BundleCanceled && bundle.Status != state.BundleBadJobOutput {
			continue
		}
		err := r.rt.Run(ctx, protocol.Instruction{Args: &protocol.CloseRequestArgs{}}, clients[n], job, r.payer, bundleKey)
		if err != nil {
			return out, fmt.Errorf("close request %s: %w", job, err)
		}
	}

	out.Status = bundle.Status
	out.Verified = bundle.NumVerifiedRequests
	out.ClearingPrice, _ = bundle.PricePerOutputToken.Get()
	return out, nil
}

func (r *round) submitOutputs(ctx context.Context, bundle, auction solana.PublicKey, winner bidder, jobs []solana.PublicKey) error {
	for n, job := range jobs {
		var rec state.JobRequest
		if err := r.load(ctx, job, &rec); err != nil {
			return err
		}
		err := r.rt.Run(ctx, protocol.Instruction{Args: &protocol.SubmitJobOutputArgs{
			OutputTokenCount: rec.MaxOutputTokens,
			InputTokenCount:  rec.InputTokenCount,
			OutputHash:       [32]byte{byte(n), 0x0F},
			MerkleRoot:       [32]byte{byte(n), 0x3E},
		}}, winner.authority, bundle, job, winner.bid, auction, solana.SystemProgramID)
		if err != nil {
			return fmt.Errorf("submit output %s: %w", job, err)
		}
	}
	return nil
}

// validate reports full success from each verifier until the job reaches quorum.
func (r *round) validate(ctx context.Context, bundle solana.PublicKey, jobs []solana.PublicKey) error {
	vote := participant(r.program(), "vote-account")
	for _, job := range jobs {
		for idx, verifier := range r.verifiers() {
			var rec state.JobRequest
			if err := r.load(ctx, job, &rec); err != nil {
				return err
			}
			if rec.Status == state.JobOutputVerified {
				break
			}
			ranges := rec.Verification.TokenRanges
			span := ranges[2*idx+1] - ranges[2*idx]
			err := r.rt.Run(ctx, protocol.Instruction{Args: &protocol.SubmitValidationArgs{NumSuccesses: span}},
				bundle, vote, solana.VoteProgramID, verifier, job)
			if err != nil {
				return fmt.Errorf("validate %s as %s: %w", job, verifier, err)
			}
		}
	}
	return nil
}
