package processor

import (
	"github.com/danmuck/bundlebid/internal/address"
	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/lifecycle"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

func (p *Processor) initBundle(tx *txn, slot uint64, args *protocol.InitBundleArgs, accounts []*Account) error {
	acc, err := protocol.BindInitBundle(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.Payer, "payer"); err != nil {
		return err
	}
	ctx, exp := args.ContextLengthTier, args.ExpiryDurationTier
	if !ctx.Valid() || !exp.Valid() {
		return auctionerr.InvalidRequestBundleState.Errorf("tiers %s/%s", ctx, exp)
	}
	if !p.addr.Matches(acc.Registry.Key, address.RegistrySeeds(ctx, exp), args.RegistryBump) {
		return auctionerr.InvalidRegistry.Errorf("registry %s is not the %s/%s address", acc.Registry.Key, ctx, exp)
	}
	if !uninitialized(acc.Registry, state.BundleRegistrySize) {
		return auctionerr.InvalidRegistry.Errorf("registry %s already initialized", acc.Registry.Key)
	}
	if !p.addr.Matches(acc.Bundle.Key, address.BundleSeeds(acc.Registry.Key), args.BundleBump) {
		return auctionerr.InvalidAccountId.Errorf("bundle %s is not the first bundle of %s", acc.Bundle.Key, acc.Registry.Key)
	}
	if !uninitialized(acc.Bundle, state.RequestBundleSize) {
		return auctionerr.InvalidAccountId.Errorf("bundle %s already initialized", acc.Bundle.Key)
	}

	bundle, err := lifecycle.NewBundle(ctx, exp, acc.Registry.Key, acc.Payer.Key, args.BundleBump, slot)
	if err != nil {
		return err
	}
	registry := &state.BundleRegistry{
		ContextLengthTier:  ctx,
		ExpiryDurationTier: exp,
		LatestBundle:       acc.Bundle.Key,
		Payer:              acc.Payer.Key,
		Bump:               args.RegistryBump,
	}
	tx.put(acc.Registry, registry)
	tx.put(acc.Bundle, &bundle)
	return nil
}

// minimumPairs reads the config account at its RequestJob position when it is
// the initialized program config.
func (p *Processor) minimumPairs(accounts []*Account) uint64 {
	if len(accounts) <= 5 {
		return p.minPairs
	}
	cfgAcc := accounts[5]
	want, _, err := p.addr.Config()
	if err != nil || !cfgAcc.Key.Equals(want) {
		return p.minPairs
	}
	var cfg state.Config
	if load(cfgAcc, &cfg, auctionerr.AccountNotFound) != nil || cfg.MinimumBundleAuctionPairs == 0 {
		return p.minPairs
	}
	return cfg.MinimumBundleAuctionPairs
}

func (p *Processor) loadRegistry(acc *Account) (*state.BundleRegistry, error) {
	reg := &state.BundleRegistry{}
	if err := load(acc, reg, auctionerr.InvalidRegistry); err != nil {
		return nil, err
	}
	if !p.addr.Matches(acc.Key, address.RegistrySeeds(reg.ContextLengthTier, reg.ExpiryDurationTier), reg.Bump) {
		return nil, auctionerr.InvalidRegistry.Errorf("registry %s does not derive from its tiers", acc.Key)
	}
	return reg, nil
}

func (p *Processor) requestJob(tx *txn, slot uint64, args *protocol.RequestJobArgs, accounts []*Account) error {
	acc, err := protocol.BindRequestJob(accounts, p.minimumPairs(accounts))
	if err != nil {
		return err
	}
	if err := requireSigner(acc.Payer, "payer"); err != nil {
		return err
	}
	if !p.addr.Matches(acc.JobRequest.Key, address.JobRequestSeeds(args.Authority, args.JobRequestSeed), args.Bump) {
		return auctionerr.InvalidRequestId.Errorf("job request %s does not derive from authority and seed", acc.JobRequest.Key)
	}
	if !uninitialized(acc.JobRequest, state.JobRequestSize) {
		return auctionerr.InvalidRequestId.Errorf("job request %s already exists", acc.JobRequest.Key)
	}
	registry, err := p.loadRegistry(acc.Registry)
	if err != nil {
		return err
	}
	if !acc.Pairs[0].Bundle.Key.Equals(registry.LatestBundle) {
		return auctionerr.FailedToFindAValidBundle.Errorf("walk starts at %s, registry latest is %s", acc.Pairs[0].Bundle.Key, registry.LatestBundle)
	}
	ctx, exp := registry.ContextLengthTier, registry.ExpiryDurationTier
	policy, ok := ctx.Policy()
	if !ok || args.InputTokens > policy.MaxContextLength {
		return auctionerr.UnableToAddNewJobReqToBundle.Errorf("%d input tokens exceed %s context", args.InputTokens, ctx)
	}

	slots := make([]lifecycle.BundleSlot, 0, len(acc.Pairs)+1)
	handles := make([]*Account, 0, len(acc.Pairs)+1)
	for _, pair := range acc.Pairs {
		handles = append(handles, pair.Bundle)
	}
	handles = append(handles, acc.LastBundle)
	for _, h := range handles {
		s := lifecycle.BundleSlot{Key: h.Key}
		if initialized(h, state.RequestBundleSize) {
			b := &state.RequestBundle{}
			if err := b.UnmarshalBinary(h.Data); err != nil {
				return auctionerr.DecodeRequestBundleFailed.Errorf("bundle %s: %v", h.Key, err)
			}
			s.Bundle = b
		}
		slots = append(slots, s)
	}

	place, err := lifecycle.WalkChain(slots, len(acc.Pairs), ctx, exp)
	if err != nil {
		return err
	}
	if place.Append {
		if err := p.appendBundle(tx, slot, slots, handles, place.Index, registry, acc.Payer.Key); err != nil {
			return err
		}
	}

	target := slots[place.Index].Bundle
	filled, err := lifecycle.AddRequestRecord(target, lifecycle.RequestRecord{
		InputTokens:     args.InputTokens,
		MaxOutputTokens: args.MaxOutputTokens,
		MaxPrice:        args.MaxPricePerOutputToken,
	})
	if err != nil {
		return err
	}
	tx.put(handles[place.Index], target)

	if filled {
		if place.Index >= len(acc.Pairs) {
			return auctionerr.Bug.Errorf("filled bundle in the creation slot")
		}
		if err := p.sealBundle(tx, slot, slots, handles, acc.Pairs[place.Index].Auction, place.Index, registry, acc.Payer.Key); err != nil {
			return err
		}
	}

	job := &state.JobRequest{
		Bundle:                 slots[place.Index].Key,
		MaxPricePerOutputToken: args.MaxPricePerOutputToken,
		MaxOutputTokens:        args.MaxOutputTokens,
		ContextLengthTier:      ctx,
		ExpiryDurationTier:     exp,
		Authority:              args.Authority,
		InputHash:              args.InputHash,
		InputHashIV:            args.InputHashIV,
		Seed:                   args.JobRequestSeed,
		Bump:                   args.Bump,
		InputTokenCount:        args.InputTokens,
		Status:                 state.JobWaitingForOutput,
		InputDataAccount:       args.InputDataAccount,
	}
	if input, ok := args.InputDataAccount.Get(); ok {
		if err := p.bindMetadata(tx, acc.InputData, input, acc.JobRequest.Key, args.Authority); err != nil {
			return err
		}
	}
	tx.put(acc.JobRequest, job)
	tx.put(acc.Registry, registry)
	return nil
}

// appendBundle creates slot idx as the child of slot idx-1 and advances the registry.
func (p *Processor) appendBundle(tx *txn, slot uint64, slots []lifecycle.BundleSlot, handles []*Account, idx int, registry *state.BundleRegistry, payer solana.PublicKey) error {
	parent := slots[idx-1]
	key, bump, err := p.addr.Bundle(parent.Key)
	if err != nil || !key.Equals(slots[idx].Key) {
		return auctionerr.IncorrectChildBundlePubkey.Errorf("append target %s is not the child of %s", slots[idx].Key, parent.Key)
	}
	child, err := lifecycle.NewBundle(registry.ContextLengthTier, registry.ExpiryDurationTier, parent.Key, payer, uint64(bump), slot)
	if err != nil {
		return err
	}
	if err := lifecycle.LinkChild(parent.Bundle, key, uint64(bump)); err != nil {
		return err
	}
	slots[idx].Bundle = &child
	registry.LatestBundle = key
	tx.put(handles[idx-1], parent.Bundle)
	return nil
}

// sealBundle marks slot idx Full, opens its auction and creates its child in slot idx+1.
func (p *Processor) sealBundle(tx *txn, slot uint64, slots []lifecycle.BundleSlot, handles []*Account, auctionAcc *Account, idx int, registry *state.BundleRegistry, payer solana.PublicKey) error {
	full := slots[idx]
	auctionKey, auctionBump, err := p.addr.Auction(full.Key)
	if err != nil || !auctionKey.Equals(auctionAcc.Key) {
		return auctionerr.IncorrectChildAuctionPubkey.Errorf("auction %s is not the auction of %s", auctionAcc.Key, full.Key)
	}
	if !uninitialized(auctionAcc, state.AuctionSize) {
		return auctionerr.IncorrectChildAuctionPubkey.Errorf("auction %s already initialized", auctionAcc.Key)
	}
	childSlot := slots[idx+1]
	childKey, childBump, err := p.addr.Bundle(full.Key)
	if err != nil || !childKey.Equals(childSlot.Key) {
		return auctionerr.IncorrectChildBundlePubkey.Errorf("child %s is not the child of %s", childSlot.Key, full.Key)
	}
	if childSlot.Bundle != nil {
		return auctionerr.InvalidChildRequestBundleState.Errorf("child %s already initialized", childSlot.Key)
	}

	if err := lifecycle.MarkFull(full.Bundle, auctionKey, uint64(auctionBump)); err != nil {
		return err
	}
	if err := lifecycle.LinkChild(full.Bundle, childKey, uint64(childBump)); err != nil {
		return err
	}
	auction, err := lifecycle.NewAuction(full.Key, full.Bundle, slot, uint64(auctionBump), payer)
	if err != nil {
		return err
	}
	child, err := lifecycle.NewBundle(registry.ContextLengthTier, registry.ExpiryDurationTier, full.Key, payer, uint64(childBump), slot)
	if err != nil {
		return err
	}
	registry.LatestBundle = childKey
	tx.put(auctionAcc, &auction)
	tx.put(handles[idx+1], &child)
	p.log.Info().Str("bundle", full.Key.String()).Str("auction", auctionKey.String()).Str("child", childKey.String()).Msg("bundle full")
	return nil
}

// bindMetadata attaches a data account to a job request. The account must be
// the create-with-seed address of the owner and not yet bound.
func (p *Processor) bindMetadata(tx *txn, acc *Account, want, job, owner solana.PublicKey) error {
	if !acc.Key.Equals(want) {
		return auctionerr.InvalidMetadata.Errorf("data account %s, expected %s", acc.Key, want)
	}
	meta := &state.Metadata{}
	if err := load(acc, meta, auctionerr.InvalidMetadata); err != nil {
		return err
	}
	derived, err := p.addr.WithSeed(owner, meta.SeedBytes())
	if err != nil || !derived.Equals(acc.Key) {
		return auctionerr.InvalidMetadata.Errorf("data account %s not owned by %s", acc.Key, owner)
	}
	if meta.JobRequestKey.IsSome() {
		return auctionerr.InvalidMetadata.Errorf("data account %s already bound to %s", acc.Key, meta.JobRequestKey)
	}
	meta.JobRequestKey = state.SomePubkey(job)
	tx.put(acc, meta)
	return nil
}

func (p *Processor) cancelBundle(tx *txn, slot uint64, args *protocol.CancelBundleArgs, accounts []*Account) error {
	acc, err := protocol.BindCancelBundle(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.Payer, "payer"); err != nil {
		return err
	}
	bundle := &state.RequestBundle{}
	if err := load(acc.Bundle, bundle, auctionerr.DecodeRequestBundleFailed); err != nil {
		return err
	}
	if !p.addr.Matches(acc.Bundle.Key, address.BundleSeeds(args.ParentBundleKey), args.BundleBump) ||
		!bundle.ParentBundleKey.Equals(args.ParentBundleKey) {
		return auctionerr.InvalidAccountId.Errorf("bundle %s is not the child of %s", acc.Bundle.Key, args.ParentBundleKey)
	}
	registry, err := p.loadRegistry(acc.Registry)
	if err != nil {
		return err
	}
	ctx, exp := args.ContextLengthTier, args.ExpiryDurationTier
	if !lifecycle.MatchesTiers(bundle, ctx, exp) || registry.ContextLengthTier != ctx || registry.ExpiryDurationTier != exp {
		return auctionerr.InvalidRequestBundleState.Errorf("bundle tiers %s/%s do not match %s/%s",
			bundle.ContextLengthTier, bundle.ExpiryDurationTier, ctx, exp)
	}
	if !lifecycle.IsExpired(bundle, slot) {
		return auctionerr.BundleNotExpired.Errorf("bundle %s expires at %d, slot %d", acc.Bundle.Key, bundle.ExpirySlot, slot)
	}
	if err := lifecycle.TransitionBundle(bundle, state.BundleCanceled); err != nil {
		return err
	}

	if registry.LatestBundle.Equals(acc.Bundle.Key) {
		if !p.addr.Matches(acc.ChildBundle.Key, address.BundleSeeds(acc.Bundle.Key), args.ChildBundleBump) ||
			!uninitialized(acc.ChildBundle, state.RequestBundleSize) {
			return auctionerr.LatestBundleCanceled.Errorf("latest bundle %s needs a replacement child", acc.Bundle.Key)
		}
		child, err := lifecycle.NewBundle(ctx, exp, acc.Bundle.Key, acc.Payer.Key, args.ChildBundleBump, slot)
		if err != nil {
			return err
		}
		if err := lifecycle.LinkChild(bundle, acc.ChildBundle.Key, args.ChildBundleBump); err != nil {
			return err
		}
		registry.LatestBundle = acc.ChildBundle.Key
		tx.put(acc.ChildBundle, &child)
		tx.put(acc.Registry, registry)
	}
	tx.put(acc.Bundle, bundle)
	return nil
}
