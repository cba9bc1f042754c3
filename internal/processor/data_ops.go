package processor

import (
	"math"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/danmuck/bundlebid/internal/protocol"
	"github.com/danmuck/bundlebid/internal/state"
)

func (p *Processor) appendData(tx *txn, args *protocol.AppendDataArgs, payload []byte, accounts []*Account) error {
	acc, err := protocol.BindAppendData(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.DataAuthority, "data authority"); err != nil {
		return err
	}
	if args.SeedLen > uint64(len(args.Seed)) {
		return auctionerr.InvalidMetadata.Errorf("seed length %d", args.SeedLen)
	}
	want, err := p.addr.WithSeed(acc.DataAuthority.Key, args.SeedBytes())
	if err != nil || !want.Equals(acc.DataAccount.Key) {
		return auctionerr.InvalidMetadata.Errorf("data account %s is not derived from %s", acc.DataAccount.Key, acc.DataAuthority.Key)
	}
	if len(acc.DataAccount.Data) < state.MetadataSize {
		return auctionerr.AccountNotFound.Errorf("data account %s holds %d bytes", acc.DataAccount.Key, len(acc.DataAccount.Data))
	}
	if args.Offset < state.MetadataSize {
		return auctionerr.InvalidMetadata.Errorf("offset %d overlaps metadata", args.Offset)
	}
	capacity := uint64(len(acc.DataAccount.Data))
	if args.Offset > capacity || uint64(len(payload)) > capacity-args.Offset || args.Offset > math.MaxInt {
		return auctionerr.InvalidMetadata.Errorf("payload %d bytes at %d exceeds %d", len(payload), args.Offset, capacity)
	}

	meta := &state.Metadata{}
	if initialized(acc.DataAccount, state.MetadataSize) {
		if err := meta.UnmarshalBinary(acc.DataAccount.Data); err != nil {
			return err
		}
		if meta.SeedLen != args.SeedLen || meta.Seed != args.Seed {
			return auctionerr.InvalidMetadata.Errorf("data account %s seed mismatch", acc.DataAccount.Key)
		}
		if meta.JobRequestKey.IsSome() {
			return auctionerr.InvalidMetadata.Errorf("data account %s already bound to %s", acc.DataAccount.Key, meta.JobRequestKey)
		}
	} else {
		meta.Seed = args.Seed
		meta.SeedLen = args.SeedLen
	}
	meta.DecompressedLen = args.DecompressedLen
	if end := args.Offset + uint64(len(payload)) - state.MetadataSize; end > meta.PayloadLen {
		meta.PayloadLen = end
	}
	tx.patchAt(acc.DataAccount, int(args.Offset), append([]byte(nil), payload...))
	tx.put(acc.DataAccount, meta)
	return nil
}

func (p *Processor) initConfig(tx *txn, args *protocol.InitConfigArgs, accounts []*Account) error {
	acc, err := protocol.BindInitConfig(accounts)
	if err != nil {
		return err
	}
	if err := requireSigner(acc.Payer, "payer"); err != nil {
		return err
	}
	key, bump, err := p.addr.Config()
	if err != nil || !key.Equals(acc.Config.Key) {
		return auctionerr.InvalidAccountId.Errorf("config %s is not the program config address", acc.Config.Key)
	}
	if args.MinimumBundleAuctionPairs == 0 {
		return auctionerr.NotEnoughBundleAuctionAccounts.Errorf("minimum pairs must be at least 1")
	}
	cfg := &state.Config{}
	if initialized(acc.Config, state.ConfigSize) {
		if err := cfg.UnmarshalBinary(acc.Config.Data); err != nil {
			return err
		}
		if !cfg.UpdateAuthority.Is(acc.Payer.Key) {
			return auctionerr.InvalidAccountId.Errorf("config update requires authority %s", cfg.UpdateAuthority)
		}
		cfg.MinimumBundleAuctionPairs = args.MinimumBundleAuctionPairs
	} else {
		cfg = &state.Config{
			UpdateAuthority:           args.UpdateAuthority,
			MinimumBundleAuctionPairs: args.MinimumBundleAuctionPairs,
			Bump:                      uint64(bump),
		}
	}
	tx.put(acc.Config, cfg)
	return nil
}
