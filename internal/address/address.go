// Package address derives program account addresses from their seeds.
package address

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/bundlebid/internal/state"
	"github.com/gagliardetto/solana-go"
)

const DefaultProgramID = "Auction111111111111111111111111111111111111"

var (
	SeedRequestBundle  = []byte("request_bundle")
	SeedJobRequest     = []byte("job_request")
	SeedBundleRegistry = []byte("bundle_registry")
	SeedBid            = []byte("bid")
	SeedAuction        = []byte("auction")
	SeedGlobalConfig   = []byte("global_config")
)

// Deriver computes addresses owned by one program.
type Deriver struct {
	Program solana.PublicKey
}

func New(program solana.PublicKey) Deriver {
	return Deriver{Program: program}
}

// Default uses DefaultProgramID.
func Default() Deriver {
	return New(solana.MustPublicKeyFromBase58(DefaultProgramID))
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func RegistrySeeds(ctx, exp state.RequestTier) [][]byte {
	return [][]byte{SeedBundleRegistry, u64le(uint64(ctx)), u64le(uint64(exp))}
}

func BundleSeeds(parent solana.PublicKey) [][]byte {
	return [][]byte{SeedRequestBundle, parent[:]}
}

func AuctionSeeds(bundle solana.PublicKey) [][]byte {
	return [][]byte{SeedAuction, bundle[:]}
}

func BidSeeds(auction, authority solana.PublicKey) [][]byte {
	return [][]byte{SeedBid, auction[:], authority[:]}
}

func JobRequestSeeds(authority solana.PublicKey, seed [32]byte) [][]byte {
	return [][]byte{SeedJobRequest, authority[:], seed[:]}
}

func ConfigSeeds() [][]byte {
	return [][]byte{SeedGlobalConfig}
}

// Find returns the canonical address and bump for seeds.
func (d Deriver) Find(seeds [][]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(seeds, d.Program)
}

// Verify derives the address for seeds plus bump. Bumps above 255 never verify.
func (d Deriver) Verify(seeds [][]byte, bump uint64) (solana.PublicKey, error) {
	if bump > 255 {
		return solana.PublicKey{}, fmt.Errorf("address: bump %d out of range", bump)
	}
	withBump := append(append([][]byte(nil), seeds...), []byte{byte(bump)})
	return solana.CreateProgramAddress(withBump, d.Program)
}

// Matches reports whether key is the address for seeds plus bump.
func (d Deriver) Matches(key solana.PublicKey, seeds [][]byte, bump uint64) bool {
	got, err := d.Verify(seeds, bump)
	return err == nil && got.Equals(key)
}

// WithSeed is the create-with-seed address of a data account.
func (d Deriver) WithSeed(authority solana.PublicKey, seed []byte) (solana.PublicKey, error) {
	return solana.CreateWithSeed(authority, string(seed), d.Program)
}

func (d Deriver) Registry(ctx, exp state.RequestTier) (solana.PublicKey, uint8, error) {
	return d.Find(RegistrySeeds(ctx, exp))
}

func (d Deriver) Bundle(parent solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.Find(BundleSeeds(parent))
}

func (d Deriver) Auction(bundle solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.Find(AuctionSeeds(bundle))
}

func (d Deriver) Bid(auction, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return d.Find(BidSeeds(auction, authority))
}

func (d Deriver) JobRequest(authority solana.PublicKey, seed [32]byte) (solana.PublicKey, uint8, error) {
	return d.Find(JobRequestSeeds(authority, seed))
}

func (d Deriver) Config() (solana.PublicKey, uint8, error) {
	return d.Find(ConfigSeeds())
}
