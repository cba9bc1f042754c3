package state

import "github.com/gagliardetto/solana-go"

// MaybePubkey is an optional key where all-zero bytes mean absent.
// A genuine all-zero key cannot be represented as present.
type MaybePubkey solana.PublicKey

// NonePubkey is the absent key.
var NonePubkey MaybePubkey

func SomePubkey(k solana.PublicKey) MaybePubkey {
	return MaybePubkey(k)
}

// MaybePubkeyFrom converts a nil-able pointer.
func MaybePubkeyFrom(k *solana.PublicKey) MaybePubkey {
	if k == nil {
		return NonePubkey
	}
	return MaybePubkey(*k)
}

func (m MaybePubkey) IsSome() bool {
	return m != NonePubkey
}

func (m MaybePubkey) Get() (solana.PublicKey, bool) {
	return solana.PublicKey(m), m.IsSome()
}

func (m MaybePubkey) Ptr() *solana.PublicKey {
	if !m.IsSome() {
		return nil
	}
	k := solana.PublicKey(m)
	return &k
}

// Is reports whether m is present and equal to k.
func (m MaybePubkey) Is(k solana.PublicKey) bool {
	return m.IsSome() && solana.PublicKey(m).Equals(k)
}

func (m MaybePubkey) String() string {
	if !m.IsSome() {
		return "none"
	}
	return solana.PublicKey(m).String()
}

// MaybeU64 is an optional integer where zero means absent.
type MaybeU64 uint64

const NoneU64 MaybeU64 = 0

func SomeU64(v uint64) MaybeU64 {
	return MaybeU64(v)
}

func MaybeU64From(v *uint64) MaybeU64 {
	if v == nil {
		return NoneU64
	}
	return MaybeU64(*v)
}

func (m MaybeU64) IsSome() bool {
	return m != NoneU64
}

func (m MaybeU64) Get() (uint64, bool) {
	return uint64(m), m.IsSome()
}

func (m MaybeU64) Ptr() *uint64 {
	if !m.IsSome() {
		return nil
	}
	v := uint64(m)
	return &v
}
