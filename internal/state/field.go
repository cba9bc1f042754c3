package state

import (
	"encoding/binary"

	"github.com/danmuck/bundlebid/internal/auctionerr"
	"github.com/gagliardetto/solana-go"
)

func checkRange(buf []byte, off, width int) error {
	if off < 0 || width < 0 || off > len(buf) || len(buf)-off < width {
		return auctionerr.TruncatedInput.Errorf("field at %d+%d outside %d-byte buffer", off, width, len(buf))
	}
	return nil
}

// ReadU64At reads a little-endian u64 at off.
func ReadU64At(buf []byte, off int) (uint64, error) {
	if err := checkRange(buf, off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[off:]), nil
}

// WriteU64At overwrites the u64 at off and touches nothing else.
func WriteU64At(buf []byte, off int, v uint64) error {
	if err := checkRange(buf, off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf[off:], v)
	return nil
}

func ReadPubkeyAt(buf []byte, off int) (solana.PublicKey, error) {
	var k solana.PublicKey
	if err := checkRange(buf, off, len(k)); err != nil {
		return k, err
	}
	copy(k[:], buf[off:])
	return k, nil
}

func BundleStatusFromBytes(buf []byte) (BundleStatus, error) {
	v, err := ReadU64At(buf, BundleOffsetStatus)
	return BundleStatus(v), err
}

// CancelBundleInPlace sets the status field to Canceled.
func CancelBundleInPlace(buf []byte) error {
	return WriteU64At(buf, BundleOffsetStatus, uint64(BundleCanceled))
}

func BundleRequestsLenFromBytes(buf []byte) (uint64, error) {
	return ReadU64At(buf, BundleOffsetRequestsLen)
}

func BundleExpirySlotFromBytes(buf []byte) (uint64, error) {
	return ReadU64At(buf, BundleOffsetExpirySlot)
}

func BundleChildFromBytes(buf []byte) (MaybePubkey, error) {
	k, err := ReadPubkeyAt(buf, BundleOffsetChild)
	return MaybePubkey(k), err
}

// IsBundleExpiredFromBytes: empty and past its expiry slot.
func IsBundleExpiredFromBytes(buf []byte, slot uint64) (bool, error) {
	n, err := BundleRequestsLenFromBytes(buf)
	if err != nil {
		return false, err
	}
	expiry, err := BundleExpirySlotFromBytes(buf)
	if err != nil {
		return false, err
	}
	return n < 1 && expiry <= slot, nil
}
