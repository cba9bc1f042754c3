// Package state owns the fixed-layout binary records persisted in program accounts.
//
// Ownership boundary:
// - record types, their byte layouts and sizes
// - sentinel optionals (MaybePubkey, MaybeU64) and enum preservation
// - bounds-checked partial field access on raw account buffers
// - the static tier policy table
//
// All integers are little-endian and every record is alignment-free: a record
// decodes identically from a buffer at any address. Decoding is total over
// enum ranges; unknown values survive a round trip and report Valid() == false.
package state
