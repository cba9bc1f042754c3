// Package lifecycle owns the legal state transitions of bundles, auctions,
// bids and job requests, and the bundle-chain walk used to place new requests.
//
// Ownership boundary:
// - transition tables and their failure codes
// - saturating aggregate updates
// - auction lowest/winning extrema
// - verifier range assignment and quorum
//
// Functions here mutate decoded records only. Reading and writing account
// bytes belongs to the processor.
package lifecycle
