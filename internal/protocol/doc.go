// Package protocol owns the instruction wire format.
//
// Ownership boundary:
// - opcode byte and fixed-size argument records
// - positional account binding per opcode
// - account role tables and solana-go instruction assembly
//
// An instruction buffer is [opcode u8][args]. Decoding is all-or-nothing: it
// returns either a fully populated Instruction or an auctionerr code.
package protocol
