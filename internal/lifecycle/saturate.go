package lifecycle

import (
	"math"
	"math/bits"
)

func satAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// SaturatingAdd adds without wrapping.
func SaturatingAdd(a, b uint64) uint64 { return satAdd(a, b) }

// SaturatingMul multiplies without wrapping.
func SaturatingMul(a, b uint64) uint64 { return satMul(a, b) }
