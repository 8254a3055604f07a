// Package bits provides low-level bit width primitives.
package bits

import "math/bits"

// Width returns the number of bits needed to store every value in [0, max]:
// max(1, ceil(log2(max+1))). A zero max still occupies one bit.
func Width(max uint64) int {
	if max == 0 {
		return 1
	}
	return bits.Len64(max)
}

// Mask returns a value with the low n bits set, which is also the largest
// value representable in n bits. n must be in [0, 64].
func Mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}
