// Package bitutil collects the small bit-twiddling helpers the rest of the
// kernel core needs: power-of-two alignment, overflow-checked address
// arithmetic, and sign extension for the handful of places a narrow
// immediate needs widening.
package bitutil

// AlignUp rounds addr up to the next multiple of align. align must be a
// power of two; callers that don't guarantee this get undefined results,
// same contract as the allocator it serves.
func AlignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// AlignDown rounds addr down to the previous multiple of align.
func AlignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// IsPowerOfTwo reports whether v has exactly one bit set.
func IsPowerOfTwo(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// CheckAddOverflow reports whether a+b overflows uintptr's range, mirroring
// the signed-overflow checks the corpus writes for narrower integer types.
func CheckAddOverflow(a, b uintptr) bool {
	sum := a + b
	return sum < a
}

// SignExtend widens the low bitCount bits of x, preserving sign, the same
// trick used to widen a 5-bit LC-3 immediate to 16 bits.
func SignExtend[T uint32 | uint16](x T, bitCount int) T {
	if ((x >> (bitCount - 1)) & 1) == 1 {
		x |= ^T(0) << bitCount
	}
	return x
}
