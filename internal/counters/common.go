// Package counters implements the shared-memory counter pool: a directory
// of named multi-word counters backed by a power-of-two bin allocator, plus
// an out-of-process read-only reader.
package counters

import "math/bits"

// R2CntSHM is the default shared-memory segment name.
const R2CntSHM = "r2cnt"

// pow2 rounds val up to the next power of two. val == 0 yields 0, matching
// the reference implementation's unsigned-subtraction wraparound only in
// spirit: we special-case zero since Go has no wrapping requirement here.
func pow2(val uint32) uint32 {
	if val == 0 {
		return 0
	}
	if val&(val-1) == 0 {
		return val
	}
	return 1 << bits.Len32(val)
}
