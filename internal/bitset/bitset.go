// Package bitset provides small fixed-width bit containers used to track
// thread and interface ownership without allocating.
package bitset

import (
	"iter"
	"math/bits"
)

// BitsTraverser iterates the set bits of a 64-bit word from lowest to
// highest.
type BitsTraverser struct {
	word uint64
}

func NewBitsTraverser(word uint64) BitsTraverser {
	return BitsTraverser{word: word}
}

func (t BitsTraverser) Iter() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		w := t.word
		for w != 0 {
			idx := uint32(bits.TrailingZeros64(w))
			if !yield(idx) {
				return
			}
			w &= w - 1
		}
	}
}
