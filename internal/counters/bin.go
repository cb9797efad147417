package counters

import "math/bits"

// Bin divides a range of memory [0, max) into power-of-two sized
// sub-bins. Once an object is placed in a bin it is never moved to another
// bin; offsets returned are 0-based into the range and callers add their
// own base address.
type Bin struct {
	binsz  uint32
	max    uint64
	zeroes uint32
	pagesz uint32
	offset uint64
	bins   [][]uint64
}

// NewBin builds a Bin where objects are multiples of binsz, the whole
// range spans max bytes, and growth happens in pagesz chunks.
func NewBin(binsz uint32, max uint64, pagesz uint32) *Bin {
	binsz = pow2(binsz)
	return &Bin{
		binsz:  binsz,
		max:    max,
		zeroes: uint32(bits.LeadingZeros32(binsz)),
		pagesz: pow2(pagesz),
	}
}

// index returns the rounded-up size and the bin index it falls in.
func (b *Bin) index(size uint32) (uint32, int) {
	size = pow2(size)
	if size < b.binsz {
		size = b.binsz
	}
	index := b.zeroes - uint32(bits.LeadingZeros32(size))
	return size, int(index)
}

// resize carves a new page's worth of size-sized chunks onto the tail of
// the range and pushes them into bins[index].
func (b *Bin) resize(size uint32, index int) {
	var alloc uint32
	if size > b.pagesz {
		if size%b.pagesz != 0 {
			alloc = b.pagesz*size/b.pagesz + 1
		} else {
			alloc = b.pagesz * size / b.pagesz
		}
	} else {
		alloc = b.pagesz
	}

	if uint64(alloc)+b.offset > b.max {
		return
	}

	for i := uint32(0); i < alloc; i += size {
		b.bins[index] = append([]uint64{b.offset}, b.bins[index]...)
		b.offset += uint64(size)
	}
}

// Get returns a 0-based offset suitable for an object of the given size,
// or false if the range is exhausted.
func (b *Bin) Get(size uint32) (uint64, bool) {
	if size == 0 {
		return 0, false
	}
	size, index := b.index(size)
	if index >= len(b.bins) {
		grown := make([][]uint64, index+1)
		copy(grown, b.bins)
		b.bins = grown
	}

	if n := len(b.bins[index]); n > 0 {
		v := b.bins[index][0]
		b.bins[index] = b.bins[index][1:]
		return v, true
	}

	b.resize(size, index)
	if n := len(b.bins[index]); n > 0 {
		v := b.bins[index][n-1]
		b.bins[index] = b.bins[index][:n-1]
		return v, true
	}
	return 0, false
}

// Free returns an object's offset to its bin.
func (b *Bin) Free(base uint64, size uint32) {
	if size == 0 {
		panic("bad bin free: zero size")
	}
	size, index := b.index(size)
	if index >= len(b.bins) {
		panic("bad bin free: offset in unallocated bin")
	}
	b.bins[index] = append([]uint64{base}, b.bins[index]...)
}

// Offset is the current tail offset of the range.
func (b *Bin) Offset() uint64 {
	return b.offset
}
