package counters

import (
	"encoding/binary"
	"fmt"

	"github.com/gopakumarce/r2/internal/shm"
)

const mmapSize = 64 * 1024 * 1024 // 64 MiB

// hdrSize is sizeof(struct{num_counters uint32}); DIR.start must be >= this.
const hdrSize = 4

type binInfo struct {
	binsz  uint32
	binmax uint32
	pagesz uint32
	start  uint64
	totsz  uint64
}

var (
	dirInfo  = binInfo{binsz: dirEntrySize, binmax: 1, pagesz: 4 * 1024, start: 64, totsz: 4 * 1024 * 1024}
	vecInfo  = binInfo{binsz: 8, binmax: 32, pagesz: 4 * 1024, start: dirInfo.start + dirInfo.totsz, totsz: 16 * 1024 * 1024}
	nameInfo = binInfo{binsz: 32, binmax: 2, pagesz: 4 * 1024, start: vecInfo.start + vecInfo.totsz, totsz: 32 * 1024 * 1024}
)

// dirEntrySize is sizeof(Dir{name_off,name_len,vec_off,vec_len} u32 x4).
const dirEntrySize = 16

// DirEntrySize is exported for cmd/r2cnt, which walks the directory without
// importing unexported layout details.
const DirEntrySize = dirEntrySize

type dummy struct {
	dirOff uint64
	base   uint64
}

// Pool is a shared-memory segment of named, power-of-two-backed counters.
// Each counter has exactly one writer goroutine; no atomics guard the
// values themselves, only the directory publish sequence matters for the
// read-only reader.
type Pool struct {
	seg   *shm.Segment
	name  string
	dir   *Bin
	vec   *Bin
	names *Bin

	dummyCounter   dummy
	dummyPktsBytes dummy
	dummyArray     dummy
}

// New creates (or reopens) the named shared segment and preallocates the
// dummy counters every exhausted allocation falls back to.
func New(name string) (*Pool, error) {
	if dirInfo.start < hdrSize {
		panic("dir region starts before header")
	}

	seg, err := shm.Create(name, mmapSize)
	if err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}

	p := &Pool{
		seg:   seg,
		name:  name,
		dir:   NewBin(dirInfo.binsz, dirInfo.totsz, dirInfo.pagesz),
		vec:   NewBin(vecInfo.binsz, vecInfo.totsz, vecInfo.pagesz),
		names: NewBin(nameInfo.binsz, nameInfo.totsz, nameInfo.pagesz),
	}
	binary.LittleEndian.PutUint32(seg.Bytes[0:4], 0)

	p.dummyCounter.dirOff, p.dummyCounter.base = p.get("dummy1", 1)
	p.dummyPktsBytes.dirOff, p.dummyPktsBytes.base = p.get("dummy2", 2)
	p.dummyArray.dirOff, p.dummyArray.base = p.get("dummyN", int(vecInfo.binmax))

	return p, nil
}

// Close unmaps and unlinks the segment.
func (p *Pool) Close() error {
	if err := p.seg.Close(); err != nil {
		return err
	}
	return shm.Unlink(p.name)
}

// get allocates a directory entry, nvecs*8 bytes of values and a name
// slot, and writes them. It returns (0,0) on exhaustion so callers fall
// back to a dummy without branching on error values.
func (p *Pool) get(name string, nvecs int) (dirOff, vecOff uint64) {
	veclen := uint32(nvecs) * vecInfo.binsz

	daddr, ok := p.dir.Get(dirInfo.binsz)
	if !ok {
		return 0, 0
	}
	vaddr, ok := p.vec.Get(veclen)
	if !ok {
		p.dir.Free(daddr, dirInfo.binsz)
		return 0, 0
	}
	naddr, ok := p.names.Get(uint32(len(name)))
	if !ok {
		p.dir.Free(daddr, dirInfo.binsz)
		p.vec.Free(vaddr, veclen)
		return 0, 0
	}

	dAbs := daddr + dirInfo.start
	vAbs := vaddr + vecInfo.start
	nAbs := naddr + nameInfo.start

	copy(p.seg.Bytes[nAbs:nAbs+uint64(len(name))], name)

	d := p.seg.Bytes[dAbs:]
	binary.LittleEndian.PutUint32(d[0:4], uint32(nAbs))
	binary.LittleEndian.PutUint32(d[4:8], uint32(len(name)))
	binary.LittleEndian.PutUint32(d[8:12], uint32(vAbs))
	binary.LittleEndian.PutUint32(d[12:16], veclen)

	numCounters := p.dir.Offset() / uint64(dirInfo.binsz)
	binary.LittleEndian.PutUint32(p.seg.Bytes[0:4], uint32(numCounters))

	return dAbs, vAbs
}

// free returns a counter's name, value and directory bytes to their bins
// and zeroes the directory entry so late readers skip it.
func (p *Pool) free(dirAddr uint64) {
	d := p.seg.Bytes[dirAddr:]
	nameOff := binary.LittleEndian.Uint32(d[0:4])
	nameLen := binary.LittleEndian.Uint32(d[4:8])
	vecOff := binary.LittleEndian.Uint32(d[8:12])
	vecLen := binary.LittleEndian.Uint32(d[12:16])

	p.names.Free(uint64(nameOff)-nameInfo.start, nameLen)
	p.vec.Free(uint64(vecOff)-vecInfo.start, vecLen)

	binary.LittleEndian.PutUint32(d[0:4], 0)
	binary.LittleEndian.PutUint32(d[4:8], 0)
	binary.LittleEndian.PutUint32(d[8:12], 0)
	binary.LittleEndian.PutUint32(d[12:16], 0)

	p.dir.Free(dirAddr-dirInfo.start, dirInfo.binsz)
}

func (p *Pool) u64(off uint64) uint64 {
	return binary.LittleEndian.Uint64(p.seg.Bytes[off:])
}

func (p *Pool) setU64(off uint64, v uint64) {
	binary.LittleEndian.PutUint64(p.seg.Bytes[off:], v)
}

func (p *Pool) addU64(off uint64, delta int64) {
	p.setU64(off, uint64(int64(p.u64(off))+delta))
}
