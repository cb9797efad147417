package counters

import (
	"encoding/binary"
	"fmt"

	"github.com/gopakumarce/r2/internal/shm"
)

// ReadOnlyCounter is a handle a reader process can poll without touching
// the writer's bin allocator.
type ReadOnlyCounter struct {
	seg  *shm.Segment
	offs []uint64
}

func (c *ReadOnlyCounter) Len() int { return len(c.offs) }

// Read loads the index'th word with a plain 64-bit load; torn reads are
// acceptable for monitoring, per the counter pool's consistency contract.
func (c *ReadOnlyCounter) Read(index int) uint64 {
	return binary.LittleEndian.Uint64(c.seg.Bytes[c.offs[index]:])
}

// ReadOnly walks a counters segment from outside the writer process and
// publishes a name -> counter map. It never mutates the segment.
type ReadOnly struct {
	seg  *shm.Segment
	name string
	byName map[string]*ReadOnlyCounter
}

// OpenReadOnly maps the named segment read-only and indexes every live
// directory entry.
func OpenReadOnly(name string) (*ReadOnly, error) {
	seg, err := shm.OpenRO(name, mmapSize)
	if err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}

	r := &ReadOnly{seg: seg, name: name, byName: map[string]*ReadOnlyCounter{}}
	r.reload()
	return r, nil
}

// Close unmaps the segment (it does not unlink: the writer owns lifetime).
func (r *ReadOnly) Close() error { return r.seg.Close() }

// Lookup returns the counter registered under name, if the writer had
// published it at the last Reload.
func (r *ReadOnly) Lookup(name string) (*ReadOnlyCounter, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names lists every counter name currently indexed.
func (r *ReadOnly) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Reload re-walks the directory, picking up counters registered since the
// last call.
func (r *ReadOnly) Reload() { r.reload() }

func (r *ReadOnly) reload() {
	numCounters := binary.LittleEndian.Uint32(r.seg.Bytes[0:4])

	for i := uint32(0); i < numCounters; i++ {
		dAbs := dirInfo.start + uint64(i)*uint64(dirInfo.binsz)
		d := r.seg.Bytes[dAbs:]
		nameOff := binary.LittleEndian.Uint32(d[0:4])
		nameLen := binary.LittleEndian.Uint32(d[4:8])
		vecOff := binary.LittleEndian.Uint32(d[8:12])
		vecLen := binary.LittleEndian.Uint32(d[12:16])

		if nameLen == 0 || vecLen == 0 {
			continue
		}
		if nameLen > nameInfo.binsz*nameInfo.binmax || vecLen > vecInfo.binsz*vecInfo.binmax {
			continue
		}

		nameBytes := make([]byte, nameLen)
		copy(nameBytes, r.seg.Bytes[nameOff:uint64(nameOff)+uint64(nameLen)])

		nwords := vecLen / vecInfo.binsz
		offs := make([]uint64, nwords)
		for w := uint32(0); w < nwords; w++ {
			offs[w] = uint64(vecOff) + uint64(w)*uint64(vecInfo.binsz)
		}

		r.byName[string(nameBytes)] = &ReadOnlyCounter{seg: r.seg, offs: offs}
	}
}
