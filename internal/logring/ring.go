// Package logring implements a fixed-slot shared-memory log: every log
// point gets a stable numeric index and a declared set of value widths
// the first time it fires, and every subsequent call writes a new fixed
// size record into a wrap-around ring rather than allocating or
// formatting a string on the hot path. The control thread stops the
// logger and serializes the ring to JSON on demand; nothing is ever
// read back out while the writer is still live.
package logring

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopakumarce/r2/internal/shm"
)

// MaxValues bounds how many values a single log call may record; widths
// beyond this are still written but not tracked for replay, matching the
// original's own MAX_DEBUGS bound on its per-entry size table.
const MaxValues = 16

const entryOverhead = 4 + 8 // index (uint32) + timestamp nanos (uint64)

// Entry is the static, per-call-site metadata for one log statement:
// callers declare one package-level *Entry per distinct format string
// and pass it to every Log call from that call site, the same role the
// original's log! macro plays by emitting one static Entry per
// invocation site.
type Entry struct {
	Format string

	index  atomic.Uint32
	inited atomic.Uint32
	sizes  [MaxValues]atomic.Uint32
}

// NewEntry declares a log call site with the given format string.
func NewEntry(format string) *Entry { return &Entry{Format: format} }

// Logger is a fixed-entry-size ring mapped into shared memory, sized for
// esz bytes per entry and emax entries.
type Logger struct {
	seg  *shm.Segment
	esz  int
	emax int

	stop  atomic.Uint32
	enext atomic.Uint64

	mu      sync.Mutex
	nextIdx uint32
	entries map[uint32]*Entry
}

// New creates (or reopens) the named shared-memory ring, sized esz*emax
// bytes in total.
func New(name string, esz, emax int) (*Logger, error) {
	if esz <= entryOverhead {
		return nil, fmt.Errorf("logring: entry size %d too small for %d bytes of overhead", esz, entryOverhead)
	}
	seg, err := shm.Create(name, esz*emax)
	if err != nil {
		return nil, fmt.Errorf("logring: %w", err)
	}
	return &Logger{
		seg:     seg,
		esz:     esz,
		emax:    emax,
		nextIdx: 1,
		entries: make(map[uint32]*Entry),
	}, nil
}

// Stopped reports whether logging has been halted.
func (l *Logger) Stopped() bool { return l.stop.Load() != 0 }

// Stop halts further writes, so Serialize can read a quiescent ring.
func (l *Logger) Stop() { l.stop.Store(1) }

// Close unmaps the backing segment.
func (l *Logger) Close() error { return l.seg.Close() }

func (l *Logger) entryIndex(e *Entry) uint32 {
	if idx := e.index.Load(); idx != 0 {
		return idx
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := e.index.Load(); idx != 0 {
		return idx
	}
	idx := l.nextIdx
	l.nextIdx++
	e.index.Store(idx)
	l.entries[idx] = e
	return idx
}

// reserve claims the next ring slot, wrapping as needed, and stamps its
// index/timestamp header. Returns the slot's byte offset into the
// segment.
func (l *Logger) reserve(e *Entry) int {
	cur := l.enext.Add(1) - 1
	slot := int(cur % uint64(l.emax))
	base := slot * l.esz
	binary.LittleEndian.PutUint32(l.seg.Bytes[base:], l.entryIndex(e))
	binary.LittleEndian.PutUint64(l.seg.Bytes[base+4:], uint64(time.Now().UnixNano()))
	return base
}

// widthOf returns the byte width Log should record v as. Only unsigned
// fixed-width integers are supported, matching the fixed-size-copy
// semantics a shared-memory ring can actually replay; anything else is
// dropped.
func widthOf(v any) (uint64, int, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), 1, true
	case uint16:
		return uint64(x), 2, true
	case uint32:
		return uint64(x), 4, true
	case uint64:
		return x, 8, true
	case int:
		return uint64(uint32(x)), 4, true
	default:
		return 0, 0, false
	}
}

// Log records one call site's values into the next ring slot, a no-op
// once the logger is stopped. Values must be unsigned integers (uint8,
// uint16, uint32, uint64, or int which is recorded as uint32); the first
// call from a given Entry fixes the width of every positional value for
// every later call, so callers must log the same shape of values from
// the same call site every time.
func (l *Logger) Log(e *Entry, vals ...any) {
	if l.Stopped() {
		return
	}
	base := l.reserve(e)
	off := entryOverhead
	firstCall := e.inited.Load() == 0
	for i, v := range vals {
		val, width, ok := widthOf(v)
		if !ok {
			continue
		}
		if off+width > l.esz {
			break
		}
		switch width {
		case 1:
			l.seg.Bytes[base+off] = byte(val)
		case 2:
			binary.LittleEndian.PutUint16(l.seg.Bytes[base+off:], uint16(val))
		case 4:
			binary.LittleEndian.PutUint32(l.seg.Bytes[base+off:], uint32(val))
		case 8:
			binary.LittleEndian.PutUint64(l.seg.Bytes[base+off:], val)
		}
		if firstCall && i < MaxValues {
			e.sizes[i].Store(uint32(width))
		}
		off += width
	}
	if firstCall {
		e.inited.Store(1)
	}
}

type record struct {
	Index     uint32   `json:"index"`
	Format    string   `json:"format"`
	Timestamp uint64   `json:"timestamp"`
	Vals      []uint64 `json:"vals"`
}

// Serialize walks the ring from its oldest live slot to its newest and
// writes every populated entry as a JSON array, skipping slots with no
// index (never written) or whose Entry has since been forgotten. Callers
// should Stop the logger first so the ring isn't being written to
// concurrently.
func (l *Logger) Serialize(w io.Writer) error {
	start := int(l.enext.Load() % uint64(l.emax))
	enc := json.NewEncoder(w)

	records := make([]record, 0, l.emax)
	for i := 0; i < l.emax; i++ {
		slot := (start + i) % l.emax
		base := slot * l.esz
		index := binary.LittleEndian.Uint32(l.seg.Bytes[base:])
		if index == 0 {
			continue
		}
		l.mu.Lock()
		entry, ok := l.entries[index]
		l.mu.Unlock()
		if !ok {
			continue
		}
		timestamp := binary.LittleEndian.Uint64(l.seg.Bytes[base+4:])
		pos := base + entryOverhead
		end := base + l.esz
		var vals []uint64
		for v := 0; v < MaxValues; v++ {
			width := int(entry.sizes[v].Load())
			if width == 0 || pos+width > end {
				break
			}
			var val uint64
			switch width {
			case 1:
				val = uint64(l.seg.Bytes[pos])
			case 2:
				val = uint64(binary.LittleEndian.Uint16(l.seg.Bytes[pos:]))
			case 4:
				val = uint64(binary.LittleEndian.Uint32(l.seg.Bytes[pos:]))
			case 8:
				val = binary.LittleEndian.Uint64(l.seg.Bytes[pos:])
			}
			vals = append(vals, val)
			pos += width
		}
		records = append(records, record{Index: index, Format: entry.Format, Timestamp: timestamp, Vals: vals})
	}
	return enc.Encode(records)
}
