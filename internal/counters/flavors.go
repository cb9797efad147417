package counters

// Class distinguishes counters by the kind of event they tally, matching
// the node/error/info/pkts naming convention every gnode uses.
type Class int

const (
	ClassError Class = iota
	ClassInfo
	ClassPkts
)

func counterName(node string, class Class, name string) string {
	var sep string
	switch class {
	case ClassError:
		sep = "/error/"
	case ClassInfo:
		sep = "/info/"
	case ClassPkts:
		sep = "/pkts/"
	default:
		sep = "/"
	}
	full := node + sep + name
	maxLen := int(nameInfo.binsz * nameInfo.binmax)
	if len(full) > maxLen {
		full = full[:maxLen]
	}
	return full
}

// Counter is a single non-atomic u64, owned by whichever goroutine holds
// it.
type Counter struct {
	pool *Pool
	dir  uint64
	off  uint64
}

// NewCounter allocates (or falls back to the dummy) counter.
func NewCounter(pool *Pool, node string, class Class, name string) *Counter {
	dir, base := pool.get(counterName(node, class, name), 1)
	if dir == 0 {
		dir, base = pool.dummyCounter.dirOff, pool.dummyCounter.base
	}
	return &Counter{pool: pool, dir: dir, off: base}
}

func (c *Counter) Add(val uint64)  { c.pool.addU64(c.off, int64(val)) }
func (c *Counter) Sub(val uint64)  { c.pool.addU64(c.off, -int64(val)) }
func (c *Counter) Incr()           { c.Add(1) }
func (c *Counter) Decr()           { c.Sub(1) }
func (c *Counter) Value() uint64   { return c.pool.u64(c.off) }

// Free returns the counter's storage, unless it is the shared dummy.
func (c *Counter) Free() {
	if c.dir != c.pool.dummyCounter.dirOff {
		c.pool.free(c.dir)
	}
}

// PktsBytes is a (packets, bytes) pair, the common traffic-accounting
// shape.
type PktsBytes struct {
	pool      *Pool
	dir       uint64
	pktsOff   uint64
	bytesOff  uint64
}

func NewPktsBytes(pool *Pool, node string, class Class, name string) *PktsBytes {
	dir, base := pool.get(counterName(node, class, name), 2)
	if dir == 0 {
		dir, base = pool.dummyPktsBytes.dirOff, pool.dummyPktsBytes.base
	}
	return &PktsBytes{pool: pool, dir: dir, pktsOff: base, bytesOff: base + uint64(vecInfo.binsz)}
}

func (pb *PktsBytes) Add(pkts, bytes uint64) {
	pb.pool.addU64(pb.pktsOff, int64(pkts))
	pb.pool.addU64(pb.bytesOff, int64(bytes))
}

func (pb *PktsBytes) Sub(pkts, bytes uint64) {
	pb.pool.addU64(pb.pktsOff, -int64(pkts))
	pb.pool.addU64(pb.bytesOff, -int64(bytes))
}

func (pb *PktsBytes) Incr(bytes uint64) { pb.Add(1, bytes) }
func (pb *PktsBytes) Decr(bytes uint64) { pb.Sub(1, bytes) }

func (pb *PktsBytes) Pkts() uint64  { return pb.pool.u64(pb.pktsOff) }
func (pb *PktsBytes) Bytes() uint64 { return pb.pool.u64(pb.bytesOff) }

func (pb *PktsBytes) Free() {
	if pb.dir != pb.pool.dummyPktsBytes.dirOff {
		pb.pool.free(pb.dir)
	}
}

// Array is a fixed-length array of u64 counters, e.g. per-class drop
// counts.
type Array struct {
	pool *Pool
	dir  uint64
	offs []uint64
}

func NewArray(pool *Pool, node string, class Class, name string, size int) *Array {
	if size > int(vecInfo.binmax) {
		size = int(vecInfo.binmax)
	}
	dir, base := pool.get(counterName(node, class, name), size)
	if dir == 0 {
		dir, base = pool.dummyArray.dirOff, pool.dummyArray.base
	}
	offs := make([]uint64, size)
	for i := range offs {
		offs[i] = base + uint64(i)*uint64(vecInfo.binsz)
	}
	return &Array{pool: pool, dir: dir, offs: offs}
}

func (a *Array) Add(index int, val uint64) { a.pool.addU64(a.offs[index], int64(val)) }
func (a *Array) Sub(index int, val uint64) { a.pool.addU64(a.offs[index], -int64(val)) }
func (a *Array) Incr(index int)            { a.Add(index, 1) }
func (a *Array) Decr(index int)            { a.Sub(index, 1) }
func (a *Array) Value(index int) uint64    { return a.pool.u64(a.offs[index]) }

func (a *Array) Free() {
	if a.dir != a.pool.dummyArray.dirOff {
		a.pool.free(a.dir)
	}
}
