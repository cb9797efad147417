package hfsc

import (
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/packet"
)

// class is one node in the HFSC tree: a leaf queues packets directly, an
// inner node only aggregates its children's virtual time bookkeeping.
type class struct {
	inUse  bool
	leaf   bool
	parent int
	index  int

	qlimit int
	qdrops int

	eligible uint64
	deadline uint64

	vtime, vmin, vmax uint64
	voff, pvoff       uint64
	vadj              uint64
	vperiod, pvperiod uint64

	fBytes, rBytes uint64

	fIsc internalSc
	rIsc *internalSc
	uIsc *internalSc

	fRun, eRun, dRun, uRun runtimeSc

	nactive  int
	children keyMap
	packets  classQueue
}

func newClass(parent, index, qlimit int, isLeaf bool, pvoff uint64, curves msg.Curves) *class {
	var rIsc *internalSc
	var eRun, dRun runtimeSc
	if curves.RSc != nil {
		isc := sc2isc(*curves.RSc)
		eRun = runtimeInit(isc, 0, 0)
		dRun = runtimeInit(isc, 0, 0)
		rIsc = &isc
	}

	var uIsc *internalSc
	var uRun runtimeSc
	if curves.USc != nil {
		isc := sc2isc(*curves.USc)
		uRun = runtimeInit(isc, 0, 0)
		uIsc = &isc
	}

	fIsc := sc2isc(curves.FSc)
	fRun := runtimeInit(fIsc, 0, 0)

	return &class{
		inUse:  true,
		leaf:   isLeaf,
		parent: parent,
		index:  index,
		qlimit: qlimit,
		pvoff:  pvoff,
		fIsc:   fIsc,
		rIsc:   rIsc,
		uIsc:   uIsc,
		fRun:   fRun,
		eRun:   eRun,
		dRun:   dRun,
		uRun:   uRun,
	}
}

func dummyClass() *class {
	c := newClass(0, 0, 0, false, 0, msg.Curves{})
	c.inUse = false
	return c
}

// initEd seeds a newly-active leaf's eligible/deadline curves from the
// realtime service curve, given the first queued packet's length and the
// current time.
func (c *class) initEd(nextLen int, curTime uint64) {
	if c.rIsc == nil {
		return
	}
	rtscMin(&c.dRun, *c.rIsc, curTime, c.fBytes)

	c.eRun = c.dRun
	if c.rIsc.sm1 <= c.rIsc.sm2 {
		c.eRun.dx = 0
		c.eRun.dy = 0
	}

	c.eligible = rtscY2X(c.eRun, c.fBytes)
	c.deadline = rtscY2X(c.dRun, c.fBytes+uint64(nextLen))
}

func (c *class) updateEd(nextLen int) {
	c.eligible = rtscY2X(c.eRun, c.fBytes)
	c.deadline = rtscY2X(c.dRun, c.fBytes+uint64(nextLen))
}

func (c *class) updateD(nextLen int) {
	c.deadline = rtscY2X(c.dRun, c.fBytes+uint64(nextLen))
}

// classQueue is an unbounded FIFO of queued packets; HFSC's own qlimit
// check enforces the bound, so unlike the graph's per-node pktQueue this
// one simply grows.
type classQueue struct {
	pkts []*packet.Packet
}

func (q *classQueue) len() int { return len(q.pkts) }

func (q *classQueue) pushBack(pkt *packet.Packet) { q.pkts = append(q.pkts, pkt) }

func (q *classQueue) popFront() (*packet.Packet, bool) {
	if len(q.pkts) == 0 {
		return nil, false
	}
	pkt := q.pkts[0]
	q.pkts = q.pkts[1:]
	return pkt, true
}

func (q *classQueue) front() (*packet.Packet, bool) {
	if len(q.pkts) == 0 {
		return nil, false
	}
	return q.pkts[0], true
}
