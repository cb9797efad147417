package graph

import "github.com/gopakumarce/r2/internal/packet"

// Dispatch is the per-node handle a client uses during one dispatch call:
// Pop drains this node's own queue, Push enqueues to a resolved next-node
// slot, Wakeup requests a future tick.
type Dispatch[T any] struct {
	node     int
	vectors  []*pktQueue
	counters []GnodeCntrs
	nextIDs  []int

	work   bool
	wakeup uint64
}

// Pop returns the next packet queued for this node, if any.
func (d *Dispatch[T]) Pop() (*packet.Packet, bool) {
	return d.vectors[d.node].popFront()
}

// Push enqueues pkt onto the nodeSlot'th entry of this node's next[] list,
// resolved to a real node index by Graph.Finalize. Returns false (and
// counts a drop) if the target queue is full.
func (d *Dispatch[T]) Push(nodeSlot int, pkt *packet.Packet) bool {
	target := d.nextIDs[nodeSlot]
	if !d.vectors[target].pushBack(pkt) {
		d.counters[target].Dropped.Incr()
		return false
	}
	if target <= d.node {
		// Revisit without sleeping: a lower-or-equal indexed node just
		// got new work this tick.
		d.work = true
		d.wakeup = 0
	}
	d.counters[target].Enqueued.Incr()
	return true
}

// Wakeup requests that the graph be rescheduled in at most wakeup
// nanoseconds (0 meaning "has work right now"). Multiple calls within one
// dispatch converge on the smallest request.
func (d *Dispatch[T]) Wakeup(wakeup uint64) {
	if d.work {
		if wakeup < d.wakeup {
			d.wakeup = wakeup
		}
		return
	}
	d.work = true
	d.wakeup = wakeup
}
