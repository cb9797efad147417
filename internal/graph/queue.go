package graph

import "github.com/gopakumarce/r2/internal/packet"

// VecSize is the bounded capacity of every node's inbound queue. Beyond
// this, pushes to that node are dropped and counted.
const VecSize = 256

// pktQueue is a fixed-capacity ring buffer FIFO of packet handles.
type pktQueue struct {
	buf    []*packet.Packet
	head   int
	length int
}

func newPktQueue(capacity int) *pktQueue {
	return &pktQueue{buf: make([]*packet.Packet, capacity)}
}

func (q *pktQueue) Len() int { return q.length }

func (q *pktQueue) pushBack(pkt *packet.Packet) bool {
	if q.length >= len(q.buf) {
		return false
	}
	idx := (q.head + q.length) % len(q.buf)
	q.buf[idx] = pkt
	q.length++
	return true
}

func (q *pktQueue) popFront() (*packet.Packet, bool) {
	if q.length == 0 {
		return nil, false
	}
	pkt := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.length--
	return pkt, true
}
