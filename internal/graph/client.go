package graph

import "github.com/gopakumarce/r2/internal/counters"

// Client is implemented by every processing node's feature object. T is
// the control-message type the graph's nodes understand (see
// internal/msg.R2Msg).
type Client[T any] interface {
	// Clone makes a thread-local copy, rebuilding its own counters. The
	// client decides what is shared versus copied.
	Clone(cntrs *counters.Pool) Client[T]
	// Dispatch processes whatever is queued for this node, via d.Pop/
	// d.Push/d.Wakeup.
	Dispatch(thread int, d *Dispatch[T])
	// ControlMsg handles a broadcast control message addressed to this
	// node by name.
	ControlMsg(thread int, message T)
}

// GnodeCntrs are the generic enqueue/drop counters every node gets,
// regardless of what its client does internally.
type GnodeCntrs struct {
	Enqueued *counters.Counter
	Dropped  *counters.Counter
}

func newGnodeCntrs(name string, cntrs *counters.Pool) GnodeCntrs {
	return GnodeCntrs{
		Enqueued: counters.NewCounter(cntrs, name, counters.ClassPkts, "GraphEnq"),
		Dropped:  counters.NewCounter(cntrs, name, counters.ClassError, "GraphDrop"),
	}
}

// Init carries what a client supplies when registering a new node.
type Init struct {
	Name      string
	NextNames []string
}
