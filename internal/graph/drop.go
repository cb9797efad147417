package graph

import "github.com/gopakumarce/r2/internal/counters"

// dropClient is the index-0 node every graph starts with: it simply
// drains and counts whatever lands in its queue.
type dropClient[T any] struct {
	count *counters.Counter
}

func newDropClient[T any](cntrs *counters.Pool) *dropClient[T] {
	return &dropClient[T]{count: counters.NewCounter(cntrs, "drop", counters.ClassPkts, "count")}
}

func (d *dropClient[T]) Clone(cntrs *counters.Pool) Client[T] {
	return newDropClient[T](cntrs)
}

func (d *dropClient[T]) Dispatch(thread int, dispatch *Dispatch[T]) {
	for {
		pkt, ok := dispatch.Pop()
		if !ok {
			return
		}
		d.count.Incr()
		pkt.Free()
	}
}

func (d *dropClient[T]) ControlMsg(thread int, message T) {}
