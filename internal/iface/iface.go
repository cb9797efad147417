// Package iface implements the interface node: the graph node that reads
// packets off an interface's driver and writes packets back out to it.
package iface

import (
	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/driver"
	"github.com/gopakumarce/r2/internal/efd"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
	"github.com/gopakumarce/r2/internal/packet"
	"github.com/gopakumarce/r2/internal/sched/hfsc"
)

type next int

const (
	nextDrop next = iota
	nextL2EthDecap
)

func nextNames(ifindex int) []string {
	return []string{names.Drop, names.L2EthDecap(ifindex)}
}

// IfNode is present in every worker thread for every interface, but only
// the thread named in threadMask actually owns the driver and does I/O;
// every other thread's copy hands packets off to the owner via threadQ
// and wakes it with threadWakeup, rather than touching the driver itself.
type IfNode struct {
	name         string
	threadMask   uint64
	intf         *fwd.Interface
	sched        *hfsc.Hfsc
	drv          *driver.Socket
	pool         packet.Pool
	threadQ      chan *packet.Packet
	threadWakeup *efd.Efd

	schedFail   *counters.Counter
	threadqFail *counters.Counter
}

// New builds the owning thread's IfNode: threadMask names the one thread
// allowed to read/write drv, wakeup is written whenever a non-owner
// thread hands a packet off to the owner, and pool is this thread's own
// packet pool -- rx has no incoming packet to borrow one from the way
// every other node does, so it is injected directly.
func New(cntrs *counters.Pool, pool packet.Pool, threadMask uint64, wakeup *efd.Efd, intf *fwd.Interface) (*IfNode, graph.Init, error) {
	name := names.RxTx(intf.Ifindex)
	drv, err := driver.New(intf.Ifname, true)
	if err != nil {
		return nil, graph.Init{}, err
	}
	n := &IfNode{
		name:         name,
		threadMask:   threadMask,
		intf:         intf,
		sched:        hfsc.New(intf.BandwidthBps),
		drv:          drv,
		pool:         pool,
		threadQ:      make(chan *packet.Packet, graph.VecSize),
		threadWakeup: wakeup,
		schedFail:    counters.NewCounter(cntrs, name, counters.ClassError, "sched_fail"),
		threadqFail:  counters.NewCounter(cntrs, name, counters.ClassError, "threadq_fail"),
	}
	return n, graph.Init{Name: name, NextNames: nextNames(intf.Ifindex)}, nil
}

// Fd is the descriptor a worker's epoll loop should watch for rx
// readiness; only meaningful on the owner thread.
func (n *IfNode) Fd() int { return n.drv.Fd }

func (n *IfNode) owner(thread int) bool {
	return n.threadMask&(1<<uint(thread)) != 0
}

// Clone builds another thread's copy: it shares the driver handle, rx
// pool and the handoff queue/wakeup with the original IfNode (every
// clone of the same interface must funnel packets to the same owner and
// allocate rx packets from the same pool), but gets its own scheduler
// and counters since only the owner thread's scheduler is ever consulted
// for queueing decisions today. Sharing one pool across every thread's
// clone rather than giving the owner its own is a simplification: since
// only the thread matching threadMask ever calls pool.Pkt(), and the
// pool's free lists are channel-based and safe for concurrent use from
// any goroutine, nothing here depends on the pool's "owning" goroutine
// actually matching the thread that allocates from it.
func (n *IfNode) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	return &IfNode{
		name:         n.name,
		threadMask:   n.threadMask,
		intf:         n.intf,
		sched:        hfsc.New(n.intf.BandwidthBps),
		drv:          n.drv,
		pool:         n.pool,
		threadQ:      n.threadQ,
		threadWakeup: n.threadWakeup,
		schedFail:    counters.NewCounter(cntrs, n.name, counters.ClassError, "sched_fail"),
		threadqFail:  counters.NewCounter(cntrs, n.name, counters.ClassError, "threadq_fail"),
	}
}

func (n *IfNode) send(p *packet.Packet) {
	// Packets are never enqueued to the scheduler here. A packet goes
	// straight to the driver unless HasClasses reports a class with
	// packets queued, in which case it is freed unsent; since nothing on
	// this path enqueues, classes added via ControlMsg leave every packet
	// on the direct path.
	if !n.sched.HasClasses() {
		n.drv.Send(p)
	}
	p.Free()
}

func (n *IfNode) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	owner := n.owner(thread)
	if owner {
		n.pool.DrainReturns()
	}
	for {
		p, ok := vectors.Pop()
		if !ok {
			break
		}
		if owner {
			n.send(p)
			continue
		}
		select {
		case n.threadQ <- p:
			n.threadWakeup.Write(1)
		default:
			n.threadqFail.Incr()
			p.Free()
		}
	}

	if owner {
	drainThreadQ:
		for {
			select {
			case p := <-n.threadQ:
				n.send(p)
			default:
				break drainThreadQ
			}
		}
	}

	if n.sched.PktsQueued() != 0 {
		vectors.Wakeup(0)
	}

	if !owner {
		return
	}
	for i := 0; i < graph.VecSize; i++ {
		pkt, ok := n.pool.Pkt(n.intf.Headroom)
		if !ok {
			break
		}
		if !n.drv.Recv(pkt) || pkt.Len() == 0 {
			pkt.Free()
			break
		}
		pkt.InIfindex = n.intf.Ifindex
		vectors.Push(int(nextL2EthDecap), pkt)
	}
}

func (n *IfNode) ControlMsg(thread int, message msg.R2Msg) {
	switch m := message.(type) {
	case msg.ModifyInterfaceMsg:
		n.intf = m.Intf
	case msg.ClassAddMsg:
		if m.Ifindex != n.intf.Ifindex || !n.owner(thread) {
			return
		}
		if err := n.sched.CreateClass(m.Name, m.Parent, m.Qlimit, m.IsLeaf, m.Curves); err != nil {
			n.schedFail.Incr()
		}
	}
}
