package ipv4

import (
	"net/netip"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/lpm"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
)

type fwdNext int

const (
	fwdDrop fwdNext = iota
	fwdEncapMux
)

func fwdNextNames() []string {
	return []string{names.Drop, names.EncapMux}
}

type fwdCnt struct {
	noRoute   *counters.Counter
	invalidL3 *counters.Counter
}

func newFwdCnt(cntrs *counters.Pool) fwdCnt {
	return fwdCnt{
		noRoute:   counters.NewCounter(cntrs, names.L3IPv4Fwd, counters.ClassPkts, "no_route"),
		invalidL3: counters.NewCounter(cntrs, names.L3IPv4Fwd, counters.ClassError, "invalid_l3"),
	}
}

// Fwd looks the destination address up in the LPM table and resolves it
// to an adjacency, or drops and counts it if nothing matches. table is a
// local snapshot refreshed only on an explicit IPv4TableAddMsg, the same
// way the original caches its own Arc<IPv4Table> rather than dereferencing
// shared state on every lookup; rcu is kept around solely to pull that
// fresh snapshot and acknowledge having adopted it.
type Fwd struct {
	rcu   *lpm.RCU
	table *lpm.Table
	cnt   fwdCnt
}

func NewFwd(rcu *lpm.RCU, cntrs *counters.Pool) (*Fwd, graph.Init) {
	f := &Fwd{rcu: rcu, table: rcu.Current(), cnt: newFwdCnt(cntrs)}
	return f, graph.Init{Name: names.L3IPv4Fwd, NextNames: fwdNextNames()}
}

func (f *Fwd) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	return &Fwd{rcu: f.rcu, table: f.rcu.Current(), cnt: newFwdCnt(cntrs)}
}

func (f *Fwd) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	for {
		pkt, ok := vectors.Pop()
		if !ok {
			return
		}

		iphdr, hdrLen := pkt.GetL3()
		if hdrLen < fwd.IPHdrMinLen {
			f.cnt.invalidL3.Incr()
			pkt.Free()
			continue
		}

		daddr := netip.AddrFrom4([4]byte(iphdr[fwd.IPHdrDaddrOff : fwd.IPHdrDaddrOff+4]))

		leaf, ok := f.table.Lookup(daddr)
		if !ok {
			f.cnt.noRoute.Incr()
			pkt.Free()
			continue
		}

		adj, ok := leaf.Next.(*fwd.Adjacency)
		if !ok {
			f.cnt.noRoute.Incr()
			pkt.Free()
			continue
		}

		pkt.OutIfindex = adj.Ifindex
		pkt.OutL3Addr = adj.Nhop
		if pkt.OutL3Addr == netip.IPv4Unspecified() {
			pkt.OutL3Addr = daddr
		}
		vectors.Push(int(fwdEncapMux), pkt)
	}
}

func (f *Fwd) ControlMsg(thread int, message msg.R2Msg) {
	m, ok := message.(msg.IPv4TableAddMsg)
	if !ok {
		return
	}
	f.table = f.rcu.Current()
	f.rcu.Ack(thread, m.Generation)
}
