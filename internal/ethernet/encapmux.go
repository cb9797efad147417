package ethernet

import (
	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
)

// EncapMux is the single fan-out point every node that wants to send a
// packet out pushes to, rather than every such node needing one
// next-node slot per interface. It costs one extra dequeue/enqueue per
// packet; the alternative is thousands of next-node slots on nodes like
// the IPv4 forwarding node once the interface count gets large.
type EncapMux struct {
	nextNames []string
}

// NewEncapMux builds one next-node slot per possible interface index, up
// front; an index with no EthEncap node registered yet simply resolves
// to the drop node until one is (Graph.Finalize's normal fallback for an
// unresolved name).
func NewEncapMux() (*EncapMux, graph.Init) {
	nextNames := make([]string, fwd.MaxInterfaces)
	for i := range nextNames {
		nextNames[i] = names.L2EthEncap(i)
	}
	m := &EncapMux{nextNames: nextNames}
	return m, graph.Init{Name: names.EncapMux, NextNames: nextNames}
}

func (m *EncapMux) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	return &EncapMux{nextNames: m.nextNames}
}

func (m *EncapMux) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	for {
		p, ok := vectors.Pop()
		if !ok {
			return
		}
		vectors.Push(p.OutIfindex, p)
	}
}

func (m *EncapMux) ControlMsg(thread int, message msg.R2Msg) {}
