// Package ipv4 implements the layer-3 IPv4 graph nodes: Parse recognizes
// and marks the IPv4 header region, Fwd looks the destination up in the
// LPM table and hands the packet to the right egress path.
package ipv4

import (
	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
)

type parseNext int

const (
	parseDrop parseNext = iota
	parseL3IPv4Fwd
)

func parseNextNames() []string {
	return []string{names.Drop, names.L3IPv4Fwd}
}

// Parse is handed whatever a decap node determined was an IPv4 payload; it
// marks the header region and forwards it on, or counts and drops
// anything too short to hold one.
type Parse struct {
	badPkt *counters.Counter
}

func NewParse(cntrs *counters.Pool) (*Parse, graph.Init) {
	p := &Parse{
		badPkt: counters.NewCounter(cntrs, names.L3IPv4Parse, counters.ClassError, "bad_pkt"),
	}
	return p, graph.Init{Name: names.L3IPv4Parse, NextNames: parseNextNames()}
}

func (p *Parse) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] {
	return &Parse{
		badPkt: counters.NewCounter(cntrs, names.L3IPv4Parse, counters.ClassError, "bad_pkt"),
	}
}

func (p *Parse) Dispatch(thread int, vectors *graph.Dispatch[msg.R2Msg]) {
	for {
		pkt, ok := vectors.Pop()
		if !ok {
			return
		}
		if pkt.SetL3(fwd.IPHdrMinLen) {
			vectors.Push(int(parseL3IPv4Fwd), pkt)
		} else {
			p.badPkt.Incr()
			pkt.Free()
		}
	}
}

func (p *Parse) ControlMsg(thread int, message msg.R2Msg) {}
