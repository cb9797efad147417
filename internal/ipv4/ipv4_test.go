package ipv4

import (
	"context"
	"fmt"
	"net/netip"
	"testing"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/gopakumarce/r2/internal/graph"
	"github.com/gopakumarce/r2/internal/lpm"
	"github.com/gopakumarce/r2/internal/msg"
	"github.com/gopakumarce/r2/internal/names"
	"github.com/gopakumarce/r2/internal/packet"
	"github.com/stretchr/testify/require"
)

func newTestCounters(t *testing.T) *counters.Pool {
	t.Helper()
	p, err := counters.New(fmt.Sprintf("/r2ipv4-test-%s", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func newTestPool(t *testing.T) packet.Pool {
	t.Helper()
	cntrs := newTestCounters(t)
	pool := packet.NewHeapPool(cntrs, 16, 32, 1500)
	t.Cleanup(pool.Free)
	return pool
}

func ipv4Packet(t *testing.T, pool packet.Pool, daddr netip.Addr, hdrLen int) *packet.Packet {
	t.Helper()
	pkt, ok := pool.Pkt(0)
	require.True(t, ok)
	buf := make([]byte, hdrLen)
	if hdrLen >= fwd.IPHdrMinLen {
		copy(buf[fwd.IPHdrDaddrOff:fwd.IPHdrDaddrOff+4], daddr.As4()[:])
	}
	require.True(t, pkt.Append(buf))
	return pkt
}

type feeder struct {
	pkts []*packet.Packet
	done bool
}

func (f *feeder) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] { return f }
func (f *feeder) Dispatch(thread int, d *graph.Dispatch[msg.R2Msg]) {
	if f.done {
		return
	}
	f.done = true
	for _, p := range f.pkts {
		d.Push(0, p)
	}
}
func (f *feeder) ControlMsg(thread int, m msg.R2Msg) {}

type sink struct {
	got []*packet.Packet
}

func (s *sink) Clone(cntrs *counters.Pool) graph.Client[msg.R2Msg] { return s }
func (s *sink) Dispatch(thread int, d *graph.Dispatch[msg.R2Msg]) {
	for {
		pkt, ok := d.Pop()
		if !ok {
			return
		}
		s.got = append(s.got, pkt)
	}
}
func (s *sink) ControlMsg(thread int, m msg.R2Msg) {}

func TestParseMarksL3AndForwards(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := newTestPool(t)

	parse, init := NewParse(cntrs)

	g := graph.New[msg.R2Msg](0, cntrs)
	g.Add(cntrs, parse, init)
	fwdSink := &sink{}
	g.Add(cntrs, fwdSink, graph.Init{Name: names.L3IPv4Fwd})

	pkt := ipv4Packet(t, pool, netip.MustParseAddr("10.0.0.1"), fwd.IPHdrMinLen)
	f := &feeder{pkts: []*packet.Packet{pkt}}
	g.Add(cntrs, f, graph.Init{Name: "feeder", NextNames: []string{names.L3IPv4Parse}})
	g.Finalize()

	g.Run()
	g.Run()

	require.Len(t, fwdSink.got, 1)
}

func TestParseDropsTooShortPacket(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := newTestPool(t)

	parse, init := NewParse(cntrs)

	g := graph.New[msg.R2Msg](0, cntrs)
	g.Add(cntrs, parse, init)
	fwdSink := &sink{}
	g.Add(cntrs, fwdSink, graph.Init{Name: names.L3IPv4Fwd})

	pkt := ipv4Packet(t, pool, netip.Addr{}, fwd.IPHdrMinLen-4)
	f := &feeder{pkts: []*packet.Packet{pkt}}
	g.Add(cntrs, f, graph.Init{Name: "feeder", NextNames: []string{names.L3IPv4Parse}})
	g.Finalize()

	g.Run()
	g.Run()

	require.Empty(t, fwdSink.got)
}

func syncAck(r *lpm.RCU) func(gen uint64) {
	return func(gen uint64) { r.Ack(0, gen) }
}

func TestFwdResolvesRouteAndPushesToEncapMux(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := newTestPool(t)

	rcu, err := lpm.NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(rcu.Close)

	gw := netip.MustParseAddr("192.168.1.1")
	leaf := fwd.NewIPv4Leaf(fwd.NewAdjacency(gw, 3))
	_, err = rcu.AddRoute(context.Background(), netip.MustParsePrefix("10.0.0.0/8"), leaf, syncAck(rcu))
	require.NoError(t, err)

	fwdNode, init := NewFwd(rcu, cntrs)

	g := graph.New[msg.R2Msg](0, cntrs)
	g.Add(cntrs, fwdNode, init)
	mux := &sink{}
	g.Add(cntrs, mux, graph.Init{Name: names.EncapMux})

	pkt := ipv4Packet(t, pool, netip.MustParseAddr("10.1.2.3"), fwd.IPHdrMinLen)
	require.True(t, pkt.SetL3(fwd.IPHdrMinLen))
	f := &feeder{pkts: []*packet.Packet{pkt}}
	g.Add(cntrs, f, graph.Init{Name: "feeder", NextNames: []string{names.L3IPv4Fwd}})
	g.Finalize()

	g.Run()
	g.Run()

	require.Len(t, mux.got, 1)
	require.Equal(t, 3, mux.got[0].OutIfindex)
	require.Equal(t, gw, mux.got[0].OutL3Addr)
}

func TestFwdConnectedRouteUsesPacketDestAsNexthop(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := newTestPool(t)

	rcu, err := lpm.NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(rcu.Close)

	leaf := fwd.NewIPv4Leaf(fwd.NewAdjacency(netip.IPv4Unspecified(), 2))
	_, err = rcu.AddRoute(context.Background(), netip.MustParsePrefix("10.0.0.0/24"), leaf, syncAck(rcu))
	require.NoError(t, err)

	fwdNode, init := NewFwd(rcu, cntrs)

	g := graph.New[msg.R2Msg](0, cntrs)
	g.Add(cntrs, fwdNode, init)
	mux := &sink{}
	g.Add(cntrs, mux, graph.Init{Name: names.EncapMux})

	dst := netip.MustParseAddr("10.0.0.9")
	pkt := ipv4Packet(t, pool, dst, fwd.IPHdrMinLen)
	require.True(t, pkt.SetL3(fwd.IPHdrMinLen))
	f := &feeder{pkts: []*packet.Packet{pkt}}
	g.Add(cntrs, f, graph.Init{Name: "feeder", NextNames: []string{names.L3IPv4Fwd}})
	g.Finalize()

	g.Run()
	g.Run()

	require.Len(t, mux.got, 1)
	require.Equal(t, dst, mux.got[0].OutL3Addr)
}

func TestFwdNoRouteDrops(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := newTestPool(t)

	rcu, err := lpm.NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(rcu.Close)

	fwdNode, init := NewFwd(rcu, cntrs)

	g := graph.New[msg.R2Msg](0, cntrs)
	g.Add(cntrs, fwdNode, init)
	mux := &sink{}
	g.Add(cntrs, mux, graph.Init{Name: names.EncapMux})

	pkt := ipv4Packet(t, pool, netip.MustParseAddr("172.16.0.1"), fwd.IPHdrMinLen)
	require.True(t, pkt.SetL3(fwd.IPHdrMinLen))
	f := &feeder{pkts: []*packet.Packet{pkt}}
	g.Add(cntrs, f, graph.Init{Name: "feeder", NextNames: []string{names.L3IPv4Fwd}})
	g.Finalize()

	g.Run()
	g.Run()

	require.Empty(t, mux.got)
}

func TestFwdAdoptsNewGenerationOnControlMsg(t *testing.T) {
	cntrs := newTestCounters(t)

	rcu, err := lpm.NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(rcu.Close)

	fwdNode, _ := NewFwd(rcu, cntrs)

	prefix := netip.MustParsePrefix("10.0.0.0/8")
	leaf := fwd.NewIPv4Leaf(fwd.NewAdjacency(netip.MustParseAddr("192.168.1.1"), 5))
	var gen uint64
	_, err = rcu.AddRoute(context.Background(), prefix, leaf, func(g uint64) {
		gen = g
		syncAck(rcu)(g)
	})
	require.NoError(t, err)

	fwdNode.ControlMsg(0, msg.IPv4TableAddMsg{Generation: gen})

	_, found := fwdNode.table.Lookup(netip.MustParseAddr("10.1.1.1"))
	require.True(t, found)
}
