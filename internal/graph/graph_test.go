package graph

import (
	"fmt"
	"testing"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/packet"
	"github.com/stretchr/testify/require"
)

type testMsg struct{}

// sinkClient keeps whatever it dequeues in a slice, to let tests observe
// what arrived without depending on the drop node's counters.
type sinkClient struct {
	received []*packet.Packet
}

func (s *sinkClient) Clone(cntrs *counters.Pool) Client[testMsg] { return &sinkClient{} }
func (s *sinkClient) Dispatch(thread int, d *Dispatch[testMsg]) {
	for {
		pkt, ok := d.Pop()
		if !ok {
			return
		}
		s.received = append(s.received, pkt)
	}
}
func (s *sinkClient) ControlMsg(thread int, m testMsg) {}

// pusherClient forwards everything it dequeues to next-slot 0.
type pusherClient struct {
	pushesPerTick int
}

func (p *pusherClient) Clone(cntrs *counters.Pool) Client[testMsg] { return &pusherClient{pushesPerTick: p.pushesPerTick} }
func (p *pusherClient) Dispatch(thread int, d *Dispatch[testMsg]) {
	for i := 0; i < p.pushesPerTick; i++ {
		d.Push(0, &packet.Packet{})
	}
}
func (p *pusherClient) ControlMsg(thread int, m testMsg) {}

func newTestCounters(t *testing.T) *counters.Pool {
	t.Helper()
	p, err := counters.New(fmt.Sprintf("/r2graph-test-%s", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestQueueNeverExceeds256(t *testing.T) {
	cntrs := newTestCounters(t)
	g := New[testMsg](0, cntrs)

	sink := &sinkClient{}
	g.Add(cntrs, sink, Init{Name: "sink"})
	pusher := &pusherClient{pushesPerTick: VecSize + 50}
	g.Add(cntrs, pusher, Init{Name: "pusher", NextNames: []string{"sink"}})
	g.Finalize()

	// pusher is index 2, sink is index 1: pusher pushes to a
	// lower-indexed node so the tick loops; run once is enough since
	// pusher dispatches all at once.
	g.Run()

	require.LessOrEqual(t, g.vectors[g.NodeIndex("sink")].Len(), VecSize)
}

func TestFinalizeResolvesUnknownNamesToDrop(t *testing.T) {
	cntrs := newTestCounters(t)
	g := New[testMsg](0, cntrs)
	g.Add(cntrs, &sinkClient{}, Init{Name: "orphan", NextNames: []string{"does-not-exist"}})
	g.Finalize()

	idx := g.NodeIndex("orphan")
	require.Equal(t, 0, g.nodes[idx].nextIDs[0])
}

func TestControlMsgRoutesByName(t *testing.T) {
	cntrs := newTestCounters(t)
	g := New[testMsg](0, cntrs)
	g.Add(cntrs, &sinkClient{}, Init{Name: "sink"})
	g.Finalize()

	require.True(t, g.ControlMsg("sink", testMsg{}))
	require.False(t, g.ControlMsg("missing", testMsg{}))
}

func TestCloneProducesIndependentQueues(t *testing.T) {
	cntrs := newTestCounters(t)
	g := New[testMsg](0, cntrs)
	g.Add(cntrs, &sinkClient{}, Init{Name: "sink"})
	g.Finalize()

	clone := g.Clone(1, cntrs)
	require.Equal(t, len(g.nodes), len(clone.nodes))
	require.Equal(t, g.NodeIndex("sink"), clone.NodeIndex("sink"))

	clone.vectors[clone.NodeIndex("sink")].pushBack(&packet.Packet{})
	require.Equal(t, 0, g.vectors[g.NodeIndex("sink")].Len())
	require.Equal(t, 1, clone.vectors[clone.NodeIndex("sink")].Len())
}
