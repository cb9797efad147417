package packet

import (
	"fmt"
	"testing"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/stretchr/testify/require"
)

func newTestCounters(t *testing.T) *counters.Pool {
	t.Helper()
	name := fmt.Sprintf("/r2pkt-test-%s", t.Name())
	p, err := counters.New(name)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPacketChaining(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := NewHeapPool(cntrs, 8, 16, 512)

	pkt, ok := pool.Pkt(100)
	require.True(t, ok)

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	for i := 0; i < len(data); i++ {
		require.True(t, pkt.Append(data[i:i+1]))
	}

	require.Equal(t, 1000, pkt.Len())

	n := 0
	for p := pkt.particle; p != nil; p = p.next {
		n++
	}
	require.Equal(t, 3, n, "512 capacity particles with 100 headroom: 412+512+76 = 1000 across 3 particles")

	got := make([]byte, 0, 1000)
	for _, slice := range pkt.Slices() {
		got = append(got, slice...)
	}
	require.Equal(t, data, got)
}

func TestPacketLenInvariant(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := NewHeapPool(cntrs, 4, 8, 128)

	pkt, ok := pool.Pkt(20)
	require.True(t, ok)
	require.True(t, pkt.Prepend([]byte{1, 2, 3}))
	require.True(t, pkt.Append([]byte{4, 5, 6, 7}))

	sum := 0
	for p := pkt.particle; p != nil; p = p.next {
		sum += p.Len()
	}
	require.Equal(t, pkt.Len(), sum)
}

func TestPushPullL2RestoresHead(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := NewHeapPool(cntrs, 4, 8, 128)

	pkt, ok := pool.Pkt(32)
	require.True(t, ok)
	originalHead := pkt.particle.head

	hdr := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	require.True(t, pkt.PushL2(hdr))
	require.Equal(t, 4, pkt.PullL2(4))
	require.Equal(t, originalHead, pkt.particle.head)
}

func TestPoolReturnQueueReclaimsAllocations(t *testing.T) {
	cntrs := newTestCounters(t)
	pool := NewHeapPool(cntrs, 4, 4, 64)

	var pkts []*Packet
	for i := 0; i < 4; i++ {
		pkt, ok := pool.Pkt(0)
		require.True(t, ok)
		pkts = append(pkts, pkt)
	}
	_, ok := pool.Pkt(0)
	require.False(t, ok, "pool should be exhausted")

	for _, pkt := range pkts {
		pkt.Free()
	}
	pool.DrainReturns()

	for i := 0; i < 4; i++ {
		_, ok := pool.Pkt(0)
		require.True(t, ok, "all packets should be reclaimed after drain")
	}
}
