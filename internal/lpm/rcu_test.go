package lpm

import (
	"context"
	"net/netip"
	"testing"

	"github.com/gopakumarce/r2/internal/fwd"
	"github.com/stretchr/testify/require"
)

// syncAck simulates a single worker thread that adopts a table swap the
// instant it's notified, acking generation gen right away.
func syncAck(r *RCU) func(gen uint64) {
	return func(gen uint64) { r.Ack(0, gen) }
}

func TestRCURouteAddDeleteConverges(t *testing.T) {
	r, err := NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	prefix := netip.MustParsePrefix("10.0.0.0/8")
	leaf := fwd.NewIPv4Leaf(fwd.NewInterface("if1", 1, [fwd.EthAlen]byte{}, 0))

	ok, err := r.AddRoute(context.Background(), prefix, leaf, syncAck(r))
	require.NoError(t, err)
	require.True(t, ok)

	for i := range 10 {
		addr := netip.AddrFrom4([4]byte{10, 0, 0, byte(i)})
		got, found := r.Current().Lookup(addr)
		require.True(t, found)
		require.Same(t, leaf, got)
	}

	// Both generations must agree once quiescence has been observed.
	t1Leaf, t1ok := r.t1.Lookup(netip.AddrFrom4([4]byte{10, 0, 0, 1}))
	t2Leaf, t2ok := r.t2.Lookup(netip.AddrFrom4([4]byte{10, 0, 0, 1}))
	require.True(t, t1ok)
	require.True(t, t2ok)
	require.Same(t, t1Leaf, t2Leaf)

	ok, err = r.DelRoute(context.Background(), prefix, syncAck(r))
	require.NoError(t, err)
	require.True(t, ok)

	for i := range 10 {
		addr := netip.AddrFrom4([4]byte{10, 0, 0, byte(i)})
		_, found := r.Current().Lookup(addr)
		require.False(t, found)
	}

	_, t1ok = r.t1.Lookup(netip.AddrFrom4([4]byte{10, 0, 0, 1}))
	_, t2ok = r.t2.Lookup(netip.AddrFrom4([4]byte{10, 0, 0, 1}))
	require.False(t, t1ok)
	require.False(t, t2ok)
}

func TestRCUDuplicateAddReportsFalse(t *testing.T) {
	r, err := NewRCU(1)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	prefix := netip.MustParsePrefix("192.168.0.0/16")
	leaf := fwd.NewIPv4Leaf(fwd.NewInterface("if2", 2, [fwd.EthAlen]byte{}, 0))

	ok, err := r.AddRoute(context.Background(), prefix, leaf, syncAck(r))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.AddRoute(context.Background(), prefix, leaf, syncAck(r))
	require.NoError(t, err)
	require.False(t, ok)
}
