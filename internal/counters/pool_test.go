package counters

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSegmentName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("/r2cnt-test-%d-%s", os.Getpid(), t.Name())
}

func TestCounterRoundTrip(t *testing.T) {
	name := testSegmentName(t)

	writer, err := New(name)
	require.NoError(t, err)
	defer writer.Close()

	const n = 100
	cntrs := make([]*Counter, n)
	for i := 0; i < n; i++ {
		cntrs[i] = NewCounter(writer, "test", ClassError, fmt.Sprintf("counter%d", i))
		cntrs[i].Add(uint64(123_456 + i))
	}

	reader, err := OpenReadOnly(name)
	require.NoError(t, err)
	defer reader.Close()

	for i := 0; i < n; i++ {
		c, ok := reader.Lookup(fmt.Sprintf("test/error/counter%d", i))
		require.True(t, ok, "counter%d not found", i)
		require.Equal(t, 1, c.Len())
		require.Equal(t, uint64(123_456+i), c.Read(0))
	}
}

func TestCounterFreeReturnsToBin(t *testing.T) {
	name := testSegmentName(t)

	p, err := New(name)
	require.NoError(t, err)
	defer p.Close()

	before := p.dir.Offset()

	c := NewCounter(p, "scratch", ClassInfo, "once")
	c.Incr()
	require.Equal(t, uint64(1), c.Value())
	c.Free()

	c2 := NewCounter(p, "scratch", ClassInfo, "again")
	require.Equal(t, before, p.dir.Offset(), "freed directory slot should be reused")
	c2.Incr()
	require.Equal(t, uint64(1), c2.Value())
}

func TestExhaustionFallsBackToDummy(t *testing.T) {
	name := testSegmentName(t)

	p, err := New(name)
	require.NoError(t, err)
	defer p.Close()

	// Drain the name bin entirely so every further allocation is forced
	// onto the dummy counter.
	p.names = NewBin(nameInfo.binsz, 0, nameInfo.pagesz)

	c := NewCounter(p, "node", ClassError, "whatever")
	require.Equal(t, p.dummyCounter.dirOff, c.dir)

	c.Incr()
	c2 := NewCounter(p, "node", ClassError, "other")
	require.Equal(t, p.dummyCounter.dirOff, c2.dir)
	require.Equal(t, uint64(1), c2.Value(), "both handles alias the dummy slot")
}
