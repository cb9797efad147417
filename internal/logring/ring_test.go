package logring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSegmentName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("/r2log-test-%d-%s", os.Getpid(), t.Name())
}

func TestLogAndSerializeRoundTrip(t *testing.T) {
	l, err := New(testSegmentName(t), 64, 8)
	require.NoError(t, err)
	defer l.Close()

	e := NewEntry("rx on %d dropped %d")
	l.Log(e, uint32(3), uint16(7))
	l.Log(e, uint32(4), uint16(8))
	l.Stop()

	var buf bytes.Buffer
	require.NoError(t, l.Serialize(&buf))

	var records []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, "rx on %d dropped %d", records[0].Format)
	require.Equal(t, []uint64{3, 7}, records[0].Vals)
	require.Equal(t, []uint64{4, 8}, records[1].Vals)
}

func TestLogStoppedIsNoop(t *testing.T) {
	l, err := New(testSegmentName(t), 64, 4)
	require.NoError(t, err)
	defer l.Close()

	l.Stop()
	require.True(t, l.Stopped())

	e := NewEntry("never recorded")
	l.Log(e, uint32(1))

	var buf bytes.Buffer
	require.NoError(t, l.Serialize(&buf))

	var records []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Empty(t, records)
}

func TestLogWrapsRing(t *testing.T) {
	l, err := New(testSegmentName(t), 32, 2)
	require.NoError(t, err)
	defer l.Close()

	e := NewEntry("tick %d")
	l.Log(e, uint32(1))
	l.Log(e, uint32(2))
	l.Log(e, uint32(3))
	l.Stop()

	var buf bytes.Buffer
	require.NoError(t, l.Serialize(&buf))

	var records []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	require.Equal(t, []uint64{2}, records[0].Vals)
	require.Equal(t, []uint64{3}, records[1].Vals)
}

func TestLogDistinctEntriesGetDistinctIndices(t *testing.T) {
	l, err := New(testSegmentName(t), 32, 8)
	require.NoError(t, err)
	defer l.Close()

	a := NewEntry("a %d")
	b := NewEntry("b %d")
	l.Log(a, uint32(1))
	l.Log(b, uint32(2))
	l.Stop()

	var buf bytes.Buffer
	require.NoError(t, l.Serialize(&buf))

	var records []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	require.NotEqual(t, records[0].Index, records[1].Index)
	require.Equal(t, "a %d", records[0].Format)
	require.Equal(t, "b %d", records[1].Format)
}
