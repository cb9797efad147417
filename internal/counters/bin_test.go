package counters

import "testing"

func TestBin(t *testing.T) {
	bin := NewBin(4, 32, 8)
	if bin.zeroes != 29 {
		t.Fatalf("zeroes = %d, want 29", bin.zeroes)
	}

	if _, ok := bin.Get(33); ok {
		t.Fatal("expected Get(33) to fail, range is only 32 bytes")
	}

	cntr, ok := bin.Get(4)
	if !ok || cntr != 0 {
		t.Fatalf("Get(4) = (%d,%v), want (0,true)", cntr, ok)
	}
	if bin.Offset() != 8 {
		t.Fatalf("offset = %d, want 8", bin.Offset())
	}
	if len(bin.bins[0]) != 1 {
		t.Fatalf("bins[0] len = %d, want 1", len(bin.bins[0]))
	}

	bin.Free(cntr, 4)
	if len(bin.bins[0]) != 2 {
		t.Fatalf("bins[0] len after free = %d, want 2", len(bin.bins[0]))
	}

	cntr1, ok1 := bin.Get(4)
	cntr2, ok2 := bin.Get(4)
	if !ok1 || !ok2 || cntr1 != 0 || cntr2 != 4 {
		t.Fatalf("Get(4)x2 = (%d,%d), want (0,4)", cntr1, cntr2)
	}
	if bin.Offset() != 8 {
		t.Fatalf("offset = %d, want 8", bin.Offset())
	}
	if len(bin.bins[0]) != 0 {
		t.Fatalf("bins[0] len = %d, want 0", len(bin.bins[0]))
	}

	cntr, ok = bin.Get(13)
	if !ok || cntr != 8 {
		t.Fatalf("Get(13) = (%d,%v), want (8,true)", cntr, ok)
	}
	if bin.Offset() != 24 {
		t.Fatalf("offset = %d, want 24", bin.Offset())
	}
	if len(bin.bins[2]) != 0 {
		t.Fatalf("bins[2] len = %d, want 0", len(bin.bins[2]))
	}

	bin.Free(cntr, 13)
	if len(bin.bins[2]) != 1 {
		t.Fatalf("bins[2] len after free = %d, want 1", len(bin.bins[2]))
	}

	cntr, ok = bin.Get(5)
	if !ok || cntr != 24 {
		t.Fatalf("Get(5) = (%d,%v), want (24,true)", cntr, ok)
	}
	if bin.Offset() != 32 {
		t.Fatalf("offset = %d, want 32", bin.Offset())
	}
	if len(bin.bins[1]) != 0 {
		t.Fatalf("bins[1] len = %d, want 0", len(bin.bins[1]))
	}

	bin.Free(cntr, 5)
	if len(bin.bins[1]) != 1 {
		t.Fatalf("bins[1] len after free = %d, want 1", len(bin.bins[1]))
	}

	if _, ok := bin.Get(3); ok {
		t.Fatal("expected Get(3) to fail, range exhausted")
	}
}
