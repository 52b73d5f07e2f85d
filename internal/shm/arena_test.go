package shm

import "testing"

func TestArenaReserveRejectsZeroSize(t *testing.T) {
	a := NewArena(1024)
	if _, _, err := a.Reserve(0); err != ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := a.Reserve(-5); err != ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestArenaAlignment(t *testing.T) {
	a := NewArena(1024)
	off1, _, err := a.Reserve(3)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	off2, _, err := a.Reserve(5)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if off1%arenaAlign != 0 || off2%arenaAlign != 0 {
		t.Errorf("offsets not aligned: %d, %d", off1, off2)
	}
	if off2-off1 != arenaAlign {
		t.Errorf("expected 3-byte range to consume one aligned block, got gap %d", off2-off1)
	}
}

func TestArenaNonOverlapping(t *testing.T) {
	a := NewArena(256)
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		off, data, err := a.Reserve(64)
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		if len(data) != 64 {
			t.Fatalf("expected 64-byte slice, got %d", len(data))
		}
		if seen[off] {
			t.Fatalf("offset %d handed out twice", off)
		}
		seen[off] = true
	}
}

func TestArenaExhaustion(t *testing.T) {
	a := NewArena(128)
	if _, _, err := a.Reserve(128); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if _, _, err := a.Reserve(1); err != ErrResourceExhausted {
		t.Errorf("expected ErrResourceExhausted, got %v", err)
	}
}

func TestArenaReleaseReclaims(t *testing.T) {
	a := NewArena(128)
	off, _, err := a.Reserve(128)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	a.Release(off, 128)
	if a.Used() != 0 {
		t.Errorf("expected 0 bytes used after release, got %d", a.Used())
	}
	if _, _, err := a.Reserve(128); err != nil {
		t.Errorf("full capacity should be reusable after release: %v", err)
	}
}

func TestArenaCoalescing(t *testing.T) {
	a := NewArena(192)
	offA, _, _ := a.Reserve(64)
	offB, _, _ := a.Reserve(64)
	offC, _, _ := a.Reserve(64)

	// Release out of order; neighbors must merge back into one block.
	a.Release(offA, 64)
	a.Release(offC, 64)
	a.Release(offB, 64)

	if _, _, err := a.Reserve(192); err != nil {
		t.Errorf("expected coalesced block to satisfy full-capacity reserve: %v", err)
	}
}

func TestArenaUsedTracksAlignmentPadding(t *testing.T) {
	a := NewArena(1024)
	a.Reserve(1)
	if a.Used() != arenaAlign {
		t.Errorf("expected %d bytes used, got %d", arenaAlign, a.Used())
	}
}
