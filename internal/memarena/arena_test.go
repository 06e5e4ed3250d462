package memarena

import "testing"

func TestGrowStartsAtMinimum(t *testing.T) {
	a := New()
	cap0, grew := a.Grow(1)
	if !grew {
		t.Fatalf("expected growth from zero capacity")
	}
	if cap0 != MinCapacity {
		t.Fatalf("expected minimum capacity %d, got %d", MinCapacity, cap0)
	}
}

func TestGrowDoubles(t *testing.T) {
	a := New()
	a.Grow(1)
	cap1, grew := a.Grow(MinCapacity + 1)
	if !grew {
		t.Fatalf("expected growth past exhausted capacity")
	}
	if cap1 != MinCapacity*2 {
		t.Fatalf("expected doubled capacity %d, got %d", MinCapacity*2, cap1)
	}
}

func TestGrowNoReallocWithinCapacity(t *testing.T) {
	a := New()
	a.Grow(4)
	_, grew := a.Grow(2)
	if grew {
		t.Fatalf("shrinking within capacity must not reallocate")
	}
	if a.Len() != 2 {
		t.Fatalf("expected length 2, got %d", a.Len())
	}
}

func TestResetClearsCapacity(t *testing.T) {
	a := New()
	a.Grow(100)
	a.Reset()
	if a.Len() != 0 || a.Cap() != 0 {
		t.Fatalf("expected zero state after reset, got len=%d cap=%d", a.Len(), a.Cap())
	}
}

func TestGrowIntsPreservesContents(t *testing.T) {
	a := New()
	buf := GrowInts(a, nil, 4)
	for i := range buf {
		buf[i] = i + 1
	}
	buf = GrowInts(a, buf, 10)
	for i := 0; i < 4; i++ {
		if buf[i] != i+1 {
			t.Fatalf("expected preserved content at %d, got %d", i, buf[i])
		}
	}
}
