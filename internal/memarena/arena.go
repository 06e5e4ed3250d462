// Package memarena implements the uniform allocate/resize/free primitive
// that every dynamic structure in the VM is built on top of.
//
// Spec §4.1 describes a single entry point memory(ptr, old_size, new_size)
// used by every dynamically sized array in the system, with a doubling
// growth policy starting from a small minimum. Go already garbage collects
// the backing storage, so Arena does not free memory itself; what it gives
// every caller is the *policy* (minimum capacity, doubling growth, and a
// single place that decides when a backing slice must be replaced) rather
// than raw allocation. The GC registry grows through an Arena. The VM's
// stacks are pre-sized to their fixed depths and the environment doubles
// its own bucket slice, so neither of those goes through an Arena.
package memarena

// MinCapacity is the smallest capacity an Arena ever allocates, matching
// the spec's "capacity starts at a small minimum (>=4)".
const MinCapacity = 4

// Arena tracks the logical length and capacity of one dynamic array. It
// does not own the backing storage itself — callers keep their own slice
// and ask the Arena when it must grow.
type Arena struct {
	len int
	cap int
}

// New returns an Arena with zero length and zero capacity.
func New() *Arena { return &Arena{} }

// Len reports the logical length currently in use.
func (a *Arena) Len() int { return a.len }

// Cap reports the current backing capacity.
func (a *Arena) Cap() int { return a.cap }

// Grow requests room for n logical elements. It returns the new capacity
// if the caller must reallocate its backing slice to at least that size,
// or the existing capacity (with grew=false) if no reallocation is
// needed. Capacity starts at MinCapacity and doubles each time it is
// exhausted, as required by §4.1.
func (a *Arena) Grow(n int) (newCap int, grew bool) {
	if n <= a.cap {
		a.len = n
		return a.cap, false
	}
	newCap = a.cap
	if newCap < MinCapacity {
		newCap = MinCapacity
	}
	for newCap < n {
		newCap *= 2
	}
	a.cap = newCap
	a.len = n
	return newCap, true
}

// Shrink lowers the logical length without touching capacity, the
// Arena-level equivalent of §4.1's "new_size = 0 is equivalent to
// release" — the backing array is left alone (the host GC reclaims it
// only once nothing references the slice anymore), but the structure is
// logically empty and the next Grow can reuse the existing capacity.
func (a *Arena) Shrink(n int) {
	if n < 0 {
		n = 0
	}
	a.len = n
}

// Reset returns the Arena to its zero state, used when a VM's stacks are
// reset to their outer frame (§4.3's "resetting the stack clears both to
// depth 1").
func (a *Arena) Reset() {
	a.len = 0
	a.cap = 0
}

// GrowInts grows a []int backing slice in place, preserving existing
// contents, following the Arena's capacity policy. It is a convenience
// wrapper used by the few callers that want the copy semantics of
// memory(ptr, old_size, new_size) directly instead of managing their own
// slice.
func GrowInts(a *Arena, buf []int, n int) []int {
	newCap, grew := a.Grow(n)
	if !grew {
		return buf
	}
	next := make([]int, newCap)
	copy(next, buf)
	return next
}
