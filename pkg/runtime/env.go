package runtime

import "github.com/silklang/moth/pkg/value"

// envMinBuckets is the table size a new Environment starts with (the
// table only ever grows from there), matching the memory manager's "capacity starts at a small minimum"
// growth policy (spec §4.1) applied to the environment's own table.
const envMinBuckets = 8

// envMaxLoad is the load factor Environment resizes at (spec §4.4).
const envMaxLoad = 0.95

// tombstoneHash marks a deleted bucket; emptyHash marks one that has
// never held an entry. Both require a nil Name pointer, per spec §4.4's
// bucket-state encoding.
const (
	emptyHash     uint32 = 0
	tombstoneHash uint32 = 1
)

type envBucket struct {
	sym value.Symbol
	val value.Value
}

func (b envBucket) isEmpty() bool     { return b.sym.Name == nil && b.sym.Hash == emptyHash }
func (b envBucket) isTombstone() bool { return b.sym.Name == nil && b.sym.Hash == tombstoneHash }

// Environment is the VM's open-addressed Symbol->Value table (spec
// §4.4): linear probing, tombstone deletion, resize at load factor
// 0.95, and a terminating probe so a full table of tombstones cannot
// loop forever.
type Environment struct {
	buckets []envBucket
	count   int // occupied, excluding tombstones
	used    int // occupied + tombstones, drives the resize threshold
}

// NewEnvironment returns an empty Environment.
func NewEnvironment() *Environment {
	return &Environment{buckets: make([]envBucket, envMinBuckets)}
}

func (e *Environment) probe(sym value.Symbol) (idx int, found bool) {
	n := len(e.buckets)
	start := int(sym.Hash) % n
	firstTombstone := -1
	for i := 0; i < n; i++ {
		at := (start + i) % n
		b := e.buckets[at]
		if b.isEmpty() {
			if firstTombstone >= 0 {
				return firstTombstone, false
			}
			return at, false
		}
		if b.isTombstone() {
			if firstTombstone < 0 {
				firstTombstone = at
			}
			continue
		}
		if b.sym.Equal(sym) {
			return at, true
		}
	}
	// Probe walked back to its starting bucket without resolving: the
	// table is saturated with tombstones. Spec §4.4 requires lookups to
	// terminate rather than loop; report not-found.
	if firstTombstone >= 0 {
		return firstTombstone, false
	}
	return -1, false
}

// Set inserts a new binding or updates an existing one.
func (e *Environment) Set(sym value.Symbol, v value.Value) {
	e.growIfNeeded()
	idx, found := e.probe(sym)
	if idx < 0 {
		return
	}
	if !found {
		if e.buckets[idx].isEmpty() {
			e.used++
		}
		e.count++
	}
	e.buckets[idx] = envBucket{sym: sym, val: v}
}

// SetExisting updates sym's binding only if already present, reporting
// success.
func (e *Environment) SetExisting(sym value.Symbol, v value.Value) bool {
	idx, found := e.probe(sym)
	if !found {
		return false
	}
	e.buckets[idx].val = v
	return true
}

// Get returns sym's bound value and whether it was present.
func (e *Environment) Get(sym value.Symbol) (value.Value, bool) {
	idx, found := e.probe(sym)
	if !found {
		return value.Void, false
	}
	return e.buckets[idx].val, true
}

// Delete removes sym's binding, leaving a tombstone, and reports
// whether it was present.
func (e *Environment) Delete(sym value.Symbol) bool {
	idx, found := e.probe(sym)
	if !found {
		return false
	}
	e.buckets[idx] = envBucket{sym: value.Symbol{Hash: tombstoneHash}}
	e.count--
	return true
}

// Len reports the number of live (non-tombstone) bindings.
func (e *Environment) Len() int { return e.count }

func (e *Environment) growIfNeeded() {
	if float64(e.used+1)/float64(len(e.buckets)) <= envMaxLoad {
		return
	}
	old := e.buckets
	e.buckets = make([]envBucket, len(old)*2)
	e.count = 0
	e.used = 0
	for _, b := range old {
		if b.isEmpty() || b.isTombstone() {
			continue
		}
		e.Set(b.sym, b.val)
	}
}

// Values returns every live binding's value, for GC root scanning.
func (e *Environment) Values() []value.Value {
	out := make([]value.Value, 0, e.count)
	for _, b := range e.buckets {
		if !b.isEmpty() && !b.isTombstone() {
			out = append(out, b.val)
		}
	}
	return out
}
