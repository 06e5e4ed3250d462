// Package gc implements the Moth VM's mark-and-sweep collector (spec
// §4.5): non-moving, stop-the-world, triggered either by the GC opcode
// or by the registry reaching capacity. The teacher's interpreter never
// needed a heap collector of its own (its objects ride on the Go
// garbage collector via ordinary *Instance/*Array pointers); this
// registry gives Moth's heap objects the same liveness/no-leak
// invariant the teacher's call-stack and error-trace bookkeeping holds
// for frames, applied here to FFI-pointer and closure lifetimes instead.
package gc

import (
	"github.com/silklang/moth/internal/memarena"
	"github.com/silklang/moth/pkg/value"
)

// RootSource supplies the value-stack roots; every upvalue reachable
// from a closure on the stack is reached transitively via
// Object.Children. The environment's values are passed to Collect
// separately. The VM's runtime.Stack implements this.
type RootSource interface {
	Values() []value.Value
}

// Registry is the GC's object table: every heap value.Object currently
// live, plus the growth arena backing its capacity.
type Registry struct {
	objects []value.Object
	arena   *memarena.Arena
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{arena: memarena.New()}
}

// Register records a freshly allocated Object, growing the backing
// arena if the registry is at capacity. Per spec §4.5's ordering
// property, the instruction that allocates an object must call Register
// before it returns, so the object survives a GC triggered later within
// the same or a subsequent instruction.
func (r *Registry) Register(o value.Object) {
	r.objects = append(r.objects, o)
	r.arena.Grow(len(r.objects))
}

// Len reports how many objects are currently registered.
func (r *Registry) Len() int { return len(r.objects) }

// AtCapacity reports whether the registry has reached its arena's
// current capacity, the second GC trigger condition in spec §4.5. A
// registry that has never allocated (capacity 0) is not at capacity.
func (r *Registry) AtCapacity() bool {
	return r.arena.Cap() > 0 && len(r.objects) >= r.arena.Cap()
}

// Collect runs one mark-and-sweep cycle: mark every Object transitively
// reachable from roots, then sweep the registry, freeing (and, for FFI
// pointers, releasing) anything left unmarked. It returns the number of
// objects freed.
func Collect(r *Registry, roots RootSource, env []value.Value) int {
	mark(r, roots.Values())
	mark(r, env)
	return sweep(r)
}

func mark(r *Registry, values []value.Value) {
	for _, v := range values {
		if v.Kind() != value.KindObj {
			continue
		}
		markObject(v.AsObj())
	}
}

func markObject(o value.Object) {
	if o == nil || o.Reachable() {
		return
	}
	o.SetReachable(true)
	for _, child := range o.Children() {
		if child.Kind() == value.KindObj {
			markObject(child.AsObj())
		}
	}
}

// sweep frees every unmarked object, swap-and-shrinking the live list,
// clears the reachable bit on survivors, and grows the arena only if
// every slot is still occupied after the sweep (spec §4.5).
func sweep(r *Registry) int {
	freed := 0
	i := 0
	for i < len(r.objects) {
		o := r.objects[i]
		if !o.Reachable() {
			releaseFFI(o)
			last := len(r.objects) - 1
			r.objects[i] = r.objects[last]
			r.objects = r.objects[:last]
			freed++
			continue
		}
		o.SetReachable(false)
		i++
	}
	r.arena.Shrink(len(r.objects))
	if len(r.objects) == r.arena.Cap() {
		r.arena.Grow(len(r.objects) + 1)
	}
	return freed
}

func releaseFFI(o value.Object) {
	if p, ok := o.(*value.FFIPointer); ok {
		p.Release()
	}
}
