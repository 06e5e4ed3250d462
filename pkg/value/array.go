package value

import "strings"

// Array is the heap Array variant: a mutable, ordered collection of
// Values (spec §3). Size is authoritative for iteration (invariant 3).
type Array struct {
	Header
	Slots []Value
}

// NewArray allocates an Array from the given slots, preserving order.
func NewArray(slots []Value) *Array {
	cp := make([]Value, len(slots))
	copy(cp, slots)
	return &Array{Slots: cp}
}

func (a *Array) ObjKind() ObjKind { return ObjArray }

func (a *Array) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range a.Slots {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (a *Array) Children() []Value { return a.Slots }

// Len reports the number of elements.
func (a *Array) Len() int { return len(a.Slots) }

// Append adds v to the end of the array.
func (a *Array) Append(v Value) { a.Slots = append(a.Slots, v) }

// RemoveAt deletes the element at index i, shifting later elements down.
func (a *Array) RemoveAt(i int) bool {
	if i < 0 || i >= len(a.Slots) {
		return false
	}
	a.Slots = append(a.Slots[:i], a.Slots[i+1:]...)
	return true
}

// Swap exchanges the elements at i and j.
func (a *Array) Swap(i, j int) bool {
	if i < 0 || j < 0 || i >= len(a.Slots) || j >= len(a.Slots) {
		return false
	}
	a.Slots[i], a.Slots[j] = a.Slots[j], a.Slots[i]
	return true
}

// Index returns the element at i.
func (a *Array) Index(i int64) (Value, bool) {
	if i < 0 || i >= int64(len(a.Slots)) {
		return Value{}, false
	}
	return a.Slots[i], true
}

// IndexAssign replaces the element at i.
func (a *Array) IndexAssign(i int64, v Value) bool {
	if i < 0 || i >= int64(len(a.Slots)) {
		return false
	}
	a.Slots[i] = v
	return true
}

// Concat returns a new Array holding a's elements followed by o's.
// ADD on two Arrays requires the same element kind throughout the
// result per §4.6; SameElementKind performs that check.
func (a *Array) Concat(o *Array) *Array {
	out := make([]Value, 0, len(a.Slots)+len(o.Slots))
	out = append(out, a.Slots...)
	out = append(out, o.Slots...)
	return NewArray(out)
}

// SameElementKind reports whether every element of a and o shares one
// Kind (and, for Obj elements, one ObjKind), as ADD on Array requires.
func SameElementKind(a, o *Array) bool {
	all := append(append([]Value{}, a.Slots...), o.Slots...)
	if len(all) == 0 {
		return true
	}
	first := all[0]
	for _, v := range all[1:] {
		if v.Kind() != first.Kind() {
			return false
		}
		if v.Kind() == KindObj {
			if v.obj == nil || first.obj == nil || v.obj.ObjKind() != first.obj.ObjKind() {
				return false
			}
		}
	}
	return true
}

// Merge appends o's elements (or a single element) into a in place, for
// the MRG opcode's Array+Array and Array+element forms.
func (a *Array) Merge(o Value) {
	if arr, ok := o.obj.(*Array); o.Kind() == KindObj && ok {
		a.Slots = append(a.Slots, arr.Slots...)
		return
	}
	a.Slots = append(a.Slots, o)
}
