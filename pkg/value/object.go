package value

import "math"

// ObjKind tags the concrete variant of a heap Object (spec §3's Object
// variant list).
type ObjKind byte

const (
	ObjString ObjKind = iota
	ObjArray
	ObjVector
	ObjDict
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjFFIFunc
	ObjFFIPtr
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjArray:
		return "array"
	case ObjVector:
		return "vector"
	case ObjDict:
		return "dict"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjFFIFunc:
		return "ffi-function"
	case ObjFFIPtr:
		return "ffi-pointer"
	default:
		return "unknown-object"
	}
}

// Object is implemented by every heap-allocated variant. It is
// intentionally small: a Kind tag, the reachable bit the GC flips during
// mark/sweep (spec §3's Object header), a Children hook the GC uses to
// walk the object graph without a type switch living outside this
// package, and String for printing.
//
// Children returns every Value directly reachable from this object that
// might itself reference another heap Object — for Array, its slots;
// for Dictionary, its live key/value pairs; for Closure, its captured
// upvalues; for an Upvalue cell, its single Value. Variants with no
// object-valued children (String, Vector, Function, FFI function, FFI
// pointer) return nil.
type Object interface {
	ObjKind() ObjKind
	String() string
	Reachable() bool
	SetReachable(bool)
	Children() []Value
}

// Header is embedded by every Object variant to provide the GC's
// reachable bit uniformly.
type Header struct {
	reachable bool
}

func (h *Header) Reachable() bool     { return h.reachable }
func (h *Header) SetReachable(b bool) { h.reachable = b }

// floatBits gives the bit pattern used for Real dictionary keys (spec
// §9: key equality for Real is bit-pattern equality, so distinct NaN
// payloads are distinct keys and a NaN key compares unequal to itself
// under ordinary float equality but is admissible as a key here).
func floatBits(f float64) uint64 { return math.Float64bits(f) }
