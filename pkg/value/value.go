// Package value implements the Moth VM's Value and Object model (spec
// §3): a tagged-union Value that lives on the stack and in locals, and a
// family of heap Object variants that Values of kind Obj refer to.
//
// Both halves live in one package deliberately. Object variants hold
// Values (an Array's slots, a Dictionary's entries, a Closure's captured
// Upvalues, an Upvalue's single cell) and Value holds an Object reference
// for its Obj variant — in a language with inheritance this would be one
// class hierarchy, and in Go it is one package with an exhaustive set of
// concrete types plus a small interface, per the spec's own design note
// to avoid inheritance and prefer a tagged variant with exhaustive
// matching.
package value

import "fmt"

// Kind tags the variant a Value currently holds.
type Kind byte

const (
	KindVoid Kind = iota
	KindBool
	KindInt
	KindReal
	KindChar
	KindStr
	KindObj
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindObj:
		return "obj"
	default:
		return "unknown"
	}
}

// Value is the tagged union described by spec §3: Void, Bool, Int
// (64-bit signed), Real (64-bit IEEE-754), Char (32-bit codepoint), Str
// (pointer to an interned read-only string in the constant pool), or Obj
// (owning reference to a heap Object). Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	kind Kind
	i    int64
	r    float64
	c    rune
	s    *string
	obj  Object
}

// Void is the singleton Void value.
var Void = Value{kind: KindVoid}

// Bool constructs a Bool value.
func Bool(b bool) Value {
	var i int64
	if b {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

// Int constructs an Int value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Real constructs a Real value.
func Real(r float64) Value { return Value{kind: KindReal, r: r} }

// Char constructs a Char value.
func Char(c rune) Value { return Value{kind: KindChar, c: c} }

// Str constructs a Str value pointing at an interned constant-pool
// string. The pointer must outlive the Value (constants never move,
// invariant 2).
func Str(s *string) Value { return Value{kind: KindStr, s: s} }

// Obj constructs an Obj value wrapping a heap Object.
func Obj(o Object) Value { return Value{kind: KindObj, obj: o} }

// Kind reports the Value's active variant.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the Bool payload; callers must check Kind first.
func (v Value) AsBool() bool { return v.i != 0 }

// AsInt returns the Int payload.
func (v Value) AsInt() int64 { return v.i }

// AsReal returns the Real payload.
func (v Value) AsReal() float64 { return v.r }

// AsChar returns the Char payload.
func (v Value) AsChar() rune { return v.c }

// AsStr returns the interned string pointer for a Str value.
func (v Value) AsStr() *string { return v.s }

// AsObj returns the Object for an Obj value.
func (v Value) AsObj() Object { return v.obj }

// Truthy implements spec §3's per-variant truthiness table:
// Void->false, Bool->itself, Int/Real->nonzero, Char->not NUL,
// Str->nonempty, Obj->true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindVoid:
		return false
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i != 0
	case KindReal:
		return v.r != 0
	case KindChar:
		return v.c != 0
	case KindStr:
		return v.s != nil && *v.s != ""
	case KindObj:
		return true
	default:
		return false
	}
}

// Equal implements value equality used by the EQ opcode and by
// Dictionary key comparison. Cross-type comparisons are simply false,
// matching §4.6's "cross-type compare yields false". Real equality is
// ordinary IEEE-754 comparison here (NaN != NaN); Dictionary keying uses
// the separate bit-pattern comparison in HashKey, per §9's resolution of
// the ambiguous-key-equality open question.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindVoid:
		return true
	case KindBool, KindInt:
		return v.i == o.i
	case KindReal:
		return v.r == o.r
	case KindChar:
		return v.c == o.c
	case KindStr:
		if v.s == o.s {
			return true
		}
		if v.s == nil || o.s == nil {
			return false
		}
		return *v.s == *o.s
	case KindObj:
		return sameObject(v.obj, o.obj)
	default:
		return false
	}
}

func sameObject(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if as, ok := a.(*String); ok {
		if bs, ok := b.(*String); ok {
			return as.s == bs.s
		}
		return false
	}
	return a == b
}

// String renders a Value the way the VM prints it to the program's
// output stream and the way the disassembler prints constants.
func (v Value) String() string {
	switch v.kind {
	case KindVoid:
		return "void"
	case KindBool:
		return fmt.Sprintf("%t", v.i != 0)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.r)
	case KindChar:
		return fmt.Sprintf("%c", v.c)
	case KindStr:
		if v.s == nil {
			return ""
		}
		return *v.s
	case KindObj:
		if v.obj == nil {
			return "<nil-obj>"
		}
		return v.obj.String()
	default:
		return "<invalid>"
	}
}

// TypeName names the dynamic type the way runtime type-mismatch errors
// report it.
func (v Value) TypeName() string {
	if v.kind == KindObj && v.obj != nil {
		return v.obj.ObjKind().String()
	}
	return v.kind.String()
}

// HashKey produces a comparable Go value suitable for use as a map key,
// used by Dictionary (spec §3: "Only hashable keys: String, Int, Char,
// Real-by-bit-pattern, Bool"). The bool ok is false for non-hashable
// values (Void, Obj other than String).
//
// Real keys compare by bit pattern per §9's resolution of the ambiguous
// open question: NaN compares unequal to itself, consistent with
// IEEE-754, but admissible as a key since map keys here are int64 bit
// patterns rather than float64 equality.
func (v Value) HashKey() (key hashKey, ok bool) {
	switch v.kind {
	case KindBool:
		return hashKey{kind: KindBool, bits: v.i}, true
	case KindInt:
		return hashKey{kind: KindInt, bits: v.i}, true
	case KindChar:
		return hashKey{kind: KindChar, bits: int64(v.c)}, true
	case KindReal:
		return hashKey{kind: KindReal, bits: int64(floatBits(v.r))}, true
	case KindStr:
		if v.s == nil {
			return hashKey{}, false
		}
		return hashKey{kind: KindStr, str: *v.s}, true
	case KindObj:
		if s, ok := v.obj.(*String); ok {
			return hashKey{kind: KindStr, str: s.s}, true
		}
		return hashKey{}, false
	default:
		return hashKey{}, false
	}
}

// hashKey is the comparable projection of a Value that Dictionary's
// bucket lookup hashes and compares keys by.
type hashKey struct {
	kind Kind
	bits int64
	str  string
}
