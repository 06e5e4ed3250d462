package value

import "hash/fnv"

// String is the heap String variant (spec §3): immutable, with a cached
// hash. Concatenation and repetition always allocate a new String — the
// VM never mutates one in place, and callers are responsible for
// registering the result with the GC (invariant 1).
type String struct {
	Header
	s    string
	hash uint32
}

// NewString allocates a String object. It does not register the object
// with any GC registry; the VM's allocating opcodes do that immediately
// after construction, before control returns to the dispatch loop.
func NewString(s string) *String {
	h := fnv.New32a()
	h.Write([]byte(s))
	return &String{s: s, hash: h.Sum32()}
}

func (s *String) ObjKind() ObjKind   { return ObjString }
func (s *String) String() string     { return s.s }
func (s *String) Children() []Value  { return nil }
func (s *String) Go() string         { return s.s }
func (s *String) Len() int           { return len(s.s) }
func (s *String) Hash() uint32       { return s.hash }

// Concat returns a new String holding the concatenation of s and o. The
// operation is associative on values (property 6): (a+b)+c == a+(b+c)
// as strings, never claimed as identity.
func (s *String) Concat(o *String) *String { return NewString(s.s + o.s) }

// Repeat returns a new String holding s repeated n times. n must be
// non-negative; the MUL opcode handler is responsible for rejecting
// negative repeat counts with InvArg before calling this.
func (s *String) Repeat(n int64) *String {
	if n <= 0 {
		return NewString("")
	}
	buf := make([]byte, 0, int64(len(s.s))*n)
	for i := int64(0); i < n; i++ {
		buf = append(buf, s.s...)
	}
	return NewString(string(buf))
}

// Index returns the rune at position i, and whether i was in range.
func (s *String) Index(i int64) (rune, bool) {
	runes := []rune(s.s)
	if i < 0 || i >= int64(len(runes)) {
		return 0, false
	}
	return runes[i], true
}

// IndexAssign returns a new String with the rune at position i replaced
// by r (String objects are immutable; index-assignment on a String
// produces a new object per spec §4.6's IDA semantics).
func (s *String) IndexAssign(i int64, r rune) (*String, bool) {
	runes := []rune(s.s)
	if i < 0 || i >= int64(len(runes)) {
		return nil, false
	}
	runes[i] = r
	return NewString(string(runes)), true
}
