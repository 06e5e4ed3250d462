package value

import "hash/fnv"

// Symbol is an interned identifier (spec §3): a 32-bit FNV-1a hash of
// the identifier bytes paired with a pointer into the owning Program's
// symbol pool. Symbols are compared by pointer equality of the interned
// string, not by hash or byte content — the hash only accelerates
// lookup. This requires that all identifiers in one Program are
// interned exactly once, in one pool, which is the Program container's
// job (pkg/bytecode).
type Symbol struct {
	Hash uint32
	Name *string
}

// HashIdentifier computes the 32-bit FNV-1a hash spec §3 specifies for
// a Symbol, independent of where the identifier's bytes end up living.
func HashIdentifier(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// NewSymbol builds a Symbol over an already-interned name pointer.
func NewSymbol(name *string) Symbol {
	return Symbol{Hash: HashIdentifier(*name), Name: name}
}

// Equal compares two Symbols by interned pointer identity, per spec §3.
func (s Symbol) Equal(o Symbol) bool { return s.Name == o.Name }

// IsZero reports whether s is the zero Symbol.
func (s Symbol) IsZero() bool { return s.Name == nil && s.Hash == 0 }
