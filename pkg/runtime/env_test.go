package runtime

import (
	"fmt"
	"testing"

	"github.com/silklang/moth/pkg/value"
)

func sym(name string) value.Symbol {
	s := name
	return value.NewSymbol(&s)
}

func TestSetGetDelete(t *testing.T) {
	e := NewEnvironment()
	x := sym("x")
	e.Set(x, value.Int(1))
	v, ok := e.Get(x)
	if !ok || v.AsInt() != 1 {
		t.Fatalf("Get(x) = %v, %v, want 1, true", v, ok)
	}
	if !e.Delete(x) {
		t.Fatalf("Delete(x) must succeed")
	}
	if _, ok := e.Get(x); ok {
		t.Fatalf("Get after Delete must report not-found")
	}
}

// TestInsertIdempotentUnderReinsertion is invariant 8 from spec §4.8.
func TestInsertIdempotentUnderReinsertion(t *testing.T) {
	e := NewEnvironment()
	x := sym("x")
	e.Set(x, value.Int(1))
	e.Set(x, value.Int(2))
	if e.Len() != 1 {
		t.Fatalf("reinsertion must not grow Len, got %d", e.Len())
	}
	v, _ := e.Get(x)
	if v.AsInt() != 2 {
		t.Fatalf("Get(x) after reinsertion = %v, want 2", v)
	}
}

func TestSetExistingFailsWhenAbsent(t *testing.T) {
	e := NewEnvironment()
	if e.SetExisting(sym("missing"), value.Int(1)) {
		t.Fatalf("SetExisting on an absent symbol must fail")
	}
}

func TestDeleteThenSetReusesTombstone(t *testing.T) {
	e := NewEnvironment()
	x := sym("x")
	e.Set(x, value.Int(1))
	e.Delete(x)
	e.Set(x, value.Int(5))
	v, ok := e.Get(x)
	if !ok || v.AsInt() != 5 {
		t.Fatalf("Get(x) after delete+reinsert = %v, %v, want 5, true", v, ok)
	}
}

func TestResizePreservesAllBindings(t *testing.T) {
	e := NewEnvironment()
	syms := make([]value.Symbol, 200)
	for i := range syms {
		syms[i] = sym(fmt.Sprintf("sym%d", i))
		e.Set(syms[i], value.Int(int64(i)))
	}
	for i, s := range syms {
		v, ok := e.Get(s)
		if !ok || v.AsInt() != int64(i) {
			t.Fatalf("Get(sym%d) = %v, %v, want %d, true", i, v, ok, i)
		}
	}
	if float64(e.used)/float64(len(e.buckets)) > envMaxLoad {
		t.Fatalf("load factor exceeded bound")
	}
}

func TestDistinctSymbolsSameNameTextDoNotCollide(t *testing.T) {
	// Symbols are compared by interned pointer identity (spec §3), so
	// two Go strings with identical text but distinct allocations are
	// distinct keys unless interned through the same Program.
	e := NewEnvironment()
	a := sym("dup")
	b := sym("dup")
	e.Set(a, value.Int(1))
	if _, ok := e.Get(b); ok {
		t.Fatalf("non-interned symbols with equal text must not collide")
	}
}
