package value

import (
	"math"
	"testing"
)

func TestTruthiness(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"void", Void, false},
		{"bool-false", Bool(false), false},
		{"bool-true", Bool(true), true},
		{"int-zero", Int(0), false},
		{"int-nonzero", Int(7), true},
		{"real-zero", Real(0), false},
		{"real-nonzero", Real(0.1), true},
		{"char-nul", Char(0), false},
		{"char-nonnul", Char('a'), true},
		{"str-empty", Str(strPtr("")), false},
		{"str-nonempty", Str(strPtr("x")), true},
		{"obj", Obj(NewString("x")), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Truthy(); got != c.want {
				t.Fatalf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestEqualityCrossType(t *testing.T) {
	if Int(1).Equal(Real(1)) {
		t.Fatalf("cross-type Int/Real must not be equal")
	}
	if !Int(5).Equal(Int(5)) {
		t.Fatalf("equal ints must compare equal")
	}
}

func TestEqualityStringsByValue(t *testing.T) {
	a := Str(strPtr("hi"))
	b := Str(strPtr("hi"))
	if !a.Equal(b) {
		t.Fatalf("strings with equal bytes must compare equal")
	}
}

func TestHashKeyRealBitPattern(t *testing.T) {
	nan1 := Real(nanBits(0x1))
	nan2 := Real(nanBits(0x2))
	k1, ok1 := nan1.HashKey()
	k2, ok2 := nan2.HashKey()
	if !ok1 || !ok2 {
		t.Fatalf("Real must be hashable")
	}
	if k1 == k2 {
		t.Fatalf("distinct NaN bit patterns must produce distinct keys")
	}
}

func nanBits(payload uint64) float64 {
	bits := uint64(0x7ff8000000000000) | payload
	return math.Float64frombits(bits)
}
