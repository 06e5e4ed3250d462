package bytecode

import (
	"testing"

	"github.com/silklang/moth/pkg/value"
)

func TestEmitWritesOpcodeAndImmediate(t *testing.T) {
	p := NewProgram()
	off := p.Emit(PSH, 0x0102)
	if off != 0 {
		t.Fatalf("first Emit must return offset 0, got %d", off)
	}
	if len(p.Code) != 3 {
		t.Fatalf("PSH must emit 1+2 bytes, got %d", len(p.Code))
	}
	if Op(p.Code[0]) != PSH {
		t.Fatalf("first byte must be PSH")
	}
	if p.Code[1] != 0x02 || p.Code[2] != 0x01 {
		t.Fatalf("immediate must be little-endian, got % x", p.Code[1:3])
	}
}

func TestPatchU16Rewrites(t *testing.T) {
	p := NewProgram()
	p.Emit(JMP, 0)
	p.PatchU16(1, 42)
	if p.Code[1] != 42 || p.Code[2] != 0 {
		t.Fatalf("PatchU16 did not rewrite operand, got % x", p.Code[1:3])
	}
}

func TestInternSymbolDeduplicates(t *testing.T) {
	p := NewProgram()
	a := p.InternSymbol("foo")
	b := p.InternSymbol("foo")
	c := p.InternSymbol("bar")
	if a.Name != b.Name {
		t.Fatalf("interning the same identifier twice must return the same pointer")
	}
	if !a.Equal(b) {
		t.Fatalf("identical symbols must compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("distinct identifiers must not compare equal")
	}
	if len(p.SymbolNames) != 2 {
		t.Fatalf("expected 2 distinct interned names, got %d", len(p.SymbolNames))
	}
}

func TestAddConstantAndConstantAt(t *testing.T) {
	p := NewProgram()
	idx := p.AddConstant(value.Int(7))
	got, ok := p.ConstantAt(idx)
	if !ok || got.AsInt() != 7 {
		t.Fatalf("ConstantAt(%d) = %v, %v, want 7, true", idx, got, ok)
	}
	if _, ok := p.ConstantAt(99); ok {
		t.Fatalf("out-of-range ConstantAt must report not found")
	}
}

func TestSymbolAtOutOfRange(t *testing.T) {
	p := NewProgram()
	if _, ok := p.SymbolAt(0); ok {
		t.Fatalf("SymbolAt on empty pool must report not found")
	}
}
