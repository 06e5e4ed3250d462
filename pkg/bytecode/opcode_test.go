package bytecode

import "testing"

func TestImmediateWidthFamilies(t *testing.T) {
	cases := []struct {
		op    Op
		width int
	}{
		{FIN, 0}, {NOP, 0}, {POP, 0},
		{JMP, 2}, {JPT, 2}, {JPF, 2}, {JBW, 2},
		{PSH, 2}, {STR, 2},
		{VAL, 1}, {VAL2, 2}, {VAL3, 3}, {VAL4, 4},
		{SYM, 1}, {SYM4, 4},
		{DEF, 1}, {DEF4, 4},
		{ASN, 1}, {ASN4, 4},
		{FRM, 1}, {FRM4, 4},
		{CAL, 0}, {RET, 0},
		{ADD, 0}, {EQ, 0},
		{DLL, 0}, {FFN, 0},
	}
	for _, c := range cases {
		if got := c.op.ImmediateWidth(); got != c.width {
			t.Errorf("%s.ImmediateWidth() = %d, want %d", c.op, got, c.width)
		}
	}
}

func TestOpValidAndString(t *testing.T) {
	if !ADD.Valid() {
		t.Fatalf("ADD must be a valid opcode")
	}
	if opCount.Valid() {
		t.Fatalf("opCount sentinel must not be valid")
	}
	if got := ADD.String(); got != "ADD" {
		t.Fatalf("ADD.String() = %q", got)
	}
	if got := opCount.String(); got != "ILLEGAL" {
		t.Fatalf("out-of-range opcode must stringify as ILLEGAL, got %q", got)
	}
}

func TestNarrowestForPicksSmallestWidth(t *testing.T) {
	f := ValFamily()
	cases := []struct {
		index int
		want  Op
	}{
		{0, VAL},
		{255, VAL},
		{256, VAL2},
		{1 << 16, VAL3},
		{1 << 24, VAL4},
	}
	for _, c := range cases {
		if got := f.NarrowestFor(c.index); got != c.want {
			t.Errorf("NarrowestFor(%d) = %s, want %s", c.index, got, c.want)
		}
	}
}

func TestWidthFamiliesAreDistinct(t *testing.T) {
	families := []widthFamily{ValFamily(), SymFamily(), DefFamily(), AsnFamily(), FrmFamily()}
	seen := make(map[Op]bool)
	for _, f := range families {
		for _, op := range []Op{f.w1, f.w2, f.w3, f.w4} {
			if seen[op] {
				t.Fatalf("opcode %s reused across width families", op)
			}
			seen[op] = true
		}
	}
}
