// Package bytecode defines the Moth opcode set, the Program container
// that holds one compiled program's instruction bytes, constant pool,
// and symbol pool, and the on-disk .moth file format (spec §4.2, §6).
package bytecode

// Op is a single-byte opcode (spec §4.6/§6).
type Op byte

// UpvalueBit, set in a PSH/STR operand otherwise addressing a frame
// local (0-32767), redirects addressing to the executing closure's
// captured-cell array instead: operand&^UpvalueBit indexes
// Closure.Upvalues rather than the current frame's locals. This is an
// implementation convention for resolving spec §4.6's "subsequent
// SYM/ASN on that local indirect through the cell" to concrete stack
// addressing, not a separate opcode — PSH/STR keep their one u16
// immediate either way.
const UpvalueBit = 1 << 15

// The canonical opcode table, resolving spec §9's "two overlapping
// trees" open question: this is the union of operations §4.6 actually
// describes, with one numbering. Opcodes with multiple encoded widths
// (VAL/SYM/DEF/ASN/FRM) get one constant per width; ImmediateWidth below
// reports how many trailing bytes each one consumes.
const (
	// Control
	FIN Op = iota
	NOP
	GC
	DBG

	// Jumps (u16 target delta)
	JMP
	JPT
	JPF
	JBW

	// Stack
	POP
	PSH // u16 local offset
	STR // u16 local offset

	// Constants (1/2/3/4-byte pool index)
	VAL
	VAL2
	VAL3
	VAL4

	// Symbols: load
	SYM
	SYM2
	SYM3
	SYM4
	// Symbols: define
	DEF
	DEF2
	DEF3
	DEF4
	// Symbols: assign
	ASN
	ASN2
	ASN3
	ASN4

	// Frames
	FRM
	FRM2
	FRM3
	FRM4
	CAL
	RET

	// Closures & upvalues
	CLO
	PRO

	// Literals
	VID
	TRU
	FAL
	PI
	TAU
	EUL

	// Aggregate constructors (u16 n, or 2n for DCT)
	VEC
	ARR
	DCT

	// Unary
	NEG
	NOT

	// Arithmetic
	ADD
	SUB
	DIV
	MUL
	RIV
	POW
	MOD

	// Indexing
	IDX
	IDA
	MRG

	// Comparison
	EQ
	NEQ
	GT
	LT
	GTE
	LTE

	// FFI
	DLL
	FFN

	opCount
)

var opNames = [opCount]string{
	FIN: "FIN", NOP: "NOP", GC: "GC", DBG: "DBG",
	JMP: "JMP", JPT: "JPT", JPF: "JPF", JBW: "JBW",
	POP: "POP", PSH: "PSH", STR: "STR",
	VAL: "VAL", VAL2: "VAL2", VAL3: "VAL3", VAL4: "VAL4",
	SYM: "SYM", SYM2: "SYM2", SYM3: "SYM3", SYM4: "SYM4",
	DEF: "DEF", DEF2: "DEF2", DEF3: "DEF3", DEF4: "DEF4",
	ASN: "ASN", ASN2: "ASN2", ASN3: "ASN3", ASN4: "ASN4",
	FRM: "FRM", FRM2: "FRM2", FRM3: "FRM3", FRM4: "FRM4",
	CAL: "CAL", RET: "RET",
	CLO: "CLO", PRO: "PRO",
	VID: "VID", TRU: "TRU", FAL: "FAL", PI: "PI", TAU: "TAU", EUL: "EUL",
	VEC: "VEC", ARR: "ARR", DCT: "DCT",
	NEG: "NEG", NOT: "NOT",
	ADD: "ADD", SUB: "SUB", DIV: "DIV", MUL: "MUL", RIV: "RIV", POW: "POW", MOD: "MOD",
	IDX: "IDX", IDA: "IDA", MRG: "MRG",
	EQ: "EQ", NEQ: "NEQ", GT: "GT", LT: "LT", GTE: "GTE", LTE: "LTE",
	DLL: "DLL", FFN: "FFN",
}

// String gives the opcode's mnemonic, used by the disassembler and by
// error messages.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "ILLEGAL"
}

// Valid reports whether op names a real opcode.
func (op Op) Valid() bool { return int(op) < int(opCount) }

// ImmediateWidth reports how many bytes of immediate operand follow the
// opcode byte (0-4, per spec §4.6/§6).
func (op Op) ImmediateWidth() int {
	switch op {
	case JMP, JPT, JPF, JBW, PSH, STR, VEC, ARR, DCT:
		return 2
	case VAL, SYM, DEF, ASN, FRM:
		return 1
	case VAL2, SYM2, DEF2, ASN2, FRM2:
		return 2
	case VAL3, SYM3, DEF3, ASN3, FRM3:
		return 3
	case VAL4, SYM4, DEF4, ASN4, FRM4:
		return 4
	default:
		return 0
	}
}

// widthFamily lists each width variant of one opcode group, so
// the compiler can pick the narrowest encoding that fits an index and
// the VM can decode any width uniformly.
type widthFamily struct{ w1, w2, w3, w4 Op }

var (
	valFamily = widthFamily{VAL, VAL2, VAL3, VAL4}
	symFamily = widthFamily{SYM, SYM2, SYM3, SYM4}
	defFamily = widthFamily{DEF, DEF2, DEF3, DEF4}
	asnFamily = widthFamily{ASN, ASN2, ASN3, ASN4}
	frmFamily = widthFamily{FRM, FRM2, FRM3, FRM4}
)

// NarrowestFor picks the smallest width-variant opcode in family that
// can encode index, per §4.6: "the compiler chooses the narrowest that
// fits the pool index."
func (f widthFamily) NarrowestFor(index int) Op {
	switch {
	case index < 1<<8:
		return f.w1
	case index < 1<<16:
		return f.w2
	case index < 1<<24:
		return f.w3
	default:
		return f.w4
	}
}

// ValFamily, SymFamily, DefFamily, AsnFamily, and FrmFamily expose the
// width families to the compiler package.
func ValFamily() widthFamily { return valFamily }
func SymFamily() widthFamily { return symFamily }
func DefFamily() widthFamily { return defFamily }
func AsnFamily() widthFamily { return asnFamily }
func FrmFamily() widthFamily { return frmFamily }
