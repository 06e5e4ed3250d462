package bytecode

import (
	"encoding/binary"

	"github.com/silklang/moth/pkg/value"
)

// Program is the container spec §4.2 describes: a byte-stream of
// instructions, a read-only constant pool, and a symbol pool, plus the
// backing storage those pools' Value/Symbol pointers point into.
// Writing appends; every index handed back by a write is stable for the
// Program's lifetime (invariant 2) because the backing arrays below are
// never reallocated in a way that moves already-issued pointers — string
// and identifier bytes are boxed individually (one *string per entry)
// specifically so that growing the Constants/Symbols slices never
// invalidates a Value.AsStr() or Symbol.Name pointer handed out earlier.
type Program struct {
	Code      []byte
	Constants []value.Value

	// strLiterals backs every Str constant; stable by being boxed
	// individually rather than sliced out of one growing buffer.
	strLiterals []*string

	// SymbolNames backs every interned identifier; Symbols is keyed by
	// name text to guarantee the "equal bytes -> equal pointer" interning
	// contract spec §9 requires between compiler and loader.
	SymbolNames []*string
	Symbols     []value.Symbol
	symbolIndex map[string]int
}

// NewProgram returns an empty, ready-to-append Program.
func NewProgram() *Program {
	return &Program{symbolIndex: make(map[string]int)}
}

// Emit appends one instruction (opcode + little-endian immediate of
// the width op.ImmediateWidth() specifies) and returns the byte offset
// it was written at.
func (p *Program) Emit(op Op, operand int) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op))
	w := op.ImmediateWidth()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(operand))
	p.Code = append(p.Code, buf[:w]...)
	return offset
}

// PatchU16 rewrites the 2-byte immediate at byte offset operandAt (the
// byte right after a jump opcode), used to back-patch forward jump
// targets once the jump distance is known.
func (p *Program) PatchU16(operandAt int, value uint16) {
	binary.LittleEndian.PutUint16(p.Code[operandAt:operandAt+2], value)
}

// AddString interns a string into the program's string literal storage
// and returns a stable pointer to its text, suitable for value.Str.
func (p *Program) AddString(s string) *string {
	boxed := new(string)
	*boxed = s
	p.strLiterals = append(p.strLiterals, boxed)
	return boxed
}

// AddConstant appends v to the constant pool and returns its stable
// index.
func (p *Program) AddConstant(v value.Value) int {
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// InternSymbol interns name into the symbol pool, deduplicating on
// identifier text so that two occurrences of the same identifier in one
// Program share one interned pointer (spec §3's Symbol identity
// contract; §9's compiler/loader agreement).
func (p *Program) InternSymbol(name string) value.Symbol {
	if idx, ok := p.symbolIndex[name]; ok {
		return p.Symbols[idx]
	}
	boxed := new(string)
	*boxed = name
	sym := value.NewSymbol(boxed)
	p.SymbolNames = append(p.SymbolNames, boxed)
	p.Symbols = append(p.Symbols, sym)
	p.symbolIndex[name] = len(p.Symbols) - 1
	return sym
}

// SymbolIndex returns the pool index of an already-interned identifier,
// used by the compiler to recover the index InternSymbol assigned
// without having to thread it through separately.
func (p *Program) SymbolIndex(name string) (int, bool) {
	idx, ok := p.symbolIndex[name]
	return idx, ok
}

// SymbolAt returns the interned Symbol for pool index i.
func (p *Program) SymbolAt(i int) (value.Symbol, bool) {
	if i < 0 || i >= len(p.Symbols) {
		return value.Symbol{}, false
	}
	return p.Symbols[i], true
}

// ConstantAt returns the constant at pool index i.
func (p *Program) ConstantAt(i int) (value.Value, bool) {
	if i < 0 || i >= len(p.Constants) {
		return value.Value{}, false
	}
	return p.Constants[i], true
}
