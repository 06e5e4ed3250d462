package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded instruction: its opcode, its byte offset,
// and its immediate operand (zero-extended regardless of width).
type Instruction struct {
	Offset  int
	Op      Op
	Operand int
}

// Decode walks p's instruction bytes, for disassembly and for any other
// consumer that wants instructions rather than raw bytes (the VM's
// dispatch loop reads the byte stream directly instead, for speed, but
// shares the same width table).
func Decode(p *Program) ([]Instruction, error) {
	var out []Instruction
	code := p.Code
	for ip := 0; ip < len(code); {
		op := Op(code[ip])
		if !op.Valid() {
			return out, fmt.Errorf("illegal opcode 0x%02x at offset %d", code[ip], ip)
		}
		w := op.ImmediateWidth()
		if ip+1+w > len(code) {
			return out, fmt.Errorf("truncated instruction at offset %d", ip)
		}
		var operand int
		if w > 0 {
			var buf [4]byte
			copy(buf[:], code[ip+1:ip+1+w])
			operand = int(binary.LittleEndian.Uint32(buf[:]))
		}
		out = append(out, Instruction{Offset: ip, Op: op, Operand: operand})
		ip += 1 + w
	}
	return out, nil
}

// Disassemble renders a human-readable text format of p: the constant
// pool, the symbol pool, and the instruction stream with resolved
// operands, the source cmd/moth's --disassemble flag prints via
// tablewriter.
func Disassemble(p *Program) (constants []ConstantRow, symbols []string, instructions []InstructionRow, err error) {
	for i, c := range p.Constants {
		constants = append(constants, ConstantRow{Index: i, Kind: c.Kind().String(), Text: c.String()})
	}
	for _, s := range p.SymbolNames {
		symbols = append(symbols, *s)
	}
	decoded, derr := Decode(p)
	if derr != nil {
		return constants, symbols, nil, derr
	}
	for _, inst := range decoded {
		instructions = append(instructions, InstructionRow{
			Offset:  inst.Offset,
			Mnemonic: inst.Op.String(),
			Operand:  operandText(inst, p),
		})
	}
	return constants, symbols, instructions, nil
}

// ConstantRow and InstructionRow are the rows the CLI's tablewriter
// output renders; kept as plain structs here so the bytecode package
// has no dependency on a table-formatting library of its own.
type ConstantRow struct {
	Index int
	Kind  string
	Text  string
}

type InstructionRow struct {
	Offset   int
	Mnemonic string
	Operand  string
}

func operandText(inst Instruction, p *Program) string {
	switch inst.Op {
	case VAL, VAL2, VAL3, VAL4:
		if c, ok := p.ConstantAt(inst.Operand); ok {
			return fmt.Sprintf("%d ; %s", inst.Operand, c.String())
		}
	case SYM, SYM2, SYM3, SYM4, DEF, DEF2, DEF3, DEF4, ASN, ASN2, ASN3, ASN4:
		if s, ok := p.SymbolAt(inst.Operand); ok {
			return fmt.Sprintf("%d ; %s", inst.Operand, *s.Name)
		}
	case JMP, JPT, JPF, JBW, PSH, STR, VEC, ARR, DCT, FRM, FRM2, FRM3, FRM4:
		return fmt.Sprintf("%d", inst.Operand)
	}
	if inst.Op.ImmediateWidth() == 0 {
		return ""
	}
	return fmt.Sprintf("%d", inst.Operand)
}
