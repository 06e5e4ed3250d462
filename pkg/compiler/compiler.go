// Package compiler compiles silk AST nodes into Moth bytecode.
//
// Two binding strategies coexist, matching how the VM's environment and
// value stack differ in lifetime: top-level `let` bindings compile to
// DEF/SYM/ASN against the VM's environment, since a REPL driver runs
// one Program per input on a long-lived VM and only the environment
// survives across those runs. Bindings inside a function body compile
// to frame-local slots (PSH/STR), reserved by a leading FRM instruction,
// since the value stack is reset on every Run.
//
// Closures capture locals of their immediately enclosing function scope
// only (not a grandparent scope, and not top-level globals, which are
// already reachable from anywhere via SYM/ASN without capture). A
// captured local is promoted to a heap cell with PRO at its first
// capture and thereafter addressed, inside the closure body, through
// the upvalue-bit convention PSH/STR use for captured cells.
package compiler

import (
	"github.com/pkg/errors"

	"github.com/silklang/moth/pkg/ast"
	"github.com/silklang/moth/pkg/bytecode"
	"github.com/silklang/moth/pkg/value"
)

// scope tracks the locals of one function body (or the implicit
// top-level scope, which never emits PSH/STR/FRM itself).
type scope struct {
	locals    map[string]int
	nextLocal int
	promoted  map[string]bool
	// upvalues maps a captured free variable's name to its index into
	// this function's closure Upvalues array (the upvalueBit addressing
	// space), distinct from locals' slot numbers.
	upvalues map[string]int
}

func newScope() *scope {
	return &scope{locals: make(map[string]int), promoted: make(map[string]bool), upvalues: make(map[string]int)}
}

// strValue boxes s into p's string-literal storage and wraps it as an
// interned Str value, suitable for the constant pool.
func strValue(p *bytecode.Program, s string) value.Value {
	return value.Str(p.AddString(s))
}

// Compiler walks a parsed Program and emits a bytecode.Program.
type Compiler struct {
	prog   *bytecode.Program
	scopes []*scope // non-empty only while compiling inside a function body
}

// New creates a compiler with a fresh, empty Program.
func New() *Compiler {
	return &Compiler{prog: bytecode.NewProgram()}
}

// Program returns the Program built so far.
func (c *Compiler) Program() *bytecode.Program { return c.prog }

// Compile compiles every top-level statement of prog, in order,
// terminating the instruction stream with FIN.
func (c *Compiler) Compile(prog *ast.Program) error {
	for _, stmt := range prog.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	c.prog.Emit(bytecode.FIN, 0)
	return nil
}

func (c *Compiler) inFunction() bool { return len(c.scopes) > 0 }

func (c *Compiler) currentScope() *scope {
	if !c.inFunction() {
		return nil
	}
	return c.scopes[len(c.scopes)-1]
}

func (c *Compiler) emitVal(idx int) {
	fam := bytecode.ValFamily()
	c.prog.Emit(fam.NarrowestFor(idx), idx)
}

func (c *Compiler) symbolIndex(name string) int {
	c.prog.InternSymbol(name)
	idx, _ := c.prog.SymbolIndex(name)
	return idx
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		return c.compileLet(s)
	case *ast.AssignStatement:
		return c.compileAssign(s)
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		c.prog.Emit(bytecode.POP, 0)
		return nil
	case *ast.ReturnStatement:
		if s.Value != nil {
			if err := c.compileExpression(s.Value); err != nil {
				return err
			}
		} else {
			c.prog.Emit(bytecode.VID, 0)
		}
		c.prog.Emit(bytecode.RET, 0)
		return nil
	case *ast.IfStatement:
		return c.compileIf(s)
	case *ast.WhileStatement:
		return c.compileWhile(s)
	case *ast.GCStatement:
		c.prog.Emit(bytecode.GC, 0)
		return nil
	case *ast.DllStatement:
		return c.compileDll(s)
	default:
		return errors.Errorf("compiler: unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileLet(s *ast.LetStatement) error {
	if err := c.compileExpression(s.Value); err != nil {
		return err
	}
	if !c.inFunction() {
		idx := c.symbolIndex(s.Name)
		fam := bytecode.DefFamily()
		c.prog.Emit(fam.NarrowestFor(idx), idx)
		return nil
	}
	sc := c.currentScope()
	slot := sc.nextLocal
	sc.nextLocal++
	sc.locals[s.Name] = slot
	c.prog.Emit(bytecode.STR, slot)
	c.prog.Emit(bytecode.POP, 0)
	return nil
}

func (c *Compiler) compileAssign(s *ast.AssignStatement) error {
	switch target := s.Target.(type) {
	case *ast.Identifier:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		if c.inFunction() {
			sc := c.currentScope()
			if slot, ok := sc.locals[target.Name]; ok {
				c.prog.Emit(bytecode.STR, slot)
				c.prog.Emit(bytecode.POP, 0)
				return nil
			}
			if idx, ok := sc.upvalues[target.Name]; ok {
				c.prog.Emit(bytecode.STR, bytecode.UpvalueBit|idx)
				c.prog.Emit(bytecode.POP, 0)
				return nil
			}
		}
		idx := c.symbolIndex(target.Name)
		fam := bytecode.AsnFamily()
		c.prog.Emit(fam.NarrowestFor(idx), idx)
		c.prog.Emit(bytecode.POP, 0)
		return nil
	case *ast.IndexExpression:
		if err := c.compileExpression(target.Collection); err != nil {
			return err
		}
		if err := c.compileExpression(target.Index); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.prog.Emit(bytecode.IDA, 0)
		c.prog.Emit(bytecode.POP, 0)
		return nil
	default:
		return errors.Errorf("compiler: invalid assignment target %T", s.Target)
	}
}

// jumpFixup records a forward jump's operand byte offset, patched once
// its target address is known.
type jumpFixup struct {
	operandAt int
	op        bytecode.Op
}

func (c *Compiler) emitJump(op bytecode.Op) jumpFixup {
	offset := c.prog.Emit(op, 0)
	return jumpFixup{operandAt: offset + 1, op: op}
}

func (c *Compiler) patchJump(f jumpFixup) {
	nextIP := f.operandAt + f.op.ImmediateWidth()
	target := len(c.prog.Code)
	c.prog.PatchU16(f.operandAt, uint16(target-nextIP))
}

func (c *Compiler) compileIf(s *ast.IfStatement) error {
	if err := c.compileExpression(s.Condition); err != nil {
		return err
	}
	jumpToElse := c.emitJump(bytecode.JPF)
	for _, stmt := range s.Consequence {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	if len(s.Alternative) == 0 {
		c.patchJump(jumpToElse)
		return nil
	}
	jumpOverElse := c.emitJump(bytecode.JMP)
	c.patchJump(jumpToElse)
	for _, stmt := range s.Alternative {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	c.patchJump(jumpOverElse)
	return nil
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) error {
	loopStart := len(c.prog.Code)
	if err := c.compileExpression(s.Condition); err != nil {
		return err
	}
	jumpOut := c.emitJump(bytecode.JPF)
	for _, stmt := range s.Body {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	backOffset := c.prog.Emit(bytecode.JBW, 0)
	nextIP := backOffset + 1 + bytecode.JBW.ImmediateWidth()
	c.prog.PatchU16(backOffset+1, uint16(nextIP-loopStart))
	c.patchJump(jumpOut)
	return nil
}

func (c *Compiler) compileDll(s *ast.DllStatement) error {
	pathIdx := c.prog.AddConstant(strValue(c.prog, s.Path))
	c.emitVal(pathIdx)
	c.prog.Emit(bytecode.DLL, 0)
	for _, b := range s.Bindings {
		symIdx := c.prog.AddConstant(strValue(c.prog, b.Symbol))
		c.emitVal(symIdx)
		c.prog.Emit(bytecode.FFN, 0)
		nameIdx := c.symbolIndex(b.Name)
		// FFN pushed the resolved function; there is no existing
		// binding to assign yet on first use, so DEF it instead.
		defFam := bytecode.DefFamily()
		c.prog.Emit(defFam.NarrowestFor(nameIdx), nameIdx)
	}
	c.prog.Emit(bytecode.POP, 0) // drop the library handle
	return nil
}
