package compiler

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/silklang/moth/pkg/ast"
	"github.com/silklang/moth/pkg/bytecode"
	"github.com/silklang/moth/pkg/value"
)

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		c.emitVal(c.prog.AddConstant(value.Int(e.Value)))
		return nil
	case *ast.RealLiteral:
		c.emitVal(c.prog.AddConstant(value.Real(e.Value)))
		return nil
	case *ast.StringLiteral:
		c.emitVal(c.prog.AddConstant(strValue(c.prog, e.Value)))
		return nil
	case *ast.CharLiteral:
		c.emitVal(c.prog.AddConstant(value.Char(e.Value)))
		return nil
	case *ast.BoolLiteral:
		if e.Value {
			c.prog.Emit(bytecode.TRU, 0)
		} else {
			c.prog.Emit(bytecode.FAL, 0)
		}
		return nil
	case *ast.VoidLiteral:
		c.prog.Emit(bytecode.VID, 0)
		return nil
	case *ast.PiLiteral:
		c.prog.Emit(bytecode.PI, 0)
		return nil
	case *ast.TauLiteral:
		c.prog.Emit(bytecode.TAU, 0)
		return nil
	case *ast.EulLiteral:
		c.prog.Emit(bytecode.EUL, 0)
		return nil
	case *ast.Identifier:
		return c.compileIdentifierLoad(e.Name)
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.prog.Emit(bytecode.ARR, len(e.Elements))
		return nil
	case *ast.VectorLiteral:
		for _, el := range e.Elements {
			if err := c.compileExpression(el); err != nil {
				return err
			}
		}
		c.prog.Emit(bytecode.VEC, len(e.Elements))
		return nil
	case *ast.DictLiteral:
		for _, entry := range e.Entries {
			if err := c.compileExpression(entry.Key); err != nil {
				return err
			}
			if err := c.compileExpression(entry.Value); err != nil {
				return err
			}
		}
		c.prog.Emit(bytecode.DCT, 2*len(e.Entries))
		return nil
	case *ast.PrefixExpression:
		if err := c.compileExpression(e.Operand); err != nil {
			return err
		}
		switch e.Operator {
		case "-":
			c.prog.Emit(bytecode.NEG, 0)
		case "!":
			c.prog.Emit(bytecode.NOT, 0)
		default:
			return errors.Errorf("compiler: unknown prefix operator %q", e.Operator)
		}
		return nil
	case *ast.InfixExpression:
		return c.compileInfix(e)
	case *ast.IndexExpression:
		if err := c.compileExpression(e.Collection); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.prog.Emit(bytecode.IDX, 0)
		return nil
	case *ast.CallExpression:
		for _, arg := range e.Arguments {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		if err := c.compileExpression(e.Callee); err != nil {
			return err
		}
		c.prog.Emit(bytecode.CAL, 0)
		return nil
	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(e)
	default:
		return errors.Errorf("compiler: unsupported expression %T", expr)
	}
}

func (c *Compiler) compileIdentifierLoad(name string) error {
	if c.inFunction() {
		sc := c.currentScope()
		if slot, ok := sc.locals[name]; ok {
			c.prog.Emit(bytecode.PSH, slot)
			return nil
		}
		if idx, ok := sc.upvalues[name]; ok {
			c.prog.Emit(bytecode.PSH, bytecode.UpvalueBit|idx)
			return nil
		}
	}
	idx := c.symbolIndex(name)
	fam := bytecode.SymFamily()
	c.prog.Emit(fam.NarrowestFor(idx), idx)
	return nil
}

func (c *Compiler) compileInfix(e *ast.InfixExpression) error {
	switch e.Operator {
	case "&&":
		return c.compileShortCircuit(e, bytecode.JPF, bytecode.FAL)
	case "||":
		return c.compileShortCircuit(e, bytecode.JPT, bytecode.TRU)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	op, ok := infixOps[e.Operator]
	if !ok {
		return errors.Errorf("compiler: unknown infix operator %q", e.Operator)
	}
	c.prog.Emit(op, 0)
	return nil
}

// compileShortCircuit compiles && and ||, which must not evaluate their
// right operand unless the left one leaves the outcome undecided: JPT/JPF
// pops the left value to test it, so the decided case pushes shortOn
// back itself rather than re-reading the (already popped) left operand.
func (c *Compiler) compileShortCircuit(e *ast.InfixExpression, decideOn bytecode.Op, shortOn bytecode.Op) error {
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	toShort := c.emitJump(decideOn)
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	toEnd := c.emitJump(bytecode.JMP)
	c.patchJump(toShort)
	c.prog.Emit(shortOn, 0)
	c.patchJump(toEnd)
	return nil
}

var infixOps = map[string]bytecode.Op{
	"+":  bytecode.ADD,
	"-":  bytecode.SUB,
	"*":  bytecode.MUL,
	"/":  bytecode.DIV,
	"//": bytecode.RIV,
	"%":  bytecode.MOD,
	"^":  bytecode.POW,
	"==": bytecode.EQ,
	"!=": bytecode.NEQ,
	"<":  bytecode.LT,
	">":  bytecode.GT,
	"<=": bytecode.LTE,
	">=": bytecode.GTE,
}

// collectFreeNames returns the identifier names read inside body that
// are not bound by params or by a `let` somewhere in body itself,
// stopping at (not descending into) a nested FunctionLiteral's own
// body — a closure nested two levels deep must capture its own
// immediate parent directly, not reach through this one.
func collectFreeNames(params []string, body []ast.Statement) []string {
	bound := make(map[string]bool)
	for _, p := range params {
		bound[p] = true
	}
	free := make(map[string]bool)
	var walkStmt func(ast.Statement)
	var walkExpr func(ast.Expression)

	walkExpr = func(e ast.Expression) {
		switch n := e.(type) {
		case *ast.Identifier:
			if !bound[n.Name] {
				free[n.Name] = true
			}
		case *ast.ArrayLiteral:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.VectorLiteral:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ast.DictLiteral:
			for _, entry := range n.Entries {
				walkExpr(entry.Key)
				walkExpr(entry.Value)
			}
		case *ast.PrefixExpression:
			walkExpr(n.Operand)
		case *ast.InfixExpression:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.IndexExpression:
			walkExpr(n.Collection)
			walkExpr(n.Index)
		case *ast.CallExpression:
			walkExpr(n.Callee)
			for _, a := range n.Arguments {
				walkExpr(a)
			}
		case *ast.FunctionLiteral:
			// A doubly-nested function's own free variables are its
			// concern, not this scope's; only names it shares with us
			// through its own unresolved references matter, and those
			// surface as Identifiers only if it itself fails to bind
			// them — not modeled here (see package doc: one level of
			// capture is supported).
		}
	}

	walkStmt = func(s ast.Statement) {
		switch n := s.(type) {
		case *ast.LetStatement:
			walkExpr(n.Value)
			bound[n.Name] = true
		case *ast.AssignStatement:
			if id, ok := n.Target.(*ast.Identifier); ok && !bound[id.Name] {
				free[id.Name] = true
			}
			if idx, ok := n.Target.(*ast.IndexExpression); ok {
				walkExpr(idx)
			}
			walkExpr(n.Value)
		case *ast.ExpressionStatement:
			walkExpr(n.Expression)
		case *ast.ReturnStatement:
			if n.Value != nil {
				walkExpr(n.Value)
			}
		case *ast.IfStatement:
			walkExpr(n.Condition)
			for _, s := range n.Consequence {
				walkStmt(s)
			}
			for _, s := range n.Alternative {
				walkStmt(s)
			}
		case *ast.WhileStatement:
			walkExpr(n.Condition)
			for _, s := range n.Body {
				walkStmt(s)
			}
		}
	}

	for _, s := range body {
		walkStmt(s)
	}

	names := make([]string, 0, len(free))
	for n := range free {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// countLocals returns how many `let` bindings occur in body, at any
// nesting depth that does not cross into a nested FunctionLiteral —
// the count a function's FRM must reserve beyond its parameters.
func countLocals(body []ast.Statement) int {
	n := 0
	var walk func(ast.Statement)
	walk = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.LetStatement:
			n++
		case *ast.IfStatement:
			for _, s := range st.Consequence {
				walk(s)
			}
			for _, s := range st.Alternative {
				walk(s)
			}
		case *ast.WhileStatement:
			for _, s := range st.Body {
				walk(s)
			}
		}
	}
	for _, s := range body {
		walk(s)
	}
	return n
}

// compileFunctionLiteral compiles a function literal to a spliced-in
// bytecode body (jumped around in the enclosing instruction stream)
// and pushes either a plain Function value (no captures) or a Closure
// built by CLO (captures present).
func (c *Compiler) compileFunctionLiteral(lit *ast.FunctionLiteral) error {
	var captures []string
	if c.inFunction() {
		parent := c.currentScope()
		for _, name := range collectFreeNames(lit.Params, lit.Body) {
			if _, ok := parent.locals[name]; ok {
				captures = append(captures, name)
			}
		}
	}

	for _, name := range captures {
		parent := c.currentScope()
		if parent.promoted[name] {
			continue
		}
		slot := parent.locals[name]
		c.prog.Emit(bytecode.PSH, slot)
		c.prog.Emit(bytecode.PRO, 0)
		c.prog.Emit(bytecode.STR, slot)
		c.prog.Emit(bytecode.POP, 0)
		parent.promoted[name] = true
	}

	jumpOverBody := c.emitJump(bytecode.JMP)
	bodyStart := len(c.prog.Code)

	child := newScope()
	for i, p := range lit.Params {
		child.locals[p] = i
	}
	child.nextLocal = len(lit.Params)
	for i, name := range captures {
		child.upvalues[name] = i
	}
	c.scopes = append(c.scopes, child)

	extra := countLocals(lit.Body)
	if extra > 0 {
		frmFam := bytecode.FrmFamily()
		c.prog.Emit(frmFam.NarrowestFor(extra), extra)
	}
	for _, stmt := range lit.Body {
		if err := c.compileStatement(stmt); err != nil {
			c.scopes = c.scopes[:len(c.scopes)-1]
			return err
		}
	}
	c.prog.Emit(bytecode.VID, 0)
	c.prog.Emit(bytecode.RET, 0)

	c.scopes = c.scopes[:len(c.scopes)-1]
	bodyEnd := len(c.prog.Code)
	c.patchJump(jumpOverBody)

	if len(captures) > 0 {
		parent := c.currentScope()
		for _, name := range captures {
			c.prog.Emit(bytecode.PSH, parent.locals[name])
		}
	}

	fn := value.NewFunction(lit.Name, bodyStart, bodyEnd-bodyStart, len(lit.Params)+extra, len(captures))
	c.emitVal(c.prog.AddConstant(value.Obj(fn)))

	if len(captures) > 0 {
		c.prog.Emit(bytecode.CLO, 0)
	}
	return nil
}
