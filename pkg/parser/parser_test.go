package parser

import (
	"testing"

	"github.com/silklang/moth/pkg/ast"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(src)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	return prog
}

func TestParseLetAndReturn(t *testing.T) {
	prog := parseProgram(t, `let x = 1 + 2; return x;`)
	if len(prog.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(prog.Statements))
	}
	let, ok := prog.Statements[0].(*ast.LetStatement)
	if !ok || let.Name != "x" {
		t.Fatalf("statement 0 = %#v, want LetStatement{Name: x}", prog.Statements[0])
	}
	infix, ok := let.Value.(*ast.InfixExpression)
	if !ok || infix.Operator != "+" {
		t.Fatalf("let value = %#v, want InfixExpression{+}", let.Value)
	}
	ret, ok := prog.Statements[1].(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("statement 1 = %#v, want ReturnStatement", prog.Statements[1])
	}
	if id, ok := ret.Value.(*ast.Identifier); !ok || id.Name != "x" {
		t.Fatalf("return value = %#v, want Identifier(x)", ret.Value)
	}
}

func TestParseFunctionLiteralAndCall(t *testing.T) {
	prog := parseProgram(t, `let f = fn(a, b) { return a + b; }; f(1, 2);`)
	let := prog.Statements[0].(*ast.LetStatement)
	fn, ok := let.Value.(*ast.FunctionLiteral)
	if !ok {
		t.Fatalf("let value = %#v, want FunctionLiteral", let.Value)
	}
	if len(fn.Params) != 2 || fn.Params[0] != "a" || fn.Params[1] != "b" {
		t.Fatalf("params = %v", fn.Params)
	}
	exprStmt := prog.Statements[1].(*ast.ExpressionStatement)
	call, ok := exprStmt.Expression.(*ast.CallExpression)
	if !ok || len(call.Arguments) != 2 {
		t.Fatalf("expression = %#v, want a 2-arg call", exprStmt.Expression)
	}
}

func TestParseIfWhileAssignIndex(t *testing.T) {
	prog := parseProgram(t, `
let arr = [1, 2, 3];
while (arr[0] < 10) {
	arr[0] = arr[0] + 1;
}
if (arr[0] == 10) {
	arr[1] = 0;
} else {
	arr[2] = 0;
}
`)
	if len(prog.Statements) != 3 {
		t.Fatalf("got %d statements, want 3", len(prog.Statements))
	}
	wh, ok := prog.Statements[1].(*ast.WhileStatement)
	if !ok || len(wh.Body) != 1 {
		t.Fatalf("statement 1 = %#v, want WhileStatement with 1 body stmt", prog.Statements[1])
	}
	assign, ok := wh.Body[0].(*ast.AssignStatement)
	if !ok {
		t.Fatalf("while body = %#v, want AssignStatement", wh.Body[0])
	}
	if _, ok := assign.Target.(*ast.IndexExpression); !ok {
		t.Fatalf("assign target = %#v, want IndexExpression", assign.Target)
	}
	ifStmt, ok := prog.Statements[2].(*ast.IfStatement)
	if !ok || len(ifStmt.Consequence) != 1 || len(ifStmt.Alternative) != 1 {
		t.Fatalf("statement 2 = %#v, want IfStatement with both branches", prog.Statements[2])
	}
}

func TestParseVectorAndDictLiterals(t *testing.T) {
	prog := parseProgram(t, `let v = <1.0, 2.0, 3.0>; let d = {"a": 1, "b": 2};`)
	v := prog.Statements[0].(*ast.LetStatement).Value.(*ast.VectorLiteral)
	if len(v.Elements) != 3 {
		t.Fatalf("vector elements = %d, want 3", len(v.Elements))
	}
	d := prog.Statements[1].(*ast.LetStatement).Value.(*ast.DictLiteral)
	if len(d.Entries) != 2 {
		t.Fatalf("dict entries = %d, want 2", len(d.Entries))
	}
}

func TestParseDllStatement(t *testing.T) {
	prog := parseProgram(t, `dll "libm.so" { sqrt = "c_sqrt", pow = "c_pow" };`)
	stmt, ok := prog.Statements[0].(*ast.DllStatement)
	if !ok || stmt.Path != "libm.so" || len(stmt.Bindings) != 2 {
		t.Fatalf("statement = %#v", prog.Statements[0])
	}
}

func TestParseErrorsAreAccumulatedNotFatal(t *testing.T) {
	p := New(`let = ;`)
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatal("expected parse errors for malformed let statement")
	}
}
