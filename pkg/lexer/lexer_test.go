package lexer

import "testing"

func TestNextTokenCoversCommonKinds(t *testing.T) {
	input := `let x = 1 + 2.5 * "ab" // trailing comment
fn f(a, b) { if (a < b) { return a; } else { return b; } }
'c' dll gc while true false void pi tau eul != <= >= == && || !`

	tests := []struct {
		typ     TokenType
		literal string
	}{
		{TokenLet, "let"},
		{TokenIdentifier, "x"},
		{TokenAssign, "="},
		{TokenInteger, "1"},
		{TokenPlus, "+"},
		{TokenReal, "2.5"},
		{TokenStar, "*"},
		{TokenString, "ab"},
		{TokenFn, "fn"},
		{TokenIdentifier, "f"},
		{TokenLParen, "("},
		{TokenIdentifier, "a"},
		{TokenComma, ","},
		{TokenIdentifier, "b"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenIf, "if"},
		{TokenLParen, "("},
		{TokenIdentifier, "a"},
		{TokenLess, "<"},
		{TokenIdentifier, "b"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenReturn, "return"},
		{TokenIdentifier, "a"},
		{TokenSemi, ";"},
		{TokenRBrace, "}"},
		{TokenElse, "else"},
		{TokenLBrace, "{"},
		{TokenReturn, "return"},
		{TokenIdentifier, "b"},
		{TokenSemi, ";"},
		{TokenRBrace, "}"},
		{TokenRBrace, "}"},
		{TokenChar, "c"},
		{TokenDll, "dll"},
		{TokenGC, "gc"},
		{TokenWhile, "while"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenVoid, "void"},
		{TokenPi, "pi"},
		{TokenTau, "tau"},
		{TokenEul, "eul"},
		{TokenNotEqual, "!="},
		{TokenLessEq, "<="},
		{TokenGreaterEq, ">="},
		{TokenEqual, "=="},
		{TokenAmpAmp, "&&"},
		{TokenPipePipe, "||"},
		{TokenBang, "!"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		if tok.Type != want.typ || tok.Literal != want.literal {
			t.Fatalf("token %d: got %s(%q), want %s(%q)", i, tok.Type, tok.Literal, want.typ, want.literal)
		}
	}
}

func TestTokenizeReportsIllegalCharacter(t *testing.T) {
	l := New("let x = @;")
	_, err := l.Tokenize()
	if err == nil {
		t.Fatal("expected an error for an illegal character")
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(`"a\nb\tc\"d"`)
	tok := l.NextToken()
	if tok.Type != TokenString {
		t.Fatalf("type = %s, want STRING", tok.Type)
	}
	if tok.Literal != "a\nb\tc\"d" {
		t.Fatalf("literal = %q", tok.Literal)
	}
}
