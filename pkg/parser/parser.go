// Package parser implements the silk language parser.
//
// The parser converts a stream of tokens (from the lexer) into an
// Abstract Syntax Tree. It is a recursive-descent, Pratt-style parser:
// each expression-parsing function is registered against a token type
// as either a prefix or infix handler, and precedence climbing decides
// how deeply to recurse before returning control to the caller.
//
// Token management: the parser keeps curTok and peekTok, a one-token
// lookahead window, advanced together by nextToken.
//
// Error handling: syntax errors are accumulated in errors rather than
// aborting the parse, so a single pass can report more than one
// mistake.
package parser

import (
	"fmt"
	"strconv"

	"github.com/silklang/moth/pkg/ast"
	"github.com/silklang/moth/pkg/lexer"
)

// Operator precedence levels, lowest to highest.
const (
	_ int = iota
	precLowest
	precOr
	precAnd
	precEquality
	precComparison
	precAdditive
	precMultiplicative
	precPrefix
	precCall
	precIndex
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenPipePipe:   precOr,
	lexer.TokenAmpAmp:     precAnd,
	lexer.TokenEqual:      precEquality,
	lexer.TokenNotEqual:   precEquality,
	lexer.TokenLess:       precComparison,
	lexer.TokenGreater:    precComparison,
	lexer.TokenLessEq:     precComparison,
	lexer.TokenGreaterEq:  precComparison,
	lexer.TokenPlus:       precAdditive,
	lexer.TokenMinus:      precAdditive,
	lexer.TokenStar:       precMultiplicative,
	lexer.TokenSlash:      precMultiplicative,
	lexer.TokenSlash2:     precMultiplicative,
	lexer.TokenPercent:    precMultiplicative,
	lexer.TokenCaret:      precMultiplicative,
	lexer.TokenLParen:     precCall,
	lexer.TokenLBracket:   precIndex,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a single-use recursive-descent parser for one source
// input.
type Parser struct {
	l       *lexer.Lexer
	curTok  lexer.Token
	peekTok lexer.Token
	errors  []string

	prefixFns map[lexer.TokenType]prefixParseFn
	infixFns  map[lexer.TokenType]infixParseFn
}

// New creates a parser over src, primed with the first two tokens.
func New(src string) *Parser {
	p := &Parser{l: lexer.New(src)}
	p.nextToken()
	p.nextToken()

	p.prefixFns = map[lexer.TokenType]prefixParseFn{
		lexer.TokenIdentifier: p.parseIdentifier,
		lexer.TokenInteger:    p.parseIntLiteral,
		lexer.TokenReal:       p.parseRealLiteral,
		lexer.TokenString:     p.parseStringLiteral,
		lexer.TokenChar:       p.parseCharLiteral,
		lexer.TokenTrue:       p.parseBoolLiteral,
		lexer.TokenFalse:      p.parseBoolLiteral,
		lexer.TokenVoid:       func() ast.Expression { return &ast.VoidLiteral{} },
		lexer.TokenPi:         func() ast.Expression { return &ast.PiLiteral{} },
		lexer.TokenTau:        func() ast.Expression { return &ast.TauLiteral{} },
		lexer.TokenEul:        func() ast.Expression { return &ast.EulLiteral{} },
		lexer.TokenMinus:      p.parsePrefixExpression,
		lexer.TokenBang:       p.parsePrefixExpression,
		lexer.TokenLParen:     p.parseGroupedExpression,
		lexer.TokenLBracket:   p.parseArrayLiteral,
		lexer.TokenLBrace:     p.parseDictLiteral,
		lexer.TokenLess:       p.parseVectorLiteral,
		lexer.TokenFn:         p.parseFunctionLiteral,
	}
	p.infixFns = map[lexer.TokenType]infixParseFn{
		lexer.TokenPlus:      p.parseInfixExpression,
		lexer.TokenMinus:     p.parseInfixExpression,
		lexer.TokenStar:      p.parseInfixExpression,
		lexer.TokenSlash:     p.parseInfixExpression,
		lexer.TokenSlash2:    p.parseInfixExpression,
		lexer.TokenPercent:   p.parseInfixExpression,
		lexer.TokenCaret:     p.parseInfixExpression,
		lexer.TokenEqual:     p.parseInfixExpression,
		lexer.TokenNotEqual:  p.parseInfixExpression,
		lexer.TokenLess:      p.parseInfixExpression,
		lexer.TokenGreater:   p.parseInfixExpression,
		lexer.TokenLessEq:    p.parseInfixExpression,
		lexer.TokenGreaterEq: p.parseInfixExpression,
		lexer.TokenAmpAmp:    p.parseInfixExpression,
		lexer.TokenPipePipe:  p.parseInfixExpression,
		lexer.TokenLParen:    p.parseCallExpression,
		lexer.TokenLBracket:  p.parseIndexExpression,
	}
	return p
}

// Errors returns the accumulated parse errors, if any.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.curTok.Line, fmt.Sprintf(format, args...)))
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) curIs(t lexer.TokenType) bool  { return p.curTok.Type == t }
func (p *Parser) peekIs(t lexer.TokenType) bool { return p.peekTok.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected next token to be %s, got %s", t, p.peekTok.Type)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekTok.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curTok.Type]; ok {
		return pr
	}
	return precLowest
}

// ParseProgram parses the whole input into a Program node. Check
// Errors() afterward; a non-empty slice means the tree is incomplete.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.nextToken()
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Type {
	case lexer.TokenLet:
		return p.parseLetStatement()
	case lexer.TokenReturn:
		return p.parseReturnStatement()
	case lexer.TokenIf:
		return p.parseIfStatement()
	case lexer.TokenWhile:
		return p.parseWhileStatement()
	case lexer.TokenGC:
		p.skipSemi()
		return &ast.GCStatement{}
	case lexer.TokenDll:
		return p.parseDllStatement()
	case lexer.TokenSemi:
		return nil
	default:
		return p.parseExpressionOrAssignStatement()
	}
}

// skipSemi consumes a trailing ';' if present, leaving curTok on it
// (the caller's ParseProgram loop advances past it).
func (p *Parser) skipSemi() {
	if p.peekIs(lexer.TokenSemi) {
		p.nextToken()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	if !p.expectPeek(lexer.TokenAssign) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(precLowest)
	p.skipSemi()
	return &ast.LetStatement{Name: name, Value: value}
}

func (p *Parser) parseReturnStatement() ast.Statement {
	if p.peekIs(lexer.TokenSemi) || p.peekIs(lexer.TokenRBrace) {
		return &ast.ReturnStatement{}
	}
	p.nextToken()
	value := p.parseExpression(precLowest)
	p.skipSemi()
	return &ast.ReturnStatement{Value: value}
}

func (p *Parser) parseIfStatement() ast.Statement {
	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(precLowest)
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	cons := p.parseBlock()
	stmt := &ast.IfStatement{Condition: cond, Consequence: cons}
	if p.peekIs(lexer.TokenElse) {
		p.nextToken()
		if !p.expectPeek(lexer.TokenLBrace) {
			return stmt
		}
		stmt.Alternative = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(precLowest)
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	body := p.parseBlock()
	return &ast.WhileStatement{Condition: cond, Body: body}
}

// parseBlock parses statements until a matching '}'; curTok is '{' on
// entry and '}' on return.
func (p *Parser) parseBlock() []ast.Statement {
	var stmts []ast.Statement
	p.nextToken()
	for !p.curIs(lexer.TokenRBrace) && !p.curIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.nextToken()
	}
	return stmts
}

func (p *Parser) parseDllStatement() ast.Statement {
	if !p.expectPeek(lexer.TokenString) {
		return nil
	}
	path := p.curTok.Literal
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	var bindings []ast.DllBinding
	p.nextToken()
	for !p.curIs(lexer.TokenRBrace) && !p.curIs(lexer.TokenEOF) {
		if !p.curIs(lexer.TokenIdentifier) {
			p.errorf("expected a binding name in dll block, got %s", p.curTok.Type)
			return nil
		}
		name := p.curTok.Literal
		if !p.expectPeek(lexer.TokenAssign) {
			return nil
		}
		if !p.expectPeek(lexer.TokenString) {
			return nil
		}
		bindings = append(bindings, ast.DllBinding{Name: name, Symbol: p.curTok.Literal})
		p.nextToken()
		if p.curIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	p.skipSemi()
	return &ast.DllStatement{Path: path, Bindings: bindings}
}

// parseExpressionOrAssignStatement handles both plain expression
// statements and `target = value;` / `target[i] = value;` assignment,
// which share a prefix (an expression) the parser must commit to
// before knowing which shape it is in.
func (p *Parser) parseExpressionOrAssignStatement() ast.Statement {
	expr := p.parseExpression(precLowest)
	if p.peekIs(lexer.TokenAssign) {
		switch expr.(type) {
		case *ast.Identifier, *ast.IndexExpression:
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(precLowest)
			p.skipSemi()
			return &ast.AssignStatement{Target: expr, Value: value}
		default:
			p.errorf("invalid assignment target")
		}
	}
	p.skipSemi()
	return &ast.ExpressionStatement{Expression: expr}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixFns[p.curTok.Type]
	if prefix == nil {
		p.errorf("no prefix parse function for %s", p.curTok.Type)
		return nil
	}
	left := prefix()

	for !p.peekIs(lexer.TokenSemi) && precedence < p.peekPrecedence() {
		infix := p.infixFns[p.peekTok.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Name: p.curTok.Literal}
}

func (p *Parser) parseIntLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.curTok.Literal, 10, 64)
	if err != nil {
		p.errorf("could not parse %q as an integer", p.curTok.Literal)
		return nil
	}
	return &ast.IntLiteral{Value: v}
}

func (p *Parser) parseRealLiteral() ast.Expression {
	v, err := strconv.ParseFloat(p.curTok.Literal, 64)
	if err != nil {
		p.errorf("could not parse %q as a real", p.curTok.Literal)
		return nil
	}
	return &ast.RealLiteral{Value: v}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Value: p.curTok.Literal}
}

func (p *Parser) parseCharLiteral() ast.Expression {
	r := rune(0)
	for _, c := range p.curTok.Literal {
		r = c
		break
	}
	return &ast.CharLiteral{Value: r}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Value: p.curIs(lexer.TokenTrue)}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	op := p.curTok.Literal
	p.nextToken()
	operand := p.parseExpression(precPrefix)
	return &ast.PrefixExpression{Operator: op, Operand: operand}
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Operator: p.curTok.Literal, Left: left}
	prec := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(prec)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(precLowest)
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	return expr
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	lit := &ast.ArrayLiteral{}
	lit.Elements = p.parseExpressionList(lexer.TokenRBracket)
	return lit
}

func (p *Parser) parseVectorLiteral() ast.Expression {
	lit := &ast.VectorLiteral{}
	if p.peekIs(lexer.TokenGreater) {
		p.nextToken()
		return lit
	}
	// Elements are parsed above comparison precedence so the closing '>'
	// ends the literal instead of being read as a comparison operator.
	p.nextToken()
	lit.Elements = append(lit.Elements, p.parseExpression(precComparison))
	for p.peekIs(lexer.TokenComma) {
		p.nextToken()
		p.nextToken()
		lit.Elements = append(lit.Elements, p.parseExpression(precComparison))
	}
	if !p.expectPeek(lexer.TokenGreater) {
		return nil
	}
	return lit
}

func (p *Parser) parseDictLiteral() ast.Expression {
	lit := &ast.DictLiteral{}
	for !p.peekIs(lexer.TokenRBrace) {
		p.nextToken()
		key := p.parseExpression(precLowest)
		if !p.expectPeek(lexer.TokenColon) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(precLowest)
		lit.Entries = append(lit.Entries, ast.DictEntry{Key: key, Value: value})
		if p.peekIs(lexer.TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	if !p.expectPeek(lexer.TokenRBrace) {
		return nil
	}
	return lit
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{}
	if p.peekIs(lexer.TokenIdentifier) {
		p.nextToken()
		lit.Name = p.curTok.Literal
	}
	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}
	lit.Params = p.parseParamList()
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	lit.Body = p.parseBlock()
	return lit
}

func (p *Parser) parseParamList() []string {
	var params []string
	if p.peekIs(lexer.TokenRParen) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, p.curTok.Literal)
	for p.peekIs(lexer.TokenComma) {
		p.nextToken()
		p.nextToken()
		params = append(params, p.curTok.Literal)
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	return params
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	return &ast.CallExpression{Callee: callee, Arguments: p.parseExpressionList(lexer.TokenRParen)}
}

func (p *Parser) parseIndexExpression(coll ast.Expression) ast.Expression {
	p.nextToken()
	idx := p.parseExpression(precLowest)
	if !p.expectPeek(lexer.TokenRBracket) {
		return nil
	}
	return &ast.IndexExpression{Collection: coll, Index: idx}
}

// parseExpressionList parses a comma-separated list up to (and
// consuming) end; curTok is left on end.
func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	var list []ast.Expression
	if p.peekIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(precLowest))
	for p.peekIs(lexer.TokenComma) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(precLowest))
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}
