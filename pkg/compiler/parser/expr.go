package parser

import (
	"math"
	"strings"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// precedence returns the binding strength of a binary operator, 0 for
// anything else.
func precedence(k lexer.Kind) int {
	switch k {
	case lexer.KindOr:
		return 1
	case lexer.KindAnd:
		return 2
	case lexer.KindBitOr:
		return 3
	case lexer.KindXor:
		return 4
	case lexer.KindBitAnd:
		return 5
	case lexer.KindEq, lexer.KindNeq:
		return 6
	case lexer.KindLt, lexer.KindGt, lexer.KindLeq, lexer.KindGeq:
		return 7
	case lexer.KindShl, lexer.KindShr:
		return 8
	case lexer.KindPlus, lexer.KindMinus:
		return 9
	case lexer.KindStar, lexer.KindSlash, lexer.KindRem:
		return 10
	}
	return 0
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	x := p.parseUnary()
	for {
		prec := precedence(p.curTok.Kind)
		if prec == 0 || prec < minPrec {
			return x
		}
		opTok := p.curTok
		p.nextToken()
		y := p.parseBinary(prec + 1)
		x = binary(opTok, x, y)
	}
}

func binary(opTok lexer.Token, x, y ast.Expr) ast.Expr {
	b := &ast.Binary{Token: opTok, Op: opTok.Kind, X: x, Y: y}
	switch opTok.Kind {
	case lexer.KindOr, lexer.KindAnd,
		lexer.KindEq, lexer.KindNeq, lexer.KindLt, lexer.KindGt, lexer.KindLeq, lexer.KindGeq:
		b.Typ = types.IntType
	case lexer.KindPlus, lexer.KindMinus:
		if elem, ok := types.Elem(x.Type()); ok {
			b.Typ = &types.Pointer{Elem: elem}
		} else {
			b.Typ = types.Common(x.Type(), y.Type())
		}
	case lexer.KindShl, lexer.KindShr:
		b.Typ = types.Promote(x.Type())
	default:
		b.Typ = types.Common(x.Type(), y.Type())
	}
	return b
}

func (p *Parser) parseUnary() ast.Expr {
	opTok := p.curTok
	switch opTok.Kind {
	case lexer.KindMinus, lexer.KindTilde:
		p.nextToken()
		x := p.parseUnary()
		return &ast.Unary{Token: opTok, Op: opTok.Kind, X: x, Typ: types.Promote(x.Type())}
	case lexer.KindNot:
		p.nextToken()
		x := p.parseUnary()
		return &ast.Unary{Token: opTok, Op: opTok.Kind, X: x, Typ: types.IntType}
	case lexer.KindPlus:
		p.nextToken()
		return p.parseUnary()
	case lexer.KindStar:
		p.nextToken()
		x := p.parseUnary()
		elem, ok := types.Elem(x.Type())
		if !ok {
			p.errorf(opTok, diag.NotAPointer, x.Type())
			return x
		}
		if types.IsVoid(elem) {
			p.errorf(opTok, diag.IncompleteType, elem)
			return x
		}
		zero := &ast.NumberLiteral{Token: opTok, Typ: types.IntType}
		return &ast.Index{Token: opTok, X: x, Index: zero, Typ: elem}
	case lexer.KindBitAnd:
		p.nextToken()
		x := p.parseUnary()
		if !addressable(x) {
			p.errorf(opTok, diag.NoAddress, x.Type())
			return x
		}
		return &ast.AddressOf{Token: opTok, X: x, Typ: &types.Pointer{Elem: x.Type()}}
	}
	return p.parsePostfix(p.parsePrimary())
}

// addressable reports whether x denotes a location inside a Record.
func addressable(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Index, *ast.Member:
		return true
	case *ast.Identifier:
		switch x.Type().(type) {
		case *types.Array, *types.Struct:
			return true
		}
	}
	return false
}

func (p *Parser) parsePostfix(x ast.Expr) ast.Expr {
	for {
		tok := p.curTok
		switch tok.Kind {
		case lexer.KindLBrack:
			p.nextToken()
			idx := p.parseExpr()
			p.expect(lexer.KindRBrack)
			elem, ok := types.Elem(x.Type())
			if !ok {
				p.errorf(tok, diag.NotAnArray, x.Type())
				continue
			}
			if types.IsVoid(elem) {
				p.errorf(tok, diag.IncompleteType, elem)
				continue
			}
			x = &ast.Index{Token: tok, X: x, Index: idx, Typ: elem}
		case lexer.KindPeriod, lexer.KindArrow:
			p.nextToken()
			nameTok := p.curTok
			if !p.expect(lexer.KindIdentifier) {
				return x
			}
			x = p.member(tok, x, nameTok)
		default:
			return x
		}
	}
}

func (p *Parser) member(tok lexer.Token, x ast.Expr, nameTok lexer.Token) ast.Expr {
	arrow := tok.Kind == lexer.KindArrow
	t := x.Type()
	if arrow {
		ptr, ok := t.(*types.Pointer)
		if !ok {
			p.errorf(tok, diag.NotAPointer, t)
			return x
		}
		t = ptr.Elem
	}
	s, ok := t.(*types.Struct)
	if !ok {
		p.errorf(tok, diag.NotAStruct, t)
		return x
	}
	if !s.Complete() {
		p.errorf(tok, diag.IncompleteType, s.Decl(""))
		return x
	}
	m, ok := s.Member(nameTok.Str)
	if !ok {
		p.errorf(nameTok, diag.UnknownMember, nameTok.Str)
		return x
	}
	return &ast.Member{Token: tok, X: x, Arrow: arrow, Member: m}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.curTok
	switch tok.Kind {
	case lexer.KindNumber:
		p.nextToken()
		return &ast.NumberLiteral{Token: tok, Value: tok.Val, Typ: literalType(tok.Val)}
	case lexer.KindCharConst:
		p.nextToken()
		return &ast.NumberLiteral{Token: tok, Value: tok.Val, Typ: types.IntType}
	case lexer.KindTrue, lexer.KindFalse:
		p.nextToken()
		lit := &ast.NumberLiteral{Token: tok, Typ: types.IntType}
		if tok.Kind == lexer.KindTrue {
			lit.Value = 1
		}
		return lit
	case lexer.KindStringConst:
		var b strings.Builder
		for p.curTok.Kind == lexer.KindStringConst {
			b.WriteString(p.curTok.Str)
			p.nextToken()
		}
		return &ast.StringLiteral{Token: tok, Value: b.String()}
	case lexer.KindLParen:
		p.nextToken()
		if p.isTypeStart() {
			return p.parseCast(tok)
		}
		x := p.parseExpr()
		p.expect(lexer.KindRParen)
		return x
	case lexer.KindIdentifier:
		if p.peekTok.Kind == lexer.KindLParen {
			return p.parseCall()
		}
		p.nextToken()
		if v, ok := p.syms.LookupVar(tok.Str); ok {
			return &ast.Identifier{Token: tok, Var: v}
		}
		if c, ok := p.syms.Constant(tok.Str); ok {
			return &ast.NumberLiteral{Token: tok, Value: c, Typ: literalType(c)}
		}
		p.unknown(tok)
		return &ast.NumberLiteral{Token: tok, Typ: types.IntType}
	}

	p.errorf(tok, diag.Factor)
	switch tok.Kind {
	case lexer.KindSemicolon, lexer.KindRParen, lexer.KindRBrack, lexer.KindRBrace, lexer.KindEOF:
	default:
		p.nextToken()
	}
	return &ast.NumberLiteral{Token: tok, Typ: types.IntType}
}

func literalType(v uint64) types.Type {
	switch {
	case v <= math.MaxInt32:
		return types.IntType
	case v <= math.MaxInt64:
		return types.LongType
	}
	return types.ULongType
}

// parseCast reads `type ) unary` after the opening parenthesis.
func (p *Parser) parseCast(tok lexer.Token) ast.Expr {
	t := p.parseType()
	p.expect(lexer.KindRParen)
	x := p.parseUnary()
	if t == nil {
		return x
	}
	if !types.IsScalar(t) {
		if _, ok := t.(*types.Pointer); !ok {
			p.errorf(tok, diag.NotImplemented, "cast to "+t.String())
			return x
		}
	}
	return &ast.Cast{Token: tok, X: x, Typ: t}
}

func (p *Parser) parseCall() ast.Expr {
	nameTok := p.curTok
	p.nextToken() // name
	p.nextToken() // (

	var args []ast.Expr
	for p.curTok.Kind != lexer.KindRParen && p.curTok.Kind != lexer.KindEOF {
		args = append(args, p.parseExpr())
		if p.curTok.Kind != lexer.KindComma {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.KindRParen)

	fn, ok := p.syms.Function(nameTok.Str)
	if !ok {
		p.unknown(nameTok)
		return &ast.NumberLiteral{Token: nameTok, Typ: types.IntType}
	}
	return &ast.Call{Token: nameTok, Fn: fn, Args: args}
}
