package parser

import (
	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// parseBlock reads `{ statement* }` in a new scope.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.curTok}
	if !p.expect(lexer.KindLBrace) {
		return block
	}
	p.syms.Enter()
	defer p.syms.Leave()

	for p.curTok.Kind != lexer.KindRBrace && p.curTok.Kind != lexer.KindEOF {
		start := p.consumed
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.consumed == start {
			p.errorf(p.curTok, diag.Factor)
			p.nextToken()
		}
	}
	p.expect(lexer.KindRBrace)
	return block
}

// parseStatement returns nil for empty statements and for constructs that
// were rejected.
func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Kind {
	case lexer.KindLBrace:
		return p.parseBlock()
	case lexer.KindIf:
		return p.parseIf()
	case lexer.KindWhile:
		return p.parseWhile()
	case lexer.KindDo:
		return p.parseDoWhile()
	case lexer.KindFor:
		return p.parseFor()
	case lexer.KindReturn:
		return p.parseReturn()
	case lexer.KindBreak, lexer.KindContinue:
		return p.parseJump()
	case lexer.KindSemicolon:
		p.nextToken()
		return nil
	case lexer.KindSwitch:
		p.errorf(p.curTok, diag.NotImplemented, "switch")
		p.nextToken()
		p.skipBalanced(lexer.KindLParen, lexer.KindRParen)
		p.skipBalanced(lexer.KindLBrace, lexer.KindRBrace)
		return nil
	case lexer.KindTypedef:
		p.parseTypedef()
		return nil
	}

	if p.isTypeStart() {
		return p.parseLocalDecl()
	}
	if p.isUnknownTypeName() {
		p.errorf(p.curTok, diag.UnknownType, p.curTok.Str)
		p.nextToken()
		return p.parseDeclList(types.IntType)
	}
	stmt := p.parseSimple()
	p.expect(lexer.KindSemicolon)
	return stmt
}

func (p *Parser) parseLocalDecl() ast.Statement {
	tok := p.curTok
	t := p.parseType()
	if t == nil {
		p.skipTo(lexer.KindSemicolon)
		return nil
	}
	if p.curTok.Kind == lexer.KindSemicolon {
		if s, ok := t.(*types.Struct); ok && s.Name == "" {
			p.errorf(tok, diag.AnonymousStruct)
		}
		p.nextToken()
		return nil
	}
	return p.parseDeclList(t)
}

// parseDeclList collects the declarators of one declaration. A single
// declarator is returned as is.
func (p *Parser) parseDeclList(t types.Type) ast.Statement {
	var decls []ast.Statement
	p.parseDeclarators(t, func(d *ast.VarDecl) { decls = append(decls, d) })
	switch len(decls) {
	case 0:
		return nil
	case 1:
		return decls[0]
	}
	return &ast.Block{Token: decls[0].Pos(), Stmts: decls}
}

// parseSimple reads an expression statement or an assignment, without the
// trailing semicolon.
func (p *Parser) parseSimple() ast.Statement {
	if p.curTok.Kind == lexer.KindInc || p.curTok.Kind == lexer.KindDec {
		opTok := p.curTok
		p.nextToken()
		target := p.parseUnary()
		return p.incDec(opTok, target)
	}

	x := p.parseExpr()
	switch p.curTok.Kind {
	case lexer.KindAssign, lexer.KindPlusAs, lexer.KindMinusAs,
		lexer.KindStarAs, lexer.KindSlashAs, lexer.KindRemAs:
		opTok := p.curTok
		p.nextToken()
		y := p.parseExpr()
		p.checkAssignable(opTok, x)
		return &ast.Assign{Token: opTok, Op: opTok.Kind, Target: x, Value: y}
	case lexer.KindInc, lexer.KindDec:
		opTok := p.curTok
		p.nextToken()
		return p.incDec(opTok, x)
	}
	return &ast.ExprStmt{X: x}
}

func (p *Parser) incDec(opTok lexer.Token, target ast.Expr) ast.Statement {
	p.checkAssignable(opTok, target)
	op := lexer.KindPlusAs
	if opTok.Kind == lexer.KindDec {
		op = lexer.KindMinusAs
	}
	one := &ast.NumberLiteral{Token: opTok, Value: 1, Typ: types.IntType}
	return &ast.Assign{Token: opTok, Op: op, Target: target, Value: one}
}

// checkAssignable accepts scalar and pointer locations.
func (p *Parser) checkAssignable(tok lexer.Token, x ast.Expr) {
	switch x.(type) {
	case *ast.Identifier, *ast.Index, *ast.Member:
	default:
		p.errorf(tok, diag.NotAssignable)
		return
	}
	switch x.Type().(type) {
	case *types.Array, *types.Struct:
		p.errorf(tok, diag.NotAssignable)
	}
	if types.IsVoid(x.Type()) {
		p.errorf(tok, diag.NotAssignable)
	}
}

func (p *Parser) parseCond() ast.Expr {
	p.expect(lexer.KindLParen)
	cond := p.parseExpr()
	p.expect(lexer.KindRParen)
	return cond
}

// parseBody parses a statement and substitutes an empty block for nil, so
// control statements always have a body.
func (p *Parser) parseBody() ast.Statement {
	tok := p.curTok
	if s := p.parseStatement(); s != nil {
		return s
	}
	return &ast.Block{Token: tok}
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.If{Token: p.curTok}
	p.nextToken()
	stmt.Cond = p.parseCond()
	stmt.Then = p.parseBody()
	if p.curTok.Kind == lexer.KindElse {
		p.nextToken()
		stmt.Else = p.parseBody()
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.While{Token: p.curTok}
	p.nextToken()
	stmt.Cond = p.parseCond()
	p.loops++
	stmt.Body = p.parseBody()
	p.loops--
	return stmt
}

func (p *Parser) parseDoWhile() ast.Statement {
	stmt := &ast.DoWhile{Token: p.curTok}
	p.nextToken()
	p.loops++
	stmt.Body = p.parseBody()
	p.loops--
	if p.expect(lexer.KindWhile) {
		stmt.Cond = p.parseCond()
	}
	p.expect(lexer.KindSemicolon)
	if stmt.Cond == nil {
		stmt.Cond = &ast.NumberLiteral{Token: stmt.Token, Typ: types.IntType}
	}
	return stmt
}

func (p *Parser) parseFor() ast.Statement {
	stmt := &ast.For{Token: p.curTok}
	p.nextToken()
	p.expect(lexer.KindLParen)

	p.syms.Enter()
	defer p.syms.Leave()

	switch {
	case p.curTok.Kind == lexer.KindSemicolon:
		p.nextToken()
	case p.isTypeStart():
		stmt.Init = p.parseLocalDecl()
	default:
		stmt.Init = p.parseSimple()
		p.expect(lexer.KindSemicolon)
	}
	if p.curTok.Kind != lexer.KindSemicolon {
		stmt.Cond = p.parseExpr()
	}
	p.expect(lexer.KindSemicolon)
	if p.curTok.Kind != lexer.KindRParen {
		stmt.Post = p.parseSimple()
	}
	p.expect(lexer.KindRParen)

	p.loops++
	stmt.Body = p.parseBody()
	p.loops--
	return stmt
}

func (p *Parser) parseReturn() ast.Statement {
	stmt := &ast.Return{Token: p.curTok}
	p.nextToken()
	if p.curTok.Kind != lexer.KindSemicolon {
		stmt.Value = p.parseExpr()
	}
	p.expect(lexer.KindSemicolon)
	return stmt
}

func (p *Parser) parseJump() ast.Statement {
	tok := p.curTok
	p.nextToken()
	p.expect(lexer.KindSemicolon)
	if p.loops == 0 {
		p.errorf(tok, diag.OutsideLoop, tok.Kind.String())
		return nil
	}
	if tok.Kind == lexer.KindBreak {
		return &ast.Break{Token: tok}
	}
	return &ast.Continue{Token: tok}
}
