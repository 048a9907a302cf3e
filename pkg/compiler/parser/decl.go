package parser

import (
	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// isTypeName reports whether tok names a typedef that is not shadowed by
// a variable.
func (p *Parser) isTypeName(tok lexer.Token) bool {
	if tok.Kind != lexer.KindIdentifier {
		return false
	}
	if _, ok := p.syms.LookupVar(tok.Str); ok {
		return false
	}
	_, ok := p.prog.Types.Lookup(tok.Str)
	return ok
}

func (p *Parser) isTypeStart() bool {
	switch p.curTok.Kind {
	case lexer.KindConst, lexer.KindStruct, lexer.KindUnion,
		lexer.KindSigned, lexer.KindUnsigned,
		lexer.KindChar, lexer.KindShort, lexer.KindInt, lexer.KindLong, lexer.KindVoid:
		return true
	}
	return p.isTypeName(p.curTok)
}

// isUnknownTypeName catches `foo x` where foo names nothing: two adjacent
// identifiers can only be a declaration.
func (p *Parser) isUnknownTypeName() bool {
	if p.curTok.Kind != lexer.KindIdentifier || p.peekTok.Kind != lexer.KindIdentifier {
		return false
	}
	_, isVar := p.syms.LookupVar(p.curTok.Str)
	return !isVar && !p.isTypeName(p.curTok)
}

// parseType reads a type without declarator. It returns nil after
// reporting a diagnostic.
func (p *Parser) parseType() types.Type {
	isConst := false
	for p.curTok.Kind == lexer.KindConst {
		isConst = true
		p.nextToken()
	}

	var t types.Type
	switch p.curTok.Kind {
	case lexer.KindStruct, lexer.KindUnion:
		t = p.parseStruct()
	case lexer.KindSigned, lexer.KindUnsigned,
		lexer.KindChar, lexer.KindShort, lexer.KindInt, lexer.KindLong, lexer.KindVoid:
		prim := p.parseBasic()
		if prim == nil {
			return nil
		}
		prim.Const = isConst
		t = prim
	case lexer.KindIdentifier:
		named, ok := p.prog.Types.Lookup(p.curTok.Str)
		if !ok {
			p.errorf(p.curTok, diag.UnknownType, p.curTok.Str)
			p.nextToken()
			return nil
		}
		p.nextToken()
		t = named
	default:
		p.errorf(p.curTok, diag.TypeExpected)
		return nil
	}

	for p.curTok.Kind == lexer.KindStar {
		t = &types.Pointer{Elem: t}
		p.nextToken()
	}
	return t
}

func (p *Parser) parseBasic() *types.Primitive {
	prim := &types.Primitive{Basic: types.Int}
	signTok := p.curTok
	hasSign := false
	switch p.curTok.Kind {
	case lexer.KindUnsigned:
		prim.Unsigned = true
		hasSign = true
		p.nextToken()
	case lexer.KindSigned:
		hasSign = true
		p.nextToken()
	}

	switch p.curTok.Kind {
	case lexer.KindChar:
		prim.Basic = types.Char
		p.nextToken()
	case lexer.KindShort:
		prim.Basic = types.Short
		p.nextToken()
		if p.curTok.Kind == lexer.KindInt {
			p.nextToken()
		}
	case lexer.KindLong:
		prim.Basic = types.Long
		p.nextToken()
		if p.curTok.Kind == lexer.KindLong {
			prim.Basic = types.LongLong
			p.nextToken()
		}
		if p.curTok.Kind == lexer.KindInt {
			p.nextToken()
		}
	case lexer.KindInt:
		p.nextToken()
	case lexer.KindVoid:
		if hasSign {
			p.errorf(signTok, diag.VoidWithSign)
		}
		prim.Basic = types.Void
		prim.Unsigned = false
		p.nextToken()
	default:
		if !hasSign {
			p.errorf(p.curTok, diag.TypeExpected)
			return nil
		}
	}
	return prim
}

// parseStruct reads a struct or union reference or definition. A reference
// to an unknown tag declares it forward; a later definition fills it in.
func (p *Parser) parseStruct() types.Type {
	union := p.curTok.Kind == lexer.KindUnion
	p.nextToken()

	nameTok := p.curTok
	name := ""
	if p.curTok.Kind == lexer.KindIdentifier {
		name = p.curTok.Str
		p.nextToken()
	}

	if p.curTok.Kind != lexer.KindLBrace {
		if name == "" {
			p.errorf(p.curTok, diag.TokenExpected, lexer.KindIdentifier.String())
			return types.NewStruct("", union)
		}
		if s, ok := p.prog.Types.Struct(name); ok {
			return s
		}
		s := types.NewStruct(name, union)
		p.prog.Types.DefineStruct(s)
		return s
	}

	def := types.NewStruct(name, union)
	p.nextToken() // {
	for p.curTok.Kind != lexer.KindRBrace && p.curTok.Kind != lexer.KindEOF {
		start := p.consumed
		p.parseMembers(def)
		if p.consumed == start {
			p.errorf(p.curTok, diag.TypeExpected)
			p.nextToken()
		}
	}
	p.expect(lexer.KindRBrace)

	if name == "" {
		return def
	}
	prev, ok := p.prog.Types.Struct(name)
	if !ok {
		p.prog.Types.DefineStruct(def)
		return def
	}
	if prev.Complete() {
		p.errorf(nameTok, diag.DuplicateType, name)
		return prev
	}
	if err := prev.Fill(def); err != nil {
		p.errorf(nameTok, diag.DuplicateType, name)
	}
	return prev
}

func (p *Parser) parseMembers(s *types.Struct) {
	base := p.parseType()
	if base == nil {
		return
	}
	for {
		tok := p.curTok
		if !p.expect(lexer.KindIdentifier) {
			p.skipTo(lexer.KindSemicolon)
			p.expect(lexer.KindSemicolon)
			return
		}
		t := p.parseDims(base)
		p.checkComplete(tok, t)
		if err := s.AddMember(tok.Str, t); err != nil {
			p.errorf(tok, diag.DuplicateMember, tok.Str)
		}
		if p.curTok.Kind != lexer.KindComma {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.KindSemicolon)
}

// parseDims wraps t in one array level per `[dim]`, innermost last, so
// `int m[3][4]` is an array of 3 arrays of 4 ints.
func (p *Parser) parseDims(t types.Type) types.Type {
	var (
		dims []int
		toks []lexer.Token
	)
	for p.curTok.Kind == lexer.KindLBrack {
		p.nextToken()
		toks = append(toks, p.curTok)
		dims = append(dims, p.parseDim())
		p.expect(lexer.KindRBrack)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i] > types.MaxSize/max(t.Size(), 1) {
			p.errorf(toks[i], diag.ArrayDimension)
			dims[i] = 1
		}
		t = &types.Array{Elem: t, Len: dims[i]}
	}
	return t
}

func (p *Parser) parseDim() int {
	tok := p.curTok
	var n uint64
	switch tok.Kind {
	case lexer.KindNumber:
		n = tok.Val
		p.nextToken()
	case lexer.KindIdentifier:
		v, ok := p.syms.Constant(tok.Str)
		if !ok {
			p.unknown(tok)
			p.nextToken()
			return 1
		}
		n = v
		p.nextToken()
	default:
		p.errorf(tok, diag.ArrayDimension)
		return 1
	}
	if n == 0 || n > 1<<31 {
		p.errorf(tok, diag.ArrayDimension)
		return 1
	}
	return int(n)
}
