// Package parser turns script source into a typed ast.Program in a single
// top-to-bottom pass. Problems are recorded in the scanner's diagnostics
// sink and parsing carries on, so one run reports as much as possible.
package parser

import (
	"errors"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/diag"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/symtab"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// errDistance is the number of tokens that must be consumed after a
// diagnostic before the next one is reported.
const errDistance = 3

type Parser struct {
	scanner *lexer.Scanner
	sink    *diag.Sink
	curTok  lexer.Token
	peekTok lexer.Token
	src     []byte

	syms *symtab.Table
	prog *ast.Program

	consumed int // tokens consumed so far
	lastErr  int // value of consumed at the last reported diagnostic
	loops    int // depth of enclosing loops
}

func NewParser(s *lexer.Scanner, src []byte) *Parser {
	tab := types.NewTable()
	p := &Parser{
		scanner: s,
		sink:    s.Sink(),
		src:     src,
		syms:    symtab.New(tab),
		prog:    ast.NewProgram(tab),
		lastErr: -errDistance,
	}
	// Read two tokens, so curTok and peekTok are both set
	p.nextToken()
	p.nextToken()
	p.consumed = 0
	return p
}

// Sink returns the diagnostics collected so far.
func (p *Parser) Sink() *diag.Sink { return p.sink }

// Types returns the type table the program is being built against.
func (p *Parser) Types() *types.Table { return p.prog.Types }

// DefineIntrinsics makes host functions callable from the script. It must
// be called before Parse.
func (p *Parser) DefineIntrinsics(fns []*ast.Function) error {
	for _, f := range fns {
		f.Native = true
		if _, err := p.syms.DeclareFunction(f, false); err != nil {
			return err
		}
	}
	return nil
}

// DefineConstant makes a named integer visible to the script. It must be
// called before Parse.
func (p *Parser) DefineConstant(name string, v uint64) error {
	return p.syms.DefineConstant(name, v)
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.scanner.Next()
	p.consumed++
}

// errorf records a diagnostic at tok unless another one was reported too
// recently.
func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	if p.consumed-p.lastErr < errDistance {
		return
	}
	p.lastErr = p.consumed
	p.sink.Errorf(int(tok.Line), int(tok.Col), int(tok.Offset), format, args...)
}

// expect consumes a token of kind k or reports it as missing.
func (p *Parser) expect(k lexer.Kind) bool {
	if p.curTok.Kind == k {
		p.nextToken()
		return true
	}
	p.errorf(p.curTok, diag.TokenExpected, k.String())
	return false
}

// unknown reports an unresolved name with the closest suggestion.
func (p *Parser) unknown(tok lexer.Token) {
	if s := p.syms.Suggest(tok.Str); s != "" && s != tok.Str {
		p.errorf(tok, diag.DidYouMean, tok.Str, s)
		return
	}
	p.errorf(tok, diag.UnknownSymbol, tok.Str)
}

// Parse reads the whole input. The program is returned even when
// diagnostics were recorded; the error then carries all of them and the
// program must not be run.
func (p *Parser) Parse() (*ast.Program, error) {
	for p.curTok.Kind != lexer.KindEOF {
		start := p.consumed
		p.parseTopLevel()
		if p.consumed == start {
			p.errorf(p.curTok, diag.DeclExpected)
			p.nextToken()
		}
	}
	return p.prog, p.sink.Err()
}

func (p *Parser) parseTopLevel() {
	switch {
	case p.curTok.Kind == lexer.KindSemicolon:
		p.nextToken()
	case p.curTok.Kind == lexer.KindTypedef:
		p.parseTypedef()
	case p.isTypeStart():
		p.parseDeclaration()
	case p.isUnknownTypeName():
		p.errorf(p.curTok, diag.UnknownType, p.curTok.Str)
		p.nextToken()
		p.parseDeclarators(types.IntType, p.declareGlobal)
	}
}

// parseDeclaration handles everything that starts with a type at the top
// level: struct declarations, global variables and functions.
func (p *Parser) parseDeclaration() {
	tok := p.curTok
	t := p.parseType()
	if t == nil {
		return
	}
	if p.curTok.Kind == lexer.KindSemicolon {
		if s, ok := t.(*types.Struct); ok && s.Name == "" {
			p.errorf(tok, diag.AnonymousStruct)
		}
		p.nextToken()
		return
	}
	if p.curTok.Kind == lexer.KindIdentifier && p.peekTok.Kind == lexer.KindLParen {
		p.parseFunction(t)
		return
	}
	p.parseDeclarators(t, p.declareGlobal)
}

func (p *Parser) declareGlobal(d *ast.VarDecl) {
	p.prog.Globals = append(p.prog.Globals, d)
}

func (p *Parser) parseTypedef() {
	p.nextToken() // skip typedef
	t := p.parseType()
	if t == nil {
		return
	}
	tok := p.curTok
	if !p.expect(lexer.KindIdentifier) {
		return
	}
	t = p.parseDims(t)
	if err := p.prog.Types.Define(tok.Str, t); err != nil {
		p.errorf(tok, diag.DuplicateType, tok.Str)
	}
	p.expect(lexer.KindSemicolon)
}

func (p *Parser) parseFunction(ret types.Type) {
	nameTok := p.curTok
	p.nextToken() // name
	p.nextToken() // (

	fn := &ast.Function{Token: nameTok, Name: nameTok.Str, Return: ret}
	fn.Params = p.parseParams()
	hasBody := p.curTok.Kind == lexer.KindLBrace

	prev, _ := p.syms.Function(fn.Name)
	canon, err := p.syms.DeclareFunction(fn, hasBody)
	switch {
	case errors.Is(err, symtab.ErrArgumentMismatch):
		p.errorf(nameTok, diag.ArgumentMismatch, fn.Name, len(prev.Params), len(fn.Params))
		canon = fn
	case err != nil:
		p.errorf(nameTok, diag.RedefineSymbol, fn.Name)
		canon = fn
	default:
		p.prog.AddFunction(canon)
	}

	if !hasBody {
		p.expect(lexer.KindSemicolon)
		return
	}

	p.syms.Enter()
	for _, v := range canon.Params {
		if v.Name == "" {
			p.errorf(nameTok, diag.TokenExpected, lexer.KindIdentifier.String())
			continue
		}
		if err := p.syms.DeclareVar(v); err != nil {
			p.errorf(nameTok, diag.RedefineSymbol, v.Name)
		}
	}
	// Mark the function defined before its body is read, so a second
	// definition is caught even while this one is being parsed.
	canon.Body = &ast.Block{Token: p.curTok}
	canon.Body = p.parseBlock()
	p.syms.Leave()
}

func (p *Parser) parseParams() []*ast.Variable {
	var params []*ast.Variable
	if p.curTok.Kind == lexer.KindVoid && p.peekTok.Kind == lexer.KindRParen {
		p.nextToken()
	}
	for p.curTok.Kind != lexer.KindRParen && p.curTok.Kind != lexer.KindEOF {
		t := p.parseType()
		if t == nil {
			t = types.IntType
		}
		v := &ast.Variable{Type: t}
		if p.curTok.Kind == lexer.KindIdentifier {
			v.Name = p.curTok.Str
			p.nextToken()
		}
		// Array parameters decay to pointers.
		if arr, ok := p.parseDims(t).(*types.Array); ok {
			v.Type = &types.Pointer{Elem: arr.Elem}
		}
		params = append(params, v)

		if p.curTok.Kind != lexer.KindComma {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.KindRParen)
	return params
}

// parseDeclarators reads `ident {[dim]} [= expr] {, ...} ;` for a base
// type and hands every declaration to emit.
func (p *Parser) parseDeclarators(base types.Type, emit func(*ast.VarDecl)) {
	for {
		tok := p.curTok
		if !p.expect(lexer.KindIdentifier) {
			p.skipTo(lexer.KindSemicolon)
			return
		}
		t := p.parseDims(base)
		v := &ast.Variable{Name: tok.Str, Type: t}
		p.checkComplete(tok, t)
		if err := p.syms.DeclareVar(v); err != nil {
			p.errorf(tok, diag.RedefineSymbol, tok.Str)
		}

		d := &ast.VarDecl{Token: tok, Var: v}
		if p.curTok.Kind == lexer.KindAssign {
			assignTok := p.curTok
			p.nextToken()
			d.Init = p.parseExpr()
			if !types.IsScalar(t) {
				if _, ok := t.(*types.Pointer); !ok {
					p.errorf(assignTok, diag.NotAssignable)
				}
			}
		}
		emit(d)

		if p.curTok.Kind != lexer.KindComma {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.KindSemicolon)
}

// checkComplete rejects variables whose size is not known.
func (p *Parser) checkComplete(tok lexer.Token, t types.Type) {
	for {
		arr, ok := t.(*types.Array)
		if !ok {
			break
		}
		t = arr.Elem
	}
	switch t := t.(type) {
	case *types.Struct:
		if !t.Complete() {
			p.errorf(tok, diag.IncompleteType, t.Decl(tok.Str))
		}
	case *types.Primitive:
		if t.Basic == types.Void {
			p.errorf(tok, diag.IncompleteType, t.Decl(tok.Str))
		}
	}
}

// skipTo advances to the next token of kind k without consuming it.
func (p *Parser) skipTo(k lexer.Kind) {
	for p.curTok.Kind != k && p.curTok.Kind != lexer.KindEOF {
		p.nextToken()
	}
}

// skipBalanced consumes a bracketed group starting at curTok.
func (p *Parser) skipBalanced(open, close lexer.Kind) {
	if p.curTok.Kind != open {
		return
	}
	depth := 0
	for p.curTok.Kind != lexer.KindEOF {
		switch p.curTok.Kind {
		case open:
			depth++
		case close:
			depth--
		}
		p.nextToken()
		if depth == 0 {
			return
		}
	}
}
