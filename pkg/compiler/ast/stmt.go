package ast

import "github.com/agenthands/trcarch/pkg/compiler/lexer"

type Block struct {
	Token lexer.Token
	Stmts []Statement
}

func (b *Block) Pos() lexer.Token { return b.Token }
func (b *Block) stmtNode()        {}

type ExprStmt struct {
	X Expr
}

func (e *ExprStmt) Pos() lexer.Token { return e.X.Pos() }
func (e *ExprStmt) stmtNode()        {}

// VarDecl binds Var in the current frame. Struct and array variables get a
// fresh Record each time the declaration runs.
type VarDecl struct {
	Token lexer.Token
	Var   *Variable
	Init  Expr
}

func (v *VarDecl) Pos() lexer.Token { return v.Token }
func (v *VarDecl) stmtNode()        {}

// Assign: Target Op Value, where Op is = or a compound operator.
// x++ and x-- are parsed as x += 1 and x -= 1.
type Assign struct {
	Token  lexer.Token
	Op     lexer.Kind
	Target Expr
	Value  Expr
}

func (a *Assign) Pos() lexer.Token { return a.Token }
func (a *Assign) stmtNode()        {}

type If struct {
	Token lexer.Token
	Cond  Expr
	Then  Statement
	Else  Statement
}

func (i *If) Pos() lexer.Token { return i.Token }
func (i *If) stmtNode()        {}

type While struct {
	Token lexer.Token
	Cond  Expr
	Body  Statement
}

func (w *While) Pos() lexer.Token { return w.Token }
func (w *While) stmtNode()        {}

type DoWhile struct {
	Token lexer.Token
	Body  Statement
	Cond  Expr
}

func (d *DoWhile) Pos() lexer.Token { return d.Token }
func (d *DoWhile) stmtNode()        {}

// For: any of Init, Cond and Post may be nil.
type For struct {
	Token lexer.Token
	Init  Statement
	Cond  Expr
	Post  Statement
	Body  Statement
}

func (f *For) Pos() lexer.Token { return f.Token }
func (f *For) stmtNode()        {}

type Return struct {
	Token lexer.Token
	Value Expr
}

func (r *Return) Pos() lexer.Token { return r.Token }
func (r *Return) stmtNode()        {}

type Break struct {
	Token lexer.Token
}

func (b *Break) Pos() lexer.Token { return b.Token }
func (b *Break) stmtNode()        {}

type Continue struct {
	Token lexer.Token
}

func (c *Continue) Pos() lexer.Token { return c.Token }
func (c *Continue) stmtNode()        {}
