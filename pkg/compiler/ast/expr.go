package ast

import (
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// NumberLiteral covers numbers, characters, booleans and host constants.
type NumberLiteral struct {
	Token lexer.Token
	Value uint64
	Typ   types.Type
}

func (n *NumberLiteral) Pos() lexer.Token { return n.Token }
func (n *NumberLiteral) Type() types.Type { return n.Typ }
func (n *NumberLiteral) exprNode()        {}

// StringLiteral holds the concatenation of adjacent string tokens.
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (s *StringLiteral) Pos() lexer.Token { return s.Token }
func (s *StringLiteral) Type() types.Type { return types.CharPtr }
func (s *StringLiteral) exprNode()        {}

type Identifier struct {
	Token lexer.Token
	Var   *Variable
}

func (i *Identifier) Pos() lexer.Token { return i.Token }
func (i *Identifier) Type() types.Type { return i.Var.Type }
func (i *Identifier) exprNode()        {}

// Unary: - ! ~
type Unary struct {
	Token lexer.Token
	Op    lexer.Kind
	X     Expr
	Typ   types.Type
}

func (u *Unary) Pos() lexer.Token { return u.Token }
func (u *Unary) Type() types.Type { return u.Typ }
func (u *Unary) exprNode()        {}

// AddressOf: &X where X denotes a location inside a Record.
type AddressOf struct {
	Token lexer.Token
	X     Expr
	Typ   types.Type
}

func (a *AddressOf) Pos() lexer.Token { return a.Token }
func (a *AddressOf) Type() types.Type { return a.Typ }
func (a *AddressOf) exprNode()        {}

// Binary is an arithmetic, comparison or logical operation. When X has a
// pointer type and Op is + or -, it is pointer arithmetic.
type Binary struct {
	Token lexer.Token
	Op    lexer.Kind
	X, Y  Expr
	Typ   types.Type
}

func (b *Binary) Pos() lexer.Token { return b.Token }
func (b *Binary) Type() types.Type { return b.Typ }
func (b *Binary) exprNode()        {}

// Index: X[Index]. Unary * is parsed as X[0].
type Index struct {
	Token lexer.Token
	X     Expr
	Index Expr
	Typ   types.Type
}

func (i *Index) Pos() lexer.Token { return i.Token }
func (i *Index) Type() types.Type { return i.Typ }
func (i *Index) exprNode()        {}

// Member: X.Name, or X->Name when Arrow is set.
type Member struct {
	Token  lexer.Token
	X      Expr
	Arrow  bool
	Member types.Member
}

func (m *Member) Pos() lexer.Token { return m.Token }
func (m *Member) Type() types.Type { return m.Member.Type }
func (m *Member) exprNode()        {}

type Call struct {
	Token lexer.Token
	Fn    *Function
	Args  []Expr
}

func (c *Call) Pos() lexer.Token { return c.Token }
func (c *Call) Type() types.Type { return c.Fn.Return }
func (c *Call) exprNode()        {}

// Cast: (Typ)X. Scalars are truncated to the target width; pointers are
// retyped.
type Cast struct {
	Token lexer.Token
	X     Expr
	Typ   types.Type
}

func (c *Cast) Pos() lexer.Token { return c.Token }
func (c *Cast) Type() types.Type { return c.Typ }
func (c *Cast) exprNode()        {}
