// Package ast defines the typed syntax tree produced by the parser and
// walked by the interpreter. Every expression carries its static type.
package ast

import (
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

// Node represents any node in the Abstract Syntax Tree.
type Node interface {
	Pos() lexer.Token
}

// Expr represents an expression that yields a scalar or a pointer.
type Expr interface {
	Node
	Type() types.Type
	exprNode()
}

// Statement represents a standalone unit of execution.
type Statement interface {
	Node
	stmtNode()
}

// Variable is a declared name. It is the key of a binding in a Context and
// never holds a value itself.
type Variable struct {
	Name   string
	Type   types.Type
	Global bool
}

// Function is a script function or an intrinsic. Intrinsics have Native set
// and Host indexes the host registry; their Body is nil.
type Function struct {
	Token    lexer.Token
	Name     string
	Return   types.Type
	Params   []*Variable
	Variadic bool
	Body     *Block

	Native bool
	Host   int
}

func (f *Function) Pos() lexer.Token { return f.Token }

// Defined reports whether the function has a body or a native
// implementation.
func (f *Function) Defined() bool { return f.Native || f.Body != nil }

// Program is the root node.
type Program struct {
	Globals   []Statement
	Functions []*Function
	Types     *types.Table

	byName map[string]*Function
}

// NewProgram returns an empty program over the given type table.
func NewProgram(tab *types.Table) *Program {
	return &Program{Types: tab, byName: make(map[string]*Function)}
}

// AddFunction records a script function in declaration order.
func (p *Program) AddFunction(f *Function) {
	if _, ok := p.byName[f.Name]; ok {
		return
	}
	p.byName[f.Name] = f
	p.Functions = append(p.Functions, f)
}

// Function looks a function up by name.
func (p *Program) Function(name string) (*Function, bool) {
	f, ok := p.byName[name]
	return f, ok
}
