package value

import "github.com/agenthands/trcarch/pkg/compiler/ast"

type slot struct {
	scalar uint64
	ptr    Pointer
}

// Context is one call frame. Frames chain to the caller's frame; lookups
// walk the chain outwards. Variables are the keys, so names never clash
// across functions.
type Context struct {
	parent *Context
	vars   map[*ast.Variable]*slot
}

func NewContext(parent *Context) *Context {
	return &Context{parent: parent, vars: make(map[*ast.Variable]*slot)}
}

func (c *Context) Parent() *Context { return c.parent }

func (c *Context) lookup(v *ast.Variable) *slot {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if s, ok := ctx.vars[v]; ok {
			return s
		}
	}
	return nil
}

// Declare binds v to a scalar in this frame, replacing any earlier
// binding here.
func (c *Context) Declare(v *ast.Variable, x uint64) {
	c.vars[v] = &slot{scalar: x}
}

// DeclarePointer binds v to a pointer in this frame.
func (c *Context) DeclarePointer(v *ast.Variable, p Pointer) {
	c.vars[v] = &slot{ptr: p}
}

// Set updates the nearest binding of v, declaring it here if there is none.
func (c *Context) Set(v *ast.Variable, x uint64) {
	if s := c.lookup(v); s != nil {
		s.scalar = x
		return
	}
	c.Declare(v, x)
}

// SetPointer updates the nearest pointer binding of v, declaring it here
// if there is none.
func (c *Context) SetPointer(v *ast.Variable, p Pointer) {
	if s := c.lookup(v); s != nil {
		s.ptr = p
		return
	}
	c.DeclarePointer(v, p)
}

// Scalar reads v. An unbound variable reads 0.
func (c *Context) Scalar(v *ast.Variable) uint64 {
	if s := c.lookup(v); s != nil {
		return s.scalar
	}
	return 0
}

// Pointer reads v. An unbound variable reads null.
func (c *Context) Pointer(v *ast.Variable) Pointer {
	if s := c.lookup(v); s != nil {
		return s.ptr
	}
	return Pointer{}
}
