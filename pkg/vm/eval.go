package vm

import (
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
)

// eval evaluates e in the representation its static type calls for.
func (m *Machine) eval(ctx *value.Context, e ast.Expr) (value.Value, error) {
	return m.evalAs(ctx, e.Type(), e)
}

// evalAs evaluates e for a destination of type t.
func (m *Machine) evalAs(ctx *value.Context, t types.Type, e ast.Expr) (value.Value, error) {
	switch {
	case types.IsVoid(t):
		if c, ok := e.(*ast.Call); ok {
			_, err := m.call(ctx, c)
			return value.Void, err
		}
		if types.IsVoid(e.Type()) {
			return value.Void, m.fault(e, ErrScalarContext)
		}
		_, err := m.eval(ctx, e)
		return value.Void, err
	case types.IsScalar(t):
		x, err := m.evalScalar(ctx, e)
		if err != nil {
			return value.Void, err
		}
		return value.Scalar(t.(*types.Primitive).Normalize(x)), nil
	}
	p, err := m.evalPointer(ctx, e)
	if err != nil {
		return value.Void, err
	}
	return value.Ref(p), nil
}

func (m *Machine) truth(ctx *value.Context, e ast.Expr) (bool, error) {
	if types.IsReference(e.Type()) {
		p, err := m.evalPointer(ctx, e)
		return !p.IsNull(), err
	}
	x, err := m.evalScalar(ctx, e)
	return x != 0, err
}

func (m *Machine) evalScalar(ctx *value.Context, e ast.Expr) (uint64, error) {
	switch e := e.(type) {
	case *ast.NumberLiteral:
		return e.Value, nil

	case *ast.Identifier:
		if !types.IsScalar(e.Var.Type) {
			return 0, m.fault(e, ErrScalarContext)
		}
		return ctx.Scalar(e.Var), nil

	case *ast.Unary:
		if e.Op == lexer.KindNot {
			ok, err := m.truth(ctx, e.X)
			if ok {
				return 0, err
			}
			return 1, err
		}
		x, err := m.evalScalar(ctx, e.X)
		if err != nil {
			return 0, err
		}
		if e.Op == lexer.KindMinus {
			x = -x
		} else {
			x = ^x
		}
		return normalize(e.Typ, x), nil

	case *ast.Binary:
		return m.binary(ctx, e)

	case *ast.Index, *ast.Member:
		if !types.IsScalar(e.Type()) {
			return 0, m.fault(e, ErrScalarContext)
		}
		loc, err := m.location(ctx, e)
		if err != nil {
			return 0, err
		}
		x, err := loc.Load()
		if err != nil {
			return 0, m.fault(e, err)
		}
		return x, nil

	case *ast.Call:
		v, err := m.call(ctx, e)
		if err != nil {
			return 0, err
		}
		if v.Kind == value.KindPointer {
			return 0, m.fault(e, ErrScalarContext)
		}
		return v.Data, nil

	case *ast.Cast:
		if types.IsReference(e.X.Type()) {
			return 0, m.fault(e, ErrScalarContext)
		}
		x, err := m.evalScalar(ctx, e.X)
		if err != nil {
			return 0, err
		}
		return normalize(e.Typ, x), nil
	}
	return 0, m.fault(e, ErrScalarContext)
}

func normalize(t types.Type, x uint64) uint64 {
	if p, ok := t.(*types.Primitive); ok && p.Basic != types.Void {
		return p.Normalize(x)
	}
	return x
}

func (m *Machine) binary(ctx *value.Context, e *ast.Binary) (uint64, error) {
	switch e.Op {
	case lexer.KindAnd, lexer.KindOr:
		ok, err := m.truth(ctx, e.X)
		if err != nil {
			return 0, err
		}
		if ok == (e.Op == lexer.KindOr) {
			return b2u(ok), nil
		}
		ok, err = m.truth(ctx, e.Y)
		return b2u(ok), err
	}

	if types.IsReference(e.X.Type()) || types.IsReference(e.Y.Type()) {
		return m.comparePointers(ctx, e)
	}

	x, err := m.evalScalar(ctx, e.X)
	if err != nil {
		return 0, err
	}
	y, err := m.evalScalar(ctx, e.Y)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case lexer.KindEq, lexer.KindNeq, lexer.KindLt, lexer.KindGt, lexer.KindLeq, lexer.KindGeq:
		return b2u(compare(e.Op, types.Common(e.X.Type(), e.Y.Type()), x, y)), nil
	}
	t := types.Promote(e.Typ)
	r, err := arith(e.Op, t, x, y)
	if err != nil {
		return 0, m.fault(e, err)
	}
	return r, nil
}

func (m *Machine) comparePointers(ctx *value.Context, e *ast.Binary) (uint64, error) {
	p, err := m.evalPointer(ctx, e.X)
	if err != nil {
		return 0, err
	}
	q, err := m.evalPointer(ctx, e.Y)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case lexer.KindEq:
		return b2u(p.Equal(q)), nil
	case lexer.KindNeq:
		return b2u(!p.Equal(q)), nil
	case lexer.KindLt, lexer.KindGt, lexer.KindLeq, lexer.KindGeq:
		if p.Record() != q.Record() {
			return 0, m.fault(e, fmt.Errorf("%w: comparison of unrelated pointers", ErrPointerContext))
		}
		return b2u(compare(e.Op, types.LongType, uint64(p.Offset), uint64(q.Offset))), nil
	}
	return 0, m.fault(e, ErrScalarContext)
}

func compare(op lexer.Kind, t *types.Primitive, x, y uint64) bool {
	if t.Unsigned {
		switch op {
		case lexer.KindLt:
			return x < y
		case lexer.KindGt:
			return x > y
		case lexer.KindLeq:
			return x <= y
		case lexer.KindGeq:
			return x >= y
		}
	} else {
		a, b := int64(x), int64(y)
		switch op {
		case lexer.KindLt:
			return a < b
		case lexer.KindGt:
			return a > b
		case lexer.KindLeq:
			return a <= b
		case lexer.KindGeq:
			return a >= b
		}
	}
	if op == lexer.KindEq {
		return x == y
	}
	return x != y
}

// arith applies op in type t and wraps the result to t.
func arith(op lexer.Kind, t *types.Primitive, x, y uint64) (uint64, error) {
	var r uint64
	switch op {
	case lexer.KindPlus:
		r = x + y
	case lexer.KindMinus:
		r = x - y
	case lexer.KindStar:
		r = x * y
	case lexer.KindSlash, lexer.KindRem:
		y = t.Normalize(y)
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		x = t.Normalize(x)
		if t.Unsigned {
			if op == lexer.KindSlash {
				r = x / y
			} else {
				r = x % y
			}
		} else {
			a, b := int64(x), int64(y)
			if op == lexer.KindSlash {
				r = uint64(a / b)
			} else {
				r = uint64(a % b)
			}
		}
	case lexer.KindBitAnd:
		r = x & y
	case lexer.KindBitOr:
		r = x | y
	case lexer.KindXor:
		r = x ^ y
	case lexer.KindShl:
		r = x << (y & 63)
	case lexer.KindShr:
		x = t.Normalize(x)
		if t.Unsigned {
			r = x >> (y & 63)
		} else {
			r = uint64(int64(x) >> (y & 63))
		}
	default:
		return 0, fmt.Errorf("%w: operator %v", ErrUndefined, op)
	}
	return t.Normalize(r), nil
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) evalPointer(ctx *value.Context, e ast.Expr) (value.Pointer, error) {
	switch e := e.(type) {
	case *ast.NumberLiteral:
		if e.Value == 0 {
			return value.Pointer{}, nil
		}
		return value.Pointer{}, m.fault(e, ErrPointerContext)

	case *ast.StringLiteral:
		arr := &types.Array{Elem: types.CharType, Len: len(e.Value) + 1}
		return value.RecordOf(arr, []byte(e.Value)).Pointer().As(types.CharType), nil

	case *ast.Identifier:
		if !types.IsReference(e.Var.Type) {
			if ctx.Scalar(e.Var) == 0 {
				return value.Pointer{}, nil
			}
			return value.Pointer{}, m.fault(e, ErrPointerContext)
		}
		p := ctx.Pointer(e.Var)
		if arr, ok := e.Var.Type.(*types.Array); ok {
			return p.As(arr.Elem), nil
		}
		return p, nil

	case *ast.Index, *ast.Member:
		loc, err := m.location(ctx, e)
		if err != nil {
			return value.Pointer{}, err
		}
		switch t := e.Type().(type) {
		case *types.Pointer:
			p, err := loc.LoadPointer()
			if err != nil {
				return value.Pointer{}, m.fault(e, err)
			}
			return p, nil
		case *types.Array:
			return loc.As(t.Elem), nil
		case *types.Struct:
			return loc, nil
		}
		return value.Pointer{}, m.fault(e, ErrPointerContext)

	case *ast.Binary:
		if e.Op != lexer.KindPlus && e.Op != lexer.KindMinus {
			return value.Pointer{}, m.fault(e, ErrPointerContext)
		}
		p, err := m.evalPointer(ctx, e.X)
		if err != nil {
			return value.Pointer{}, err
		}
		n, err := m.evalScalar(ctx, e.Y)
		if err != nil {
			return value.Pointer{}, err
		}
		return offset(p, e.X.Type(), int64(n), e.Op == lexer.KindMinus), nil

	case *ast.Call:
		v, err := m.call(ctx, e)
		if err != nil {
			return value.Pointer{}, err
		}
		p, err := asPointer(v)
		if err != nil {
			return value.Pointer{}, m.fault(e, err)
		}
		return p, nil

	case *ast.Cast:
		p, err := m.evalPointer(ctx, e.X)
		if err != nil {
			return value.Pointer{}, err
		}
		if elem, ok := types.Elem(e.Typ); ok {
			return p.As(elem), nil
		}
		return p, nil

	case *ast.AddressOf:
		return m.location(ctx, e.X)
	}
	return value.Pointer{}, m.fault(e, ErrPointerContext)
}

// offset moves p by n elements of the type t points into. void* steps by
// bytes.
func offset(p value.Pointer, t types.Type, n int64, minus bool) value.Pointer {
	elem, _ := types.Elem(t)
	size := 1
	if elem != nil && elem.Size() > 0 {
		size = elem.Size()
	}
	if minus {
		n = -n
	}
	return p.Add(elem, int(n)*size)
}

// location returns a pointer to the storage e denotes.
func (m *Machine) location(ctx *value.Context, e ast.Expr) (value.Pointer, error) {
	switch e := e.(type) {
	case *ast.Identifier:
		if !types.IsReference(e.Var.Type) {
			return value.Pointer{}, m.fault(e, ErrPointerContext)
		}
		if _, ok := e.Var.Type.(*types.Pointer); ok {
			break
		}
		return ctx.Pointer(e.Var), nil

	case *ast.Index:
		base, err := m.evalPointer(ctx, e.X)
		if err != nil {
			return value.Pointer{}, err
		}
		idx, err := m.evalScalar(ctx, e.Index)
		if err != nil {
			return value.Pointer{}, err
		}
		i := int64(normalize(types.Promote(e.Index.Type()), idx))
		if arr, ok := e.X.Type().(*types.Array); ok && (i < 0 || i >= int64(arr.Len)) {
			return value.Pointer{}, m.fault(e, fmt.Errorf("%w: index %d of %s", ErrOutOfBounds, i, arr))
		}
		if base.IsNull() {
			return value.Pointer{}, m.fault(e, ErrNullPointer)
		}
		return base.Add(e.Typ, int(i)*e.Typ.Size()), nil

	case *ast.Member:
		base, err := m.evalPointer(ctx, e.X)
		if err != nil {
			return value.Pointer{}, err
		}
		if base.IsNull() {
			return value.Pointer{}, m.fault(e, ErrNullPointer)
		}
		return base.Add(e.Member.Type, e.Member.Offset), nil
	}
	return value.Pointer{}, m.fault(e, ErrPointerContext)
}

// call evaluates the arguments of c against the callee's parameter types
// and invokes it.
func (m *Machine) call(ctx *value.Context, c *ast.Call) (value.Value, error) {
	fn := c.Fn
	if len(c.Args) < len(fn.Params) || (!fn.Variadic && len(c.Args) > len(fn.Params)) {
		return value.Void, m.fault(c, fmt.Errorf("%w: %s takes %d, got %d",
			ErrArity, fn.Name, len(fn.Params), len(c.Args)))
	}
	args := make([]value.Value, len(c.Args))
	for i, a := range c.Args {
		t := a.Type()
		if i < len(fn.Params) {
			t = fn.Params[i].Type
		}
		if _, ok := t.(*types.Array); ok {
			t = &types.Pointer{Elem: t.(*types.Array).Elem}
		}
		v, err := m.evalAs(ctx, t, a)
		if err != nil {
			return value.Void, err
		}
		args[i] = v
	}
	res, err := m.invoke(ctx, fn, args)
	if err != nil {
		return value.Void, m.fault(c, err)
	}
	return res, nil
}
