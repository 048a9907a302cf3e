package vm

import (
	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
)

// Flow tells the enclosing statement how execution continues.
type Flow uint8

const (
	Next Flow = iota
	Return
	Break
	Continue
)

// Unwind is the result of executing a statement. Value is the value of
// the statement for Next, and the returned value for Return.
type Unwind struct {
	Flow  Flow
	Value value.Value
}

func (m *Machine) exec(ctx *value.Context, stmt ast.Statement) (Unwind, error) {
	switch s := stmt.(type) {
	case *ast.Block:
		var last Unwind
		for _, st := range s.Stmts {
			u, err := m.exec(ctx, st)
			if err != nil || u.Flow != Next {
				return u, err
			}
			last = u
		}
		return last, nil

	case *ast.ExprStmt:
		v, err := m.eval(ctx, s.X)
		return Unwind{Value: v}, err

	case *ast.VarDecl:
		v, err := m.declare(ctx, s)
		if err != nil {
			return Unwind{}, m.fault(s, err)
		}
		return Unwind{Value: v}, nil

	case *ast.Assign:
		v, err := m.assign(ctx, s)
		if err != nil {
			return Unwind{}, m.fault(s, err)
		}
		return Unwind{Value: v}, nil

	case *ast.If:
		ok, err := m.truth(ctx, s.Cond)
		if err != nil {
			return Unwind{}, err
		}
		if ok {
			return m.exec(ctx, s.Then)
		}
		if s.Else != nil {
			return m.exec(ctx, s.Else)
		}
		return Unwind{}, nil

	case *ast.While:
		return m.loop(ctx, s, s.Cond, nil, s.Body)

	case *ast.DoWhile:
		return m.loop(ctx, s, nil, s.Cond, s.Body)

	case *ast.For:
		if s.Init != nil {
			if _, err := m.exec(ctx, s.Init); err != nil {
				return Unwind{}, err
			}
		}
		return m.forLoop(ctx, s)

	case *ast.Return:
		if s.Value == nil {
			return Unwind{Flow: Return}, nil
		}
		var t types.Type = types.VoidType
		if m.fn != nil {
			t = m.fn.Return
		}
		v, err := m.evalAs(ctx, t, s.Value)
		if err != nil {
			return Unwind{}, err
		}
		return Unwind{Flow: Return, Value: v}, nil

	case *ast.Break:
		return Unwind{Flow: Break}, nil

	case *ast.Continue:
		return Unwind{Flow: Continue}, nil
	}
	return Unwind{}, m.fault(stmt, ErrUndefined)
}

// loop runs while and do-while loops. Exactly one of pre and post is set:
// pre is tested before each iteration, post after.
func (m *Machine) loop(ctx *value.Context, node ast.Node, pre, post ast.Expr, body ast.Statement) (Unwind, error) {
	for {
		if err := m.tick(); err != nil {
			return Unwind{}, m.fault(node, err)
		}
		if pre != nil {
			ok, err := m.truth(ctx, pre)
			if err != nil || !ok {
				return Unwind{}, err
			}
		}
		u, err := m.exec(ctx, body)
		if err != nil {
			return u, err
		}
		switch u.Flow {
		case Return:
			return u, nil
		case Break:
			return Unwind{}, nil
		}
		if post != nil {
			ok, err := m.truth(ctx, post)
			if err != nil || !ok {
				return Unwind{}, err
			}
		}
	}
}

func (m *Machine) forLoop(ctx *value.Context, s *ast.For) (Unwind, error) {
	for {
		if err := m.tick(); err != nil {
			return Unwind{}, m.fault(s, err)
		}
		if s.Cond != nil {
			ok, err := m.truth(ctx, s.Cond)
			if err != nil || !ok {
				return Unwind{}, err
			}
		}
		u, err := m.exec(ctx, s.Body)
		if err != nil {
			return u, err
		}
		switch u.Flow {
		case Return:
			return u, nil
		case Break:
			return Unwind{}, nil
		}
		if s.Post != nil {
			if _, err := m.exec(ctx, s.Post); err != nil {
				return Unwind{}, err
			}
		}
	}
}

// declare binds a new variable. Arrays and structs get a fresh Record.
func (m *Machine) declare(ctx *value.Context, d *ast.VarDecl) (value.Value, error) {
	switch t := d.Var.Type.(type) {
	case *types.Array, *types.Struct:
		rec := value.NewRecord(t)
		ctx.DeclarePointer(d.Var, rec.Pointer())
		return value.Ref(rec.Pointer()), nil
	case *types.Pointer:
		var p value.Pointer
		if d.Init != nil {
			var err error
			if p, err = m.evalPointer(ctx, d.Init); err != nil {
				return value.Void, err
			}
		}
		ctx.DeclarePointer(d.Var, p)
		return value.Ref(p), nil
	case *types.Primitive:
		var x uint64
		if d.Init != nil {
			var err error
			if x, err = m.evalScalar(ctx, d.Init); err != nil {
				return value.Void, err
			}
		}
		x = t.Normalize(x)
		ctx.Declare(d.Var, x)
		return value.Scalar(x), nil
	}
	return value.Void, ErrUndefined
}

func (m *Machine) assign(ctx *value.Context, a *ast.Assign) (value.Value, error) {
	if _, ok := a.Target.Type().(*types.Pointer); ok {
		return m.assignPointer(ctx, a)
	}
	prim, ok := a.Target.Type().(*types.Primitive)
	if !ok || prim.Basic == types.Void {
		return value.Void, ErrScalarContext
	}

	var (
		ident *ast.Identifier
		loc   value.Pointer
		old   uint64
		err   error
	)
	if id, ok := a.Target.(*ast.Identifier); ok {
		ident = id
		old = ctx.Scalar(id.Var)
	} else {
		if loc, err = m.location(ctx, a.Target); err != nil {
			return value.Void, err
		}
		if a.Op != lexer.KindAssign {
			if old, err = loc.Load(); err != nil {
				return value.Void, err
			}
		}
	}

	rhs, err := m.evalScalar(ctx, a.Value)
	if err != nil {
		return value.Void, err
	}
	x := rhs
	if a.Op != lexer.KindAssign {
		common := types.Common(prim, a.Value.Type())
		if x, err = arith(compoundOp(a.Op), common, old, rhs); err != nil {
			return value.Void, err
		}
	}
	x = prim.Normalize(x)

	if ident != nil {
		ctx.Set(ident.Var, x)
	} else if err := loc.Store(x); err != nil {
		return value.Void, err
	}
	return value.Scalar(x), nil
}

func (m *Machine) assignPointer(ctx *value.Context, a *ast.Assign) (value.Value, error) {
	var p value.Pointer
	var err error
	switch a.Op {
	case lexer.KindAssign:
		p, err = m.evalPointer(ctx, a.Value)
	case lexer.KindPlusAs, lexer.KindMinusAs:
		var old value.Pointer
		if old, err = m.evalPointer(ctx, a.Target); err != nil {
			return value.Void, err
		}
		var n uint64
		if n, err = m.evalScalar(ctx, a.Value); err != nil {
			return value.Void, err
		}
		p = offset(old, a.Target.Type(), int64(n), a.Op == lexer.KindMinusAs)
	default:
		return value.Void, ErrScalarContext
	}
	if err != nil {
		return value.Void, err
	}

	if id, ok := a.Target.(*ast.Identifier); ok {
		ctx.SetPointer(id.Var, p)
		return value.Ref(p), nil
	}
	loc, err := m.location(ctx, a.Target)
	if err != nil {
		return value.Void, err
	}
	return value.Ref(p), loc.StorePointer(p)
}

func compoundOp(k lexer.Kind) lexer.Kind {
	switch k {
	case lexer.KindPlusAs:
		return lexer.KindPlus
	case lexer.KindMinusAs:
		return lexer.KindMinus
	case lexer.KindStarAs:
		return lexer.KindStar
	case lexer.KindSlashAs:
		return lexer.KindSlash
	case lexer.KindRemAs:
		return lexer.KindRem
	}
	return k
}
