// Package vm executes parsed programs by walking the typed syntax tree.
// A Machine is single-threaded: each call runs to completion before the
// next one starts, and one Machine must not be shared between goroutines.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
)

var (
	ErrOutOfBounds       = value.ErrOutOfBounds
	ErrNullPointer       = value.ErrNullPointer
	ErrArity             = errors.New("vm: wrong number of arguments")
	ErrScalarContext     = errors.New("vm: pointer used where a scalar is required")
	ErrPointerContext    = errors.New("vm: scalar used where a pointer is required")
	ErrDivisionByZero    = errors.New("vm: division by zero")
	ErrUndefined         = errors.New("vm: undefined")
	ErrSecurityViolation = errors.New("vm: security violation")
	ErrGasExhausted      = errors.New("vm: gas exhausted")
	ErrStackOverflow     = errors.New("vm: stack overflow")
	ErrRuntime           = errors.New("vm: runtime panic")
)

// MaxFrames bounds the depth of nested script calls.
const MaxFrames = 512

// Fault is a run-time failure of one call. It unwraps to one of the
// package sentinels, or to an error returned by an intrinsic.
type Fault struct {
	Func      string
	Line, Col int
	Err       error
}

func (f *Fault) Error() string {
	name := f.Func
	if name == "" {
		name = "global"
	}
	return fmt.Sprintf("vm: fault in %s at line %d col %d: %v", name, f.Line, f.Col, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Machine represents one compiled program instance with its globals.
type Machine struct {
	Program *ast.Program
	Host    *Host

	// Gas bounds loop iterations plus calls per Call. 0 means unlimited.
	Gas int64
	// Stdout receives printf output.
	Stdout io.Writer

	root  *value.Context
	caps  map[string]any
	used  int64
	depth int
	fn    *ast.Function
}

// New prepares a Machine for prog and runs its global declarations once.
// host must be the registry prog was compiled against.
func New(prog *ast.Program, host *Host) (*Machine, error) {
	if host == nil {
		host = NewHost()
	}
	m := &Machine{
		Program: prog,
		Host:    host,
		Stdout:  os.Stdout,
		root:    value.NewContext(nil),
		caps:    make(map[string]any),
	}
	err := m.guard(func() error {
		for _, g := range prog.Globals {
			if _, err := m.exec(m.root, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Grant installs the capability handle for scope. Intrinsics that require
// the scope fetch it with Capability.
func (m *Machine) Grant(scope string, handle any) {
	m.caps[scope] = handle
}

// Revoke removes a capability.
func (m *Machine) Revoke(scope string) {
	delete(m.caps, scope)
}

// HasScope checks if a capability scope has been granted.
func (m *Machine) HasScope(scope string) bool {
	_, ok := m.caps[scope]
	return ok
}

// Capability returns the handle granted for scope.
func (m *Machine) Capability(scope string) (any, error) {
	h, ok := m.caps[scope]
	if !ok {
		return nil, fmt.Errorf("%w: scope %s not granted", ErrSecurityViolation, scope)
	}
	return h, nil
}

// Lookup reports whether the program defines a function with a body.
func (m *Machine) Lookup(name string) (*ast.Function, bool) {
	fn, ok := m.Program.Function(name)
	if !ok || fn.Body == nil {
		return nil, false
	}
	return fn, true
}

// Call runs the named script function to completion.
func (m *Machine) Call(name string, args ...value.Value) (value.Value, error) {
	fn, ok := m.Program.Function(name)
	if !ok {
		return value.Void, &Fault{Func: name, Err: fmt.Errorf("%w: function %s", ErrUndefined, name)}
	}
	m.used = 0
	m.depth = 0
	m.fn = nil
	var res value.Value
	err := m.guard(func() error {
		var err error
		res, err = m.invoke(m.root, fn, args)
		if err != nil {
			return faultAt(fn.Name, fn, err)
		}
		return nil
	})
	return res, err
}

// guard converts Go runtime panics raised while running f into errors.
func (m *Machine) guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w: %v", ErrRuntime, re)
		}
	}()
	return f()
}

// fault attaches the position of node to err unless it already carries one.
func (m *Machine) fault(node ast.Node, err error) error {
	name := ""
	if m.fn != nil {
		name = m.fn.Name
	}
	return faultAt(name, node, err)
}

func faultAt(name string, node ast.Node, err error) error {
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	tok := node.Pos()
	return &Fault{Func: name, Line: int(tok.Line), Col: int(tok.Col), Err: err}
}

// tick consumes one unit of gas.
func (m *Machine) tick() error {
	if m.Gas <= 0 {
		return nil
	}
	m.used++
	if m.used > m.Gas {
		return ErrGasExhausted
	}
	return nil
}

// invoke calls fn with converted arguments. Script functions get a new
// Context parented to caller.
func (m *Machine) invoke(caller *value.Context, fn *ast.Function, args []value.Value) (value.Value, error) {
	if len(args) < len(fn.Params) || (!fn.Variadic && len(args) > len(fn.Params)) {
		return value.Void, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, fn.Name, len(fn.Params), len(args))
	}
	if err := m.tick(); err != nil {
		return value.Void, err
	}
	if fn.Native {
		return m.invokeHost(fn, args)
	}
	if fn.Body == nil {
		return value.Void, fmt.Errorf("%w: function %s has no body", ErrUndefined, fn.Name)
	}
	if m.depth >= MaxFrames {
		return value.Void, ErrStackOverflow
	}

	ctx := value.NewContext(caller)
	for i, p := range fn.Params {
		if err := bindParam(ctx, p, args[i]); err != nil {
			return value.Void, err
		}
	}

	prev := m.fn
	m.fn = fn
	m.depth++
	u, err := m.exec(ctx, fn.Body)
	m.depth--
	m.fn = prev
	if err != nil {
		return value.Void, err
	}
	if u.Flow != Return {
		return fallOff(fn.Return, u.Value), nil
	}
	return convert(fn.Return, u.Value)
}

// fallOff shapes the value of the last statement of a function that ended
// without return. A value of the wrong kind reads as 0 or null.
func fallOff(t types.Type, v value.Value) value.Value {
	switch {
	case types.IsVoid(t):
		return value.Void
	case types.IsScalar(t):
		if v.Kind != value.KindScalar {
			return value.Scalar(0)
		}
		return value.Scalar(t.(*types.Primitive).Normalize(v.Data))
	}
	if v.Kind != value.KindPointer {
		return value.Ref(value.Pointer{})
	}
	return v
}

func (m *Machine) invokeHost(fn *ast.Function, args []value.Value) (value.Value, error) {
	entry := m.Host.entry(fn.Host)
	if entry.RequiredScope != "" && !m.HasScope(entry.RequiredScope) {
		return value.Void, fmt.Errorf("%w: %s requires scope %s", ErrSecurityViolation, fn.Name, entry.RequiredScope)
	}
	res, err := entry.Fn(m, args)
	if err != nil {
		return value.Void, err
	}
	return convert(fn.Return, res)
}

func bindParam(ctx *value.Context, p *ast.Variable, arg value.Value) error {
	if types.IsScalar(p.Type) {
		if arg.Kind == value.KindPointer {
			return fmt.Errorf("%w: parameter %s", ErrScalarContext, p.Name)
		}
		ctx.Declare(p, p.Type.(*types.Primitive).Normalize(arg.Data))
		return nil
	}
	ptr, err := asPointer(arg)
	if err != nil {
		return fmt.Errorf("%w: parameter %s", err, p.Name)
	}
	// structs are passed by value
	if _, ok := p.Type.(*types.Struct); ok {
		if ptr, err = ptr.Clone(p.Type); err != nil {
			return fmt.Errorf("%w: parameter %s", err, p.Name)
		}
	}
	ctx.DeclarePointer(p, ptr)
	return nil
}

// asPointer accepts pointers, and the scalar 0 as null.
func asPointer(v value.Value) (value.Pointer, error) {
	switch {
	case v.Kind == value.KindPointer:
		return v.Ptr, nil
	case v.Data == 0:
		return value.Pointer{}, nil
	}
	return value.Pointer{}, ErrPointerContext
}

// convert shapes a result to the declared return type.
func convert(t types.Type, v value.Value) (value.Value, error) {
	switch {
	case types.IsVoid(t):
		return value.Void, nil
	case types.IsScalar(t):
		if v.Kind == value.KindPointer {
			return value.Void, ErrScalarContext
		}
		return value.Scalar(t.(*types.Primitive).Normalize(v.Data)), nil
	}
	p, err := asPointer(v)
	if err != nil {
		return value.Void, err
	}
	return value.Ref(p), nil
}
