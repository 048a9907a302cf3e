package symtab_test

import (
	"errors"
	"testing"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/symtab"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

func newTable() *symtab.Table { return symtab.New(types.NewTable()) }

func TestScopes(t *testing.T) {
	tab := newTable()
	g := &ast.Variable{Name: "x", Type: types.IntType}
	if err := tab.DeclareVar(g); err != nil {
		t.Fatal(err)
	}
	if !g.Global {
		t.Error("top-level variable not marked global")
	}

	tab.Enter()
	inner := &ast.Variable{Name: "x", Type: types.CharType}
	if err := tab.DeclareVar(inner); err != nil {
		t.Fatalf("shadowing rejected: %v", err)
	}
	if v, _ := tab.LookupVar("x"); v != inner {
		t.Error("inner scope does not shadow")
	}
	if err := tab.DeclareVar(&ast.Variable{Name: "x"}); !errors.Is(err, symtab.ErrRedefined) {
		t.Errorf("redeclaration err = %v", err)
	}
	tab.Leave()

	if v, _ := tab.LookupVar("x"); v != g {
		t.Error("global not visible after Leave")
	}
	tab.Leave()
	if !tab.Global() {
		t.Error("global scope was closed")
	}
}

func params(n int) []*ast.Variable {
	out := make([]*ast.Variable, n)
	for i := range out {
		out[i] = &ast.Variable{Name: "p", Type: types.IntType}
	}
	return out
}

func TestPrototypeCompletedInPlace(t *testing.T) {
	tab := newTable()
	proto := &ast.Function{Name: "f", Return: types.IntType, Params: params(1)}
	got, err := tab.DeclareFunction(proto, false)
	if err != nil || got != proto {
		t.Fatalf("prototype: %v %v", got, err)
	}

	def := &ast.Function{Name: "f", Return: types.IntType, Params: params(1)}
	got, err = tab.DeclareFunction(def, true)
	if err != nil {
		t.Fatal(err)
	}
	if got != proto {
		t.Error("definition did not complete the prototype")
	}
	if got.Params[0] != def.Params[0] {
		t.Error("definition parameters not adopted")
	}
	got.Body = &ast.Block{}

	if _, err := tab.DeclareFunction(&ast.Function{Name: "f", Params: params(1)}, false); err != nil {
		t.Errorf("late prototype rejected: %v", err)
	}
	if _, err := tab.DeclareFunction(&ast.Function{Name: "f", Params: params(1)}, true); !errors.Is(err, symtab.ErrRedefined) {
		t.Errorf("second body err = %v", err)
	}
}

func TestFunctionConflicts(t *testing.T) {
	tab := newTable()
	tab.DeclareFunction(&ast.Function{Name: "strlen", Params: params(1), Native: true}, false)
	tab.DeclareFunction(&ast.Function{Name: "g", Params: params(2)}, false)

	tests := []struct {
		name string
		fn   *ast.Function
		body bool
		want error
	}{
		{"intrinsic", &ast.Function{Name: "strlen", Params: params(1)}, true, symtab.ErrIntrinsic},
		{"arity", &ast.Function{Name: "g", Params: params(3)}, true, symtab.ErrArgumentMismatch},
		{"prototype arity", &ast.Function{Name: "g", Params: params(1)}, false, symtab.ErrArgumentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tab.DeclareFunction(tt.fn, tt.body); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConstants(t *testing.T) {
	tab := newTable()
	if err := tab.DefineConstant("PAGE", 4096); err != nil {
		t.Fatal(err)
	}
	if v, ok := tab.Constant("PAGE"); !ok || v != 4096 {
		t.Errorf("Constant = %d %v", v, ok)
	}
	if err := tab.DefineConstant("PAGE", 1); !errors.Is(err, symtab.ErrRedefined) {
		t.Errorf("redefine err = %v", err)
	}
}

func TestSuggest(t *testing.T) {
	tab := newTable()
	tab.DeclareVar(&ast.Variable{Name: "counter", Type: types.IntType})
	tab.DeclareVar(&ast.Variable{Name: "value", Type: types.IntType})
	tab.DeclareFunction(&ast.Function{Name: "process"}, false)

	tests := []struct {
		in, want string
	}{
		{"countr", "counter"},
		{"COUNTER", "counter"},
		{"valeu", "value"},
		{"prcess", "process"},
		{"uint8", "uint8_t"},
		{"zzzzzzzzzz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := tab.Suggest(tt.in); got != tt.want {
				t.Errorf("Suggest(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSuggestIsDeterministic(t *testing.T) {
	tab := newTable()
	for _, n := range []string{"ab", "ba", "abc", "acb"} {
		tab.DeclareVar(&ast.Variable{Name: n, Type: types.IntType})
	}
	first := tab.Suggest("a")
	for range 20 {
		if got := tab.Suggest("a"); got != first {
			t.Fatalf("Suggest changed from %q to %q", first, got)
		}
	}
}
