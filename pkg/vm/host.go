package vm

import (
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
)

// HostFunction is a Go function callable from scripts. Arguments arrive
// already converted to the declared parameter kinds.
type HostFunction func(m *Machine, args []value.Value) (value.Value, error)

// HostFunctionEntry tracks a host function, its signature and its required
// security scope.
type HostFunctionEntry struct {
	Name     string
	Return   types.Type
	Params   []types.Type
	Variadic bool

	// RequiredScope names the capability that must be granted before the
	// function may run. Empty means none.
	RequiredScope string
	Fn            HostFunction
}

// Host is the registry of intrinsics a program is compiled against. The
// same Host must back every Machine running that program.
type Host struct {
	entries []HostFunctionEntry
	index   map[string]int
}

func NewHost() *Host {
	return &Host{index: make(map[string]int)}
}

// RegisterHostFunction adds an intrinsic and returns its index.
func (h *Host) RegisterHostFunction(e HostFunctionEntry) (uint32, error) {
	if _, ok := h.index[e.Name]; ok {
		return 0, fmt.Errorf("vm: host function %s registered twice", e.Name)
	}
	h.entries = append(h.entries, e)
	h.index[e.Name] = len(h.entries) - 1
	return uint32(len(h.entries) - 1), nil
}

func (h *Host) Lookup(name string) (HostFunctionEntry, bool) {
	i, ok := h.index[name]
	if !ok {
		return HostFunctionEntry{}, false
	}
	return h.entries[i], true
}

func (h *Host) entry(i int) HostFunctionEntry { return h.entries[i] }

// Declarations returns fresh function stubs for the parser, one per entry.
func (h *Host) Declarations() []*ast.Function {
	out := make([]*ast.Function, len(h.entries))
	for i, e := range h.entries {
		params := make([]*ast.Variable, len(e.Params))
		for j, t := range e.Params {
			params[j] = &ast.Variable{Name: fmt.Sprintf("arg%d", j), Type: t}
		}
		ret := e.Return
		if ret == nil {
			ret = types.VoidType
		}
		out[i] = &ast.Function{
			Name:     e.Name,
			Return:   ret,
			Params:   params,
			Variadic: e.Variadic,
			Native:   true,
			Host:     i,
		}
	}
	return out
}
