// Package symtab resolves names during parsing: variables in nested
// scopes, functions and intrinsics, and host constants.
package symtab

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
)

var (
	ErrRedefined        = errors.New("symtab: symbol redefined")
	ErrIntrinsic        = errors.New("symtab: intrinsic cannot be redefined")
	ErrArgumentMismatch = errors.New("symtab: argument count mismatch")
)

// maxEditDistance bounds suggestions that are not subsequence matches.
const maxEditDistance = 2

type Table struct {
	Types *types.Table

	funcs  map[string]*ast.Function
	consts map[string]uint64
	scopes []map[string]*ast.Variable
}

// New returns a table holding only the global scope.
func New(tab *types.Table) *Table {
	return &Table{
		Types:  tab,
		funcs:  make(map[string]*ast.Function),
		consts: make(map[string]uint64),
		scopes: []map[string]*ast.Variable{make(map[string]*ast.Variable)},
	}
}

// Enter opens a nested scope.
func (t *Table) Enter() {
	t.scopes = append(t.scopes, make(map[string]*ast.Variable))
}

// Leave closes the innermost scope. The global scope is never closed.
func (t *Table) Leave() {
	if len(t.scopes) > 1 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

// Global reports whether the innermost scope is the global one.
func (t *Table) Global() bool { return len(t.scopes) == 1 }

// DeclareVar binds v in the innermost scope.
func (t *Table) DeclareVar(v *ast.Variable) error {
	scope := t.scopes[len(t.scopes)-1]
	if _, ok := scope[v.Name]; ok {
		return fmt.Errorf("%w: %s", ErrRedefined, v.Name)
	}
	v.Global = t.Global()
	scope[v.Name] = v
	return nil
}

// LookupVar resolves name from the innermost scope outwards.
func (t *Table) LookupVar(name string) (*ast.Variable, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if v, ok := t.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// DefineConstant registers a named integer supplied by the host.
func (t *Table) DefineConstant(name string, v uint64) error {
	if _, ok := t.consts[name]; ok {
		return fmt.Errorf("%w: %s", ErrRedefined, name)
	}
	t.consts[name] = v
	return nil
}

func (t *Table) Constant(name string) (uint64, bool) {
	v, ok := t.consts[name]
	return v, ok
}

// DeclareFunction installs f, or merges it with an earlier declaration of
// the same name. The returned function is the one call sites must use: a
// prototype completed by a later definition keeps its identity, so calls
// parsed before the body still reach it.
func (t *Table) DeclareFunction(f *ast.Function, hasBody bool) (*ast.Function, error) {
	prev, ok := t.funcs[f.Name]
	if !ok {
		t.funcs[f.Name] = f
		return f, nil
	}
	if prev.Native {
		return nil, fmt.Errorf("%w: %s", ErrIntrinsic, f.Name)
	}
	if len(prev.Params) != len(f.Params) {
		return nil, fmt.Errorf("%w: %s: expected %d arguments, got %d",
			ErrArgumentMismatch, f.Name, len(prev.Params), len(f.Params))
	}
	if !hasBody {
		return prev, nil
	}
	if prev.Body != nil {
		return nil, fmt.Errorf("%w: %s", ErrRedefined, f.Name)
	}
	prev.Token = f.Token
	prev.Params = f.Params
	prev.Return = f.Return
	return prev, nil
}

func (t *Table) Function(name string) (*ast.Function, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// Suggest returns the visible name closest to name, or "" if nothing is
// close enough.
func (t *Table) Suggest(name string) string {
	candidates := t.names()
	if len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", maxEditDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// names lists every visible name once, sorted.
func (t *Table) names() []string {
	seen := make(map[string]bool)
	add := func(n string) { seen[n] = true }
	for _, scope := range t.scopes {
		for n := range scope {
			add(n)
		}
	}
	for n := range t.funcs {
		add(n)
	}
	for n := range t.consts {
		add(n)
	}
	for _, n := range t.Types.Names() {
		add(n)
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
