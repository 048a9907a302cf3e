package vm

import (
	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/lexer"
	"github.com/agenthands/trcarch/pkg/compiler/parser"
)

// Compile parses src against the intrinsics of host and the given named
// constants. A non-nil error wraps diag.ErrCompile and lists every
// diagnostic; the program must then not be run.
func Compile(src []byte, host *Host, constants map[string]int64) (*ast.Program, error) {
	p := parser.NewParser(lexer.NewScanner(src, nil), src)
	if host != nil {
		if err := p.DefineIntrinsics(host.Declarations()); err != nil {
			return nil, err
		}
	}
	for name, v := range constants {
		if err := p.DefineConstant(name, uint64(v)); err != nil {
			return nil, err
		}
	}
	return p.Parse()
}
