// Command trcarch compiles, checks and replays architecture scripts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/stdlib"
	"github.com/agenthands/trcarch/pkg/vm"
)

const usage = `Usage: trcarch <command> [arguments]

Commands:
  run <script> [-fn main] [-gas N] [args...]   call a script function
  check <script>                                report compile errors
  replay [-config f] [-script s] [-trace t]     run an analyzer over a trace
  repl <script>                                 evaluate expressions interactively
  watch <script>                                recompile on every change
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runScript()
	case "check":
		checkScript()
	case "replay":
		replayTrace()
	case "repl":
		runRepl()
	case "watch":
		watchScript()
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
	default:
		fmt.Println("Unknown command:", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

// scriptArg returns os.Args[2] as the script path, or exits with usage.
func scriptArg(cmd string) string {
	if len(os.Args) < 3 {
		fmt.Printf("Usage: trcarch %s <script>\n", cmd)
		os.Exit(1)
	}
	return os.Args[2]
}

func readFile(path string) []byte {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	return src
}

// compile parses src against the full intrinsic set.
func compile(src []byte, constants map[string]int64) (*ast.Program, *vm.Host, error) {
	host := vm.NewHost()
	if err := stdlib.Register(host); err != nil {
		return nil, nil, err
	}
	prog, err := vm.Compile(src, host, constants)
	return prog, host, err
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
