// Package arch hosts architecture scripts. Load compiles a script and runs
// its init function to learn the architecture's name, id, step layout and
// display format. NewAnalyzer additionally drives the script's process
// function over a stream of trace events.
package arch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/stdlib"
	"github.com/agenthands/trcarch/pkg/vm"
)

var (
	ErrNoInit    = errors.New("arch: no init function")
	ErrNoProcess = errors.New("arch: no process function")
	ErrNoStep    = errors.New("arch: no step type")
	ErrStepData  = errors.New("arch: step data is not a step struct")
)

type options struct {
	constants map[string]int64
	logger    *slog.Logger
	gas       int64
	stdout    io.Writer
}

// Option configures Load and NewAnalyzer.
type Option func(*options)

// WithConstants predeclares named integer constants for the script.
func WithConstants(c map[string]int64) Option {
	return func(o *options) { o.constants = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGas bounds every script call. 0 means unlimited.
func WithGas(gas int64) Option {
	return func(o *options) { o.gas = gas }
}

// WithStdout redirects printf.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Architecture is a loaded architecture script together with the metadata
// its init function declared.
type Architecture struct {
	ID          int16
	Name        string
	Description string
	Format      event.StepFormat

	// StepType is the struct create_step receives. StateMember names the
	// member holding the CPU state; InsnMember and InsnLenMember locate the
	// machine code.
	StepType      *types.Struct
	StateMember   string
	InsnMember    string
	InsnLenMember string

	// StateType is the CPU state struct; PCField and StepField name its
	// program counter and step counter.
	StateType *types.Struct
	PCField   string
	StepField string

	Program *ast.Program
	Machine *vm.Machine

	log *slog.Logger
}

var _ stdlib.Architecture = (*Architecture)(nil)

// Load compiles src and runs its init function.
func Load(src []byte, opts ...Option) (*Architecture, error) {
	return load(src, buildOptions(opts))
}

func load(src []byte, o options) (*Architecture, error) {
	host := vm.NewHost()
	if err := stdlib.Register(host); err != nil {
		return nil, err
	}
	prog, err := vm.Compile(src, host, o.constants)
	if err != nil {
		return nil, err
	}
	m, err := vm.New(prog, host)
	if err != nil {
		return nil, err
	}
	m.Gas = o.gas
	m.Stdout = o.stdout

	a := &Architecture{Program: prog, Machine: m, StepField: "step", log: o.logger}
	if _, ok := m.Lookup("init"); !ok {
		return nil, ErrNoInit
	}
	m.Grant(stdlib.ScopeArch, a)
	id, err := m.Call("init")
	if err != nil {
		return nil, fmt.Errorf("arch: init: %w", err)
	}
	a.ID = int16(id.Data)
	a.log.Debug("architecture loaded", "name", a.Name, "id", a.ID)
	return a, nil
}

func (a *Architecture) SetName(name string)        { a.Name = name }
func (a *Architecture) SetDescription(desc string) { a.Description = desc }
func (a *Architecture) SetFormat(f event.StepFormat) {
	a.Format = f
}

// SetStepType reports false when name does not resolve to a struct.
func (a *Architecture) SetStepType(name, state, insn, insnLen string) bool {
	s, ok := a.resolveStruct(name)
	if !ok {
		a.log.Warn("unknown step type", "type", name)
		return false
	}
	a.StepType = s
	a.StateMember = state
	a.InsnMember = insn
	a.InsnLenMember = insnLen
	return true
}

// SetStateType reports false when name does not resolve to a struct.
func (a *Architecture) SetStateType(name, pc, step string) bool {
	s, ok := a.resolveStruct(name)
	if !ok {
		a.log.Warn("unknown state type", "type", name)
		return false
	}
	a.StateType = s
	a.PCField = pc
	if step != "" {
		a.StepField = step
	}
	return true
}

func (a *Architecture) resolveStruct(name string) (*types.Struct, bool) {
	t, ok := a.Program.Types.Resolve(name)
	if !ok {
		return nil, false
	}
	s, ok := t.(*types.Struct)
	return s, ok && s.Complete()
}

// stateMember is the member of the step struct holding the CPU state.
func (a *Architecture) stateMember() (types.Member, bool) {
	if a.StepType == nil {
		return types.Member{}, false
	}
	return a.StepType.Member(a.StateMember)
}
