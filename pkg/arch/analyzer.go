package arch

import (
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/stdlib"
)

// DisasmSize is the size of the buffer disasm writes into.
const DisasmSize = 64

// Memory answers reads against the memory state of the traced program as
// of a given step.
type Memory interface {
	Read(addr uint64, size int, step uint64) (uint64, error)
}

// Analyzer feeds trace events to an architecture script and collects the
// events the script emits. It implements stdlib.Analyzer. Like the Machine
// it wraps, an Analyzer is not safe for concurrent use.
type Analyzer struct {
	Arch *Architecture

	process *ast.Function
	memory  Memory

	cur     event.Event
	step    uint64
	ctx     value.Pointer
	events  []event.Event
	pending []*CustomStep
}

var _ stdlib.Analyzer = (*Analyzer)(nil)

// NewAnalyzer loads src as an architecture and prepares its process
// function.
func NewAnalyzer(src []byte, opts ...Option) (*Analyzer, error) {
	a, err := load(src, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	process, ok := a.Machine.Lookup("process")
	if !ok {
		return nil, ErrNoProcess
	}
	if n := len(process.Params); n < 1 || n > 2 {
		return nil, fmt.Errorf("arch: process takes %d parameters, want 1 or 2", n)
	}
	an := &Analyzer{Arch: a, process: process}
	a.Machine.Grant(stdlib.ScopeAnalyzer, an)
	return an, nil
}

// SetMemory attaches the memory history getI8..getI64 read from.
func (an *Analyzer) SetMemory(m Memory) { an.memory = m }

// Start clears the emitted events and runs start if the script has one.
func (an *Analyzer) Start() error {
	an.events = nil
	an.pending = nil
	an.cur = nil
	an.step = 0
	return an.callOptional("start")
}

// Process hands evt to the script. On a fault every event the script
// emitted for evt is dropped and the analyzer stays usable; the caller
// decides whether to skip the event.
func (an *Analyzer) Process(evt event.Event) error {
	if s, ok := evt.(event.Step); ok {
		an.step = s.Step()
	}
	an.cur = evt
	args := []value.Value{value.Ref(value.NewHostPointer(evt))}
	if len(an.process.Params) == 2 {
		args = append(args, value.Ref(value.Pointer{}))
	}
	mark := len(an.events)
	_, err := an.Arch.Machine.Call("process", args...)
	an.cur = nil
	if err == nil {
		err = an.resolve()
	}
	if err != nil {
		clear(an.events[mark:])
		an.events = an.events[:mark]
		an.pending = nil
	}
	return err
}

// Finish runs finish if the script has one.
func (an *Analyzer) Finish() error {
	return an.callOptional("finish")
}

func (an *Analyzer) callOptional(name string) error {
	if _, ok := an.Arch.Machine.Lookup(name); !ok {
		return nil
	}
	_, err := an.Arch.Machine.Call(name)
	if rerr := an.resolve(); err == nil {
		err = rerr
	}
	return err
}

// resolve fills in the disassembly and type of the steps created during
// the last call. It runs after the call so the script is never re-entered.
func (an *Analyzer) resolve() error {
	pending := an.pending
	an.pending = nil
	for _, s := range pending {
		text, err := an.Disassemble(s.data)
		if err != nil {
			return err
		}
		s.asm = splitDisassembly(text)
		if s.typ, err = an.Type(s.data); err != nil {
			return err
		}
	}
	return nil
}

// Disassemble runs disasm over a step struct. Without disasm the result
// is empty.
func (an *Analyzer) Disassemble(data value.Pointer) (string, error) {
	if _, ok := an.Arch.Machine.Lookup("disasm"); !ok {
		return "", nil
	}
	buf := value.NewBytes(DisasmSize).Pointer().As(types.CharType)
	if _, err := an.Arch.Machine.Call("disasm", value.Ref(data), value.Ref(buf)); err != nil {
		return "", err
	}
	return buf.CString()
}

// Type runs get_type over a step struct. Without get_type every step is
// event.Other.
func (an *Analyzer) Type(data value.Pointer) (event.InstructionType, error) {
	if _, ok := an.Arch.Machine.Lookup("get_type"); !ok {
		return event.Other, nil
	}
	v, err := an.Arch.Machine.Call("get_type", value.Ref(data))
	if err != nil {
		return event.Other, err
	}
	return event.TypeOf(int64(int32(v.Data))), nil
}

// Events returns the events emitted since Start.
func (an *Analyzer) Events() []event.Event { return an.events }

func (an *Analyzer) Current() event.Event { return an.cur }

func (an *Analyzer) ReadMemory(addr uint64, size int) (uint64, error) {
	if an.memory == nil {
		return 0, event.ErrNotMapped
	}
	return an.memory.Read(addr, size, an.step)
}

func (an *Analyzer) CreateStep(data value.Pointer) error {
	tid := int32(0)
	if an.cur != nil {
		tid = an.cur.Tid()
	}
	s, err := newCustomStep(an.Arch, tid, an.step, data)
	if err != nil {
		return err
	}
	an.events = append(an.events, s)
	an.pending = append(an.pending, s)
	return nil
}

func (an *Analyzer) Emit(e event.Event) { an.events = append(an.events, e) }

func (an *Analyzer) Context() value.Pointer     { return an.ctx }
func (an *Analyzer) SetContext(p value.Pointer) { an.ctx = p }
