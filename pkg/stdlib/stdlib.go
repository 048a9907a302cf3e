// Package stdlib provides the intrinsics scripts can call: string and
// allocation helpers, event accessors, and the architecture and analyzer
// callbacks that reach back into the host.
package stdlib

import (
	"errors"
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/vm"
)

// Capability scopes. Intrinsics of a family run only after the host
// granted the matching collaborator with Machine.Grant.
const (
	ScopeArch     = "arch"
	ScopeAnalyzer = "analyzer"
)

var (
	ErrNotHostPointer = errors.New("stdlib: argument is not a host object")
	ErrNotStep        = errors.New("stdlib: event is not a step")
	ErrAllocTooLarge  = errors.New("stdlib: allocation too large")
	ErrFormat         = errors.New("stdlib: bad format")
	ErrCapability     = errors.New("stdlib: capability has wrong type")
)

// MaxAlloc bounds a single alloca.
const MaxAlloc = types.MaxSize

// Architecture receives the metadata an init function declares.
type Architecture interface {
	SetName(name string)
	SetDescription(desc string)
	// SetStepType and SetStateType report false when name is not a known
	// type.
	SetStepType(name, state, insn, insnLen string) bool
	SetStateType(name, pc, step string) bool
	SetFormat(f event.StepFormat)
}

// Analyzer is the host side of a running analysis.
type Analyzer interface {
	// Current returns the event being processed, or nil.
	Current() event.Event
	// ReadMemory reads size bytes at addr as of the current event. An
	// unmapped address fails with event.ErrNotMapped.
	ReadMemory(addr uint64, size int) (uint64, error)
	// CreateStep emits a step built from a script-owned step Record.
	CreateStep(data value.Pointer) error
	Emit(e event.Event)
	Context() value.Pointer
	SetContext(p value.Pointer)
}

// Register installs every intrinsic into host. The arch and analyzer
// families are always declared, so one script compiles in both roles.
func Register(host *vm.Host) error {
	for _, group := range [][]vm.HostFunctionEntry{baseEntries, archEntries, analyzerEntries} {
		for _, e := range group {
			if _, err := host.RegisterHostFunction(e); err != nil {
				return err
			}
		}
	}
	return nil
}

var baseEntries = []vm.HostFunctionEntry{
	{Name: "alloca", Return: types.VoidPtr, Params: []types.Type{types.ULongType}, Fn: Alloca},
	{Name: "strlen", Return: types.ULongType, Params: []types.Type{types.CharPtr}, Fn: Strlen},
	{Name: "strcmp", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr}, Fn: Strcmp},
	{Name: "strcpy", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr}, Fn: Strcpy},
	{Name: "strcat", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr}, Fn: Strcat},
	{Name: "sprintf", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr}, Variadic: true, Fn: Sprintf},
	{Name: "printf", Return: types.IntType, Params: []types.Type{types.CharPtr}, Variadic: true, Fn: Printf},
	{Name: "is_step_event", Return: types.IntType, Params: []types.Type{types.VoidPtr}, Fn: IsStepEvent},
	{Name: "get_field", Return: types.ULongType, Params: []types.Type{types.VoidPtr, types.CharPtr}, Fn: GetField},
}

// cstr reads a string argument. A null pointer reads as "".
func cstr(v value.Value) (string, error) {
	if v.Ptr.IsNull() {
		return "", nil
	}
	return v.Ptr.CString()
}

// hostEvent unwraps an event handed to the script as a host pointer.
func hostEvent(v value.Value) (event.Event, error) {
	if v.Kind != value.KindPointer || v.Ptr.IsNull() {
		return nil, fmt.Errorf("%w: null", ErrNotHostPointer)
	}
	evt, ok := v.Ptr.Host().(event.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotHostPointer, v.Ptr)
	}
	return evt, nil
}

// IsStepEvent: int is_step_event(void* evt)
func IsStepEvent(m *vm.Machine, args []value.Value) (value.Value, error) {
	if _, ok := args[0].Ptr.Host().(event.Step); ok {
		return value.Int(1), nil
	}
	return value.Int(0), nil
}

// GetField: ulong get_field(void* evt, char* name)
func GetField(m *vm.Machine, args []value.Value) (value.Value, error) {
	evt, err := hostEvent(args[0])
	if err != nil {
		return value.Void, err
	}
	name, err := cstr(args[1])
	if err != nil {
		return value.Void, err
	}
	if name == "tid" {
		return value.Int(int64(evt.Tid())), nil
	}
	step, ok := evt.(event.Step)
	if !ok {
		return value.Void, fmt.Errorf("%w: %s", ErrNotStep, evt.Kind())
	}
	switch name {
	case "pc":
		return value.Scalar(step.PC()), nil
	case "step":
		return value.Scalar(step.Step()), nil
	}
	x, err := step.Field(name)
	if err != nil {
		return value.Void, err
	}
	return value.Scalar(x), nil
}
