package stdlib

import (
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/vm"
)

var archEntries = []vm.HostFunctionEntry{
	{Name: "set_name", Return: types.VoidType, Params: oneString, RequiredScope: ScopeArch, Fn: SetName},
	{Name: "set_description", Return: types.VoidType, Params: oneString, RequiredScope: ScopeArch, Fn: SetDescription},
	{Name: "set_step_type", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr, types.CharPtr, types.CharPtr}, RequiredScope: ScopeArch, Fn: SetStepType},
	{Name: "set_state_type", Return: types.IntType, Params: []types.Type{types.CharPtr, types.CharPtr, types.CharPtr}, RequiredScope: ScopeArch, Fn: SetStateType},
	{Name: "set_format", Return: types.VoidType, Params: []types.Type{types.IntType, types.IntType, types.IntType, types.IntType, types.IntType}, RequiredScope: ScopeArch, Fn: SetFormat},
}

var oneString = []types.Type{types.CharPtr}

func architecture(m *vm.Machine) (Architecture, error) {
	h, err := m.Capability(ScopeArch)
	if err != nil {
		return nil, err
	}
	a, ok := h.(Architecture)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrCapability, ScopeArch, h)
	}
	return a, nil
}

// strs reads every argument as a C string.
func strs(args []value.Value) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := cstr(a)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// SetName: void set_name(char* name)
func SetName(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := architecture(m)
	if err != nil {
		return value.Void, err
	}
	s, err := cstr(args[0])
	if err != nil {
		return value.Void, err
	}
	a.SetName(s)
	return value.Void, nil
}

// SetDescription: void set_description(char* desc)
func SetDescription(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := architecture(m)
	if err != nil {
		return value.Void, err
	}
	s, err := cstr(args[0])
	if err != nil {
		return value.Void, err
	}
	a.SetDescription(s)
	return value.Void, nil
}

// SetStepType: int set_step_type(char* type, char* state, char* insn, char* insnLen)
func SetStepType(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := architecture(m)
	if err != nil {
		return value.Void, err
	}
	s, err := strs(args)
	if err != nil {
		return value.Void, err
	}
	if !a.SetStepType(s[0], s[1], s[2], s[3]) {
		return value.Int(1), nil
	}
	return value.Int(0), nil
}

// SetStateType: int set_state_type(char* type, char* pc, char* step)
func SetStateType(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := architecture(m)
	if err != nil {
		return value.Void, err
	}
	s, err := strs(args)
	if err != nil {
		return value.Void, err
	}
	if !a.SetStateType(s[0], s[1], s[2]) {
		return value.Int(1), nil
	}
	return value.Int(0), nil
}

// SetFormat: void set_format(int numberFmt, int addrWidth, int wordWidth, int opcodeWidth, int bigEndian)
func SetFormat(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := architecture(m)
	if err != nil {
		return value.Void, err
	}
	a.SetFormat(event.StepFormat{
		NumberFormat: int(args[0].Int()),
		AddrWidth:    int(args[1].Int()),
		WordWidth:    int(args[2].Int()),
		OpcodeWidth:  int(args[3].Int()),
		BigEndian:    args[4].Data != 0,
	})
	return value.Void, nil
}
