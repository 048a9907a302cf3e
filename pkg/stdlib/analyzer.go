package stdlib

import (
	"errors"
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/vm"
)

var (
	addrParam   = []types.Type{types.ULongType}
	accessParam = []types.Type{types.UCharType, types.ULongType, types.UCharType, types.ULongType}
)

var analyzerEntries = []vm.HostFunctionEntry{
	{Name: "getI8", Return: types.CharType, Params: addrParam, RequiredScope: ScopeAnalyzer, Fn: memoryReader(1)},
	{Name: "getI16", Return: types.ShortType, Params: addrParam, RequiredScope: ScopeAnalyzer, Fn: memoryReader(2)},
	{Name: "getI32", Return: types.IntType, Params: addrParam, RequiredScope: ScopeAnalyzer, Fn: memoryReader(4)},
	{Name: "getI64", Return: types.LongType, Params: addrParam, RequiredScope: ScopeAnalyzer, Fn: memoryReader(8)},
	{Name: "create_step", Return: types.VoidType, Params: []types.Type{types.VoidPtr}, RequiredScope: ScopeAnalyzer, Fn: CreateStep},
	{Name: "create_mmap", Return: types.VoidType, Params: []types.Type{
		types.ULongType, types.ULongType, types.IntType, types.IntType, types.IntType, types.ULongType, types.ULongType,
	}, RequiredScope: ScopeAnalyzer, Fn: CreateMmap},
	{Name: "create_read", Return: types.VoidType, Params: accessParam, RequiredScope: ScopeAnalyzer, Fn: memoryAccess(false)},
	{Name: "create_write", Return: types.VoidType, Params: accessParam, RequiredScope: ScopeAnalyzer, Fn: memoryAccess(true)},
	{Name: "set_context", Return: types.VoidType, Params: []types.Type{types.VoidPtr}, RequiredScope: ScopeAnalyzer, Fn: SetContext},
	{Name: "get_context", Return: types.VoidPtr, RequiredScope: ScopeAnalyzer, Fn: GetContext},
}

func analyzer(m *vm.Machine) (Analyzer, error) {
	h, err := m.Capability(ScopeAnalyzer)
	if err != nil {
		return nil, err
	}
	a, ok := h.(Analyzer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrCapability, ScopeAnalyzer, h)
	}
	return a, nil
}

// currentTid is the thread synthetic events are attributed to.
func currentTid(a Analyzer) int32 {
	if cur := a.Current(); cur != nil {
		return cur.Tid()
	}
	return 0
}

// memoryReader implements getI8..getI64. Unmapped memory reads as 0.
func memoryReader(size int) vm.HostFunction {
	return func(m *vm.Machine, args []value.Value) (value.Value, error) {
		a, err := analyzer(m)
		if err != nil {
			return value.Void, err
		}
		x, err := a.ReadMemory(args[0].Data, size)
		if errors.Is(err, event.ErrNotMapped) {
			return value.Int(0), nil
		}
		if err != nil {
			return value.Void, err
		}
		return value.Scalar(x), nil
	}
}

// CreateStep: void create_step(void* data)
func CreateStep(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := analyzer(m)
	if err != nil {
		return value.Void, err
	}
	return value.Void, a.CreateStep(args[0].Ptr)
}

// CreateMmap: void create_mmap(ulong addr, ulong len, int prot, int flags, int fd, ulong off, ulong result)
func CreateMmap(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := analyzer(m)
	if err != nil {
		return value.Void, err
	}
	a.Emit(&event.Mmap{
		Thread: currentTid(a),
		Addr:   args[0].Data,
		Len:    args[1].Data,
		Prot:   int32(args[2].Data),
		Flags:  int32(args[3].Data),
		Fd:     int32(args[4].Data),
		Off:    args[5].Data,
		Result: args[6].Data,
	})
	return value.Void, nil
}

// memoryAccess implements create_read and create_write:
// void create_write(uchar be, ulong addr, uchar size, ulong value)
func memoryAccess(write bool) vm.HostFunction {
	return func(m *vm.Machine, args []value.Value) (value.Value, error) {
		a, err := analyzer(m)
		if err != nil {
			return value.Void, err
		}
		a.Emit(&event.Memory{
			Thread:    currentTid(a),
			Write:     write,
			BigEndian: args[0].Data != 0,
			Addr:      args[1].Data,
			Size:      uint8(args[2].Data),
			Value:     args[3].Data,
			HasValue:  true,
		})
		return value.Void, nil
	}
}

// SetContext: void set_context(void* p)
func SetContext(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := analyzer(m)
	if err != nil {
		return value.Void, err
	}
	a.SetContext(args[0].Ptr)
	return value.Void, nil
}

// GetContext: void* get_context()
func GetContext(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := analyzer(m)
	if err != nil {
		return value.Void, err
	}
	return value.Ref(a.Context()), nil
}
