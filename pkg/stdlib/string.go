package stdlib

import (
	"fmt"
	"strings"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/vm"
)

// Alloca: void* alloca(ulong n)
// The Record lives as long as something references it; there is no free.
func Alloca(m *vm.Machine, args []value.Value) (value.Value, error) {
	n := args[0].Data
	if n > MaxAlloc {
		return value.Void, fmt.Errorf("%w: %d bytes", ErrAllocTooLarge, n)
	}
	return value.Ref(value.NewBytes(int(n)).Pointer().As(types.CharType)), nil
}

// Strlen: ulong strlen(char* s)
func Strlen(m *vm.Machine, args []value.Value) (value.Value, error) {
	s, err := cstr(args[0])
	if err != nil {
		return value.Void, err
	}
	return value.Scalar(uint64(len(s))), nil
}

// Strcmp: int strcmp(char* a, char* b)
func Strcmp(m *vm.Machine, args []value.Value) (value.Value, error) {
	a, err := cstr(args[0])
	if err != nil {
		return value.Void, err
	}
	b, err := cstr(args[1])
	if err != nil {
		return value.Void, err
	}
	return value.Int(int64(strings.Compare(a, b))), nil
}

// Strcpy: int strcpy(char* dst, char* src)
func Strcpy(m *vm.Machine, args []value.Value) (value.Value, error) {
	src, err := cstr(args[1])
	if err != nil {
		return value.Void, err
	}
	if err := args[0].Ptr.WriteCString(src); err != nil {
		return value.Void, err
	}
	return value.Int(0), nil
}

// Strcat: int strcat(char* dst, char* src)
func Strcat(m *vm.Machine, args []value.Value) (value.Value, error) {
	dst := args[0].Ptr
	head, err := dst.CString()
	if err != nil {
		return value.Void, err
	}
	src, err := cstr(args[1])
	if err != nil {
		return value.Void, err
	}
	if err := dst.Add(types.CharType, len(head)).WriteCString(src); err != nil {
		return value.Void, err
	}
	return value.Int(0), nil
}
