package value_test

import (
	"errors"
	"testing"

	"github.com/agenthands/trcarch/pkg/compiler/ast"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
)

func TestRecordIsZeroed(t *testing.T) {
	r := value.NewRecord(&types.Array{Elem: types.IntType, Len: 42})
	if r.Len() != 168 {
		t.Fatalf("len = %d, want 168", r.Len())
	}
	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %d", i, b)
		}
	}
}

func TestBigEndianLayout(t *testing.T) {
	r := value.NewBytes(8)
	p := r.Pointer()
	if err := p.StoreI32(0x12345678); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x12, 0x34, 0x56, 0x78}
	for i, b := range want {
		if r.Bytes()[i] != b {
			t.Errorf("byte %d = %#x, want %#x", i, r.Bytes()[i], b)
		}
	}
	hi, _ := p.LoadU16()
	lo, _ := p.Add(types.ShortType, 2).LoadU16()
	if hi != 0x1234 || lo != 0x5678 {
		t.Errorf("halves = %#x %#x", hi, lo)
	}
}

func TestSizedLoadsAndStores(t *testing.T) {
	p := value.NewBytes(8).Pointer()

	if err := p.StoreI8(-1); err != nil {
		t.Fatal(err)
	}
	if v, _ := p.LoadI8(); v != -1 {
		t.Errorf("LoadI8 = %d", v)
	}
	if v, _ := p.LoadU8(); v != 0xFF {
		t.Errorf("LoadU8 = %d", v)
	}

	p.StoreI16(-2)
	if v, _ := p.LoadI16(); v != -2 {
		t.Errorf("LoadI16 = %d", v)
	}

	p.StoreI64(-3)
	if v, _ := p.LoadI64(); v != -3 {
		t.Errorf("LoadI64 = %d", v)
	}
	if v, _ := p.LoadU64(); v != 0xFFFFFFFFFFFFFFFD {
		t.Errorf("LoadU64 = %#x", v)
	}
	if v, _ := p.LoadI32(); v != -1 {
		t.Errorf("LoadI32 of high half = %d", v)
	}
}

func TestLoadStoreByType(t *testing.T) {
	tests := []struct {
		name string
		typ  *types.Primitive
		in   uint64
		want uint64
	}{
		{"char", types.CharType, 0x180, 0xFFFFFFFFFFFFFF80},
		{"uchar", types.UCharType, 0x180, 0x80},
		{"short", types.ShortType, 0x12345, 0x2345},
		{"uint", types.UIntType, 0xFFFFFFFF, 0xFFFFFFFF},
		{"int", types.IntType, 0xFFFFFFFF, 0xFFFFFFFFFFFFFFFF},
		{"long", types.LongType, 1 << 40, 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := value.NewBytes(8).Pointer().As(tt.typ)
			if err := p.Store(tt.in); err != nil {
				t.Fatal(err)
			}
			got, err := p.Load()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Load = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	p := value.NewBytes(4).Pointer()
	tests := []struct {
		name string
		op   func() error
	}{
		{"past end", func() error { _, err := p.Add(types.CharType, 4).LoadU8(); return err }},
		{"straddles end", func() error { return p.Add(types.IntType, 2).StoreI32(1) }},
		{"negative", func() error { _, err := p.Add(types.CharType, -1).LoadU8(); return err }},
		{"wide load", func() error { _, err := p.LoadU64(); return err }},
		{"pointer slot", func() error { return p.StorePointer(p) }},
		{"cstring", func() error { return p.WriteCString("four") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, value.ErrOutOfBounds) {
				t.Errorf("err = %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestNullAndHostPointers(t *testing.T) {
	var null value.Pointer
	if !null.IsNull() {
		t.Error("zero pointer is not null")
	}
	if _, err := null.LoadU8(); !errors.Is(err, value.ErrNullPointer) {
		t.Errorf("null load err = %v", err)
	}
	if _, err := null.CString(); !errors.Is(err, value.ErrNullPointer) {
		t.Errorf("null cstring err = %v", err)
	}

	type event struct{ pc uint64 }
	ev := &event{pc: 1}
	h := value.NewHostPointer(ev)
	if h.IsNull() || h.Host() != ev {
		t.Error("host pointer lost its object")
	}
	if err := h.StoreI8(1); !errors.Is(err, value.ErrHostPointer) {
		t.Errorf("host store err = %v", err)
	}
	if !h.Equal(value.NewHostPointer(ev)) {
		t.Error("host pointers to the same object differ")
	}
}

func TestAliasing(t *testing.T) {
	r := value.NewBytes(10)
	buf := r.Pointer()
	str := buf.As(types.CharPtr)
	if err := str.Add(types.CharType, 0).Store(21); err != nil {
		t.Fatal(err)
	}
	if v, _ := buf.LoadU8(); v != 21 {
		t.Errorf("buf[0] = %d, want 21", v)
	}
	if !buf.Equal(str) {
		t.Error("aliases compare unequal")
	}
}

func TestPointerSlots(t *testing.T) {
	s := types.NewStruct("node", false)
	s.AddMember("v", types.IntType)
	s.AddMember("next", &types.Pointer{Elem: s})
	a := value.NewRecord(s)
	b := value.NewRecord(s)

	slot := a.Pointer().Add(&types.Pointer{Elem: s}, 4)
	if p, err := slot.LoadPointer(); err != nil || !p.IsNull() {
		t.Fatalf("fresh slot = %v, %v", p, err)
	}
	if err := slot.StorePointer(b.Pointer()); err != nil {
		t.Fatal(err)
	}
	got, _ := slot.LoadPointer()
	if got.Record() != b {
		t.Error("slot does not point at b")
	}
}

func TestCStrings(t *testing.T) {
	p := value.NewBytes(16).Pointer()
	if err := p.WriteCString("hello"); err != nil {
		t.Fatal(err)
	}
	if s, _ := p.CString(); s != "hello" {
		t.Errorf("CString = %q", s)
	}
	if s, _ := p.Add(types.CharType, 1).CString(); s != "ello" {
		t.Errorf("CString at 1 = %q", s)
	}

	full := value.RecordOf(&types.Array{Elem: types.CharType, Len: 3}, []byte("abcdef"))
	if s, _ := full.Pointer().CString(); s != "abc" {
		t.Errorf("unterminated CString = %q", s)
	}
	if s, err := full.Pointer().Add(types.CharType, 3).CString(); err != nil || s != "" {
		t.Errorf("CString at end = %q, %v", s, err)
	}
}

func TestContextChain(t *testing.T) {
	g := &ast.Variable{Name: "g", Type: types.IntType}
	x := &ast.Variable{Name: "x", Type: types.IntType}
	p := &ast.Variable{Name: "p", Type: types.CharPtr}

	root := value.NewContext(nil)
	root.Declare(g, 7)
	call := value.NewContext(root)

	if call.Scalar(x) != 0 {
		t.Error("unbound scalar is not 0")
	}
	if !call.Pointer(p).IsNull() {
		t.Error("unbound pointer is not null")
	}
	if call.Scalar(g) != 7 {
		t.Error("global not visible from call frame")
	}

	call.Set(g, 8)
	if root.Scalar(g) != 8 {
		t.Error("Set did not update the nearest binding")
	}

	call.Declare(x, 1)
	if root.Scalar(x) != 0 {
		t.Error("local leaked into the root frame")
	}

	r := value.NewBytes(2)
	call.SetPointer(p, r.Pointer())
	if call.Pointer(p).Record() != r {
		t.Error("pointer binding lost")
	}
	if call.Parent() != root {
		t.Error("parent mismatch")
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{value.Int(-5), "-5"},
		{value.Scalar(42), "42"},
		{value.Void, "void"},
		{value.Ref(value.Pointer{}), "null"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
