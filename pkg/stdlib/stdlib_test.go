package stdlib_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/stdlib"
	"github.com/agenthands/trcarch/pkg/vm"
)

func load(t *testing.T, src string) *vm.Machine {
	t.Helper()
	host := vm.NewHost()
	if err := stdlib.Register(host); err != nil {
		t.Fatal(err)
	}
	prog, err := vm.Compile([]byte(src), host, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	m, err := vm.New(prog, host)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func call(t *testing.T, m *vm.Machine, name string, args ...value.Value) int64 {
	t.Helper()
	v, err := m.Call(name, args...)
	if err != nil {
		t.Fatalf("Call(%s) error = %v", name, err)
	}
	return v.Int()
}

func TestStringIntrinsics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int64
	}{
		{"strlen", `int main(){ return strlen("hello"); }`, 5},
		{"strcpy strcat", `int main(){ char buf[16]; strcpy(buf, "ab"); strcat(buf, "cd"); return strlen(buf); }`, 4},
		{"strcmp equal", `int main(){ return strcmp("abc", "abc"); }`, 0},
		{"strcmp less", `int main(){ return strcmp("abc", "abd"); }`, -1},
		{"strcmp greater", `int main(){ return strcmp("b", "a"); }`, 1},
		{"alloca", `int main(){ char* p = alloca(8); p[7] = 5; return p[7] + p[0]; }`, 5},
		{"alloca struct", `
struct pair { int a; int b; };
int main(){ struct pair* p = alloca(8); p->b = 9; return p->b; }`, 9},
		{"sprintf", `
int main(){
	char buf[32];
	int n = sprintf(buf, "%d-%x-%s", 42, 255, "ok");
	return strcmp(buf, "42-ff-ok") * 100 + n;
}`, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(t, load(t, tt.src), "main"); got != tt.want {
				t.Errorf("main() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStringFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"alloca bound", `int main(){ char* p = alloca(8); return p[8]; }`, vm.ErrOutOfBounds},
		{"strcpy overflow", `int main(){ char buf[4]; strcpy(buf, "toolong"); return 0; }`, vm.ErrOutOfBounds},
		{"sprintf overflow", `int main(){ char buf[4]; sprintf(buf, "%s", "toolong"); return 0; }`, vm.ErrOutOfBounds},
		{"sprintf missing arg", `int main(){ char buf[8]; sprintf(buf, "%d"); return 0; }`, stdlib.ErrFormat},
		{"huge alloca", `int main(){ char* p = alloca(1 << 30); return 0; }`, stdlib.ErrAllocTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.src).Call("main")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPrintf(t *testing.T) {
	m := load(t, `int main(){ return printf("pc=%04x %s\n", 0xbe, "nop"); }`)
	var out bytes.Buffer
	m.Stdout = &out
	if n := call(t, m, "main"); n != 12 {
		t.Errorf("printf returned %d", n)
	}
	if out.String() != "pc=00be nop\n" {
		t.Errorf("output = %q", out.String())
	}
}

func cstring(s string) value.Value {
	rec := value.NewBytes(len(s) + 1)
	rec.Pointer().WriteCString(s)
	return value.Ref(rec.Pointer())
}

func TestFormat(t *testing.T) {
	tests := []struct {
		format string
		args   []value.Value
		want   string
	}{
		{"plain", nil, "plain"},
		{"%d", []value.Value{value.Int(-7)}, "-7"},
		{"%5d|", []value.Value{value.Int(42)}, "   42|"},
		{"%-5d|", []value.Value{value.Int(42)}, "42   |"},
		{"%+d", []value.Value{value.Int(3)}, "+3"},
		{"%08x", []value.Value{value.Int(0xbeef)}, "0000beef"},
		{"%#x", []value.Value{value.Int(255)}, "0xff"},
		{"%X", []value.Value{value.Int(255)}, "FF"},
		{"%o", []value.Value{value.Int(8)}, "10"},
		{"%hhd", []value.Value{value.Int(255)}, "-1"},
		{"%hu", []value.Value{value.Int(-1)}, "65535"},
		{"%u", []value.Value{value.Int(-1)}, "4294967295"},
		{"%lu", []value.Value{value.Int(-1)}, "18446744073709551615"},
		{"%lld", []value.Value{value.Int(-1 << 40)}, "-1099511627776"},
		{"%x", []value.Value{value.Int(-1)}, "ffffffff"},
		{"%c%c", []value.Value{value.Int('o'), value.Int('k')}, "ok"},
		{"100%%", nil, "100%"},
		{"%s", []value.Value{cstring("abc")}, "abc"},
		{"%.2s", []value.Value{cstring("abc")}, "ab"},
		{"%5s|", []value.Value{cstring("ab")}, "   ab|"},
		{"%*d", []value.Value{value.Int(4), value.Int(7)}, "   7"},
		{"%.3d", []value.Value{value.Int(7)}, "007"},
		{"%s", []value.Value{value.Ref(value.Pointer{})}, ""},
		{"%p", []value.Value{value.Ref(value.Pointer{})}, "null"},
	}
	for _, tt := range tests {
		got, err := stdlib.Format(tt.format, tt.args)
		if err != nil {
			t.Errorf("Format(%q) error = %v", tt.format, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormatErrors(t *testing.T) {
	for _, f := range []string{"%d", "%q", "abc %", "%l"} {
		if _, err := stdlib.Format(f, nil); !errors.Is(err, stdlib.ErrFormat) {
			t.Errorf("Format(%q) error = %v", f, err)
		}
	}
}

type fakeStep struct {
	pc, step uint64
	fields   map[string]uint64
}

func (s *fakeStep) Kind() event.Kind            { return event.KindStep }
func (s *fakeStep) Tid() int32                  { return 4 }
func (s *fakeStep) PC() uint64                  { return s.pc }
func (s *fakeStep) Step() uint64                { return s.step }
func (s *fakeStep) Machinecode() []byte         { return nil }
func (s *fakeStep) Disassembly() []string       { return nil }
func (s *fakeStep) Type() event.InstructionType { return event.Other }
func (s *fakeStep) Field(name string) (uint64, error) {
	v, ok := s.fields[name]
	if !ok {
		return 0, event.ErrUnknownField
	}
	return v, nil
}

func TestEventIntrinsics(t *testing.T) {
	m := load(t, `
int check(void* e){ return is_step_event(e); }
long field(void* e, char* name){ return get_field(e, name); }
`)
	step := value.Ref(value.NewHostPointer(&fakeStep{pc: 0xBEEF, step: 12, fields: map[string]uint64{"a": 42}}))
	mmap := value.Ref(value.NewHostPointer(&event.Mmap{Thread: 2}))

	if got := call(t, m, "check", step); got != 1 {
		t.Errorf("is_step_event(step) = %d", got)
	}
	if got := call(t, m, "check", mmap); got != 0 {
		t.Errorf("is_step_event(mmap) = %d", got)
	}
	if got := call(t, m, "check", value.Int(0)); got != 0 {
		t.Errorf("is_step_event(null) = %d", got)
	}

	for name, want := range map[string]int64{"pc": 0xBEEF, "step": 12, "tid": 4, "a": 42} {
		if got := call(t, m, "field", step, cstring(name)); got != want {
			t.Errorf("get_field(%s) = %d, want %d", name, got, want)
		}
	}
	if got := call(t, m, "field", mmap, cstring("tid")); got != 2 {
		t.Errorf("get_field(mmap, tid) = %d", got)
	}
	if _, err := m.Call("field", step, cstring("nope")); !errors.Is(err, event.ErrUnknownField) {
		t.Errorf("unknown field err = %v", err)
	}
	if _, err := m.Call("field", mmap, cstring("pc")); !errors.Is(err, stdlib.ErrNotStep) {
		t.Errorf("pc of mmap err = %v", err)
	}
	if _, err := m.Call("field", value.Int(0), cstring("pc")); !errors.Is(err, stdlib.ErrNotHostPointer) {
		t.Errorf("null event err = %v", err)
	}
}

type fakeArch struct {
	name, desc  string
	stepType    []string
	stateType   []string
	format      event.StepFormat
	knownStruct string
}

func (a *fakeArch) SetName(name string)        { a.name = name }
func (a *fakeArch) SetDescription(desc string) { a.desc = desc }
func (a *fakeArch) SetFormat(f event.StepFormat) {
	a.format = f
}
func (a *fakeArch) SetStepType(name, state, insn, insnLen string) bool {
	if name != a.knownStruct {
		return false
	}
	a.stepType = []string{name, state, insn, insnLen}
	return true
}
func (a *fakeArch) SetStateType(name, pc, step string) bool {
	if name != a.knownStruct {
		return false
	}
	a.stateType = []string{name, pc, step}
	return true
}

func TestArchIntrinsics(t *testing.T) {
	m := load(t, `
int init() {
	set_name("c_arch");
	set_description("Custom Test Architecture");
	set_format(16, 8, 4, 2, 1);
	return set_step_type("step", "state", "insn", "len") * 10 + set_state_type("nope", "pc", "step");
}`)
	if _, err := m.Call("init"); !errors.Is(err, vm.ErrSecurityViolation) {
		t.Fatalf("init without capability: err = %v", err)
	}

	a := &fakeArch{knownStruct: "step"}
	m.Grant(stdlib.ScopeArch, a)
	if got := call(t, m, "init"); got != 1 {
		t.Errorf("init() = %d, want 1", got)
	}
	if a.name != "c_arch" || a.desc != "Custom Test Architecture" {
		t.Errorf("metadata = %q, %q", a.name, a.desc)
	}
	want := event.StepFormat{NumberFormat: 16, AddrWidth: 8, WordWidth: 4, OpcodeWidth: 2, BigEndian: true}
	if a.format != want {
		t.Errorf("format = %+v", a.format)
	}
	if len(a.stepType) != 4 || a.stepType[3] != "len" || a.stateType != nil {
		t.Errorf("step %v state %v", a.stepType, a.stateType)
	}

	m.Grant(stdlib.ScopeArch, "not an architecture")
	if _, err := m.Call("init"); !errors.Is(err, stdlib.ErrCapability) {
		t.Errorf("wrong capability err = %v", err)
	}
}

type fakeAnalyzer struct {
	cur    event.Event
	mem    map[uint64]uint64
	events []event.Event
	steps  []value.Pointer
	ctx    value.Pointer
}

func (a *fakeAnalyzer) Current() event.Event { return a.cur }
func (a *fakeAnalyzer) ReadMemory(addr uint64, size int) (uint64, error) {
	v, ok := a.mem[addr]
	if !ok {
		return 0, event.ErrNotMapped
	}
	return v, nil
}
func (a *fakeAnalyzer) CreateStep(p value.Pointer) error {
	a.steps = append(a.steps, p)
	return nil
}
func (a *fakeAnalyzer) Emit(e event.Event)         { a.events = append(a.events, e) }
func (a *fakeAnalyzer) Context() value.Pointer     { return a.ctx }
func (a *fakeAnalyzer) SetContext(p value.Pointer) { a.ctx = p }

func TestAnalyzerIntrinsics(t *testing.T) {
	m := load(t, `
struct state { int n; };
struct step { unsigned char op; struct state st; };

long memory() { return getI8(0x10) * 1000 + getI32(0x20); }

int emit() {
	struct step s;
	s.op = 7;
	create_step(&s);
	create_mmap(0x1000, 0x2000, 5, 2, -1, 0, 0x1000);
	create_read(1, 0x1000, 4, 0xAB);
	create_write(0, 0x1004, 1, 0xCD);
	return 0;
}

int remember() {
	struct state* s = alloca(4);
	s->n = 3;
	set_context(s);
	return 0;
}

int recall() {
	struct state* s = get_context();
	return s->n;
}
`)
	a := &fakeAnalyzer{
		cur: &event.Munmap{Thread: 9},
		mem: map[uint64]uint64{0x10: 0xFF},
	}
	m.Grant(stdlib.ScopeAnalyzer, a)

	if got := call(t, m, "memory"); got != -1000 {
		t.Errorf("memory() = %d, want -1000", got)
	}

	call(t, m, "emit")
	if len(a.steps) != 1 {
		t.Fatalf("steps = %d", len(a.steps))
	}
	if op, _ := a.steps[0].LoadU8(); op != 7 {
		t.Errorf("step op = %d", op)
	}
	if len(a.events) != 3 {
		t.Fatalf("events = %d", len(a.events))
	}
	mm := a.events[0].(*event.Mmap)
	if mm.Addr != 0x1000 || mm.Len != 0x2000 || mm.Fd != -1 || mm.Result != 0x1000 || mm.Thread != 9 {
		t.Errorf("mmap = %+v", mm)
	}
	rd := a.events[1].(*event.Memory)
	if rd.Write || !rd.BigEndian || rd.Size != 4 || rd.Value != 0xAB {
		t.Errorf("read = %+v", rd)
	}
	wr := a.events[2].(*event.Memory)
	if !wr.Write || wr.BigEndian || wr.Addr != 0x1004 || wr.Value != 0xCD {
		t.Errorf("write = %+v", wr)
	}

	call(t, m, "remember")
	if got := call(t, m, "recall"); got != 3 {
		t.Errorf("recall() = %d, want 3", got)
	}
}
