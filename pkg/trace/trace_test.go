package trace_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/trace"
)

const stepDef = "u64 pc; u32 step; s8 flags; u8 op;"

func description(t *testing.T, bigEndian bool) *trace.StateDescription {
	t.Helper()
	st, err := trace.CompileStep(stepDef)
	if err != nil {
		t.Fatal(err)
	}
	d, err := trace.NewStateDescription(14, 0, 8, 8, 4, st, "${pc;x4} op=${op;x2}", bigEndian)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// stepData lays out a big-endian step record.
func stepData(pc uint64, step uint32, flags int8, op uint8) []byte {
	b := make([]byte, 14)
	binary.BigEndian.PutUint64(b, pc)
	binary.BigEndian.PutUint32(b[8:], step)
	b[12] = byte(flags)
	b[13] = op
	return b
}

func encode(t *testing.T, d *trace.StateDescription, events ...event.Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := trace.NewWriter(&buf)
	if err := w.WriteHeader(d, stepDef); err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if err := w.WriteEvent(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func readAll(t *testing.T, r *trace.Reader) []event.Event {
	t.Helper()
	var out []event.Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, e)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	d := description(t, true)
	mmap := &event.Mmap{Thread: 1, Addr: 0x1000, Len: 0x1000, Prot: 3, Flags: 0x22, Fd: -1, Filename: "libc.so", Result: 0x1000}
	write := &event.Memory{Thread: 1, Write: true, BigEndian: true, Addr: 0x1004, Size: 4, Value: 0xDEADBEEF, HasValue: true}
	read := &event.Memory{Thread: 2, Addr: 0x1008, Size: 8}
	unmap := &event.Munmap{Thread: 2, Addr: 0x1000, Len: 0x1000}
	events := []event.Event{
		mmap,
		&trace.Step{Thread: 1, Desc: d, Data: stepData(0xBEEF, 1, -1, 0x15), Code: []byte{0x15}, Asm: []string{"nop"}, Typ: event.Call},
		write,
		&trace.Step{Thread: 1, Desc: d, Data: stepData(0xBEF0, 2, 3, 0x16), Asm: []string{"nop", "r1"}},
		read,
		unmap,
	}

	r := trace.NewReader(encode(t, d, events...))
	got := readAll(t, r)
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	for _, i := range []int{0, 2, 4, 5} {
		if !reflect.DeepEqual(got[i], events[i]) {
			t.Errorf("event %d = %+v, want %+v", i, got[i], events[i])
		}
	}

	s, ok := got[1].(*trace.Step)
	if !ok {
		t.Fatalf("event 1 is %T", got[1])
	}
	if s.Tid() != 1 || s.PC() != 0xBEEF || s.Step() != 1 {
		t.Errorf("step = tid %d pc %#x step %d", s.Tid(), s.PC(), s.Step())
	}
	if flags, _ := s.Field("flags"); flags != 0xFFFFFFFFFFFFFFFF {
		t.Errorf("flags = %#x, want sign extended -1", flags)
	}
	if op, _ := s.Field("op"); op != 0x15 {
		t.Errorf("op = %#x", op)
	}
	if _, err := s.Field("missing"); !errors.Is(err, event.ErrUnknownField) {
		t.Errorf("missing field err = %v", err)
	}
	if !bytes.Equal(s.Machinecode(), []byte{0x15}) || s.Type() != event.Call {
		t.Errorf("code %x type %v", s.Machinecode(), s.Type())
	}
	if got := s.String(); got != "beef op=15" {
		t.Errorf("String() = %q", got)
	}
	if got := s.Fields(); !reflect.DeepEqual(got, []string{"pc", "step", "flags", "op"}) {
		t.Errorf("fields = %q", got)
	}

	s2 := got[3].(*trace.Step)
	if !reflect.DeepEqual(s2.Asm, []string{"nop", "r1"}) || s2.Code != nil || s2.Type() != event.Other {
		t.Errorf("second step asm %q code %x type %v", s2.Asm, s2.Code, s2.Type())
	}
}

func TestReaderStringTable(t *testing.T) {
	d := description(t, true)
	buf := encode(t, d)
	put := func(vals ...any) {
		for _, v := range vals {
			binary.Write(buf, binary.BigEndian, v)
		}
	}
	put(uint32(trace.MagicString), uint32(0), uint16(3), []byte("mov"))
	put(uint32(trace.MagicStep), uint32(4), stepData(0x10, 1, 0, 0))
	put(uint8(2), uint32(1), uint32(0), uint16(0), uint8(5))

	got := readAll(t, trace.NewReader(buf))
	if len(got) != 1 {
		t.Fatalf("read %d events, want 1", len(got))
	}
	s := got[0].(*trace.Step)
	if !reflect.DeepEqual(s.Asm, []string{"mov", ""}) || s.Type() != event.Ret || s.Tid() != 4 {
		t.Errorf("asm %q type %v tid %d", s.Asm, s.Type(), s.Tid())
	}
}

func TestReaderErrors(t *testing.T) {
	d := description(t, true)
	tests := []struct {
		name string
		tail []byte
		want error
	}{
		{"unknown magic", []byte("ABCD\x00\x00\x00\x01"), trace.ErrUnknownRecord},
		{"truncated tid", []byte("STEP\x00\x00"), io.ErrUnexpectedEOF},
		{"truncated step", []byte("STEP\x00\x00\x00\x01\x00\x00"), io.ErrUnexpectedEOF},
		{"unknown string id", append(append([]byte("STEP\x00\x00\x00\x01"), stepData(0, 0, 0, 0)...), 1, 0, 0, 0, 9), trace.ErrStringID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := encode(t, d)
			buf.Write(tt.tail)
			_, err := trace.NewReader(buf).Next()
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := trace.NewReader(bytes.NewReader(nil)).Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("empty trace: err = %v", err)
	}
}

func TestStateDescription(t *testing.T) {
	st, err := trace.CompileStep(stepDef)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trace.NewStateDescription(14, 0, 3, 8, 4, st, "", true); !errors.Is(err, trace.ErrInvalidSize) {
		t.Errorf("pc size 3: err = %v", err)
	}
	if _, err := trace.NewStateDescription(14, 8, 8, 0, 4, st, "", true); !errors.Is(err, trace.ErrInvalidSize) {
		t.Errorf("pc past record: err = %v", err)
	}
	if _, err := trace.CompileStep("u64 pc"); !errors.Is(err, trace.ErrStepStruct) {
		t.Errorf("bad definition: err = %v", err)
	}

	le := description(t, false)
	data := []byte{0xEF, 0xBE, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 0, 0}
	if pc, step := le.PC(data), le.Step(data); pc != 0xBEEF || step != 7 {
		t.Errorf("little endian pc %#x step %d", pc, step)
	}
}

func TestHistory(t *testing.T) {
	d := description(t, true)
	step := func(n uint32) event.Event {
		return &trace.Step{Desc: d, Data: stepData(0, n, 0, 0)}
	}
	record := func(h *trace.History) {
		for _, e := range []event.Event{
			step(1),
			&event.Mmap{Addr: 0, Len: 0x100, Result: 0x1000},
			&event.Memory{Write: true, BigEndian: true, Addr: 0x1000, Size: 4, Value: 0x11223344, HasValue: true},
			&event.Memory{Addr: 0x1000, Size: 4, Value: 0x55, HasValue: true},
			step(5),
			&event.Memory{Write: true, Addr: 0x1002, Size: 1, Value: 0xAA, HasValue: true},
			step(9),
			&event.Munmap{Addr: 0x1000, Len: 0x100},
		} {
			h.Record(e)
		}
	}

	h := trace.NewHistory(true)
	if _, err := h.Read(0x1000, 4, 1); !errors.Is(err, trace.ErrNotMapped) {
		t.Errorf("empty history: err = %v", err)
	}
	record(h)

	tests := []struct {
		name string
		addr uint64
		size int
		step uint64
		want uint64
		err  error
	}{
		{"first write", 0x1000, 4, 1, 0x11223344, nil},
		{"before later write", 0x1000, 4, 4, 0x11223344, nil},
		{"after later write", 0x1000, 4, 5, 0x1122AA44, nil},
		{"single byte", 0x1001, 1, 8, 0x22, nil},
		{"unwritten", 0x1010, 2, 5, 0, nil},
		{"before mmap", 0x1000, 4, 0, 0, trace.ErrNotMapped},
		{"after munmap", 0x1000, 4, 9, 0, trace.ErrNotMapped},
		{"crosses end", 0x10FE, 4, 5, 0, trace.ErrNotMapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Read(tt.addr, tt.size, tt.step)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("Read = %#x, want %#x", got, tt.want)
			}
		})
	}

	le := trace.NewHistory(false)
	record(le)
	if got, _ := le.Read(0x1000, 4, 1); got != 0x44332211 {
		t.Errorf("little endian read = %#x", got)
	}
}

func TestHistoryView(t *testing.T) {
	d := description(t, true)
	h := trace.NewHistory(true)
	var seqs []uint64
	for _, e := range []event.Event{
		&trace.Step{Desc: d, Data: stepData(0, 1, 0, 0)},
		&event.Mmap{Addr: 0x1000, Len: 0x100},
		&event.Memory{Write: true, BigEndian: true, Addr: 0x1000, Size: 4, Value: 0x11223344, HasValue: true},
		&trace.Step{Desc: d, Data: stepData(0, 5, 0, 0)},
		&event.Memory{Write: true, Addr: 0x1002, Size: 1, Value: 0xAA, HasValue: true},
	} {
		seqs = append(seqs, h.Record(e))
	}
	if want := []uint64{1, 2, 3, 4, 5}; !reflect.DeepEqual(seqs, want) {
		t.Fatalf("seqs = %v, want %v", seqs, want)
	}

	tests := []struct {
		name string
		seq  uint64
		step uint64
		want uint64
		err  error
	}{
		{"before mmap", 1, 1, 0, trace.ErrNotMapped},
		{"mapped unwritten", 2, 1, 0, nil},
		{"written", 3, 1, 0x11223344, nil},
		{"same step before write", 4, 5, 0x11223344, nil},
		{"same step after write", 5, 5, 0x1122AA44, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.View(tt.seq).Read(0x1000, 4, tt.step)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("Read = %#x, want %#x", got, tt.want)
			}
		})
	}
}

const replayScript = `
struct state {
	unsigned long pc;
	unsigned long step;
	long mem;
};

struct step {
	struct state state;
};

int init()
{
	set_name("replay");
	set_step_type("step", "state", "", "");
	set_state_type("state", "pc", "step");
	return 7;
}

struct step s;

void process(void* evt)
{
	if (!is_step_event(evt)) {
		return;
	}
	if (get_field(evt, "pc") == 0xDEAD) {
		int z = 0;
		z = 1 / z;
	}
	s.state.pc = get_field(evt, "pc");
	s.state.step = get_field(evt, "step");
	s.state.mem = getI32(0x1000);
	create_step(&s);
}
`

func replayTrace(t *testing.T) *trace.Reader {
	d := description(t, true)
	st := func(tid int32, pc uint64, n uint32) event.Event {
		return &trace.Step{Thread: tid, Desc: d, Data: stepData(pc, n, 0, 0)}
	}
	buf := encode(t, d,
		&event.Mmap{Thread: 1, Addr: 0x1000, Len: 0x100, Result: 0x1000},
		&event.Memory{Thread: 1, Write: true, BigEndian: true, Addr: 0x1000, Size: 4, Value: 7, HasValue: true},
		st(1, 0x10, 1),
		st(2, 0x20, 2),
		st(1, 0xDEAD, 3),
		st(2, 0x30, 4),
	)
	return trace.NewReader(buf)
}

func TestReplay(t *testing.T) {
	cfg := trace.Config{
		Script:  []byte(replayScript),
		Workers: 2,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Stdout:  io.Discard,
	}
	res, err := trace.Replay(context.Background(), replayTrace(t), cfg)
	if err != nil {
		t.Fatal(err)
	}

	var pcs []uint64
	for _, e := range res.Events {
		s := e.(event.Step)
		pcs = append(pcs, s.PC())
		if mem, err := s.Field("mem"); err != nil || mem != 7 {
			t.Errorf("pc %#x: mem = %d, %v", s.PC(), mem, err)
		}
	}
	// thread 2 lands on worker 0, thread 1 on worker 1
	if want := []uint64{0x20, 0x30, 0x10}; !reflect.DeepEqual(pcs, want) {
		t.Errorf("pcs = %#x, want %#x", pcs, want)
	}

	want := map[string]int64{"mmap": 1, "write": 1, "step": 3, trace.StatFaults: 1, trace.StatEmitted: 3}
	if got := res.Stats.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("stats = %v, want %v", got, want)
	}
	if res.Session.String() == "" {
		t.Error("no session id")
	}
}

func TestReplayMemoryIsDeterministic(t *testing.T) {
	d := description(t, true)
	st := func(tid int32, pc uint64, n uint32) event.Event {
		return &trace.Step{Thread: tid, Desc: d, Data: stepData(pc, n, 0, 0)}
	}
	write := func(tid int32, v uint64) event.Event {
		return &event.Memory{Thread: tid, Write: true, BigEndian: true, Addr: 0x1000, Size: 4, Value: v, HasValue: true}
	}
	buf := encode(t, d,
		&event.Mmap{Thread: 1, Addr: 0x1000, Len: 0x100, Result: 0x1000},
		write(1, 7),
		st(1, 0x10, 1),
		write(1, 9),
		st(2, 0x20, 2),
		write(2, 11),
		st(1, 0x30, 3),
	).Bytes()

	want := map[uint64]uint64{0x10: 7, 0x20: 9, 0x30: 11}
	for range 20 {
		cfg := trace.Config{
			Script:  []byte(replayScript),
			Workers: 2,
			Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
			Stdout:  io.Discard,
		}
		res, err := trace.Replay(context.Background(), trace.NewReader(bytes.NewReader(buf)), cfg)
		if err != nil {
			t.Fatal(err)
		}
		got := make(map[uint64]uint64)
		for _, e := range res.Events {
			s := e.(event.Step)
			got[s.PC()], _ = s.Field("mem")
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("mem by pc = %#x, want %#x", got, want)
		}
	}
}

func TestReplayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := trace.Config{Script: []byte(replayScript), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	res, err := trace.Replay(ctx, replayTrace(t), cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("got %d events after cancel", len(res.Events))
	}
}

func TestReplayBadScript(t *testing.T) {
	cfg := trace.Config{Script: []byte("int init() { return 1; }"), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := trace.Replay(context.Background(), replayTrace(t), cfg); err == nil {
		t.Fatal("replay without process succeeded")
	}
}

func TestQuery(t *testing.T) {
	events := []event.Event{
		&event.Mmap{Thread: 1, Addr: 0x1000, Len: 0x100, Filename: "a.out"},
		&event.Memory{Thread: 2, Write: true, Addr: 0x1004, Size: 4, Value: 9, HasValue: true},
	}
	tests := []struct {
		query string
		want  []any
	}{
		{".kind", []any{"mmap", "write"}},
		{`select(.kind == "mmap") | .addr`, []any{float64(0x1000)}},
		{`select(.tid == 2) | .value`, []any{float64(9)}},
		{`.filename // empty`, []any{"a.out"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := trace.Query(context.Background(), tt.query, events)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := trace.Query(context.Background(), ".[", events); err == nil {
		t.Error("bad query parsed")
	}
	if _, err := trace.Query(context.Background(), `error("boom")`, events); err == nil {
		t.Error("error() not reported")
	}
}
