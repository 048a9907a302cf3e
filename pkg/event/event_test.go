package event_test

import (
	"encoding/json"
	"testing"

	"github.com/agenthands/trcarch/pkg/event"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "OTHER"},
		{1, "JCC"},
		{2, "JMP"},
		{3, "JMP_INDIRECT"},
		{4, "CALL"},
		{5, "RET"},
		{6, "SYSCALL"},
		{7, "RTI"},
		{8, "OTHER"},
		{-1, "OTHER"},
	}
	for _, tt := range tests {
		if got := event.TypeOf(tt.in).String(); got != tt.want {
			t.Errorf("TypeOf(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMemoryKind(t *testing.T) {
	r := &event.Memory{Addr: 1}
	w := &event.Memory{Addr: 1, Write: true}
	if r.Kind() != event.KindRead || w.Kind() != event.KindWrite {
		t.Errorf("kinds = %v, %v", r.Kind(), w.Kind())
	}
}

func TestJSON(t *testing.T) {
	b, err := event.JSON(&event.Mmap{Thread: 3, Addr: 0x1000, Len: 0x2000, Prot: 5, Fd: -1, Result: 0x1000})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["kind"] != "mmap" || got["addr"] != float64(0x1000) || got["fd"] != float64(-1) || got["tid"] != float64(3) {
		t.Errorf("JSON = %s", b)
	}
	if _, ok := got["filename"]; ok {
		t.Error("empty filename rendered")
	}

	b, _ = event.JSON(&event.Memory{Addr: 8, Size: 4})
	got = nil
	json.Unmarshal(b, &got)
	if _, ok := got["value"]; ok {
		t.Errorf("value rendered without HasValue: %s", b)
	}
}
