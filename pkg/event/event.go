// Package event defines the trace events exchanged between trace readers,
// analyzers and scripts.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownField = errors.New("event: unknown field")

// Kind identifies the concrete event type.
type Kind uint8

const (
	KindStep Kind = iota
	KindMmap
	KindMunmap
	KindRead
	KindWrite
)

var kindNames = [...]string{
	KindStep:   "step",
	KindMmap:   "mmap",
	KindMunmap: "munmap",
	KindRead:   "read",
	KindWrite:  "write",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// InstructionType classifies a step for control-flow reconstruction.
type InstructionType uint8

const (
	Other InstructionType = iota
	Jcc
	Jmp
	JmpIndirect
	Call
	Ret
	Syscall
	Rti
)

var typeNames = [...]string{"OTHER", "JCC", "JMP", "JMP_INDIRECT", "CALL", "RET", "SYSCALL", "RTI"}

// TypeOf maps a script-level number to an InstructionType. Unknown numbers
// are Other.
func TypeOf(n int64) InstructionType {
	if n < 0 || n >= int64(len(typeNames)) {
		return Other
	}
	return InstructionType(n)
}

func (t InstructionType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[Other]
}

// Event is anything a trace or an analyzer produces.
type Event interface {
	Kind() Kind
	Tid() int32
}

// Step is one executed instruction together with the CPU state after it.
type Step interface {
	Event
	PC() uint64
	Step() uint64
	// Field reads a named state field. pc and step are always available.
	Field(name string) (uint64, error)
	Machinecode() []byte
	Disassembly() []string
	Type() InstructionType
}

type Mmap struct {
	Thread   int32
	Addr     uint64
	Len      uint64
	Prot     int32
	Flags    int32
	Fd       int32
	Off      uint64
	Filename string
	Result   uint64
}

func (e *Mmap) Kind() Kind { return KindMmap }
func (e *Mmap) Tid() int32 { return e.Thread }

type Munmap struct {
	Thread int32
	Addr   uint64
	Len    uint64
	Result uint64
}

func (e *Munmap) Kind() Kind { return KindMunmap }
func (e *Munmap) Tid() int32 { return e.Thread }

// Memory is a single read or write access. Value is meaningful only when
// HasValue is set.
type Memory struct {
	Thread    int32
	Write     bool
	BigEndian bool
	Addr      uint64
	Size      uint8
	Value     uint64
	HasValue  bool
}

func (e *Memory) Kind() Kind {
	if e.Write {
		return KindWrite
	}
	return KindRead
}

func (e *Memory) Tid() int32 { return e.Thread }

// Map renders e as a JSON-ready map. A Step that also lists its state
// fields with Fields gets a "state" object.
func Map(e Event) map[string]any {
	out := map[string]any{
		"kind": e.Kind().String(),
		"tid":  e.Tid(),
	}
	switch e := e.(type) {
	case Step:
		out["pc"] = e.PC()
		out["step"] = e.Step()
		out["type"] = e.Type().String()
		if asm := e.Disassembly(); len(asm) > 0 {
			out["asm"] = asm
		}
		if code := e.Machinecode(); len(code) > 0 {
			out["code"] = fmt.Sprintf("%x", code)
		}
		if f, ok := e.(interface{ Fields() []string }); ok {
			state := make(map[string]any)
			for _, name := range f.Fields() {
				if v, err := e.Field(name); err == nil {
					state[name] = v
				}
			}
			out["state"] = state
		}
	case *Mmap:
		out["addr"] = e.Addr
		out["len"] = e.Len
		out["prot"] = e.Prot
		out["flags"] = e.Flags
		out["fd"] = e.Fd
		out["off"] = e.Off
		out["result"] = e.Result
		if e.Filename != "" {
			out["filename"] = e.Filename
		}
	case *Munmap:
		out["addr"] = e.Addr
		out["len"] = e.Len
		out["result"] = e.Result
	case *Memory:
		out["addr"] = e.Addr
		out["size"] = e.Size
		out["be"] = e.BigEndian
		if e.HasValue {
			out["value"] = e.Value
		}
	}
	return out
}

// JSON encodes e in the form Map describes.
func JSON(e Event) ([]byte, error) {
	return json.Marshal(Map(e))
}

// ErrNotMapped is returned by memory indexes for addresses no mapping
// covered at the requested step.
var ErrNotMapped = errors.New("event: memory not mapped")

// StepFormat carries the display hints an architecture sets for its steps.
type StepFormat struct {
	NumberFormat int
	AddrWidth    int
	WordWidth    int
	OpcodeWidth  int
	BigEndian    bool
}
