package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/agenthands/trcarch/pkg/arch"
	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/event"
)

// StateDescription is the layout of the step records of one trace.
type StateDescription struct {
	Size       int
	PCOffset   int
	PCSize     int
	StepOffset int
	StepSize   int
	Struct     *types.Struct
	Format     string
	BigEndian  bool

	formatter *arch.FieldFormatter
}

// NewStateDescription validates the header fields. PC and step counters
// must be 1, 2, 4 or 8 bytes wide and lie inside the record.
func NewStateDescription(size, pcOff, pcSize, stepOff, stepSize int, st *types.Struct, format string, bigEndian bool) (*StateDescription, error) {
	for _, f := range []struct {
		name      string
		off, size int
	}{{"pc", pcOff, pcSize}, {"step", stepOff, stepSize}} {
		switch f.size {
		case 1, 2, 4, 8:
		default:
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidSize, f.name, f.size)
		}
		if f.off+f.size > size {
			return nil, fmt.Errorf("%w: %s at %d exceeds the %d byte record", ErrInvalidSize, f.name, f.off, size)
		}
	}
	d := &StateDescription{
		Size:       size,
		PCOffset:   pcOff,
		PCSize:     pcSize,
		StepOffset: stepOff,
		StepSize:   stepSize,
		Struct:     st,
		Format:     format,
		BigEndian:  bigEndian,
	}
	if format != "" {
		f, err := arch.ParseFormat(format)
		if err != nil {
			return nil, err
		}
		d.formatter = f
	}
	return d, nil
}

func (d *StateDescription) order() binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// get reads an unsigned integer of size bytes at off.
func (d *StateDescription) get(data []byte, off, size int) uint64 {
	b := data[off : off+size]
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(d.order().Uint16(b))
	case 4:
		return uint64(d.order().Uint32(b))
	}
	return d.order().Uint64(b)
}

func (d *StateDescription) PC(data []byte) uint64 {
	return d.get(data, d.PCOffset, d.PCSize)
}

func (d *StateDescription) Step(data []byte) uint64 {
	return d.get(data, d.StepOffset, d.StepSize)
}

// Field reads a scalar member of the step struct, sign-extended when the
// member is signed.
func (d *StateDescription) Field(data []byte, name string) (uint64, error) {
	m, ok := d.Struct.Member(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", event.ErrUnknownField, name)
	}
	prim, ok := m.Type.(*types.Primitive)
	if !ok || prim.Size() == 0 || m.Offset+prim.Size() > len(data) {
		return 0, fmt.Errorf("%w: %s has type %v", event.ErrUnknownField, name, m.Type)
	}
	return prim.Normalize(d.get(data, m.Offset, prim.Size())), nil
}

// Step is a step record read from a generic trace.
type Step struct {
	Thread int32
	Desc   *StateDescription
	Data   []byte
	Code   []byte
	Asm    []string
	Typ    event.InstructionType
}

func (s *Step) Kind() event.Kind { return event.KindStep }
func (s *Step) Tid() int32       { return s.Thread }
func (s *Step) PC() uint64       { return s.Desc.PC(s.Data) }
func (s *Step) Step() uint64     { return s.Desc.Step(s.Data) }

func (s *Step) Field(name string) (uint64, error) {
	switch name {
	case "pc":
		return s.PC(), nil
	case "step":
		return s.Step(), nil
	}
	return s.Desc.Field(s.Data, name)
}

// Fields lists the scalar members of the step struct.
func (s *Step) Fields() []string {
	var out []string
	for _, m := range s.Desc.Struct.Members() {
		if types.IsScalar(m.Type) {
			out = append(out, m.Name)
		}
	}
	return out
}

func (s *Step) Machinecode() []byte         { return s.Code }
func (s *Step) Disassembly() []string       { return s.Asm }
func (s *Step) Type() event.InstructionType { return s.Typ }

// String renders the state with the trace's format, or the PC when the
// trace has none.
func (s *Step) String() string {
	if s.Desc.formatter == nil {
		return fmt.Sprintf("%x", s.PC())
	}
	out, err := s.Desc.formatter.Format(s)
	if err != nil {
		return fmt.Sprintf("%x: %v", s.PC(), err)
	}
	return out
}
