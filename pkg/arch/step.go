package arch

import (
	"fmt"
	"strings"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/event"
)

// CustomStep is a step emitted by a script through create_step. It keeps a
// snapshot of the script's step struct, so later writes by the script do
// not change steps already emitted.
type CustomStep struct {
	arch   *Architecture
	thread int32
	parent uint64

	data  value.Pointer
	state value.Pointer
	stype *types.Struct

	code []byte
	asm  []string
	typ  event.InstructionType
}

// newCustomStep snapshots the step struct at data.
func newCustomStep(a *Architecture, tid int32, parent uint64, data value.Pointer) (*CustomStep, error) {
	if a.StepType == nil {
		return nil, ErrNoStep
	}
	raw, err := data.ReadBytes(a.StepType.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStepData, err)
	}
	snap := value.RecordOf(a.StepType, raw).Pointer()

	s := &CustomStep{arch: a, thread: tid, parent: parent, data: snap}
	if m, ok := a.stateMember(); ok {
		st := a.StateType
		if st == nil {
			st, _ = m.Type.(*types.Struct)
		}
		if st != nil {
			s.stype = st
			s.state = snap.Add(st, m.Offset)
		}
	}
	if s.code, err = s.machinecode(); err != nil {
		return nil, err
	}
	return s, nil
}

// machinecode reads the instruction bytes. The length member, when named,
// bounds how many bytes of the instruction member are used.
func (s *CustomStep) machinecode() ([]byte, error) {
	a := s.arch
	if a.InsnMember == "" {
		return nil, nil
	}
	insn, ok := a.StepType.Member(a.InsnMember)
	if !ok {
		return nil, fmt.Errorf("%w: %s", event.ErrUnknownField, a.InsnMember)
	}
	n := -1
	if a.InsnLenMember != "" {
		l, ok := a.StepType.Member(a.InsnLenMember)
		if !ok {
			return nil, fmt.Errorf("%w: %s", event.ErrUnknownField, a.InsnLenMember)
		}
		x, err := s.data.Add(l.Type, l.Offset).Load()
		if err != nil {
			return nil, err
		}
		n = int(x)
	}
	switch insn.Type.(type) {
	case *types.Array, *types.Primitive:
		if size := insn.Type.Size(); n < 0 || n > size {
			n = size
		}
		return s.data.Add(insn.Type, insn.Offset).ReadBytes(n)
	}
	return nil, fmt.Errorf("%w: %s is %v", ErrStepData, a.InsnMember, insn.Type)
}

func (s *CustomStep) Kind() event.Kind { return event.KindStep }
func (s *CustomStep) Tid() int32       { return s.thread }

// Data returns the snapshot of the step struct.
func (s *CustomStep) Data() value.Pointer { return s.data }

func (s *CustomStep) PC() uint64 {
	x, _ := s.stateField(s.arch.PCField)
	return x
}

// Step reads the step counter from the state, falling back to the step of
// the event that was being processed when the step was created.
func (s *CustomStep) Step() uint64 {
	x, err := s.stateField(s.arch.StepField)
	if err != nil {
		return s.parent
	}
	return x
}

func (s *CustomStep) Field(name string) (uint64, error) {
	switch name {
	case "pc":
		return s.PC(), nil
	case "step":
		return s.Step(), nil
	}
	return s.stateField(name)
}

func (s *CustomStep) stateField(name string) (uint64, error) {
	if s.stype == nil {
		return 0, fmt.Errorf("%w: %s", event.ErrUnknownField, name)
	}
	m, ok := s.stype.Member(name)
	if !ok || !types.IsScalar(m.Type) {
		return 0, fmt.Errorf("%w: %s", event.ErrUnknownField, name)
	}
	return s.state.Add(m.Type, m.Offset).Load()
}

// Fields lists the scalar members of the state.
func (s *CustomStep) Fields() []string {
	if s.stype == nil {
		return nil
	}
	var out []string
	for _, m := range s.stype.Members() {
		if types.IsScalar(m.Type) {
			out = append(out, m.Name)
		}
	}
	return out
}

func (s *CustomStep) Machinecode() []byte         { return s.code }
func (s *CustomStep) Disassembly() []string       { return s.asm }
func (s *CustomStep) Type() event.InstructionType { return s.typ }

// Mnemonic is the first disassembly component.
func (s *CustomStep) Mnemonic() string {
	if len(s.asm) == 0 {
		return ""
	}
	return s.asm[0]
}

func (s *CustomStep) String() string {
	return fmt.Sprintf("%x: %s", s.PC(), strings.Join(s.asm, " "))
}

// splitDisassembly separates the mnemonic from its operands.
func splitDisassembly(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	mnemonic, operands, ok := strings.Cut(text, " ")
	if !ok {
		return []string{mnemonic}
	}
	return []string{mnemonic, strings.TrimSpace(operands)}
}
