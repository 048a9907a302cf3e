// Package types holds the static type system of the script language:
// primitives, pointers, arrays and structs, together with the table that
// names them.
package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateMember = errors.New("types: duplicate member")
	ErrStructFilled    = errors.New("types: struct already has members")
	ErrDuplicateType   = errors.New("types: duplicate type")
)

// Type is implemented by *Primitive, *Pointer, *Array and *Struct.
type Type interface {
	// Size is the number of bytes a value of the type occupies in a Record.
	Size() int
	String() string
	// Decl renders a declaration of name with this type.
	Decl(name string) string
	typeNode()
}

// Basic is the kind of a primitive type.
type Basic uint8

const (
	Void Basic = iota
	Char
	Short
	Int
	Long
	LongLong
)

var basicNames = [...]string{"void", "char", "short", "int", "long", "long long"}

func (b Basic) String() string { return basicNames[b] }

// Primitive is a scalar integer type or void.
type Primitive struct {
	Basic    Basic
	Unsigned bool
	Const    bool
}

// PointerSize is the size a pointer slot occupies in a Record.
const PointerSize = 8

// MaxSize bounds the size of an array type.
const MaxSize = 1 << 24

func (p *Primitive) Size() int {
	switch p.Basic {
	case Char:
		return 1
	case Short:
		return 2
	case Int:
		return 4
	case Long, LongLong:
		return 8
	}
	return 0
}

func (p *Primitive) String() string {
	s := p.Basic.String()
	if p.Unsigned {
		s = "unsigned " + s
	}
	if p.Const {
		s = "const " + s
	}
	return s
}

func (p *Primitive) Decl(name string) string { return p.String() + " " + name }

// Normalize truncates v to the width of p and re-extends it according to
// its signedness.
func (p *Primitive) Normalize(v uint64) uint64 {
	switch p.Size() {
	case 1:
		if p.Unsigned {
			return uint64(uint8(v))
		}
		return uint64(int64(int8(v)))
	case 2:
		if p.Unsigned {
			return uint64(uint16(v))
		}
		return uint64(int64(int16(v)))
	case 4:
		if p.Unsigned {
			return uint64(uint32(v))
		}
		return uint64(int64(int32(v)))
	case 0:
		return 0
	}
	return v
}

// Pointer is a typed reference. Its element is shared with the table.
type Pointer struct {
	Elem Type
}

func (p *Pointer) Size() int               { return PointerSize }
func (p *Pointer) String() string          { return p.Elem.String() + "*" }
func (p *Pointer) Decl(name string) string { return p.Elem.Decl("*" + name) }

// Array is a fixed-length sequence of Elem.
type Array struct {
	Elem Type
	Len  int
}

func (a *Array) Size() int      { return a.Len * a.Elem.Size() }
func (a *Array) String() string { return fmt.Sprintf("%s[%d]", a.Elem, a.Len) }
func (a *Array) Decl(name string) string {
	return a.Elem.Decl(fmt.Sprintf("%s[%d]", name, a.Len))
}

// Member is a named field of a struct at a fixed byte offset.
type Member struct {
	Name   string
	Type   Type
	Offset int
}

// Struct is a record type. Members are laid out in declaration order at
// offsets equal to the sum of the sizes before them, without padding.
// A union places every member at offset 0.
type Struct struct {
	Name  string
	Union bool

	members []Member
	index   map[string]int
	size    int
}

// NewStruct returns an empty struct. An empty name marks it anonymous.
func NewStruct(name string, union bool) *Struct {
	return &Struct{Name: name, Union: union, index: make(map[string]int)}
}

// AddMember appends a member and grows the size.
func (s *Struct) AddMember(name string, t Type) error {
	if _, ok := s.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMember, name)
	}
	m := Member{Name: name, Type: t, Offset: s.size}
	if s.Union {
		m.Offset = 0
		s.size = max(s.size, t.Size())
	} else {
		s.size += t.Size()
	}
	s.index[name] = len(s.members)
	s.members = append(s.members, m)
	return nil
}

// Fill completes a forward-declared struct with the members of def.
func (s *Struct) Fill(def *Struct) error {
	if len(s.members) > 0 {
		return fmt.Errorf("%w: %s", ErrStructFilled, s.Name)
	}
	s.Union = def.Union
	for _, m := range def.members {
		if err := s.AddMember(m.Name, m.Type); err != nil {
			return err
		}
	}
	return nil
}

// Member looks up a member by name.
func (s *Struct) Member(name string) (Member, bool) {
	i, ok := s.index[name]
	if !ok {
		return Member{}, false
	}
	return s.members[i], true
}

// Members returns the members in offset order.
func (s *Struct) Members() []Member {
	out := make([]Member, len(s.members))
	copy(out, s.members)
	return out
}

// Complete reports whether the struct has been defined with members.
func (s *Struct) Complete() bool { return len(s.members) > 0 }

func (s *Struct) Size() int { return s.size }

func (s *Struct) keyword() string {
	if s.Union {
		return "union"
	}
	return "struct"
}

func (s *Struct) String() string {
	var b strings.Builder
	b.WriteString(s.keyword())
	if s.Name != "" {
		b.WriteString(" " + s.Name)
	}
	b.WriteString(" {\n")
	for _, m := range s.members {
		b.WriteString("\t" + m.Type.Decl(m.Name) + ";\n")
	}
	b.WriteString("}")
	return b.String()
}

func (s *Struct) Decl(name string) string {
	if s.Name == "" {
		return s.String() + " " + name
	}
	return s.keyword() + " " + s.Name + " " + name
}

func (*Primitive) typeNode() {}
func (*Pointer) typeNode()   {}
func (*Array) typeNode()     {}
func (*Struct) typeNode()    {}

// Shared primitive instances used by intrinsic signatures.
var (
	VoidType  = &Primitive{Basic: Void}
	CharType  = &Primitive{Basic: Char}
	UCharType = &Primitive{Basic: Char, Unsigned: true}
	ShortType = &Primitive{Basic: Short}
	IntType   = &Primitive{Basic: Int}
	UIntType  = &Primitive{Basic: Int, Unsigned: true}
	LongType  = &Primitive{Basic: Long}
	ULongType = &Primitive{Basic: Long, Unsigned: true}

	CharPtr = &Pointer{Elem: CharType}
	VoidPtr = &Pointer{Elem: VoidType}
)

// IsScalar reports whether values of t are carried as 64-bit scalars.
func IsScalar(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Basic != Void
}

// IsVoid reports whether t is the void primitive.
func IsVoid(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.Basic == Void
}

// IsReference reports whether values of t are carried as pointers:
// pointers themselves, and arrays and structs which live in Records.
func IsReference(t Type) bool {
	switch t.(type) {
	case *Pointer, *Array, *Struct:
		return true
	}
	return false
}

// Elem returns the element type of a pointer or array.
func Elem(t Type) (Type, bool) {
	switch t := t.(type) {
	case *Pointer:
		return t.Elem, true
	case *Array:
		return t.Elem, true
	}
	return nil, false
}

// Promote applies the integer promotions: anything narrower than int,
// and anything that is not a primitive, becomes int.
func Promote(t Type) *Primitive {
	p, ok := t.(*Primitive)
	if !ok || p.Size() < IntType.Size() {
		return IntType
	}
	if p.Const {
		return &Primitive{Basic: p.Basic, Unsigned: p.Unsigned}
	}
	return p
}

// Common returns the type binary arithmetic on a and b is carried out in.
func Common(a, b Type) *Primitive {
	pa, pb := Promote(a), Promote(b)
	size := max(pa.Size(), pb.Size())
	unsigned := (pa.Unsigned && pa.Size() == size) || (pb.Unsigned && pb.Size() == size)
	switch {
	case size == 8 && unsigned:
		return ULongType
	case size == 8:
		return LongType
	case unsigned:
		return UIntType
	}
	return IntType
}
