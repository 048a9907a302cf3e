package types

import (
	"fmt"
	"sort"
)

// Table is the registry of named types and struct tags.
type Table struct {
	named   map[string]Type
	structs map[string]*Struct
}

// NewTable returns a table seeded with the fixed-width integer typedefs.
func NewTable() *Table {
	t := &Table{
		named:   make(map[string]Type),
		structs: make(map[string]*Struct),
	}
	t.named["int8_t"] = &Primitive{Basic: Char}
	t.named["uint8_t"] = &Primitive{Basic: Char, Unsigned: true}
	t.named["int16_t"] = &Primitive{Basic: Short}
	t.named["uint16_t"] = &Primitive{Basic: Short, Unsigned: true}
	t.named["int32_t"] = &Primitive{Basic: Int}
	t.named["uint32_t"] = &Primitive{Basic: Int, Unsigned: true}
	t.named["int64_t"] = &Primitive{Basic: Long}
	t.named["uint64_t"] = &Primitive{Basic: Long, Unsigned: true}
	return t
}

// Lookup resolves a typedef name.
func (t *Table) Lookup(name string) (Type, bool) {
	typ, ok := t.named[name]
	return typ, ok
}

// Define registers a typedef name.
func (t *Table) Define(name string, typ Type) error {
	if _, ok := t.named[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	t.named[name] = typ
	return nil
}

// Struct resolves a struct or union tag.
func (t *Table) Struct(name string) (*Struct, bool) {
	s, ok := t.structs[name]
	return s, ok
}

// DefineStruct registers a struct or union under its tag.
func (t *Table) DefineStruct(s *Struct) error {
	if _, ok := t.structs[s.Name]; ok {
		return fmt.Errorf("%w: struct %s", ErrDuplicateType, s.Name)
	}
	t.structs[s.Name] = s
	return nil
}

// Resolve finds a type by typedef name first and by struct tag second.
// Hosts use it to turn names handed over by scripts into types.
func (t *Table) Resolve(name string) (Type, bool) {
	if typ, ok := t.named[name]; ok {
		return typ, true
	}
	if s, ok := t.structs[name]; ok {
		return s, true
	}
	return nil, false
}

// Names returns all typedef names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.named))
	for n := range t.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
