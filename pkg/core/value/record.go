package value

import "github.com/agenthands/trcarch/pkg/compiler/types"

// Record is a fixed-size, zeroed byte buffer laid out by one type. Integers
// are stored big-endian. Pointer-typed slots are kept aside in refs, keyed
// by byte offset, since a Pointer cannot be flattened into bytes.
type Record struct {
	Type types.Type
	data []byte
	refs map[int]Pointer
}

// NewRecord allocates a zeroed Record sized for t.
func NewRecord(t types.Type) *Record {
	return &Record{Type: t, data: make([]byte, t.Size())}
}

// NewBytes allocates a zeroed char array Record of n bytes.
func NewBytes(n int) *Record {
	return NewRecord(&types.Array{Elem: types.CharType, Len: n})
}

// RecordOf copies b into a new Record typed t. The Record is sized for t;
// excess input is dropped and missing input stays zero.
func RecordOf(t types.Type, b []byte) *Record {
	r := NewRecord(t)
	copy(r.data, b)
	return r
}

// Len is the size of the Record in bytes.
func (r *Record) Len() int { return len(r.data) }

// Bytes exposes the backing buffer. Hosts use it to read what a script
// wrote; writes through it are visible to every Pointer into the Record.
func (r *Record) Bytes() []byte { return r.data }

// Pointer returns a Pointer to the start of the Record.
func (r *Record) Pointer() Pointer {
	return Pointer{Type: r.Type, rec: r}
}
