package value

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/agenthands/trcarch/pkg/compiler/types"
)

var (
	ErrOutOfBounds = errors.New("value: access out of bounds")
	ErrNullPointer = errors.New("value: null pointer dereference")
	ErrHostPointer = errors.New("value: host pointer dereference")
)

// Pointer is a typed view into a Record or onto a host-owned object. It
// never owns what it points at. The zero Pointer is null.
type Pointer struct {
	Type   types.Type
	Offset int

	rec  *Record
	host any
}

// NewHostPointer wraps an object owned by the host, such as an event, so a
// script can pass it back to intrinsics. Scripts cannot dereference it.
func NewHostPointer(obj any) Pointer {
	return Pointer{Type: types.VoidType, host: obj}
}

func (p Pointer) IsNull() bool { return p.rec == nil && p.host == nil }

// Record returns the backing Record, or nil for null and host pointers.
func (p Pointer) Record() *Record { return p.rec }

// Host returns the wrapped host object, or nil.
func (p Pointer) Host() any { return p.host }

// Equal reports whether p and q view the same byte of the same target.
func (p Pointer) Equal(q Pointer) bool {
	if p.host != nil || q.host != nil {
		return p.host == q.host && p.Offset == q.Offset
	}
	return p.rec == q.rec && p.Offset == q.Offset
}

// Add returns a Pointer of type t, delta bytes further into the same
// target. The delta is not scaled.
func (p Pointer) Add(t types.Type, delta int) Pointer {
	p.Type = t
	p.Offset += delta
	return p
}

// As returns p retyped to t.
func (p Pointer) As(t types.Type) Pointer {
	p.Type = t
	return p
}

func (p Pointer) String() string {
	switch {
	case p.host != nil:
		return fmt.Sprintf("host(%T)", p.host)
	case p.rec == nil:
		return "null"
	}
	return fmt.Sprintf("%s@%d", p.rec.Type, p.Offset)
}

// span returns the n bytes at the pointer's offset.
func (p Pointer) span(n int) ([]byte, error) {
	if p.rec == nil {
		if p.host != nil {
			return nil, ErrHostPointer
		}
		return nil, ErrNullPointer
	}
	if p.Offset < 0 || n < 0 || p.Offset+n > len(p.rec.data) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d of %d",
			ErrOutOfBounds, n, p.Offset, len(p.rec.data))
	}
	return p.rec.data[p.Offset : p.Offset+n], nil
}

func (p Pointer) LoadU8() (uint8, error) {
	b, err := p.span(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p Pointer) LoadU16() (uint16, error) {
	b, err := p.span(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (p Pointer) LoadU32() (uint32, error) {
	b, err := p.span(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (p Pointer) LoadU64() (uint64, error) {
	b, err := p.span(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (p Pointer) LoadI8() (int8, error) {
	v, err := p.LoadU8()
	return int8(v), err
}

func (p Pointer) LoadI16() (int16, error) {
	v, err := p.LoadU16()
	return int16(v), err
}

func (p Pointer) LoadI32() (int32, error) {
	v, err := p.LoadU32()
	return int32(v), err
}

func (p Pointer) LoadI64() (int64, error) {
	v, err := p.LoadU64()
	return int64(v), err
}

func (p Pointer) StoreI8(v int8) error {
	b, err := p.span(1)
	if err != nil {
		return err
	}
	b[0] = byte(v)
	return nil
}

func (p Pointer) StoreI16(v int16) error {
	b, err := p.span(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b, uint16(v))
	return nil
}

func (p Pointer) StoreI32(v int32) error {
	b, err := p.span(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b, uint32(v))
	return nil
}

func (p Pointer) StoreI64(v int64) error {
	b, err := p.span(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b, uint64(v))
	return nil
}

// primitive returns the pointer's type as a sized primitive.
func (p Pointer) primitive() (*types.Primitive, error) {
	prim, ok := p.Type.(*types.Primitive)
	if !ok || prim.Size() == 0 {
		return nil, fmt.Errorf("value: load of non-scalar type %v", p.Type)
	}
	return prim, nil
}

// Load reads a scalar of the pointer's primitive type, sign- or
// zero-extended to 64 bits.
func (p Pointer) Load() (uint64, error) {
	prim, err := p.primitive()
	if err != nil {
		return 0, err
	}
	var raw uint64
	switch prim.Size() {
	case 1:
		v, err := p.LoadU8()
		if err != nil {
			return 0, err
		}
		raw = uint64(v)
	case 2:
		v, err := p.LoadU16()
		if err != nil {
			return 0, err
		}
		raw = uint64(v)
	case 4:
		v, err := p.LoadU32()
		if err != nil {
			return 0, err
		}
		raw = uint64(v)
	default:
		v, err := p.LoadU64()
		if err != nil {
			return 0, err
		}
		raw = v
	}
	return prim.Normalize(raw), nil
}

// Store writes v truncated to the pointer's primitive type.
func (p Pointer) Store(v uint64) error {
	prim, err := p.primitive()
	if err != nil {
		return err
	}
	switch prim.Size() {
	case 1:
		return p.StoreI8(int8(v))
	case 2:
		return p.StoreI16(int16(v))
	case 4:
		return p.StoreI32(int32(v))
	}
	return p.StoreI64(int64(v))
}

// LoadPointer reads a pointer-typed slot. A slot never written reads null.
func (p Pointer) LoadPointer() (Pointer, error) {
	if _, err := p.span(types.PointerSize); err != nil {
		return Pointer{}, err
	}
	return p.rec.refs[p.Offset], nil
}

// StorePointer writes q into a pointer-typed slot.
func (p Pointer) StorePointer(q Pointer) error {
	if _, err := p.span(types.PointerSize); err != nil {
		return err
	}
	if p.rec.refs == nil {
		p.rec.refs = make(map[int]Pointer)
	}
	p.rec.refs[p.Offset] = q
	return nil
}

// CString reads bytes from the pointer up to the first NUL or the end of
// the Record.
func (p Pointer) CString() (string, error) {
	if _, err := p.span(0); err != nil {
		return "", err
	}
	rest := p.rec.data[p.Offset:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	return string(rest), nil
}

// WriteCString writes s followed by a NUL.
func (p Pointer) WriteCString(s string) error {
	b, err := p.span(len(s) + 1)
	if err != nil {
		return err
	}
	copy(b, s)
	b[len(s)] = 0
	return nil
}

// ReadBytes copies n bytes starting at the pointer.
func (p Pointer) ReadBytes(n int) ([]byte, error) {
	b, err := p.span(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// Clone copies the t-sized region at p, pointer slots included, into a
// new Record typed t.
func (p Pointer) Clone(t types.Type) (Pointer, error) {
	b, err := p.ReadBytes(t.Size())
	if err != nil {
		return Pointer{}, err
	}
	r := RecordOf(t, b)
	for off, q := range p.rec.refs {
		if off < p.Offset || off >= p.Offset+len(b) {
			continue
		}
		if r.refs == nil {
			r.refs = make(map[int]Pointer)
		}
		r.refs[off-p.Offset] = q
	}
	return r.Pointer(), nil
}

// WriteBytes copies b to the pointer.
func (p Pointer) WriteBytes(b []byte) error {
	dst, err := p.span(len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
