// Package trace reads generic binary traces and replays them through
// architecture scripts.
//
// A trace starts with a header describing the step record: its size, where
// the program counter and step counter live, a C struct definition of the
// whole record and a display format. Records follow, each introduced by a
// 32-bit magic and a thread id. All integers are big-endian.
package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/agenthands/trcarch/pkg/compiler/types"
	"github.com/agenthands/trcarch/pkg/event"
	"github.com/agenthands/trcarch/pkg/vm"
)

// Record magics.
const (
	MagicStep   = 0x53544550 // STEP
	MagicMmap   = 0x4D4D4150 // MMAP
	MagicMunmap = 0x554D4150 // UMAP
	MagicRead   = 0x4D454D52 // MEMR
	MagicWrite  = 0x4D454D57 // MEMW
	MagicString = 0x53545247 // STRG
)

// InlineString marks a disassembly component stored inline instead of by
// string table id.
const InlineString = 0xFFFFFFFF

const (
	flagBigEndian = 1 << 0
	flagHasValue  = 1 << 1
)

// stepTypes prefixes the step struct definition.
const stepTypes = `typedef uint8_t u8;
typedef uint16_t u16;
typedef uint32_t u32;
typedef uint64_t u64;
typedef int8_t s8;
typedef int16_t s16;
typedef int32_t s32;
typedef int64_t s64;
`

var (
	ErrUnknownRecord = errors.New("trace: unknown record type")
	ErrInvalidSize   = errors.New("trace: invalid size")
	ErrStepStruct    = errors.New("trace: invalid step record definition")
	ErrStringID      = errors.New("trace: unknown string id")
)

// Reader decodes a trace record by record. The header is read on first use.
type Reader struct {
	r      *bufio.Reader
	off    int64
	desc   *StateDescription
	err    error
	strtab []string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), strtab: []string{""}}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.off }

// Header returns the step description, reading it if necessary.
func (r *Reader) Header() (*StateDescription, error) {
	if r.desc == nil && r.err == nil {
		r.desc, r.err = r.readHeader()
		r.err = noEOF(r.err)
	}
	return r.desc, r.err
}

func (r *Reader) readHeader() (*StateDescription, error) {
	var h [5]uint16
	for i := range h {
		x, err := r.u16()
		if err != nil {
			return nil, err
		}
		h[i] = x
	}
	def, err := r.str()
	if err != nil {
		return nil, err
	}
	format, err := r.str()
	if err != nil {
		return nil, err
	}
	be, err := r.u8()
	if err != nil {
		return nil, err
	}
	st, err := CompileStep(def)
	if err != nil {
		return nil, err
	}
	return NewStateDescription(int(h[0]), int(h[1]), int(h[2]), int(h[3]), int(h[4]), st, format, be == 1)
}

// CompileStep compiles a struct body such as "u64 pc; u64 step;" into the
// step record type.
func CompileStep(def string) (*types.Struct, error) {
	src := []byte(stepTypes + "struct step { " + def + " };")
	prog, err := vm.Compile(src, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w:\n%v", ErrStepStruct, err)
	}
	st, ok := prog.Types.Struct("step")
	if !ok || !st.Complete() {
		return nil, fmt.Errorf("%w: empty", ErrStepStruct)
	}
	return st, nil
}

// Next returns the next event, or io.EOF after the last complete record.
// STRG records are consumed silently.
func (r *Reader) Next() (event.Event, error) {
	desc, err := r.Header()
	if err != nil {
		return nil, err
	}
	for {
		magic, err := r.u32()
		if err != nil {
			return nil, err
		}
		tid32, err := r.u32()
		if err != nil {
			return nil, noEOF(err)
		}
		tid := int32(tid32)

		var e event.Event
		switch magic {
		case MagicStep:
			e, err = r.readStep(desc, tid)
		case MagicMmap:
			e, err = r.readMmap(tid)
		case MagicMunmap:
			e, err = r.readMunmap(tid)
		case MagicRead, MagicWrite:
			e, err = r.readMemory(tid, magic == MagicWrite)
		case MagicString:
			s, err := r.str()
			if err != nil {
				return nil, noEOF(err)
			}
			r.strtab = append(r.strtab, s)
			continue
		default:
			return nil, fmt.Errorf("%w: 0x%08x at offset %d", ErrUnknownRecord, magic, r.off-8)
		}
		if err != nil {
			return nil, noEOF(err)
		}
		return e, nil
	}
}

func (r *Reader) readStep(desc *StateDescription, tid int32) (*Step, error) {
	data := make([]byte, desc.Size)
	if err := r.full(data); err != nil {
		return nil, err
	}
	n, err := r.u8()
	if err != nil {
		return nil, err
	}
	var asm []string
	for range n {
		id, err := r.u32()
		if err != nil {
			return nil, err
		}
		if id == InlineString {
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			r.strtab = append(r.strtab, s)
			asm = append(asm, s)
			continue
		}
		if int(id) >= len(r.strtab) {
			return nil, fmt.Errorf("%w: %d", ErrStringID, id)
		}
		asm = append(asm, r.strtab[id])
	}
	clen, err := r.u16()
	if err != nil {
		return nil, err
	}
	var code []byte
	if clen > 0 {
		code = make([]byte, clen)
		if err := r.full(code); err != nil {
			return nil, err
		}
	}
	typ, err := r.u8()
	if err != nil {
		return nil, err
	}
	return &Step{Thread: tid, Desc: desc, Data: data, Code: code, Asm: asm, Typ: event.TypeOf(int64(typ))}, nil
}

func (r *Reader) readMmap(tid int32) (*event.Mmap, error) {
	e := &event.Mmap{Thread: tid}
	if err := r.fields(&e.Addr, &e.Len, &e.Off, &e.Result, &e.Prot, &e.Flags, &e.Fd); err != nil {
		return nil, err
	}
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	e.Filename = name
	return e, nil
}

func (r *Reader) readMunmap(tid int32) (*event.Munmap, error) {
	e := &event.Munmap{Thread: tid}
	var res uint32
	if err := r.fields(&e.Addr, &e.Len, &res); err != nil {
		return nil, err
	}
	e.Result = uint64(res)
	return e, nil
}

func (r *Reader) readMemory(tid int32, write bool) (*event.Memory, error) {
	e := &event.Memory{Thread: tid, Write: write}
	var flags uint8
	if err := r.fields(&e.Addr, &e.Value, &e.Size, &flags); err != nil {
		return nil, err
	}
	e.BigEndian = flags&flagBigEndian != 0
	e.HasValue = flags&flagHasValue != 0
	if !e.HasValue {
		e.Value = 0
	}
	return e, nil
}

// fields decodes fixed-size values in order.
func (r *Reader) fields(dst ...any) error {
	for _, d := range dst {
		if err := binary.Read(r.r, binary.BigEndian, d); err != nil {
			return err
		}
		r.off += int64(binary.Size(d))
	}
	return nil
}

func (r *Reader) full(b []byte) error {
	n, err := io.ReadFull(r.r, b)
	r.off += int64(n)
	return err
}

func (r *Reader) u8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.off++
	return b, nil
}

func (r *Reader) u16() (uint16, error) {
	var b [2]byte
	if err := r.full(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (r *Reader) u32() (uint32, error) {
	var b [4]byte
	if err := r.full(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// str reads a u16 length followed by that many bytes. 0xFFFF encodes the
// absent string and reads as "".
func (r *Reader) str() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	if n == 0 || n == 0xFFFF {
		return "", nil
	}
	b := make([]byte, n)
	if err := r.full(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// noEOF turns an end of input inside a record into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
