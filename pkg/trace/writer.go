package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/agenthands/trcarch/pkg/event"
)

// Writer encodes a generic trace. Call WriteHeader once before any record
// and Flush when done.
type Writer struct {
	w    *bufio.Writer
	desc *StateDescription
	ids  map[string]uint32
	err  error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), ids: map[string]uint32{"": 0}}
}

// WriteHeader writes the step layout. def is the body of the step struct.
func (w *Writer) WriteHeader(d *StateDescription, def string) error {
	w.desc = d
	w.put(uint16(d.Size), uint16(d.PCOffset), uint16(d.PCSize), uint16(d.StepOffset), uint16(d.StepSize))
	w.str(def)
	w.str(d.Format)
	be := uint8(0)
	if d.BigEndian {
		be = 1
	}
	w.put(be)
	return w.err
}

// WriteEvent writes one record. Steps must be *Step; disassembly strings
// seen before are written by id.
func (w *Writer) WriteEvent(e event.Event) error {
	if w.desc == nil {
		return fmt.Errorf("trace: header not written")
	}
	switch e := e.(type) {
	case *Step:
		if len(e.Data) != w.desc.Size {
			return fmt.Errorf("%w: step data is %d bytes, want %d", ErrInvalidSize, len(e.Data), w.desc.Size)
		}
		w.put(uint32(MagicStep), e.Thread, e.Data, uint8(len(e.Asm)))
		for _, s := range e.Asm {
			if id, ok := w.ids[s]; ok {
				w.put(id)
				continue
			}
			w.ids[s] = uint32(len(w.ids))
			w.put(uint32(InlineString))
			w.str(s)
		}
		w.put(uint16(len(e.Code)), e.Code, uint8(e.Typ))
	case *event.Mmap:
		w.put(uint32(MagicMmap), e.Thread, e.Addr, e.Len, e.Off, e.Result, e.Prot, e.Flags, e.Fd)
		w.str(e.Filename)
	case *event.Munmap:
		w.put(uint32(MagicMunmap), e.Thread, e.Addr, e.Len, uint32(e.Result))
	case *event.Memory:
		magic := uint32(MagicRead)
		if e.Write {
			magic = MagicWrite
		}
		var flags uint8
		if e.BigEndian {
			flags |= flagBigEndian
		}
		if e.HasValue {
			flags |= flagHasValue
		}
		w.put(magic, e.Thread, e.Addr, e.Value, e.Size, flags)
	default:
		return fmt.Errorf("%w: cannot encode %T", ErrUnknownRecord, e)
	}
	return w.err
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) put(vals ...any) {
	for _, v := range vals {
		if w.err != nil {
			return
		}
		w.err = binary.Write(w.w, binary.BigEndian, v)
	}
}

func (w *Writer) str(s string) {
	w.put(uint16(len(s)), []byte(s))
}
