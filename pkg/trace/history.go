package trace

import (
	"math"
	"sort"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/agenthands/trcarch/pkg/event"
)

// ErrNotMapped is returned for reads outside any mapped range.
var ErrNotMapped = event.ErrNotMapped

type region struct {
	start, end uint64
	step, seq  uint64
	mapped     bool
}

type byteWrite struct {
	step, seq uint64
	value     byte
}

// History is a flat index of the memory state of a traced program. It
// records mappings and byte writes as events arrive and answers reads as
// of any earlier step. One goroutine records while any number read.
//
// Every recorded event gets a sequence number in trace order. A View
// pins reads to one sequence number, so a reader that lags behind the
// recorder still sees the history exactly as it stood at its event.
type History struct {
	mu        *xsync.RBMutex
	bigEndian bool
	step      uint64
	seq       uint64
	regions   []region
	bytes     map[uint64][]byteWrite
}

// NewHistory returns an empty history. bigEndian selects how multi-byte
// reads assemble their bytes.
func NewHistory(bigEndian bool) *History {
	return &History{mu: xsync.NewRBMutex(), bigEndian: bigEndian, bytes: make(map[uint64][]byteWrite)}
}

// Record folds e into the history and returns its sequence number,
// starting at 1. Steps advance the current step; every other event is
// attributed to it. An mmap maps its result address, or its requested
// address when the result is 0.
func (h *History) Record(e event.Event) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	switch e := e.(type) {
	case event.Step:
		h.step = e.Step()
	case *event.Mmap:
		base := e.Result
		if base == 0 {
			base = e.Addr
		}
		if e.Len > 0 {
			h.regions = append(h.regions, region{start: base, end: base + e.Len, step: h.step, seq: h.seq, mapped: true})
		}
	case *event.Munmap:
		if e.Len > 0 {
			h.regions = append(h.regions, region{start: e.Addr, end: e.Addr + e.Len, step: h.step, seq: h.seq})
		}
	case *event.Memory:
		if !e.Write || !e.HasValue {
			break
		}
		for i := range int(e.Size) {
			shift := 8 * i
			if e.BigEndian {
				shift = 8 * (int(e.Size) - 1 - i)
			}
			addr := e.Addr + uint64(i)
			h.bytes[addr] = append(h.bytes[addr], byteWrite{step: h.step, seq: h.seq, value: byte(e.Value >> shift)})
		}
	}
	return h.seq
}

// Read returns size bytes at addr as of step. Bytes mapped but never
// written read as 0.
func (h *History) Read(addr uint64, size int, step uint64) (uint64, error) {
	return h.read(addr, size, step, math.MaxUint64)
}

// View returns the history as it stood right after the event with
// sequence number seq was recorded.
func (h *History) View(seq uint64) *View {
	return &View{h: h, Seq: seq}
}

// View is a History read as of one sequence number. Seq may be moved
// forward by the goroutine that owns the View.
type View struct {
	h   *History
	Seq uint64
}

func (v *View) Read(addr uint64, size int, step uint64) (uint64, error) {
	return v.h.read(addr, size, step, v.Seq)
}

func (h *History) read(addr uint64, size int, step, seq uint64) (uint64, error) {
	t := h.mu.RLock()
	defer h.mu.RUnlock(t)
	var x uint64
	for i := range size {
		a := addr + uint64(i)
		if !h.mapped(a, step, seq) {
			return 0, ErrNotMapped
		}
		b := uint64(h.byteAt(a, step, seq))
		if h.bigEndian {
			x = x<<8 | b
		} else {
			x |= b << (8 * i)
		}
	}
	return x, nil
}

// mapped reports whether the latest region event covering addr at or
// before step and seq mapped it.
func (h *History) mapped(addr, step, seq uint64) bool {
	for i := len(h.regions) - 1; i >= 0; i-- {
		r := h.regions[i]
		if r.step <= step && r.seq <= seq && addr >= r.start && addr < r.end {
			return r.mapped
		}
	}
	return false
}

// byteAt relies on writes being appended with nondecreasing step and seq.
func (h *History) byteAt(addr, step, seq uint64) byte {
	ws := h.bytes[addr]
	i := sort.Search(len(ws), func(i int) bool { return ws[i].step > step || ws[i].seq > seq })
	if i == 0 {
		return 0
	}
	return ws[i-1].value
}
