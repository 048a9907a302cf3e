package trace

import (
	"bytes"
	"os"
)

// File is a trace file mapped into memory.
type File struct {
	*Reader
	data  []byte
	unmap func() error
}

// Open maps the trace at path and returns a reader over it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, unmap, err := mapFile(f, fi.Size())
	if err != nil {
		return nil, err
	}
	return &File{Reader: NewReader(bytes.NewReader(data)), data: data, unmap: unmap}, nil
}

// Len is the size of the trace in bytes.
func (f *File) Len() int { return len(f.data) }

// Close releases the mapping. Events already read stay valid; the reader
// must not be used afterwards.
func (f *File) Close() error {
	if f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.data = nil
	return err
}
