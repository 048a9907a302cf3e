package diag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompile is wrapped by every error returned from a sink with entries.
var ErrCompile = errors.New("compile: program rejected")

// Diagnostic is a single position-tagged compile-time message.
type Diagnostic struct {
	Line   int
	Col    int
	Offset int
	Msg    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("-- line %d col %d: %s", d.Line, d.Col, d.Msg)
}

// Sink accumulates diagnostics produced by the scanner and parser.
// It only ever records; callers decide what a non-empty sink means.
type Sink struct {
	list []Diagnostic
}

// Errorf records a formatted message at the given position.
func (s *Sink) Errorf(line, col, offset int, format string, args ...any) {
	s.list = append(s.list, Diagnostic{
		Line:   line,
		Col:    col,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
	})
}

// Len returns the number of recorded diagnostics.
func (s *Sink) Len() int { return len(s.list) }

// List returns a copy of the recorded diagnostics in order.
func (s *Sink) List() []Diagnostic {
	out := make([]Diagnostic, len(s.list))
	copy(out, s.list)
	return out
}

// String renders one diagnostic per line.
func (s *Sink) String() string {
	var b strings.Builder
	for i, d := range s.list {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.String())
	}
	return b.String()
}

// Err returns nil for an empty sink, otherwise an *Error carrying the dump.
func (s *Sink) Err() error {
	if len(s.list) == 0 {
		return nil
	}
	return &Error{Diagnostics: s.List()}
}

// Error is the rejection of a program with diagnostics.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

func (e *Error) Unwrap() error { return ErrCompile }
