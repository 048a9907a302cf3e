package arch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agenthands/trcarch/pkg/event"
)

var ErrFormatSyntax = errors.New("arch: format syntax error")

type fieldCommand struct {
	text  string
	field string
	base  int
	width int
}

// FieldFormatter renders the state of a step from a template. ${name}
// inserts a field in decimal; ${name;x8} pads it to 8 hex digits, with d
// and o selecting decimal and octal. \n, \r and \t are escapes, any other
// escaped character stands for itself.
type FieldFormatter struct {
	cmds []fieldCommand
}

// ParseFormat compiles a template.
func ParseFormat(format string) (*FieldFormatter, error) {
	f := &FieldFormatter{}
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			f.cmds = append(f.cmds, fieldCommand{text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case c == '\\':
			i++
			if i >= len(format) {
				return nil, fmt.Errorf("%w: unexpected end of format", ErrFormatSyntax)
			}
			switch format[i] {
			case 'n':
				text.WriteByte('\n')
			case 'r':
				text.WriteByte('\r')
			case 't':
				text.WriteByte('\t')
			default:
				text.WriteByte(format[i])
			}
		case c == '$' && i+1 < len(format) && format[i+1] == '{':
			end := strings.IndexByte(format[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated ${ at %d", ErrFormatSyntax, i)
			}
			cmd, err := parseField(format[i+2 : i+2+end])
			if err != nil {
				return nil, err
			}
			flush()
			f.cmds = append(f.cmds, cmd)
			i += 2 + end
		case c == '$' && i+1 == len(format):
			return nil, fmt.Errorf("%w: unexpected end of format", ErrFormatSyntax)
		default:
			text.WriteByte(c)
		}
	}
	flush()
	return f, nil
}

func parseField(s string) (fieldCommand, error) {
	name, spec, ok := strings.Cut(s, ";")
	cmd := fieldCommand{field: name, base: 10, width: 1}
	if name == "" {
		return cmd, fmt.Errorf("%w: empty field name", ErrFormatSyntax)
	}
	if !ok {
		return cmd, nil
	}
	if spec == "" {
		return cmd, fmt.Errorf("%w: empty format for %s", ErrFormatSyntax, name)
	}
	switch spec[0] {
	case 'd', 'D':
	case 'o', 'O':
		cmd.base = 8
	case 'x', 'X':
		cmd.base = 16
	default:
		return cmd, fmt.Errorf("%w: format %q for %s", ErrFormatSyntax, spec, name)
	}
	w, err := strconv.Atoi(spec[1:])
	if err != nil || w < 0 {
		return cmd, fmt.Errorf("%w: width %q for %s", ErrFormatSyntax, spec[1:], name)
	}
	cmd.width = w
	return cmd, nil
}

// Format renders s. Hex and octal fields are zero padded, decimal fields
// space padded.
func (f *FieldFormatter) Format(s event.Step) (string, error) {
	var b strings.Builder
	for _, c := range f.cmds {
		if c.field == "" {
			b.WriteString(c.text)
			continue
		}
		x, err := s.Field(c.field)
		if err != nil {
			return "", err
		}
		digits := strconv.FormatUint(x, c.base)
		pad := " "
		if c.base != 10 {
			pad = "0"
		}
		if n := c.width - len(digits); n > 0 {
			b.WriteString(strings.Repeat(pad, n))
		}
		b.WriteString(digits)
	}
	return b.String(), nil
}
