package stdlib

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agenthands/trcarch/pkg/core/value"
	"github.com/agenthands/trcarch/pkg/vm"
)

// Sprintf: int sprintf(char* dst, char* fmt, ...)
func Sprintf(m *vm.Machine, args []value.Value) (value.Value, error) {
	format, err := cstr(args[1])
	if err != nil {
		return value.Void, err
	}
	s, err := Format(format, args[2:])
	if err != nil {
		return value.Void, err
	}
	if err := args[0].Ptr.WriteCString(s); err != nil {
		return value.Void, err
	}
	return value.Int(int64(len(s))), nil
}

// Printf: int printf(char* fmt, ...)
func Printf(m *vm.Machine, args []value.Value) (value.Value, error) {
	format, err := cstr(args[0])
	if err != nil {
		return value.Void, err
	}
	s, err := Format(format, args[1:])
	if err != nil {
		return value.Void, err
	}
	if m.Stdout != nil {
		if _, err := io.WriteString(m.Stdout, s); err != nil {
			return value.Void, err
		}
	}
	return value.Int(int64(len(s))), nil
}

// Format renders a C format string. Conversions are
// %[flags][width][.prec][hh|h|l|ll|z|j|t](d|i|u|x|X|o|c|s|p|%). Widths
// and precisions may be *. Pointer arguments to %s are read as C strings.
func Format(format string, args []value.Value) (string, error) {
	var b strings.Builder
	next := 0
	arg := func() (value.Value, error) {
		if next >= len(args) {
			return value.Void, fmt.Errorf("%w: missing argument %d in %q", ErrFormat, next+1, format)
		}
		next++
		return args[next-1], nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		start := i
		i++

		spec := []byte{'%'}
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			spec = append(spec, format[i])
			i++
		}
		for _, part := range []bool{false, true} {
			if part {
				if i >= len(format) || format[i] != '.' {
					break
				}
				spec = append(spec, '.')
				i++
			}
			if i < len(format) && format[i] == '*' {
				v, err := arg()
				if err != nil {
					return "", err
				}
				spec = strconv.AppendInt(spec, int64(int32(v.Data)), 10)
				i++
				continue
			}
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				spec = append(spec, format[i])
				i++
			}
		}

		size := 4
		for i < len(format) && strings.IndexByte("hlzjtL", format[i]) >= 0 {
			switch format[i] {
			case 'h':
				if size == 2 {
					size = 1
				} else {
					size = 2
				}
			default:
				size = 8
			}
			i++
		}
		if i >= len(format) {
			return "", fmt.Errorf("%w: truncated conversion %q", ErrFormat, format[start:])
		}

		conv := format[i]
		if conv == '%' {
			b.WriteByte('%')
			continue
		}
		v, err := arg()
		if err != nil {
			return "", err
		}
		switch conv {
		case 'd', 'i':
			fmt.Fprintf(&b, string(append(spec, 'd')), signed(v.Data, size))
		case 'u':
			fmt.Fprintf(&b, string(append(spec, 'd')), unsigned(v.Data, size))
		case 'x', 'X', 'o':
			fmt.Fprintf(&b, string(append(spec, conv)), unsigned(v.Data, size))
		case 'c':
			fmt.Fprintf(&b, string(append(spec, 'c')), rune(byte(v.Data)))
		case 's':
			s := ""
			if v.Kind == value.KindPointer {
				if s, err = cstr(v); err != nil {
					return "", err
				}
			} else {
				s = strconv.FormatInt(int64(v.Data), 10)
			}
			fmt.Fprintf(&b, string(append(spec, 's')), s)
		case 'p':
			fmt.Fprintf(&b, string(append(spec, 's')), v.Ptr.String())
		default:
			return "", fmt.Errorf("%w: unknown conversion %%%c", ErrFormat, conv)
		}
	}
	return b.String(), nil
}

func signed(x uint64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(x))
	case 2:
		return int64(int16(x))
	case 4:
		return int64(int32(x))
	}
	return int64(x)
}

func unsigned(x uint64, size int) uint64 {
	if size == 8 {
		return x
	}
	return x & (1<<(8*size) - 1)
}
