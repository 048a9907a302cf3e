package value

import "strconv"

// Kind represents the tag in the Value tagged union.
type Kind uint8

const (
	KindVoid Kind = iota
	KindScalar
	KindPointer
)

// Value carries an argument or a result across the boundary between the
// interpreter and the host.
type Value struct {
	Kind Kind
	Data uint64
	Ptr  Pointer
}

// Void is the result of a void function.
var Void = Value{}

func Scalar(x uint64) Value { return Value{Kind: KindScalar, Data: x} }

func Int(x int64) Value { return Value{Kind: KindScalar, Data: uint64(x)} }

func Ref(p Pointer) Value { return Value{Kind: KindPointer, Ptr: p} }

// Int returns the value as int64.
func (v Value) Int() int64 { return int64(v.Data) }

func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return strconv.FormatInt(int64(v.Data), 10)
	case KindPointer:
		return v.Ptr.String()
	}
	return "void"
}
