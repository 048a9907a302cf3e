package diag

// Message formats shared by the scanner and the parser.
const (
	InvalidChar     = "unexpected character '%s'"
	BigNum          = "number too large: %s"
	EOFInNumber     = "unexpected end of input in number"
	EOFInComment    = "unexpected end of input in comment"
	EmptyCharConst  = "empty character constant"
	MissingQuote    = "missing closing quote"
	IllegalLineEnd  = "illegal line end in literal"
	UndefinedEscape = "undefined escape sequence \\%s"

	TokenExpected    = "%s expected"
	UnknownSymbol    = "unknown symbol: %s"
	DidYouMean       = "unknown symbol: %s (did you mean %s?)"
	NotAnArray       = "not an array: %s"
	NotAStruct       = "not a struct: %s"
	NotAPointer      = "not a pointer: %s"
	UnknownMember    = "unknown member: %s"
	Factor           = "invalid factor"
	AnonymousStruct  = "anonymous struct"
	DuplicateType    = "duplicate type: %s"
	UnknownType      = "unknown type: %s"
	RedefineSymbol   = "redefinition of symbol: %s"
	TypeExpected     = "type expected"
	ArrayDimension   = "invalid array dimension"
	VoidWithSign     = "void with sign"
	NotAssignable    = "expression is not assignable"
	OutsideLoop      = "%s outside loop"
	NotImplemented   = "not implemented: %s"
	IncompleteType   = "incomplete type: %s"
	DuplicateMember  = "duplicate member: %s"
	ArgumentMismatch = "conflicting declaration of %s: expected %d arguments, got %d"
	DeclExpected     = "declaration expected"
	NoAddress        = "cannot take address of %s"
)
