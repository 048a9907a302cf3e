package lexer

// Kind represents the type of token identified by the scanner.
type Kind uint8

const (
	KindEOF  Kind = iota
	KindNone      // produced for input that did not form a valid token
	KindIdentifier
	KindNumber
	KindCharConst
	KindStringConst

	// operators
	KindPlus      // +
	KindMinus     // -
	KindStar      // *
	KindSlash     // /
	KindRem       // %
	KindAssign    // =
	KindLt        // <
	KindGt        // >
	KindBitAnd    // &
	KindBitOr     // |
	KindXor       // ^
	KindNot       // !
	KindTilde     // ~
	KindInc       // ++
	KindDec       // --
	KindPlusAs    // +=
	KindMinusAs   // -=
	KindStarAs    // *=
	KindSlashAs   // /=
	KindRemAs     // %=
	KindEq        // ==
	KindNeq       // !=
	KindLeq       // <=
	KindGeq       // >=
	KindAnd       // &&
	KindOr        // ||
	KindShl       // <<
	KindShr       // >>
	KindArrow     // ->
	KindComma     // ,
	KindSemicolon // ;
	KindPeriod    // .
	KindLParen    // (
	KindRParen    // )
	KindLBrack    // [
	KindRBrack    // ]
	KindLBrace    // {
	KindRBrace    // }

	// keywords
	KindIf
	KindElse
	KindWhile
	KindDo
	KindFor
	KindSwitch
	KindCase
	KindDefault
	KindBreak
	KindContinue
	KindReturn
	KindVoid
	KindChar
	KindShort
	KindInt
	KindLong
	KindSigned
	KindUnsigned
	KindConst
	KindStruct
	KindUnion
	KindTypedef
	KindTrue
	KindFalse
)

var kindNames = [...]string{
	KindEOF:         "end of input",
	KindNone:        "invalid token",
	KindIdentifier:  "identifier",
	KindNumber:      "number",
	KindCharConst:   "character constant",
	KindStringConst: "string constant",
	KindPlus:        "'+'",
	KindMinus:       "'-'",
	KindStar:        "'*'",
	KindSlash:       "'/'",
	KindRem:         "'%'",
	KindAssign:      "'='",
	KindLt:          "'<'",
	KindGt:          "'>'",
	KindBitAnd:      "'&'",
	KindBitOr:       "'|'",
	KindXor:         "'^'",
	KindNot:         "'!'",
	KindTilde:       "'~'",
	KindInc:         "'++'",
	KindDec:         "'--'",
	KindPlusAs:      "'+='",
	KindMinusAs:     "'-='",
	KindStarAs:      "'*='",
	KindSlashAs:     "'/='",
	KindRemAs:       "'%='",
	KindEq:          "'=='",
	KindNeq:         "'!='",
	KindLeq:         "'<='",
	KindGeq:         "'>='",
	KindAnd:         "'&&'",
	KindOr:          "'||'",
	KindShl:         "'<<'",
	KindShr:         "'>>'",
	KindArrow:       "'->'",
	KindComma:       "','",
	KindSemicolon:   "';'",
	KindPeriod:      "'.'",
	KindLParen:      "'('",
	KindRParen:      "')'",
	KindLBrack:      "'['",
	KindRBrack:      "']'",
	KindLBrace:      "'{'",
	KindRBrace:      "'}'",
	KindIf:          "if",
	KindElse:        "else",
	KindWhile:       "while",
	KindDo:          "do",
	KindFor:         "for",
	KindSwitch:      "switch",
	KindCase:        "case",
	KindDefault:     "default",
	KindBreak:       "break",
	KindContinue:    "continue",
	KindReturn:      "return",
	KindVoid:        "void",
	KindChar:        "char",
	KindShort:       "short",
	KindInt:         "int",
	KindLong:        "long",
	KindSigned:      "signed",
	KindUnsigned:    "unsigned",
	KindConst:       "const",
	KindStruct:      "struct",
	KindUnion:       "union",
	KindTypedef:     "typedef",
	KindTrue:        "true",
	KindFalse:       "false",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var keywords = map[string]Kind{
	"if":       KindIf,
	"else":     KindElse,
	"while":    KindWhile,
	"do":       KindDo,
	"for":      KindFor,
	"switch":   KindSwitch,
	"case":     KindCase,
	"default":  KindDefault,
	"break":    KindBreak,
	"continue": KindContinue,
	"return":   KindReturn,
	"void":     KindVoid,
	"char":     KindChar,
	"short":    KindShort,
	"int":      KindInt,
	"long":     KindLong,
	"signed":   KindSigned,
	"unsigned": KindUnsigned,
	"const":    KindConst,
	"struct":   KindStruct,
	"union":    KindUnion,
	"typedef":  KindTypedef,
	"true":     KindTrue,
	"false":    KindFalse,
}

// Token represents a lexical unit pointing back to the source.
// Val holds the value of number and character constants, Str the
// name of identifiers and the decoded text of string constants.
type Token struct {
	Kind   Kind
	Offset uint32
	Length uint32
	Line   uint32
	Col    uint32
	Val    uint64
	Str    string
}
