package lexer

import (
	"fmt"
	"strconv"

	"github.com/agenthands/trcarch/pkg/compiler/diag"
)

const eof = -1

// Scanner performs lexical analysis on script source. Lexical errors are
// recorded in the sink and scanning continues with the next token.
type Scanner struct {
	source []byte
	sink   *diag.Sink

	ch   int // lookahead character, eof at end of input
	off  int // offset of ch
	next int // offset of the character after ch
	line int
	col  int
}

// NewScanner creates a new scanner for the given source.
func NewScanner(source []byte, sink *diag.Sink) *Scanner {
	s := &Scanner{}
	s.Reset(source, sink)
	return s
}

// Reset re-initializes the scanner with new source for reuse.
func (s *Scanner) Reset(source []byte, sink *diag.Sink) {
	if sink == nil {
		sink = &diag.Sink{}
	}
	s.source = source
	s.sink = sink
	s.ch = 0
	s.off = 0
	s.next = 0
	s.line = 1
	s.col = 0
	s.read()
}

// Sink returns the diagnostics sink the scanner reports to.
func (s *Scanner) Sink() *diag.Sink { return s.sink }

func (s *Scanner) read() {
	if s.ch == eof {
		return
	}
	if s.next >= len(s.source) {
		s.ch = eof
		s.off = len(s.source)
		return
	}
	s.off = s.next
	s.ch = int(s.source[s.next])
	s.next++
	if s.ch == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col++
	}
}

func (s *Scanner) peek() int {
	if s.next >= len(s.source) {
		return eof
	}
	return int(s.source[s.next])
}

// Next returns the next token from the source. Once the input is
// exhausted every call returns a KindEOF token.
func (s *Scanner) Next() Token {
	for {
		for isSpace(s.ch) {
			s.read()
		}
		if s.ch == '/' && s.peek() == '/' {
			for s.ch != '\n' && s.ch != eof {
				s.read()
			}
			continue
		}
		if s.ch == '/' && s.peek() == '*' {
			if !s.skipBlockComment() {
				return s.eofToken()
			}
			continue
		}
		break
	}

	if s.ch == eof {
		return s.eofToken()
	}

	tok := Token{Kind: KindNone, Offset: uint32(s.off), Line: uint32(s.line), Col: uint32(s.col)}
	ch := s.ch

	switch {
	case isStartIdentifier(ch):
		s.scanIdentifier(&tok)
	case isDigit(ch):
		s.scanNumber(&tok)
	case ch == '\'':
		s.scanChar(&tok)
	case ch == '"':
		s.scanString(&tok)
	default:
		if k := twoCharKind(ch, s.peek()); k != KindNone {
			s.read()
			s.read()
			tok.Kind = k
		} else if k := oneCharKind(ch); k != KindNone {
			s.read()
			tok.Kind = k
		} else {
			s.read()
			s.fail(&tok, diag.InvalidChar, charString(ch))
		}
	}

	tok.Length = uint32(s.off) - tok.Offset
	return tok
}

func (s *Scanner) eofToken() Token {
	return Token{Kind: KindEOF, Offset: uint32(len(s.source)), Line: uint32(s.line), Col: uint32(s.col)}
}

// fail records a diagnostic at the token position and clears its value.
func (s *Scanner) fail(tok *Token, format string, args ...any) {
	s.sink.Errorf(int(tok.Line), int(tok.Col), int(tok.Offset), format, args...)
	tok.Val = 0
	tok.Str = ""
}

func (s *Scanner) skipBlockComment() bool {
	line, col, off := s.line, s.col, s.off
	s.read() // '/'
	depth, state := 1, 0
	for depth > 0 {
		s.read()
		if s.ch == eof {
			s.sink.Errorf(line, col, off, diag.EOFInComment)
			return false
		}
		switch state {
		case 0:
			if s.ch == '/' {
				state = 1
			} else if s.ch == '*' {
				state = 2
			}
		case 1: // after '/'
			if s.ch == '*' {
				depth++
				state = 0
			} else if s.ch != '/' {
				state = 0
			}
		case 2: // after '*'
			if s.ch == '/' {
				depth--
				state = 0
			} else if s.ch != '*' {
				state = 0
			}
		}
	}
	s.read()
	return true
}

func (s *Scanner) scanIdentifier(tok *Token) {
	start := s.off
	for isMidIdentifier(s.ch) {
		s.read()
	}
	lit := s.source[start:s.off]
	if k, ok := keywords[string(lit)]; ok {
		tok.Kind = k
		return
	}
	tok.Kind = KindIdentifier
	tok.Str = string(lit)
}

func (s *Scanner) scanNumber(tok *Token) {
	var buf [32]byte
	digits := buf[:0]
	radix := 10

	first := s.ch
	s.read()
	switch {
	case first == '0' && (s.ch == 'x' || s.ch == 'X'):
		radix = 16
		s.read()
		for isHexDigit(s.ch) || s.ch == '_' {
			if s.ch != '_' {
				digits = append(digits, byte(s.ch))
			}
			s.read()
		}
		if len(digits) == 0 {
			if s.ch == eof {
				s.sink.Errorf(s.line, s.col, s.off, diag.EOFInNumber)
				tok.Kind = KindNone
				return
			}
			if !isMidIdentifier(s.ch) {
				s.sink.Errorf(s.line, s.col, s.off, diag.InvalidChar, charString(s.ch))
				tok.Kind = KindNone
				return
			}
		}
	case first == '0':
		radix = 8
		digits = append(digits, '0')
		for isOctalDigit(s.ch) || s.ch == '_' {
			if s.ch != '_' {
				digits = append(digits, byte(s.ch))
			}
			s.read()
		}
	default:
		digits = append(digits, byte(first))
		for isDigit(s.ch) || s.ch == '_' {
			if s.ch != '_' {
				digits = append(digits, byte(s.ch))
			}
			s.read()
		}
	}

	if isMidIdentifier(s.ch) {
		// reported where the offending character is, then the rest of
		// the word is dropped
		s.sink.Errorf(s.line, s.col, s.off, diag.InvalidChar, charString(s.ch))
		for isMidIdentifier(s.ch) {
			s.read()
		}
		tok.Kind = KindNone
		tok.Val = 0
		return
	}

	tok.Kind = KindNumber
	v, err := strconv.ParseUint(string(digits), radix, 64)
	if err != nil {
		s.fail(tok, diag.BigNum, string(digits))
		return
	}
	tok.Val = v
}

// scanEscape decodes the escape sequence starting at the backslash in ch.
// On return ch is the first character after the sequence.
func (s *Scanner) scanEscape(tok *Token) (byte, bool) {
	s.read() // '\\'
	switch {
	case s.ch == 'x':
		s.read()
		c1 := s.ch
		s.read()
		c2 := s.ch
		if c1 == eof || c2 == eof {
			s.fail(tok, diag.UndefinedEscape, "x")
			return 0, false
		}
		s.read()
		if !isHexDigit(c1) || !isHexDigit(c2) {
			s.fail(tok, diag.UndefinedEscape, "x"+charString(c1)+charString(c2))
			return 0, false
		}
		return byte(hexValue(c1)<<4 | hexValue(c2)), true
	case isOctalDigit(s.ch):
		v := 0
		for n := 0; n < 3 && isOctalDigit(s.ch); n++ {
			v = v<<3 | (s.ch - '0')
			s.read()
		}
		return byte(v), true
	case s.ch == eof:
		s.fail(tok, diag.IllegalLineEnd)
		return 0, false
	}
	c, ok := escapes[byte(s.ch)]
	if !ok {
		s.fail(tok, diag.UndefinedEscape, charString(s.ch))
		s.read()
		return 0, false
	}
	s.read()
	return c, true
}

func (s *Scanner) scanChar(tok *Token) {
	tok.Kind = KindCharConst
	s.read() // opening quote

	switch s.ch {
	case '\'':
		s.fail(tok, diag.EmptyCharConst)
		s.read()
		return
	case '\r', '\n', eof:
		s.fail(tok, diag.IllegalLineEnd)
		return
	case '\\':
		v, ok := s.scanEscape(tok)
		if ok {
			tok.Val = uint64(v)
		}
	default:
		tok.Val = uint64(s.ch)
		s.read()
	}

	if s.ch != '\'' {
		s.fail(tok, diag.MissingQuote)
		return
	}
	s.read()
}

func (s *Scanner) scanString(tok *Token) {
	tok.Kind = KindStringConst
	s.read() // opening quote

	var buf []byte
	failed, closed := false, false
	for s.ch != eof {
		if s.ch == '"' {
			closed = true
			break
		}
		if s.ch == '\\' {
			c, ok := s.scanEscape(tok)
			if ok {
				buf = append(buf, c)
			} else {
				failed = true
			}
			continue
		}
		buf = append(buf, byte(s.ch))
		s.read()
	}

	if !closed {
		s.fail(tok, diag.MissingQuote)
		return
	}
	s.read()
	if !failed {
		tok.Str = string(buf)
	}
}

func twoCharKind(a, b int) Kind {
	switch a {
	case '+':
		switch b {
		case '+':
			return KindInc
		case '=':
			return KindPlusAs
		}
	case '-':
		switch b {
		case '-':
			return KindDec
		case '=':
			return KindMinusAs
		case '>':
			return KindArrow
		}
	case '*':
		if b == '=' {
			return KindStarAs
		}
	case '/':
		if b == '=' {
			return KindSlashAs
		}
	case '%':
		if b == '=' {
			return KindRemAs
		}
	case '=':
		if b == '=' {
			return KindEq
		}
	case '!':
		if b == '=' {
			return KindNeq
		}
	case '<':
		switch b {
		case '=':
			return KindLeq
		case '<':
			return KindShl
		}
	case '>':
		switch b {
		case '=':
			return KindGeq
		case '>':
			return KindShr
		}
	case '&':
		if b == '&' {
			return KindAnd
		}
	case '|':
		if b == '|' {
			return KindOr
		}
	}
	return KindNone
}

func oneCharKind(c int) Kind {
	switch c {
	case '+':
		return KindPlus
	case '-':
		return KindMinus
	case '*':
		return KindStar
	case '/':
		return KindSlash
	case '%':
		return KindRem
	case '=':
		return KindAssign
	case '<':
		return KindLt
	case '>':
		return KindGt
	case '&':
		return KindBitAnd
	case '|':
		return KindBitOr
	case '^':
		return KindXor
	case '!':
		return KindNot
	case '~':
		return KindTilde
	case ',':
		return KindComma
	case ';':
		return KindSemicolon
	case '.':
		return KindPeriod
	case '(':
		return KindLParen
	case ')':
		return KindRParen
	case '[':
		return KindLBrack
	case ']':
		return KindRBrack
	case '{':
		return KindLBrace
	case '}':
		return KindRBrace
	}
	return KindNone
}

var escapes = map[byte]byte{
	'\'': '\'',
	'\\': '\\',
	'n':  '\n',
	'r':  '\r',
	'"':  '"',
	'?':  '?',
	'a':  0x07,
	'b':  '\b',
	'e':  0x1b,
	'f':  '\f',
	't':  '\t',
	'v':  0x0b,
}

func charString(ch int) string {
	if ch >= 0x20 && ch < 0x7f {
		return string(rune(ch))
	}
	return fmt.Sprintf("\\x%02x", ch&0xff)
}

func isSpace(ch int) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f'
}

func isDigit(ch int) bool {
	return ch >= '0' && ch <= '9'
}

func isOctalDigit(ch int) bool {
	return ch >= '0' && ch <= '7'
}

func isHexDigit(ch int) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch int) int {
	switch {
	case isDigit(ch):
		return ch - '0'
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10
	default:
		return ch - 'A' + 10
	}
}

func isStartIdentifier(ch int) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isMidIdentifier(ch int) bool {
	return isStartIdentifier(ch) || isDigit(ch)
}
