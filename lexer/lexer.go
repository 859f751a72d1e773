package lexer

import (
	"strings"

	"github.com/Urethramancer/x64asm/diag"
)

// Lexer walks a source buffer one byte at a time, tracking line/column as
// it goes, the way the donor's parseLines walked raw lines but refined to
// per-character granularity since x86 operand syntax needs it (brackets,
// commas, scaled index expressions).
type Lexer struct {
	file string
	src  []byte
	pos  int
	line int
	col  int

	stopOnFirst bool
}

// New creates a Lexer over src, attributing diagnostics to file.
func New(file string, src []byte) *Lexer {
	return &Lexer{file: file, src: src, pos: 0, line: 1, col: 1}
}

// StopOnFirst records the stop-on-first-error setting. The lexer does not
// act on it: it always tokenizes to end of input and emits an Error token
// for every lexical error (spec.md §4.1's "does not abort the stream"
// policy); it's the parser/driver that honours stop-on-first-error.
func (l *Lexer) StopOnFirst(v bool) { l.stopOnFirst = v }

func (l *Lexer) curPos() Pos { return Pos{File: l.file, Line: l.line, Col: l.col} }

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// Tokenize runs the lexer to completion and returns the full token
// sequence (always ending in KindEOF), matching spec.md §4.1's contract.
func (l *Lexer) Tokenize() []Token {
	var out []Token
	for {
		tok := l.next()
		out = append(out, tok)
		if tok.Kind == KindEOF {
			return out
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func (l *Lexer) next() Token {
	for isSpace(l.peek()) {
		l.advance()
	}

	start := l.curPos()
	c := l.peek()

	switch {
	case c == 0:
		return Token{Kind: KindEOF, Pos: start}
	case c == '\n':
		l.advance()
		return Token{Kind: KindNewline, Lexeme: "\n", Pos: start}
	case c == ';':
		for l.peek() != '\n' && l.peek() != 0 {
			l.advance()
		}
		return l.next()
	case c == ',':
		l.advance()
		return Token{Kind: KindComma, Lexeme: ",", Pos: start}
	case c == '[':
		l.advance()
		return Token{Kind: KindLBracket, Lexeme: "[", Pos: start}
	case c == ']':
		l.advance()
		return Token{Kind: KindRBracket, Lexeme: "]", Pos: start}
	case c == '+':
		l.advance()
		return Token{Kind: KindPlus, Lexeme: "+", Pos: start}
	case c == '-':
		l.advance()
		return Token{Kind: KindMinus, Lexeme: "-", Pos: start}
	case c == '*':
		l.advance()
		return Token{Kind: KindStar, Lexeme: "*", Pos: start}
	case c == '$':
		l.advance()
		return Token{Kind: KindDollar, Lexeme: "$", Pos: start}
	case c == '"':
		return l.lexString(start, c)
	case c == '\'' && isCharLiteral(l):
		return l.lexCharLiteral(start)
	case c == '\'':
		return l.lexString(start, c)
	case isDigit(c):
		return l.lexNumber(start)
	case isIdentStart(c):
		return l.lexIdent(start)
	default:
		l.advance()
		for l.peek() != 0 && l.peek() != '\n' && !isSpace(l.peek()) {
			l.advance()
		}
		d := diag.New(diag.UnexpectedCharacter, start, "unexpected character %q", c)
		return Token{Kind: KindError, Lexeme: string(c), Pos: start, Diag: d}
	}
}

// isCharLiteral heuristically distinguishes 'x' (a one-byte char literal)
// from a string quoted with single quotes: a char literal is exactly
// 'c' or an escape '\c', closed immediately.
func isCharLiteral(l *Lexer) bool {
	if l.peekAt(1) == '\\' {
		// '\n' style: quote, backslash, escape char, quote
		return l.peekAt(3) == '\''
	}
	return l.peekAt(2) == '\''
}

func (l *Lexer) lexIdent(start Pos) Token {
	var b strings.Builder
	for isIdentCont(l.peek()) {
		b.WriteByte(l.advance())
	}
	lex := b.String()
	if l.peek() == ':' {
		l.advance()
		return Token{Kind: KindLabelDef, Lexeme: lex, Pos: start}
	}
	return Token{Kind: KindIdent, Lexeme: lex, Pos: start}
}

func (l *Lexer) lexNumber(start Pos) Token {
	var b strings.Builder
	base := 10
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		base = 16
		b.WriteByte(l.advance())
		b.WriteByte(l.advance())
		for isHex(l.peek()) {
			b.WriteByte(l.advance())
		}
	} else if l.peek() == '0' && (l.peekAt(1) == 'b' || l.peekAt(1) == 'B') {
		base = 2
		b.WriteByte(l.advance())
		b.WriteByte(l.advance())
		for l.peek() == '0' || l.peek() == '1' {
			b.WriteByte(l.advance())
		}
	} else if l.peek() == '0' && (l.peekAt(1) == 'o' || l.peekAt(1) == 'O') {
		base = 8
		b.WriteByte(l.advance())
		b.WriteByte(l.advance())
		for l.peek() >= '0' && l.peek() <= '7' {
			b.WriteByte(l.advance())
		}
	} else {
		for isDigit(l.peek()) {
			b.WriteByte(l.advance())
		}
	}
	return Token{Kind: KindImmediate, Lexeme: b.String(), Pos: start, NumBase: base}
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) lexCharLiteral(start Pos) Token {
	l.advance() // opening '
	var val byte
	if l.peek() == '\\' {
		l.advance()
		val = decodeEscape(l.advance())
	} else {
		val = l.advance()
	}
	if l.peek() != '\'' {
		d := diag.New(diag.UnclosedString, start, "unterminated character literal")
		return Token{Kind: KindError, Pos: start, Diag: d}
	}
	l.advance()
	return Token{Kind: KindImmediate, Lexeme: string(val), Pos: start, NumBase: -1}
}

func (l *Lexer) lexString(start Pos, quote byte) Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		c := l.peek()
		if c == 0 || c == '\n' {
			d := diag.New(diag.UnclosedString, start, "unterminated string literal")
			return Token{Kind: KindError, Lexeme: b.String(), Pos: start, Diag: d}
		}
		if c == quote {
			l.advance()
			return Token{Kind: KindString, Lexeme: b.String(), Pos: start}
		}
		if c == '\\' {
			l.advance()
			b.WriteByte(decodeEscape(l.advance()))
			continue
		}
		b.WriteByte(l.advance())
	}
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case '0':
		return 0
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '\'':
		return '\''
	default:
		return c
	}
}
