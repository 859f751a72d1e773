// Package lexer turns assembly source text into a token stream, attaching
// a precise file/line/column to every token the way spec.md §4.1 requires.
package lexer

import "github.com/Urethramancer/x64asm/diag"

// Kind tags a Token's lexical category.
type Kind int

const (
	KindEOF Kind = iota
	KindNewline
	KindIdent       // mnemonic, register or directive keyword; resolved by the parser
	KindLabelDef    // identifier followed by ':'
	KindImmediate   // decimal/hex/bin/oct/char literal
	KindString      // quoted string literal, already escape-decoded
	KindComma
	KindColon
	KindLBracket
	KindRBracket
	KindPlus
	KindMinus
	KindStar
	KindDollar // '$', current section offset
	KindError  // a synthetic token carrying a lexical diagnostic
)

// Pos is a source location: file name plus 1-based line and column.
type Pos = diag.Pos

// Token is one lexical unit: its kind, the exact source text, and the
// location the text started at.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Pos

	// NumBase records the base an Immediate was written in (10, 16, 2, 8),
	// or -1 for a character literal, so the parser doesn't need to re-sniff
	// the lexeme's prefix.
	NumBase int
	// Diag holds the diagnostic for a KindError token.
	Diag *diag.Diagnostic
}
