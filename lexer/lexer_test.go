package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Urethramancer/x64asm/lexer"
)

func kinds(toks []lexer.Token) []lexer.Kind {
	out := make([]lexer.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeInstructionLine(t *testing.T) {
	toks := lexer.New("t.asm", []byte("mov rax, 1\n")).Tokenize()
	assert.Equal(t, []lexer.Kind{
		lexer.KindIdent, lexer.KindIdent, lexer.KindComma, lexer.KindImmediate,
		lexer.KindNewline, lexer.KindEOF,
	}, kinds(toks))
	assert.Equal(t, "mov", toks[0].Lexeme)
	assert.Equal(t, "rax", toks[1].Lexeme)
	assert.Equal(t, "1", toks[3].Lexeme)
}

func TestTokenizeLabelAndMemoryOperand(t *testing.T) {
	toks := lexer.New("t.asm", []byte("_start:\n  mov [rbx+8], rax\n")).Tokenize()
	assert.Equal(t, lexer.KindLabelDef, toks[0].Kind)
	assert.Equal(t, "_start", toks[0].Lexeme)

	gotKinds := kinds(toks[2:])
	assert.Equal(t, []lexer.Kind{
		lexer.KindIdent, lexer.KindLBracket, lexer.KindIdent, lexer.KindPlus,
		lexer.KindImmediate, lexer.KindRBracket, lexer.KindComma, lexer.KindIdent,
		lexer.KindNewline, lexer.KindEOF,
	}, gotKinds)
}

func TestHexAndCharLiterals(t *testing.T) {
	toks := lexer.New("t.asm", []byte("mov al, 0x41\nmov al, 'A'\n")).Tokenize()
	assert.Equal(t, 16, toks[3].NumBase)
	// the char literal token is the 9th token (index 8): mov al , 0x41 newline mov al , 'A'
	var charTok lexer.Token
	for _, tk := range toks {
		if tk.Kind == lexer.KindImmediate && tk.NumBase == -1 {
			charTok = tk
		}
	}
	assert.Equal(t, "A", charTok.Lexeme)
}

func TestUnterminatedStringProducesErrorToken(t *testing.T) {
	toks := lexer.New("t.asm", []byte(`db "oops`)).Tokenize()
	var found bool
	for _, tk := range toks {
		if tk.Kind == lexer.KindError {
			found = true
			assert.NotNil(t, tk.Diag)
		}
	}
	assert.True(t, found)
}
