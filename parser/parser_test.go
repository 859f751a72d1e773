package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/lexer"
	"github.com/Urethramancer/x64asm/parser"
)

func parse(t *testing.T, src string) *parser.Program {
	t.Helper()
	toks := lexer.New("t.asm", []byte(src)).Tokenize()
	return parser.Parse(toks, false)
}

func TestLabelThenInstructionOnOneLine(t *testing.T) {
	prog := parse(t, "_start: mov rax, 60\n")
	require.False(t, prog.Diags.HasErrors())
	require.Len(t, prog.Statements, 2)
	assert.Equal(t, parser.StmtLabelDef, prog.Statements[0].Kind)
	assert.Equal(t, "_start", prog.Statements[0].Label)
	assert.Equal(t, parser.StmtInstruction, prog.Statements[1].Kind)
	assert.Equal(t, "mov", prog.Statements[1].Instr.Mnemonic)
}

func TestMemoryOperandWithSizeHintAndDisplacement(t *testing.T) {
	prog := parse(t, "mov dword [rbx+16], 5\n")
	require.False(t, prog.Diags.HasErrors())
	instr := prog.Statements[0].Instr
	require.Len(t, instr.Operands, 2)
	mem := instr.Operands[0].Mem
	assert.Equal(t, "rbx", mem.Base)
	assert.Equal(t, int64(16), mem.DispValue)
	assert.Equal(t, isa.Width32, mem.SizeHint)
}

func TestOperandCountMismatchIsDiagnosed(t *testing.T) {
	prog := parse(t, "ret rax\n")
	assert.True(t, prog.Diags.HasErrors())
}

func TestUnknownInstructionIsDiagnosed(t *testing.T) {
	prog := parse(t, "frobnicate rax\n")
	assert.True(t, prog.Diags.HasErrors())
}

func TestEquWithDollarMinusLabel(t *testing.T) {
	prog := parse(t, "start:\nlen equ $ - start\n")
	require.False(t, prog.Diags.HasErrors())
	var equ parser.Statement
	for _, s := range prog.Statements {
		if s.Kind == parser.StmtEqu {
			equ = s
		}
	}
	assert.Equal(t, "len", equ.EquName)
	assert.True(t, equ.Equ.IsDollarMinusLabel)
	assert.Equal(t, "start", equ.Equ.Label)
}

func TestTimesDirectiveWrapsInnerStatement(t *testing.T) {
	prog := parse(t, "times 3 nop\n")
	require.False(t, prog.Diags.HasErrors())
	require.Len(t, prog.Statements, 1)
	assert.Equal(t, parser.StmtTimes, prog.Statements[0].Kind)
	assert.Equal(t, 3, prog.Statements[0].Count)
	assert.Equal(t, "nop", prog.Statements[0].Inner.Instr.Mnemonic)
}

func TestDataDirectiveWithStringAndLabel(t *testing.T) {
	prog := parse(t, "db \"hi\", 0, msg_len\n")
	require.False(t, prog.Diags.HasErrors())
	items := prog.Statements[0].Items
	require.Len(t, items, 3)
	assert.True(t, items[0].IsString)
	assert.Equal(t, "hi", string(items[0].String))
	assert.Equal(t, int64(0), items[1].Value)
	assert.True(t, items[2].IsLabel)
	assert.Equal(t, "msg_len", items[2].Label)
}
