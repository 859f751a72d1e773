package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/layout"
	"github.com/Urethramancer/x64asm/parser"
)

func reg(name string) parser.Operand {
	return parser.Operand{Kind: parser.OperandRegister, Register: name}
}

func imm(v int64) parser.Operand {
	return parser.Operand{Kind: parser.OperandImmediate, ImmValue: v}
}

// _start: mov rax, 60 ; ret
func minimalProgram() []parser.Statement {
	return []parser.Statement{
		{Kind: parser.StmtLabelDef, Label: "_start"},
		{Kind: parser.StmtInstruction, Instr: parser.Instruction{
			Mnemonic: "mov", Operands: []parser.Operand{reg("rax"), imm(60)},
		}},
		{Kind: parser.StmtInstruction, Instr: parser.Instruction{Mnemonic: "ret"}},
	}
}

func TestRunAssignsTextBaseVAAndEntryPoint(t *testing.T) {
	diags := diag.NewList(false)
	res, ok := layout.Run(minimalProgram(), diags)
	require.True(t, ok)
	require.False(t, diags.HasErrors())
	assert.Equal(t, uint64(0x400000), res.EntryVA)

	sym, found := res.Symbols.Lookup("_start")
	require.True(t, found)
	assert.Equal(t, uint64(0x400000), sym.VA)
}

func TestRunFailsWithoutStartLabel(t *testing.T) {
	diags := diag.NewList(false)
	stmts := []parser.Statement{
		{Kind: parser.StmtInstruction, Instr: parser.Instruction{Mnemonic: "ret"}},
	}
	_, ok := layout.Run(stmts, diags)
	assert.False(t, ok)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.MissingEntryPoint, diags.First().Kind)
	assert.Error(t, diags.First().Unwrap(), "a fatal diagnostic should carry a causal chain")
	assert.NotEmpty(t, diags.First().Help)
}

func TestRunDetectsDuplicateLabels(t *testing.T) {
	diags := diag.NewList(false)
	stmts := append(minimalProgram(), parser.Statement{Kind: parser.StmtLabelDef, Label: "_start"})
	_, ok := layout.Run(stmts, diags)
	assert.False(t, ok)
	assert.Equal(t, diag.DuplicateLabel, diags.First().Kind)
}

func TestRunSizesDataAndAdvancesSectionCursor(t *testing.T) {
	diags := diag.NewList(false)
	stmts := []parser.Statement{
		{Kind: parser.StmtSectionSwitch, SectionName: ".data"},
		{Kind: parser.StmtLabelDef, Label: "msg"},
		{Kind: parser.StmtData, Unit: parser.Unit1, Items: []parser.DataItem{
			{IsString: true, String: []byte("hi")},
			{Value: 0},
		}},
		{Kind: parser.StmtSectionSwitch, SectionName: ".text"},
	}
	stmts = append(stmts, minimalProgram()...)

	res, ok := layout.Run(stmts, diags)
	require.True(t, ok)
	require.False(t, diags.HasErrors())

	sym, found := res.Symbols.Lookup("msg")
	require.True(t, found)
	assert.Equal(t, uint64(0x600000), sym.VA)

	start, found := res.Symbols.Lookup("_start")
	require.True(t, found)
	assert.Equal(t, uint64(0x400000), start.VA)
}

func TestRunResolvesEquDollarMinusLabel(t *testing.T) {
	diags := diag.NewList(false)
	stmts := []parser.Statement{
		{Kind: parser.StmtSectionSwitch, SectionName: ".data"},
		{Kind: parser.StmtLabelDef, Label: "msg"},
		{Kind: parser.StmtData, Unit: parser.Unit1, Items: []parser.DataItem{
			{IsString: true, String: []byte("hello")},
		}},
		{Kind: parser.StmtEqu, EquName: "msg_len", Equ: parser.EquExpr{IsDollarMinusLabel: true, Label: "msg"}},
		{Kind: parser.StmtSectionSwitch, SectionName: ".text"},
	}
	stmts = append(stmts, minimalProgram()...)

	res, ok := layout.Run(stmts, diags)
	require.True(t, ok)
	require.False(t, diags.HasErrors())

	sym, found := res.Symbols.Lookup("msg_len")
	require.True(t, found)
	assert.Equal(t, uint32(5), sym.Offset)
	assert.Equal(t, uint64(5), sym.VA, "an equ's resolved value is the value itself, not a section-relative address")
}

func TestRunTimesMultipliesInnerStatementSize(t *testing.T) {
	diags := diag.NewList(false)
	stmts := []parser.Statement{
		{Kind: parser.StmtLabelDef, Label: "_start"},
		{Kind: parser.StmtTimes, Count: 3, Inner: &parser.Statement{
			Kind: parser.StmtInstruction, Instr: parser.Instruction{Mnemonic: "nop"},
		}},
		{Kind: parser.StmtLabelDef, Label: "after"},
		{Kind: parser.StmtInstruction, Instr: parser.Instruction{Mnemonic: "ret"}},
	}

	res, ok := layout.Run(stmts, diags)
	require.True(t, ok)
	require.False(t, diags.HasErrors())

	sym, found := res.Symbols.Lookup("after")
	require.True(t, found)
	assert.Equal(t, uint64(0x400000+3), sym.VA)
}
