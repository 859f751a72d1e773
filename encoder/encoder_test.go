package encoder_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/encoder"
	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

type constResolver struct{ vas map[string]uint64 }

func (r constResolver) ResolveVA(name string) (uint64, bool) {
	va, ok := r.vas[name]
	return va, ok
}

func reg(name string) parser.Operand {
	return parser.Operand{Kind: parser.OperandRegister, Register: name}
}

func imm(v int64) parser.Operand {
	return parser.Operand{Kind: parser.OperandImmediate, ImmValue: v}
}

func label(name string) parser.Operand {
	return parser.Operand{Kind: parser.OperandLabel, LabelName: name}
}

func mem(base string) parser.Operand {
	return parser.Operand{Kind: parser.OperandMemory, Mem: parser.Memory{Base: base, SizeHint: isa.Width64}}
}

func assertEncodesTo(t *testing.T, instr parser.Instruction, va uint64, expectedHex string) {
	t.Helper()
	expected, err := hex.DecodeString(strings.ReplaceAll(expectedHex, " ", ""))
	require.NoError(t, err)

	got, err := encoder.Encode(instr, va, constResolver{vas: map[string]uint64{"target": 0x400050, "msg": 0x600000}})
	require.NoError(t, err)
	assert.Equal(t, expected, got)

	size, err := encoder.SizeInstruction(instr)
	require.NoError(t, err)
	assert.Equal(t, len(expected), size, "SizeInstruction must match the real encoded length")
}

func TestMovRegImmChoosesShortFormWhenItFits(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "mov", Operands: []parser.Operand{reg("rax"), imm(1)}}
	assertEncodesTo(t, instr, 0x400000, "48 C7 C0 01 00 00 00")
}

func TestMovRegImm64UsesMovabsForWideLiterals(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "mov", Operands: []parser.Operand{reg("rax"), imm(0x123456789)}}
	assertEncodesTo(t, instr, 0x400000, "48 B8 89 67 45 23 01 00 00 00")
}

func TestMovRegImm64UsesMovabsForLabelTargets(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "mov", Operands: []parser.Operand{reg("rax"), label("msg")}}
	assertEncodesTo(t, instr, 0x400000, "48 B8 00 00 60 00 00 00 00 00")
}

func TestMovRegReg(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "mov", Operands: []parser.Operand{reg("rdi"), reg("rax")}}
	assertEncodesTo(t, instr, 0x400000, "48 89 C7")
}

func TestAddRegImm(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "add", Operands: []parser.Operand{reg("rax"), imm(5)}}
	assertEncodesTo(t, instr, 0x400000, "48 81 C0 05 00 00 00")
}

func TestPushPopRegister(t *testing.T) {
	assertEncodesTo(t, parser.Instruction{Mnemonic: "push", Operands: []parser.Operand{reg("r12")}}, 0x400000, "41 54")
	assertEncodesTo(t, parser.Instruction{Mnemonic: "pop", Operands: []parser.Operand{reg("r12")}}, 0x400000, "41 5C")
}

func TestJmpAlwaysUsesRel32(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "jmp", Operands: []parser.Operand{label("target")}}
	// target=0x400050, va=0x400000, ripAfter=0x400005, disp=0x4B
	assertEncodesTo(t, instr, 0x400000, "E9 4B 00 00 00")
}

func TestLeaRipRelative(t *testing.T) {
	instr := parser.Instruction{
		Mnemonic: "lea",
		Operands: []parser.Operand{reg("rsi"), {
			Kind: parser.OperandMemory,
			Mem:  parser.Memory{RIPRelative: true, DispLabel: "msg"},
		}},
	}
	// opcode is 3 bytes (REX.W 8D modrm) + 4 disp = 7; ripAfter = va+7
	size, err := encoder.SizeInstruction(instr)
	require.NoError(t, err)
	assert.Equal(t, 7, size)
}

func TestMemoryOperandRequiresSizeHint(t *testing.T) {
	instr := parser.Instruction{
		Mnemonic: "inc",
		Operands: []parser.Operand{{Kind: parser.OperandMemory, Mem: parser.Memory{Base: "rbx"}}},
	}
	_, err := encoder.Encode(instr, 0x400000, constResolver{})
	assert.Error(t, err)
}

func TestRspIndexlessBaseForcesSIB(t *testing.T) {
	instr := parser.Instruction{Mnemonic: "mov", Operands: []parser.Operand{reg("rax"), mem("rsp")}}
	assertEncodesTo(t, instr, 0x400000, "48 8B 04 24")
}
