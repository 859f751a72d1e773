package disasm_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/disasm"
)

func decode(t *testing.T, hexBytes string, va uint64) []disasm.Instruction {
	t.Helper()
	code, err := hex.DecodeString(strings.ReplaceAll(hexBytes, " ", ""))
	require.NoError(t, err)
	instrs, err := disasm.Disassemble(code, va)
	require.NoError(t, err)
	return instrs
}

func TestDisassembleMovRegImmShortForm(t *testing.T) {
	instrs := decode(t, "48 C7 C0 01 00 00 00", 0x400000)
	require.Len(t, instrs, 1)
	assert.Equal(t, "mov rax, 0x1", instrs[0].String())
	assert.Equal(t, 7, instrs[0].Length)
}

func TestDisassembleMovRegReg(t *testing.T) {
	instrs := decode(t, "48 89 C7", 0x400000)
	require.Len(t, instrs, 1)
	assert.Equal(t, "mov rdi, rax", instrs[0].String())
}

func TestDisassemblePushPopExtendedRegister(t *testing.T) {
	instrs := decode(t, "41 54 41 5C", 0x400000)
	require.Len(t, instrs, 2)
	assert.Equal(t, "push r12", instrs[0].String())
	assert.Equal(t, "pop r12", instrs[1].String())
}

func TestDisassembleJmpRel32ResolvesAbsoluteTarget(t *testing.T) {
	instrs := decode(t, "E9 4B 00 00 00", 0x400000)
	require.Len(t, instrs, 1)
	assert.Equal(t, "jmp 0x400050", instrs[0].String())
}

func TestDisassembleAluImmediate(t *testing.T) {
	instrs := decode(t, "48 81 C0 05 00 00 00", 0x400000)
	require.Len(t, instrs, 1)
	assert.Equal(t, "add rax, 0x5", instrs[0].String())
}

func TestDisassembleRspForcedSIBMemoryOperand(t *testing.T) {
	instrs := decode(t, "48 8B 04 24", 0x400000)
	require.Len(t, instrs, 1)
	assert.Equal(t, "mov rax, qword [rsp]", instrs[0].String())
}

func TestDisassembleStopsCleanlyAtEndOfBuffer(t *testing.T) {
	instrs := decode(t, "90 C3", 0x400000)
	require.Len(t, instrs, 2)
	assert.Equal(t, "nop", instrs[0].String())
	assert.Equal(t, "ret", instrs[1].String())
}

func TestDisassembleErrorsOnUnsupportedOpcode(t *testing.T) {
	_, err := disasm.Disassemble([]byte{0x0F, 0xFF}, 0x400000)
	assert.Error(t, err)
}
