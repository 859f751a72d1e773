package pipeline_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/pipeline"
)

const helloSrc = `
section .data
msg:
    db "Hello, World!", 0
msg_len equ $ - msg

section .text
global _start
_start:
    mov rax, 1
    mov rdi, 1
    lea rsi, [msg]
    mov rdx, msg_len
    syscall

    mov rax, 60
    mov rdi, 0
    syscall
`

func TestAssembleHelloWorldProducesELF(t *testing.T) {
	res := pipeline.Assemble("hello.asm", []byte(helloSrc), false)
	require.False(t, res.Diags.HasErrors(), "unexpected diagnostics: %v", res.Diags.Items())
	require.NotEmpty(t, res.ELF)

	assert.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, res.ELF[:4])
	entry := binary.LittleEndian.Uint64(res.ELF[24:32])
	assert.Equal(t, uint64(0x400000), entry)
}

func TestAssembleReportsUndefinedLabelReference(t *testing.T) {
	src := "section .text\nglobal _start\n_start:\n  jmp nowhere\n"
	res := pipeline.Assemble("bad.asm", []byte(src), false)
	require.True(t, res.Diags.HasErrors())
	assert.Empty(t, res.ELF)
	assert.Equal(t, diag.UndefinedLabel, res.Diags.First().Kind, "an unresolved label reference is UndefinedLabel, not a shape error")
}

func TestAssembleReportsMissingEntryPoint(t *testing.T) {
	src := "section .text\nnop\n"
	res := pipeline.Assemble("noentry.asm", []byte(src), false)
	assert.True(t, res.Diags.HasErrors())
	assert.Empty(t, res.ELF)
}

func TestAssembleReportsParseErrorsBeforeLayout(t *testing.T) {
	src := "_start:\n  mov rax\n"
	res := pipeline.Assemble("arity.asm", []byte(src), false)
	assert.True(t, res.Diags.HasErrors())
	assert.Empty(t, res.ELF)
}
