// Package disasm turns encoded x86-64 machine code back into Intel-syntax
// text, decoding exactly the instruction subset encoder.Encode produces.
// It is the inverse half of spec.md §4.4's byte layout, used to check the
// round-trip property: assemble, disassemble, and recognise the same
// instruction shape back out.
package disasm

import (
	"fmt"
	"strings"
)

// Instruction is one decoded instruction: its mnemonic, formatted operand
// text, and how many bytes it consumed.
type Instruction struct {
	Mnemonic string
	Operands string
	Length   int
}

func (i Instruction) String() string {
	if i.Operands == "" {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + i.Operands
}

// Disassemble decodes every instruction in code in order, starting at
// virtual address baseVA, stopping at the first undecodable byte.
func Disassemble(code []byte, baseVA uint64) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(code) {
		ins, n, err := decodeOne(code[pos:], baseVA+uint64(pos))
		if err != nil {
			return out, fmt.Errorf("offset %#x: %w", pos, err)
		}
		if n == 0 {
			return out, fmt.Errorf("offset %#x: decoder made no progress", pos)
		}
		ins.Length = n
		out = append(out, ins)
		pos += n
	}
	return out, nil
}

// Text renders a decoded sequence one instruction per line, the format
// cmd/x64dis writes to its output file.
func Text(instrs []Instruction) string {
	var b strings.Builder
	for _, ins := range instrs {
		b.WriteString(ins.String())
		b.WriteByte('\n')
	}
	return b.String()
}
