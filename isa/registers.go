// Package isa holds the shared constant tables the rest of the assembler
// dispatches against: register numbering, operand-shape tags and opcode
// bytes for the x86-64 instruction subset this assembler supports.
package isa

import "strconv"

// Width classifies a register or operand by its bit size.
type Width int

const (
	// WidthNone is the zero value, used for shapes that carry no width.
	WidthNone Width = iota
	Width8
	Width16
	Width32
	Width64
	WidthXMM
	WidthYMM
	WidthZMM
)

// Reg describes one named register: its low 3 bits, whether it needs the
// REX extension bit, its width class and whether it's one of the new
// byte registers that require a REX prefix to access (SIL/DIL/BPL/SPL).
type Reg struct {
	Name     string
	Num      uint8 // low 3 bits, 0-7
	Ext      bool  // true for r8..r15 style extended registers
	Width    Width
	NeedsREX bool // SIL/DIL/BPL/SPL: byte registers only reachable with a REX prefix
}

// Registers maps every recognised register name (lower-case) to its Reg
// descriptor. Populated once at package init and read-only afterwards.
var Registers map[string]Reg

func init() {
	Registers = make(map[string]Reg, 128)

	add := func(name string, num uint8, ext bool, w Width, needsRex bool) {
		Registers[name] = Reg{Name: name, Num: num, Ext: ext, Width: w, NeedsREX: needsRex}
	}

	r64 := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
	r32 := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	r16 := []string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
	r8l := []string{"al", "cl", "dl", "bl"}
	r8h := []string{"spl", "bpl", "sil", "dil"} // need REX to address

	for i, n := range r64 {
		add(n, uint8(i), false, Width64, false)
	}
	for i, n := range r32 {
		add(n, uint8(i), false, Width32, false)
	}
	for i, n := range r16 {
		add(n, uint8(i), false, Width16, false)
	}
	for i, n := range r8l {
		add(n, uint8(i), false, Width8, false)
	}
	// ah/ch/dh/bh share low bits 4-7 in legacy no-REX encodings; they are
	// not required by this assembler's instruction subset but are kept
	// out rather than mis-encoded: omitted entirely.
	for i, n := range r8h {
		add(n, uint8(i+4), false, Width8, true)
	}

	for i := 8; i <= 15; i++ {
		add(regName("r", i, ""), uint8(i-8), true, Width64, false)
		add(regName("r", i, "d"), uint8(i-8), true, Width32, false)
		add(regName("r", i, "w"), uint8(i-8), true, Width16, false)
		add(regName("r", i, "b"), uint8(i-8), true, Width8, false)
	}

	xmm := []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15"}
	for i, n := range xmm {
		add(n, uint8(i&7), i >= 8, WidthXMM, false)
	}
	ymm := []string{"ymm0", "ymm1", "ymm2", "ymm3", "ymm4", "ymm5", "ymm6", "ymm7",
		"ymm8", "ymm9", "ymm10", "ymm11", "ymm12", "ymm13", "ymm14", "ymm15"}
	for i, n := range ymm {
		add(n, uint8(i&7), i >= 8, WidthYMM, false)
	}
	zmm := []string{"zmm0", "zmm1", "zmm2", "zmm3", "zmm4", "zmm5", "zmm6", "zmm7",
		"zmm8", "zmm9", "zmm10", "zmm11", "zmm12", "zmm13", "zmm14", "zmm15"}
	for i, n := range zmm {
		add(n, uint8(i&7), i >= 8, WidthZMM, false)
	}

	add("rip", 5, false, Width64, false)
}

func regName(prefix string, n int, suffix string) string {
	return prefix + strconv.Itoa(n) + suffix
}

// Lookup resolves a register name. The match is case-sensitive against
// the lower-case map keys, so callers lower-case the name first.
func Lookup(name string) (Reg, bool) {
	r, ok := Registers[name]
	return r, ok
}
