package isa

// Shape abstracts one operand to its width/category class (r64, m32,
// imm8, ...), collapsing "rax" and "rbx" down to r64 the same way the
// donor's addressing-mode constants collapse every data register to
// ModeData. The encoder does not consult Shape: it dispatches on the
// mnemonic, then on each operand's parser kind and register width.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeR8
	ShapeR16
	ShapeR32
	ShapeR64
	ShapeM8
	ShapeM16
	ShapeM32
	ShapeM64
	ShapeImm8
	ShapeImm16
	ShapeImm32
	ShapeImm64
	ShapeRel8
	ShapeRel32
	ShapeLabel
	ShapeXMM
)

func (s Shape) String() string {
	switch s {
	case ShapeR8:
		return "r8"
	case ShapeR16:
		return "r16"
	case ShapeR32:
		return "r32"
	case ShapeR64:
		return "r64"
	case ShapeM8:
		return "m8"
	case ShapeM16:
		return "m16"
	case ShapeM32:
		return "m32"
	case ShapeM64:
		return "m64"
	case ShapeImm8:
		return "imm8"
	case ShapeImm16:
		return "imm16"
	case ShapeImm32:
		return "imm32"
	case ShapeImm64:
		return "imm64"
	case ShapeRel8:
		return "rel8"
	case ShapeRel32:
		return "rel32"
	case ShapeLabel:
		return "label"
	case ShapeXMM:
		return "xmm"
	default:
		return "none"
	}
}

// RegShape returns the register operand shape for a given width, or
// ShapeNone if the width has no plain-register shape (e.g. XMM is
// handled by its own shape already).
func RegShape(w Width) Shape {
	switch w {
	case Width8:
		return ShapeR8
	case Width16:
		return ShapeR16
	case Width32:
		return ShapeR32
	case Width64:
		return ShapeR64
	case WidthXMM:
		return ShapeXMM
	default:
		return ShapeNone
	}
}

// MemShape returns the memory operand shape for a given width.
func MemShape(w Width) Shape {
	switch w {
	case Width8:
		return ShapeM8
	case Width16:
		return ShapeM16
	case Width32:
		return ShapeM32
	case Width64:
		return ShapeM64
	default:
		return ShapeNone
	}
}

// Condition codes for the Jcc family, keyed by mnemonic suffix (without
// the leading 'j'). Values are the low nibble of the one-byte short-form
// opcode (0x70 + cc) and of the two-byte near-form opcode (0x0F 0x80 + cc).
var ConditionCodes = map[string]byte{
	"o":  0x0,
	"no": 0x1,
	"b":  0x2, "c": 0x2, "nae": 0x2,
	"ae": 0x3, "nb": 0x3, "nc": 0x3,
	"e": 0x4, "z": 0x4,
	"ne": 0x5, "nz": 0x5,
	"be": 0x6, "na": 0x6,
	"a": 0x7, "nbe": 0x7,
	"s":  0x8,
	"ns": 0x9,
	"p":  0xA, "pe": 0xA,
	"np": 0xB, "po": 0xB,
	"l": 0xC, "nge": 0xC,
	"ge": 0xD, "nl": 0xD,
	"le": 0xE, "ng": 0xE,
	"g": 0xF, "nle": 0xF,
}

// JccMnemonics is the set of conditional-jump mnemonics required by
// spec.md's §4.4 "Required instruction families".
var JccMnemonics = map[string]bool{
	"je": true, "jne": true, "jg": true, "jl": true, "jge": true, "jle": true,
	"ja": true, "jb": true, "jae": true, "jbe": true,
}
