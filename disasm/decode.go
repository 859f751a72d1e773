package disasm

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
)

// aluNames maps an opcode-extension digit to the ALU mnemonic it names,
// the reverse of encoder.aluOp's digit field.
var aluNames = map[byte]string{0: "add", 1: "or", 4: "and", 5: "sub", 6: "xor", 7: "cmp"}

// aluBase maps an ALU mnemonic's base opcode byte (the op+0..op+3 family)
// back to its mnemonic, the reverse of the encoder's aluOp table in
// encoder/alu.go.
var aluBase = map[byte]string{0x00: "add", 0x08: "or", 0x20: "and", 0x28: "sub", 0x30: "xor", 0x38: "cmp"}

// jccNames gives one canonical mnemonic per condition code, mirroring
// isa.ConditionCodes' value set.
var jccNames = map[byte]string{
	0x0: "jo", 0x1: "jno", 0x2: "jb", 0x3: "jae", 0x4: "je", 0x5: "jne",
	0x6: "jbe", 0x7: "ja", 0x8: "js", 0x9: "jns", 0xA: "jp", 0xB: "jnp",
	0xC: "jl", 0xD: "jge", 0xE: "jle", 0xF: "jg",
}

func widthOf(prefix66, rexW bool, def isa.Width) isa.Width {
	if prefix66 {
		return isa.Width16
	}
	if rexW {
		return isa.Width64
	}
	return def
}

func immWidth(w isa.Width) isa.Width {
	if w == isa.Width16 {
		return isa.Width16
	}
	return isa.Width32
}

func readImm(code []byte, pos int, w isa.Width) (int64, int, error) {
	switch w {
	case isa.Width8:
		if pos >= len(code) {
			return 0, 0, fmt.Errorf("truncated imm8")
		}
		return int64(int8(code[pos])), 1, nil
	case isa.Width16:
		if pos+2 > len(code) {
			return 0, 0, fmt.Errorf("truncated imm16")
		}
		u := uint16(code[pos]) | uint16(code[pos+1])<<8
		return int64(int16(u)), 2, nil
	case isa.Width64:
		if pos+8 > len(code) {
			return 0, 0, fmt.Errorf("truncated imm64")
		}
		var u uint64
		for i := 0; i < 8; i++ {
			u |= uint64(code[pos+i]) << (8 * i)
		}
		return int64(u), 8, nil
	default:
		if pos+4 > len(code) {
			return 0, 0, fmt.Errorf("truncated imm32")
		}
		u := uint32(code[pos]) | uint32(code[pos+1])<<8 | uint32(code[pos+2])<<16 | uint32(code[pos+3])<<24
		return int64(int32(u)), 4, nil
	}
}

func sizeKeyword(w isa.Width) string {
	switch w {
	case isa.Width8:
		return "byte "
	case isa.Width16:
		return "word "
	case isa.Width32:
		return "dword "
	case isa.Width64:
		return "qword "
	default:
		return ""
	}
}

func rmText(r rm, w isa.Width) string {
	if r.isReg {
		return regName(w, r.regNum, r.regExt)
	}
	return sizeKeyword(w) + r.memText
}

func hex32(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-%#x", -v)
	}
	return fmt.Sprintf("%#x", v)
}

// decodeOne decodes a single instruction starting at code[0], whose first
// byte sits at virtual address va. It returns the decoded instruction and
// how many bytes of code it consumed.
func decodeOne(code []byte, va uint64) (Instruction, int, error) {
	pos := 0
	prefix66 := false
	if pos < len(code) && code[pos] == 0x66 {
		prefix66 = true
		pos++
	}
	var rexW, rexR, rexX, rexB, haveRex bool
	if pos < len(code) && code[pos]&0xF0 == 0x40 {
		b := code[pos]
		rexW, rexR, rexX, rexB = b&8 != 0, b&4 != 0, b&2 != 0, b&1 != 0
		haveRex = true
		pos++
	}
	_ = haveRex

	if pos >= len(code) {
		return Instruction{}, 0, fmt.Errorf("truncated opcode")
	}
	op := code[pos]
	pos++

	switch op {
	case 0xC3:
		return Instruction{Mnemonic: "ret"}, pos, nil
	case 0x90:
		return Instruction{Mnemonic: "nop"}, pos, nil
	case 0x99:
		if rexW {
			return Instruction{Mnemonic: "cqo"}, pos, nil
		}
		return Instruction{Mnemonic: "cdq"}, pos, nil
	case 0xCD:
		imm, n, err := readImm(code, pos, isa.Width8)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		return Instruction{Mnemonic: "int", Operands: hex32(imm)}, pos, nil
	case 0x68:
		imm, n, err := readImm(code, pos, isa.Width32)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		return Instruction{Mnemonic: "push", Operands: hex32(imm)}, pos, nil
	case 0xE9, 0xE8:
		disp, n, err := readImm(code, pos, isa.Width32)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		target := int64(va) + int64(pos) + disp
		mn := "jmp"
		if op == 0xE8 {
			mn = "call"
		}
		return Instruction{Mnemonic: mn, Operands: fmt.Sprintf("%#x", uint64(target))}, pos, nil
	case 0x0F:
		return decodeTwoByte(code, pos, va, prefix66, rexW, rexR, rexX, rexB)
	}

	if op >= 0x50 && op <= 0x57 {
		num := op - 0x50
		return Instruction{Mnemonic: "push", Operands: regName(isa.Width64, num, rexB)}, pos, nil
	}
	if op >= 0x58 && op <= 0x5F {
		num := op - 0x58
		return Instruction{Mnemonic: "pop", Operands: regName(isa.Width64, num, rexB)}, pos, nil
	}
	if op >= 0xB0 && op <= 0xB7 {
		num := op - 0xB0
		imm, n, err := readImm(code, pos, isa.Width8)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		return Instruction{Mnemonic: "mov", Operands: regName(isa.Width8, num, rexB) + ", " + hex32(imm)}, pos, nil
	}
	if op >= 0xB8 && op <= 0xBF {
		num := op - 0xB8
		if rexW {
			imm, n, err := readImm(code, pos, isa.Width64)
			if err != nil {
				return Instruction{}, 0, err
			}
			pos += n
			return Instruction{Mnemonic: "mov", Operands: regName(isa.Width64, num, rexB) + ", " + hex32(imm)}, pos, nil
		}
		w := widthOf(prefix66, false, isa.Width32)
		imm, n, err := readImm(code, pos, w)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		return Instruction{Mnemonic: "mov", Operands: regName(w, num, rexB) + ", " + hex32(imm)}, pos, nil
	}

	switch op {
	case 0x8D:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := widthOf(false, rexW, isa.Width32)
		return Instruction{Mnemonic: "lea", Operands: regName(w, regField, rexR) + ", " + operand.memText}, pos, nil

	case 0x8A, 0x8B:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0x8B {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: "mov", Operands: regName(w, regField, rexR) + ", " + rmText(operand, w)}, pos, nil

	case 0x88, 0x89:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0x89 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: "mov", Operands: rmText(operand, w) + ", " + regName(w, regField, rexR)}, pos, nil

	case 0x86, 0x87:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0x87 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: "xchg", Operands: rmText(operand, w) + ", " + regName(w, regField, rexR)}, pos, nil

	case 0xC6, 0xC7:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0xC7 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		_ = regField
		iw := isa.Width8
		if op == 0xC7 {
			iw = immWidth(w)
		}
		imm, n2, err := readImm(code, pos, iw)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n2
		return Instruction{Mnemonic: "mov", Operands: rmText(operand, w) + ", " + hex32(imm)}, pos, nil

	case 0xF6, 0xF7:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0xF7 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		switch regField {
		case 0:
			iw := isa.Width8
			if op == 0xF7 {
				iw = immWidth(w)
			}
			imm, n2, err := readImm(code, pos, iw)
			if err != nil {
				return Instruction{}, 0, err
			}
			pos += n2
			return Instruction{Mnemonic: "test", Operands: rmText(operand, w) + ", " + hex32(imm)}, pos, nil
		case 2:
			return Instruction{Mnemonic: "not", Operands: rmText(operand, w)}, pos, nil
		case 3:
			return Instruction{Mnemonic: "neg", Operands: rmText(operand, w)}, pos, nil
		case 4:
			return Instruction{Mnemonic: "mul", Operands: rmText(operand, w)}, pos, nil
		case 5:
			return Instruction{Mnemonic: "imul", Operands: rmText(operand, w)}, pos, nil
		case 6:
			return Instruction{Mnemonic: "div", Operands: rmText(operand, w)}, pos, nil
		case 7:
			return Instruction{Mnemonic: "idiv", Operands: rmText(operand, w)}, pos, nil
		}
		return Instruction{}, 0, fmt.Errorf("unsupported F6/F7 digit %d", regField)

	case 0xFE, 0xFF:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		if op == 0xFE {
			w := isa.Width8
			mn := "inc"
			if regField == 1 {
				mn = "dec"
			}
			return Instruction{Mnemonic: mn, Operands: rmText(operand, w)}, pos, nil
		}
		switch regField {
		case 0, 1:
			w := widthOf(prefix66, rexW, isa.Width32)
			mn := "inc"
			if regField == 1 {
				mn = "dec"
			}
			return Instruction{Mnemonic: mn, Operands: rmText(operand, w)}, pos, nil
		case 2:
			return Instruction{Mnemonic: "call", Operands: rmText(operand, isa.Width64)}, pos, nil
		case 4:
			return Instruction{Mnemonic: "jmp", Operands: rmText(operand, isa.Width64)}, pos, nil
		case 6:
			return Instruction{Mnemonic: "push", Operands: rmText(operand, isa.Width64)}, pos, nil
		}
		return Instruction{}, 0, fmt.Errorf("unsupported FF digit %d", regField)

	case 0x8F:
		_, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		return Instruction{Mnemonic: "pop", Operands: rmText(operand, isa.Width64)}, pos, nil

	case 0x80, 0x81:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0x81 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		mn, ok := aluNames[regField]
		if !ok {
			return Instruction{}, 0, fmt.Errorf("unsupported ALU digit %d", regField)
		}
		iw := isa.Width8
		if op == 0x81 {
			iw = immWidth(w)
		}
		imm, n2, err := readImm(code, pos, iw)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n2
		return Instruction{Mnemonic: mn, Operands: rmText(operand, w) + ", " + hex32(imm)}, pos, nil

	case 0x84, 0x85:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0x85 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: "test", Operands: rmText(operand, w) + ", " + regName(w, regField, rexR)}, pos, nil

	case 0xC0, 0xC1, 0xD2, 0xD3:
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op == 0xC1 || op == 0xD3 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		mn, ok := map[byte]string{4: "shl", 5: "shr", 7: "sar"}[regField]
		if !ok {
			return Instruction{}, 0, fmt.Errorf("unsupported shift digit %d", regField)
		}
		if op == 0xC0 || op == 0xC1 {
			imm, n2, err := readImm(code, pos, isa.Width8)
			if err != nil {
				return Instruction{}, 0, err
			}
			pos += n2
			return Instruction{Mnemonic: mn, Operands: rmText(operand, w) + ", " + hex32(imm)}, pos, nil
		}
		return Instruction{Mnemonic: mn, Operands: rmText(operand, w) + ", cl"}, pos, nil
	}

	if base, ok := aluBase[op&^3]; ok && (op&2) == 0 && op < 0x40 {
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op&1 == 1 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: base, Operands: rmText(operand, w) + ", " + regName(w, regField, rexR)}, pos, nil
	}
	if base, ok := aluBase[op&^3]; ok && (op&2) == 2 && op < 0x40 {
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := isa.Width8
		if op&1 == 1 {
			w = widthOf(prefix66, rexW, isa.Width32)
		}
		return Instruction{Mnemonic: base, Operands: regName(w, regField, rexR) + ", " + rmText(operand, w)}, pos, nil
	}

	return Instruction{}, 0, fmt.Errorf("unsupported opcode %#x", op)
}

func decodeTwoByte(code []byte, pos int, va uint64, prefix66, rexW, rexR, rexX, rexB bool) (Instruction, int, error) {
	if pos >= len(code) {
		return Instruction{}, 0, fmt.Errorf("truncated two-byte opcode")
	}
	sub := code[pos]
	pos++

	if sub == 0x05 {
		return Instruction{Mnemonic: "syscall"}, pos, nil
	}
	if sub == 0xAF {
		regField, operand, n, err := decodeModRM(code, pos, rexR, rexX, rexB)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		w := widthOf(prefix66, rexW, isa.Width32)
		return Instruction{Mnemonic: "imul", Operands: regName(w, regField, rexR) + ", " + rmText(operand, w)}, pos, nil
	}
	if sub >= 0x80 && sub <= 0x8F {
		cc := sub - 0x80
		disp, n, err := readImm(code, pos, isa.Width32)
		if err != nil {
			return Instruction{}, 0, err
		}
		pos += n
		target := int64(va) + int64(pos) + disp
		mn, ok := jccNames[cc]
		if !ok {
			return Instruction{}, 0, fmt.Errorf("unsupported condition code %#x", cc)
		}
		return Instruction{Mnemonic: mn, Operands: fmt.Sprintf("%#x", uint64(target))}, pos, nil
	}
	return Instruction{}, 0, fmt.Errorf("unsupported two-byte opcode 0F %#x", sub)
}

func extBit(ext bool) uint8 {
	if ext {
		return 8
	}
	return 0
}
