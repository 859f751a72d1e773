package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

// aluOp names one binary arithmetic/logic instruction by its ModR/M
// opcode-extension digit (for the immediate forms) and its four
// register-direction opcode bytes, following the regular pattern Intel
// uses for add/or/and/sub/xor/cmp: base+0 is r/m8,r8; +1 is r/m,r
// (16/32/64 per prefix/REX.W); +2 is r8,r/m8; +3 is r,r/m.
type aluOp struct {
	digit byte
	base  byte
}

var (
	aluAdd = aluOp{0, 0x00}
	aluOr  = aluOp{1, 0x08}
	aluAnd = aluOp{4, 0x20}
	aluSub = aluOp{5, 0x28}
	aluXor = aluOp{6, 0x30}
	aluCmp = aluOp{7, 0x38}
)

func encodeALU(op aluOp, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("expected 2 operands, got %d", len(ops))
	}
	dst, src := ops[0], ops[1]

	switch {
	case dst.Kind == parser.OperandRegister && src.Kind == parser.OperandRegister:
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		srcReg, err := regFromOperand(src)
		if err != nil {
			return nil, err
		}
		if dstReg.Width != srcReg.Width {
			return nil, fmt.Errorf("operand width mismatch: %s vs %s", dst.Register, src.Register)
		}
		var r rex
		r.W = dstReg.Width == isa.Width64
		r.R = srcReg.Ext
		r.B = dstReg.Ext
		opcode := op.base + 1
		if dstReg.Width == isa.Width8 {
			opcode = op.base
		}
		out := append([]byte{}, sizePrefix(dstReg.Width)...)
		if r.needed() {
			out = append(out, r.encode())
		}
		out = append(out, opcode, modrmRegReg(srcReg.Num, dstReg.Num))
		return out, nil

	case dst.Kind == parser.OperandMemory && src.Kind == parser.OperandRegister:
		srcReg, err := regFromOperand(src)
		if err != nil {
			return nil, err
		}
		opcode := op.base + 1
		if srcReg.Width == isa.Width8 {
			opcode = op.base
		}
		return encodeMemRegForm(opcode, dst.Mem, srcReg, va, resolver)

	case dst.Kind == parser.OperandRegister && src.Kind == parser.OperandMemory:
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		opcode := op.base + 3
		if dstReg.Width == isa.Width8 {
			opcode = op.base + 2
		}
		return encodeMemRegForm(opcode, src.Mem, dstReg, va, resolver)

	case src.Kind == parser.OperandImmediate || src.Kind == parser.OperandLabel:
		w, err := widthOf(dst)
		if err != nil {
			return nil, err
		}
		imm, err := immValue(src, resolver)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x81)
		immW := w
		if w == isa.Width8 {
			opcode = 0x80
		} else if w == isa.Width64 {
			immW = isa.Width32 // sign-extended imm32 for the wide form
		}

		if dst.Kind == parser.OperandRegister {
			dstReg, err := regFromOperand(dst)
			if err != nil {
				return nil, err
			}
			var r rex
			r.W = dstReg.Width == isa.Width64
			r.B = dstReg.Ext
			out := append([]byte{}, sizePrefix(w)...)
			if r.needed() {
				out = append(out, r.encode())
			}
			out = append(out, opcode, modrmRegReg(op.digit, dstReg.Num))
			out = append(out, immBytes(immW, imm)...)
			return out, nil
		}

		head, err := memHeadWithOpcode(opcode, dst.Mem, op.digit, sizePrefix(w), w == isa.Width64, va, resolver, len(immBytes(immW, 0)))
		if err != nil {
			return nil, err
		}
		return append(head, immBytes(immW, imm)...), nil

	default:
		return nil, fmt.Errorf("unsupported operand combination")
	}
}

// encodeMemRegForm builds `opcode modrm[sib][disp]` for a memory operand
// paired with a register, the shared shape of every ALU/mov "mem,reg" and
// "reg,mem" instruction.
func encodeMemRegForm(opcode byte, mem parser.Memory, reg isa.Reg, va uint64, resolver SymbolResolver) ([]byte, error) {
	prefix := sizePrefix(reg.Width)
	// Two passes: first measure length (disp size doesn't depend on the
	// resolved VA other than via RIP-relative, which is always disp32),
	// then build with the real ripAfter.
	probe, err := encodeMemory(mem, reg.Num, resolver, va)
	if err != nil {
		return nil, err
	}
	w := reg.Width == isa.Width64
	headLen := len(prefix) + 1 /*opcode*/
	if w || reg.Ext || probe.rex.needed() {
		headLen++
	}
	total := headLen + 1 /*modrm*/ + len(probe.sib) + len(probe.disp)
	mb, err := encodeMemory(mem, reg.Num, resolver, va+uint64(total))
	if err != nil {
		return nil, err
	}
	mb.rex.W = w
	mb.rex.R = reg.Ext
	out := append([]byte{}, prefix...)
	if mb.rex.needed() {
		out = append(out, mb.rex.encode())
	}
	out = append(out, opcode, mb.modrm)
	out = append(out, mb.sib...)
	out = append(out, mb.disp...)
	return out, nil
}

func encodeTest(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("test expects 2 operands, got %d", len(ops))
	}
	dst, src := ops[0], ops[1]

	if src.Kind == parser.OperandImmediate {
		w, err := widthOf(dst)
		if err != nil {
			return nil, err
		}
		opcode := byte(0xF7)
		immW := w
		if w == isa.Width8 {
			opcode = 0xF6
		} else if w == isa.Width64 {
			immW = isa.Width32
		}
		if dst.Kind == parser.OperandRegister {
			dstReg, err := regFromOperand(dst)
			if err != nil {
				return nil, err
			}
			var r rex
			r.W = dstReg.Width == isa.Width64
			r.B = dstReg.Ext
			out := append([]byte{}, sizePrefix(w)...)
			if r.needed() {
				out = append(out, r.encode())
			}
			out = append(out, opcode, modrmRegReg(0, dstReg.Num))
			out = append(out, immBytes(immW, src.ImmValue)...)
			return out, nil
		}
		head, err := memHeadWithOpcode(opcode, dst.Mem, 0, sizePrefix(w), w == isa.Width64, va, resolver, len(immBytes(immW, 0)))
		if err != nil {
			return nil, err
		}
		return append(head, immBytes(immW, src.ImmValue)...), nil
	}

	// reg,reg or mem,reg or reg,mem: single opcode form 84/85, symmetric.
	if dst.Kind == parser.OperandRegister && src.Kind == parser.OperandRegister {
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		srcReg, err := regFromOperand(src)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x85)
		if dstReg.Width == isa.Width8 {
			opcode = 0x84
		}
		var r rex
		r.W = dstReg.Width == isa.Width64
		r.R = srcReg.Ext
		r.B = dstReg.Ext
		out := append([]byte{}, sizePrefix(dstReg.Width)...)
		if r.needed() {
			out = append(out, r.encode())
		}
		out = append(out, opcode, modrmRegReg(srcReg.Num, dstReg.Num))
		return out, nil
	}
	if dst.Kind == parser.OperandMemory && src.Kind == parser.OperandRegister {
		srcReg, err := regFromOperand(src)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x85)
		if srcReg.Width == isa.Width8 {
			opcode = 0x84
		}
		return encodeMemRegForm(opcode, dst.Mem, srcReg, va, resolver)
	}
	if dst.Kind == parser.OperandRegister && src.Kind == parser.OperandMemory {
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x85)
		if dstReg.Width == isa.Width8 {
			opcode = 0x84
		}
		return encodeMemRegForm(opcode, src.Mem, dstReg, va, resolver)
	}
	return nil, fmt.Errorf("unsupported operand combination for test")
}

// memHeadWithOpcode builds [prefix][rex][opcode][modrm][sib][disp] for a
// memory destination with an opcode-extension digit in the reg field,
// fixing up the RIP-relative displacement against the real instruction
// length (opcode+modrm+sib+disp+trailing).
func memHeadWithOpcode(opcode byte, mem parser.Memory, digit byte, prefix []byte, rexW bool, va uint64, resolver SymbolResolver, trailingLen int) ([]byte, error) {
	probe, err := encodeMemory(mem, digit, resolver, va)
	if err != nil {
		return nil, err
	}
	headLen := len(prefix) + 1
	if rexW || probe.rex.needed() {
		headLen++
	}
	total := headLen + 1 + len(probe.sib) + len(probe.disp) + trailingLen
	mb, err := encodeMemory(mem, digit, resolver, va+uint64(total))
	if err != nil {
		return nil, err
	}
	mb.rex.W = rexW
	out := append([]byte{}, prefix...)
	if mb.rex.needed() {
		out = append(out, mb.rex.encode())
	}
	out = append(out, opcode, mb.modrm)
	out = append(out, mb.sib...)
	out = append(out, mb.disp...)
	return out, nil
}
