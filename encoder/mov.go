package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

func encodeMov(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("mov expects 2 operands, got %d", len(ops))
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
			return nil, fmt.Errorf("mov operand width mismatch: %s vs %s", dst.Register, src.Register)
		}
		opcode := byte(0x89)
		if dstReg.Width == isa.Width8 {
			opcode = 0x88
		}
		var r rex
		r.W = dstReg.Width == isa.Width64
		r.R = srcReg.Ext
		r.B = dstReg.Ext
		r.Forced = dstReg.NeedsREX || srcReg.NeedsREX
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
		opcode := byte(0x89)
		if srcReg.Width == isa.Width8 {
			opcode = 0x88
		}
		return encodeMemRegForm(opcode, dst.Mem, srcReg, va, resolver)

	case dst.Kind == parser.OperandRegister && src.Kind == parser.OperandMemory:
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x8B)
		if dstReg.Width == isa.Width8 {
			opcode = 0x8A
		}
		return encodeMemRegForm(opcode, src.Mem, dstReg, va, resolver)

	case dst.Kind == parser.OperandRegister && (src.Kind == parser.OperandImmediate || src.Kind == parser.OperandLabel):
		return encodeMovRegImm(dst, src, resolver)

	case dst.Kind == parser.OperandMemory && (src.Kind == parser.OperandImmediate || src.Kind == parser.OperandLabel):
		w, err := widthOf(dst)
		if err != nil {
			return nil, err
		}
		imm, err := immValue(src, resolver)
		if err != nil {
			return nil, err
		}
		opcode := byte(0xC7)
		immW := w
		if w == isa.Width8 {
			opcode = 0xC6
		} else if w == isa.Width64 {
			immW = isa.Width32
		}
		head, err := memHeadWithOpcode(opcode, dst.Mem, 0, sizePrefix(w), w == isa.Width64, va, resolver, len(immBytes(immW, 0)))
		if err != nil {
			return nil, err
		}
		return append(head, immBytes(immW, imm)...), nil

	default:
		return nil, fmt.Errorf("unsupported operand combination for mov")
	}
}

// encodeMovRegImm handles `mov reg, imm` in every width. 64-bit destinations
// get the full movabs form (REX.W + B8+r + imm64) whenever the source is a
// label or a literal that doesn't fit in a sign-extended imm32, and the
// shorter C7 /0 + imm32 form otherwise; this choice depends only on the
// operand's kind and literal value, never on a resolved address, so it
// never changes length between sizing and emission.
func encodeMovRegImm(dst, src parser.Operand, resolver SymbolResolver) ([]byte, error) {
	dstReg, err := regFromOperand(dst)
	if err != nil {
		return nil, err
	}

	if dstReg.Width != isa.Width64 {
		imm, err := immValue(src, resolver)
		if err != nil {
			return nil, err
		}
		var r rex
		r.B = dstReg.Ext
		r.Forced = dstReg.NeedsREX
		out := append([]byte{}, sizePrefix(dstReg.Width)...)
		if r.needed() {
			out = append(out, r.encode())
		}
		opcode := byte(0xB8) + (dstReg.Num & 7)
		if dstReg.Width == isa.Width8 {
			opcode = 0xB0 + (dstReg.Num & 7)
		}
		out = append(out, opcode)
		out = append(out, immBytes(dstReg.Width, imm)...)
		return out, nil
	}

	isLabel := src.Kind == parser.OperandLabel || src.ImmLabel != ""
	if !isLabel {
		if fits32(src.ImmValue) {
			var r rex
			r.W = true
			r.B = dstReg.Ext
			out := []byte{r.encode(), 0xC7, modrmRegReg(0, dstReg.Num)}
			out = append(out, int32ToBytes(int32(src.ImmValue))...)
			return out, nil
		}
		var r rex
		r.W = true
		r.B = dstReg.Ext
		out := []byte{r.encode(), 0xB8 + (dstReg.Num & 7)}
		out = append(out, int64ToBytes(src.ImmValue)...)
		return out, nil
	}

	imm, err := immValue(src, resolver)
	if err != nil {
		return nil, err
	}
	var r rex
	r.W = true
	r.B = dstReg.Ext
	out := []byte{r.encode(), 0xB8 + (dstReg.Num & 7)}
	out = append(out, int64ToBytes(imm)...)
	return out, nil
}
