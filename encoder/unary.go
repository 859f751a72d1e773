package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

func encodeLea(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("lea expects 2 operands, got %d", len(ops))
	}
	dst, src := ops[0], ops[1]
	if dst.Kind != parser.OperandRegister || src.Kind != parser.OperandMemory {
		return nil, fmt.Errorf("lea requires a register destination and a memory source")
	}
	dstReg, err := regFromOperand(dst)
	if err != nil {
		return nil, err
	}
	if dstReg.Width != isa.Width32 && dstReg.Width != isa.Width64 {
		return nil, fmt.Errorf("lea destination must be a 32- or 64-bit register")
	}
	return encodeMemRegForm(0x8D, src.Mem, dstReg, va, resolver)
}

func encodePush(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("push expects 1 operand, got %d", len(ops))
	}
	op := ops[0]
	switch op.Kind {
	case parser.OperandRegister:
		r, err := regFromOperand(op)
		if err != nil {
			return nil, err
		}
		if r.Width != isa.Width64 {
			return nil, fmt.Errorf("push requires a 64-bit register in long mode")
		}
		var rx rex
		rx.B = r.Ext
		out := []byte{}
		if rx.needed() {
			out = append(out, rx.encode())
		}
		out = append(out, 0x50+(r.Num&7))
		return out, nil
	case parser.OperandMemory:
		return memHeadWithOpcode(0xFF, op.Mem, 6, nil, false, va, resolver, 0)
	case parser.OperandImmediate, parser.OperandLabel:
		imm, err := immValue(op, resolver)
		if err != nil {
			return nil, err
		}
		out := []byte{0x68}
		out = append(out, int32ToBytes(int32(imm))...)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported push operand")
}

func encodePop(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("pop expects 1 operand, got %d", len(ops))
	}
	op := ops[0]
	switch op.Kind {
	case parser.OperandRegister:
		r, err := regFromOperand(op)
		if err != nil {
			return nil, err
		}
		if r.Width != isa.Width64 {
			return nil, fmt.Errorf("pop requires a 64-bit register in long mode")
		}
		var rx rex
		rx.B = r.Ext
		out := []byte{}
		if rx.needed() {
			out = append(out, rx.encode())
		}
		out = append(out, 0x58+(r.Num&7))
		return out, nil
	case parser.OperandMemory:
		return memHeadWithOpcode(0x8F, op.Mem, 0, nil, false, va, resolver, 0)
	}
	return nil, fmt.Errorf("unsupported pop operand")
}

func encodeXchg(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("xchg expects 2 operands, got %d", len(ops))
	}
	dst, src := ops[0], ops[1]
	if dst.Kind == parser.OperandRegister && src.Kind == parser.OperandRegister {
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		srcReg, err := regFromOperand(src)
		if err != nil {
			return nil, err
		}
		if dstReg.Width != srcReg.Width {
			return nil, fmt.Errorf("xchg operand width mismatch")
		}
		opcode := byte(0x87)
		if dstReg.Width == isa.Width8 {
			opcode = 0x86
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
		opcode := byte(0x87)
		if srcReg.Width == isa.Width8 {
			opcode = 0x86
		}
		return encodeMemRegForm(opcode, dst.Mem, srcReg, va, resolver)
	}
	if dst.Kind == parser.OperandRegister && src.Kind == parser.OperandMemory {
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		opcode := byte(0x87)
		if dstReg.Width == isa.Width8 {
			opcode = 0x86
		}
		return encodeMemRegForm(opcode, src.Mem, dstReg, va, resolver)
	}
	return nil, fmt.Errorf("unsupported xchg operand combination")
}

// encodeIncDec builds inc/dec (digit 0/1), the only group-5 forms this
// assembler needs since the legacy 40+r/48+r short forms don't exist in
// 64-bit mode.
func encodeIncDec(digit byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	return encodeUnaryGroup(0xFE, 0xFF, digit, ops, va, resolver)
}

// encodeGroup3 builds not/neg/mul/div/idiv, the F6/F7 opcode-extension
// group.
func encodeGroup3(digit byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	return encodeUnaryGroup(0xF6, 0xF7, digit, ops, va, resolver)
}

func encodeUnaryGroup(op8, opWide byte, digit byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("expected 1 operand, got %d", len(ops))
	}
	op := ops[0]
	w, err := widthOf(op)
	if err != nil {
		return nil, err
	}
	opcode := opWide
	if w == isa.Width8 {
		opcode = op8
	}
	if op.Kind == parser.OperandRegister {
		r, err := regFromOperand(op)
		if err != nil {
			return nil, err
		}
		var rx rex
		rx.W = w == isa.Width64
		rx.B = r.Ext
		rx.Forced = r.NeedsREX
		out := append([]byte{}, sizePrefix(w)...)
		if rx.needed() {
			out = append(out, rx.encode())
		}
		out = append(out, opcode, modrmRegReg(digit, r.Num))
		return out, nil
	}
	return memHeadWithOpcode(opcode, op.Mem, digit, sizePrefix(w), w == isa.Width64, va, resolver, 0)
}

// encodeImul supports the one-operand (F7 /5) and two-operand
// (0F AF /r, reg,r/m) forms; three-operand imul with an immediate is not
// part of the required instruction family and is rejected.
func encodeImul(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	switch len(ops) {
	case 1:
		return encodeGroup3(0x05, ops, va, resolver)
	case 2:
		dst, src := ops[0], ops[1]
		dstReg, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		if dstReg.Width == isa.Width8 {
			return nil, fmt.Errorf("imul r,r/m does not support an 8-bit destination")
		}
		if src.Kind == parser.OperandRegister {
			srcReg, err := regFromOperand(src)
			if err != nil {
				return nil, err
			}
			if srcReg.Width != dstReg.Width {
				return nil, fmt.Errorf("imul operand width mismatch")
			}
			var r rex
			r.W = dstReg.Width == isa.Width64
			r.R = dstReg.Ext
			r.B = srcReg.Ext
			out := append([]byte{}, sizePrefix(dstReg.Width)...)
			if r.needed() {
				out = append(out, r.encode())
			}
			out = append(out, 0x0F, 0xAF, modrmRegReg(dstReg.Num, srcReg.Num))
			return out, nil
		}
		if src.Kind == parser.OperandMemory {
			prefix := sizePrefix(dstReg.Width)
			probe, err := encodeMemory(src.Mem, dstReg.Num, resolver, va)
			if err != nil {
				return nil, err
			}
			w := dstReg.Width == isa.Width64
			headLen := len(prefix) + 2 /*0F AF*/
			if w || probe.rex.needed() {
				headLen++
			}
			total := headLen + 1 + len(probe.sib) + len(probe.disp)
			mb, err := encodeMemory(src.Mem, dstReg.Num, resolver, va+uint64(total))
			if err != nil {
				return nil, err
			}
			mb.rex.W = w
			mb.rex.R = dstReg.Ext
			out := append([]byte{}, prefix...)
			if mb.rex.needed() {
				out = append(out, mb.rex.encode())
			}
			out = append(out, 0x0F, 0xAF, mb.modrm)
			out = append(out, mb.sib...)
			out = append(out, mb.disp...)
			return out, nil
		}
		return nil, fmt.Errorf("unsupported imul operand combination")
	default:
		return nil, fmt.Errorf("imul with an immediate operand is not supported")
	}
}
