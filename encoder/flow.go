package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

// encodeJmp/encodeCall always take the rel32 (near) form for a label
// target, per the encoder's fixed-form sizing contract: a direct jmp/call
// is always 5 bytes (E9/E8 + rel32), never the shorter rel8 (EB) form.
func encodeJmp(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	return encodeJmpCall(0xE9, 0x04, ops, va, resolver)
}

func encodeCall(ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	return encodeJmpCall(0xE8, 0x02, ops, va, resolver)
}

func encodeJmpCall(relOpcode byte, indirectDigit byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("expected 1 operand, got %d", len(ops))
	}
	op := ops[0]
	switch op.Kind {
	case parser.OperandLabel:
		target, ok := resolver.ResolveVA(op.LabelName)
		if !ok {
			return nil, &UndefinedLabelError{Name: op.LabelName}
		}
		ripAfter := va + 5
		disp := int64(target) - int64(ripAfter)
		out := []byte{relOpcode}
		out = append(out, int32ToBytes(int32(disp))...)
		return out, nil
	case parser.OperandRegister:
		r, err := regFromOperand(op)
		if err != nil {
			return nil, err
		}
		if r.Width != isa.Width64 {
			return nil, fmt.Errorf("indirect jmp/call register must be 64-bit")
		}
		var rx rex
		rx.B = r.Ext
		out := []byte{}
		if rx.needed() {
			out = append(out, rx.encode())
		}
		out = append(out, 0xFF, modrmRegReg(indirectDigit, r.Num))
		return out, nil
	case parser.OperandMemory:
		return memHeadWithOpcode(0xFF, op.Mem, indirectDigit, nil, false, va, resolver, 0)
	}
	return nil, fmt.Errorf("unsupported jmp/call operand")
}

// encodeJccCode builds the near (0F 8x rel32) conditional-jump form.
func encodeJccCode(cc byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("expected 1 operand, got %d", len(ops))
	}
	op := ops[0]
	if op.Kind != parser.OperandLabel {
		return nil, fmt.Errorf("conditional jump requires a label operand")
	}
	target, ok := resolver.ResolveVA(op.LabelName)
	if !ok {
		return nil, &UndefinedLabelError{Name: op.LabelName}
	}
	ripAfter := va + 6
	disp := int64(target) - int64(ripAfter)
	out := []byte{0x0F, 0x80 + cc}
	out = append(out, int32ToBytes(int32(disp))...)
	return out, nil
}

func encodeInt(ops []parser.Operand) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("int expects 1 operand, got %d", len(ops))
	}
	op := ops[0]
	if op.Kind != parser.OperandImmediate {
		return nil, fmt.Errorf("int requires an immediate operand")
	}
	return []byte{0xCD, byte(op.ImmValue)}, nil
}
