package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

// encodeShift builds the group-2 shift/rotate family (digit identifies
// shl/sal=4, shr=5, sar=7) in its by-CL (D2/D3 /digit) and by-imm8
// (C0/C1 /digit ib) forms.
func encodeShift(digit byte, ops []parser.Operand, va uint64, resolver SymbolResolver) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("expected 2 operands, got %d", len(ops))
	}
	dst, count := ops[0], ops[1]
	w, err := widthOf(dst)
	if err != nil {
		return nil, err
	}

	byCL := count.Kind == parser.OperandRegister && count.Register == "cl"
	var op8, opWide byte
	if byCL {
		op8, opWide = 0xD2, 0xD3
	} else {
		op8, opWide = 0xC0, 0xC1
	}
	opcode := opWide
	if w == isa.Width8 {
		opcode = op8
	}

	var trailing []byte
	if !byCL {
		if count.Kind != parser.OperandImmediate {
			return nil, fmt.Errorf("shift count must be an immediate or cl")
		}
		trailing = []byte{byte(count.ImmValue)}
	}

	if dst.Kind == parser.OperandRegister {
		r, err := regFromOperand(dst)
		if err != nil {
			return nil, err
		}
		var rx rex
		rx.W = w == isa.Width64
		rx.B = r.Ext
		out := append([]byte{}, sizePrefix(w)...)
		if rx.needed() {
			out = append(out, rx.encode())
		}
		out = append(out, opcode, modrmRegReg(digit, r.Num))
		out = append(out, trailing...)
		return out, nil
	}

	head, err := memHeadWithOpcode(opcode, dst.Mem, digit, sizePrefix(w), w == isa.Width64, va, resolver, len(trailing))
	if err != nil {
		return nil, err
	}
	return append(head, trailing...), nil
}
