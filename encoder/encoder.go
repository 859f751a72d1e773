// Package encoder turns parsed instructions into x86-64 machine code,
// implementing the REX/opcode/ModR-M/SIB/displacement/immediate byte
// layout from spec.md §4.4 and the structural (address-independent)
// sizing contract §4.3 relies on: every encoding form this package
// chooses is fixed by operand *kind* (and, for a literal immediate, by
// its value), never by a resolved address, so a label's eventual address
// can never change an instruction's length between Phase A sizing and
// Phase B emission.
package encoder

import (
	"fmt"
	"strings"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

// constResolver answers every label lookup with virtual address 0. It is
// used only to measure encoded length: since this encoder never varies
// an instruction's byte count by the resolved value of a label (branches
// always take rel32, RIP-relative memory always takes disp32, and a
// 64-bit destination takes the 8-byte immediate for every label source
// and picks by magnitude only for a literal source, whose value is
// already known), the
// length produced against address 0 is identical to the length produced
// against the real address.
type constResolver struct{}

func (constResolver) ResolveVA(string) (uint64, bool) { return 0, true }

// UndefinedLabelError reports a label reference that never resolved to an
// address. Callers that need to tell this apart from a genuine operand-shape
// error (spec.md §7's UndefinedLabel vs. InvalidOperandCombination kinds) can
// test for it with errors.As.
type UndefinedLabelError struct {
	Name string
}

func (e *UndefinedLabelError) Error() string {
	return fmt.Sprintf("undefined label %q", e.Name)
}

// SizeInstruction returns the byte length instr will occupy once encoded,
// without requiring any symbol to be resolved yet (spec.md §4.3 Phase A).
func SizeInstruction(instr parser.Instruction) (int, error) {
	b, err := Encode(instr, 0, constResolver{})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Encode emits the full machine code for instr. va is the address of the
// instruction's first byte, needed for RIP-relative memory operands and
// branch displacements; resolver answers label-to-address lookups.
func Encode(instr parser.Instruction, va uint64, resolver SymbolResolver) ([]byte, error) {
	mn := strings.ToLower(instr.Mnemonic)
	ops := instr.Operands

	if cc, ok := jccBySuffix(mn); ok {
		return encodeJccCode(cc, ops, va, resolver)
	}

	switch mn {
	case "mov":
		return encodeMov(ops, va, resolver)
	case "lea":
		return encodeLea(ops, va, resolver)
	case "push":
		return encodePush(ops, va, resolver)
	case "pop":
		return encodePop(ops, va, resolver)
	case "xchg":
		return encodeXchg(ops, va, resolver)
	case "add":
		return encodeALU(aluAdd, ops, va, resolver)
	case "or":
		return encodeALU(aluOr, ops, va, resolver)
	case "and":
		return encodeALU(aluAnd, ops, va, resolver)
	case "sub":
		return encodeALU(aluSub, ops, va, resolver)
	case "xor":
		return encodeALU(aluXor, ops, va, resolver)
	case "cmp":
		return encodeALU(aluCmp, ops, va, resolver)
	case "test":
		return encodeTest(ops, va, resolver)
	case "inc":
		return encodeIncDec(0x00, ops, va, resolver)
	case "dec":
		return encodeIncDec(0x01, ops, va, resolver)
	case "neg":
		return encodeGroup3(0x03, ops, va, resolver)
	case "not":
		return encodeGroup3(0x02, ops, va, resolver)
	case "mul":
		return encodeGroup3(0x04, ops, va, resolver)
	case "div":
		return encodeGroup3(0x06, ops, va, resolver)
	case "idiv":
		return encodeGroup3(0x07, ops, va, resolver)
	case "imul":
		return encodeImul(ops, va, resolver)
	case "shl", "sal":
		return encodeShift(0x04, ops, va, resolver)
	case "shr":
		return encodeShift(0x05, ops, va, resolver)
	case "sar":
		return encodeShift(0x07, ops, va, resolver)
	case "jmp":
		return encodeJmp(ops, va, resolver)
	case "call":
		return encodeCall(ops, va, resolver)
	case "ret":
		return []byte{0xC3}, nil
	case "syscall":
		return []byte{0x0F, 0x05}, nil
	case "nop":
		return []byte{0x90}, nil
	case "cqo":
		return []byte{0x48, 0x99}, nil
	case "cdq":
		return []byte{0x99}, nil
	case "int":
		return encodeInt(ops)
	}

	return nil, fmt.Errorf("unsupported instruction %q", instr.Mnemonic)
}

func jccBySuffix(mn string) (byte, bool) {
	if !strings.HasPrefix(mn, "j") {
		return 0, false
	}
	cc, ok := isa.ConditionCodes[mn[1:]]
	return cc, ok
}

func widthOf(op parser.Operand) (isa.Width, error) {
	switch op.Kind {
	case parser.OperandRegister:
		r, ok := isa.Lookup(op.Register)
		if !ok {
			return isa.WidthNone, fmt.Errorf("unknown register %q", op.Register)
		}
		return r.Width, nil
	case parser.OperandMemory:
		if op.Mem.SizeHint != isa.WidthNone {
			return op.Mem.SizeHint, nil
		}
		return isa.WidthNone, fmt.Errorf("ambiguous memory operand size; prefix with byte/word/dword/qword")
	default:
		return isa.WidthNone, fmt.Errorf("operand has no intrinsic width")
	}
}

// sizePrefix returns the legacy 0x66 operand-size-override prefix needed
// for 16-bit operations.
func sizePrefix(w isa.Width) []byte {
	if w == isa.Width16 {
		return []byte{0x66}
	}
	return nil
}

func immBytes(w isa.Width, v int64) []byte {
	switch w {
	case isa.Width8:
		return []byte{byte(v)}
	case isa.Width16:
		return int16ToBytes(int16(v))
	default:
		return int32ToBytes(int32(v))
	}
}

// regFromOperand requires op to be a register operand and returns its Reg.
func regFromOperand(op parser.Operand) (isa.Reg, error) {
	if op.Kind != parser.OperandRegister {
		return isa.Reg{}, fmt.Errorf("expected a register operand")
	}
	r, ok := isa.Lookup(op.Register)
	if !ok {
		return isa.Reg{}, fmt.Errorf("unknown register %q", op.Register)
	}
	return r, nil
}

// immValue resolves an immediate operand to a concrete int64, following a
// label reference through resolver when the literal itself is a label
// (the `mov r64, label` form).
func immValue(op parser.Operand, resolver SymbolResolver) (int64, error) {
	if op.Kind == parser.OperandLabel || (op.Kind == parser.OperandImmediate && op.ImmLabel != "") {
		name := op.LabelName
		if name == "" {
			name = op.ImmLabel
		}
		va, ok := resolver.ResolveVA(name)
		if !ok {
			return 0, &UndefinedLabelError{Name: name}
		}
		return int64(va), nil
	}
	if op.Kind != parser.OperandImmediate {
		return 0, fmt.Errorf("expected an immediate operand")
	}
	return op.ImmValue, nil
}

func fits32(v int64) bool { return v >= -2147483648 && v <= 2147483647 }
