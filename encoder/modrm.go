package encoder

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/parser"
)

// SymbolResolver is the subset of *symtab.Table the encoder needs: a
// label's absolute virtual address, once layout has assigned one.
type SymbolResolver interface {
	ResolveVA(name string) (uint64, bool)
}

var scaleBits = map[int]byte{1: 0, 2: 1, 4: 2, 8: 3}

// memBytes is a fully built ModR/M + (optional SIB) + displacement
// encoding for one memory operand, along with the REX bits it requires.
type memBytes struct {
	rex   rex
	modrm byte
	sib   []byte // 0 or 1 byte
	disp  []byte // 0, 1 or 4 bytes
}

func lookupReg(name string) (isa.Reg, error) {
	r, ok := isa.Lookup(name)
	if !ok {
		return isa.Reg{}, fmt.Errorf("unknown register %q", name)
	}
	return r, nil
}

func fitsInt8(v int64) bool { return v >= -128 && v <= 127 }

// encodeMemory builds the ModR/M/SIB/disp bytes for mem with regField
// already placed in the ModR/M reg slot (the other operand, or an
// opcode-extension digit for single-operand forms). ripAfter is the
// address of the byte immediately following the complete instruction,
// needed only for `[label]` RIP-relative references.
func encodeMemory(mem parser.Memory, regField byte, resolver SymbolResolver, ripAfter uint64) (memBytes, error) {
	var out memBytes

	// Bare label, or '[disp]' with no base/index register at all.
	if mem.Base == "" && mem.Index == "" {
		if mem.DispLabel != "" {
			va, ok := resolver.ResolveVA(mem.DispLabel)
			if !ok {
				return out, &UndefinedLabelError{Name: mem.DispLabel}
			}
			disp := int64(va) - int64(ripAfter)
			out.modrm = 0x00<<6 | (regField&7)<<3 | 0x05
			out.disp = int32ToBytes(int32(disp))
			return out, nil
		}
		// Absolute disp32, no base, no index: mod=00, rm=100, SIB base=101.
		out.modrm = 0x00<<6 | (regField&7)<<3 | 0x04
		out.sib = []byte{0x00<<6 | 0x04<<3 | 0x05}
		out.disp = int32ToBytes(int32(mem.DispValue))
		return out, nil
	}

	if mem.Base != "" && mem.DispLabel != "" {
		return out, fmt.Errorf("label displacement combined with a base register is not supported")
	}

	var baseReg isa.Reg
	haveBase := mem.Base != ""
	if haveBase {
		r, err := lookupReg(mem.Base)
		if err != nil {
			return out, err
		}
		baseReg = r
	}

	// mod/disp size: forced disp8=0 when base is rbp/r13 (base low bits 101)
	// and no explicit displacement was written, since mod=00 with rm=101
	// (no SIB) or base=101 (with SIB) means "no base" instead.
	forceDisp8 := haveBase && baseReg.Num == 5 && !mem.HasDisp
	var mod byte
	switch {
	case !mem.HasDisp && !forceDisp8:
		mod = 0x00
	case forceDisp8:
		mod = 0x01
	case fitsInt8(mem.DispValue):
		mod = 0x01
	default:
		mod = 0x02
	}
	needSIB := mem.Index != "" || (haveBase && baseReg.Num&7 == 4)

	if !needSIB {
		out.rex.B = baseReg.Ext
		out.modrm = mod<<6 | (regField&7)<<3 | (baseReg.Num & 7)
	} else {
		var ss, iii, bbb byte
		if mem.Index != "" {
			idxReg, err := lookupReg(mem.Index)
			if err != nil {
				return out, err
			}
			bits, ok := scaleBits[mem.Scale]
			if !ok {
				return out, fmt.Errorf("invalid scale %d", mem.Scale)
			}
			ss = bits
			iii = idxReg.Num & 7
			out.rex.X = idxReg.Ext
		} else {
			iii = 0x04 // no index
		}
		if haveBase {
			bbb = baseReg.Num & 7
			out.rex.B = baseReg.Ext
		} else {
			bbb = 0x05 // base=101 at mod=00: "no base", disp32 mandatory
			mod = 0x00
		}
		out.sib = []byte{ss<<6 | iii<<3 | bbb}
		out.modrm = mod<<6 | (regField&7)<<3 | 0x04
	}

	switch mod {
	case 0x01:
		out.disp = []byte{byte(int8(mem.DispValue))}
	case 0x02:
		out.disp = int32ToBytes(int32(mem.DispValue))
	case 0x00:
		if needSIB && !haveBase {
			out.disp = int32ToBytes(int32(mem.DispValue))
		}
	}

	return out, nil
}

func int32ToBytes(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func int16ToBytes(v int16) []byte {
	u := uint16(v)
	return []byte{byte(u), byte(u >> 8)}
}

func int64ToBytes(v int64) []byte {
	u := uint64(v)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b
}

// modrmRegReg builds a register-direct (mod=11) ModR/M byte.
func modrmRegReg(regField, rm byte) byte {
	return 0xC0 | (regField&7)<<3 | (rm & 7)
}
