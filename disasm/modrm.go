package disasm

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
)

// rm is a decoded ModR/M operand: either a direct register or a memory
// reference, the inverse of encoder.encodeMemory's output.
type rm struct {
	isReg   bool
	regNum  uint8
	regExt  bool
	memText string // formatted "[...]" with no leading size keyword
}

func (r rm) text(w isa.Width) string {
	if r.isReg {
		return regName(w, r.regNum, r.regExt)
	}
	return r.memText
}

// decodeModRM reads the ModR/M byte (and SIB/displacement if present)
// starting at pos, mirroring encoder.encodeMemory's addressing-mode
// matrix in reverse. It returns the raw 3-bit reg-field value (callers
// combine it with the REX.R bit via regName), the decoded r/m operand,
// and the number of bytes consumed.
func decodeModRM(code []byte, pos int, rexR, rexX, rexB bool) (regField uint8, r rm, n int, err error) {
	if pos >= len(code) {
		return 0, r, 0, fmt.Errorf("truncated ModR/M byte")
	}
	mb := code[pos]
	n = 1
	mod := mb >> 6
	regField = (mb >> 3) & 7
	rmF := mb & 7

	if mod == 3 {
		r.isReg = true
		r.regNum = rmF
		r.regExt = rexB
		return regField, r, n, nil
	}

	var baseName string
	haveBase := true
	isRIP := false
	var indexName string
	haveIndex := false
	scale := 1

	if rmF == 4 {
		if pos+n >= len(code) {
			return 0, r, 0, fmt.Errorf("truncated SIB byte")
		}
		sib := code[pos+n]
		n++
		ss := sib >> 6
		idx := (sib >> 3) & 7
		bse := sib & 7

		if idx != 4 {
			haveIndex = true
			indexName = regName(isa.Width64, idx, rexX)
			scale = 1 << ss
		}
		if bse == 5 && mod == 0 {
			haveBase = false
		} else {
			baseName = regName(isa.Width64, bse, rexB)
		}
	} else if rmF == 5 && mod == 0 {
		haveBase = false
		isRIP = true
	} else {
		baseName = regName(isa.Width64, rmF, rexB)
	}

	var disp int64
	switch {
	case isRIP:
		d, dn, derr := readDisp32(code, pos+n)
		if derr != nil {
			return 0, r, 0, derr
		}
		n += dn
		disp = int64(d)
	case mod == 0 && !haveBase:
		d, dn, derr := readDisp32(code, pos+n)
		if derr != nil {
			return 0, r, 0, derr
		}
		n += dn
		disp = int64(d)
	case mod == 1:
		if pos+n >= len(code) {
			return 0, r, 0, fmt.Errorf("truncated disp8")
		}
		disp = int64(int8(code[pos+n]))
		n++
	case mod == 2:
		d, dn, derr := readDisp32(code, pos+n)
		if derr != nil {
			return 0, r, 0, derr
		}
		n += dn
		disp = int64(d)
	}

	r.memText = formatMem(isRIP, baseName, haveBase, indexName, haveIndex, scale, disp)
	return regField, r, n, nil
}

func readDisp32(code []byte, pos int) (int32, int, error) {
	if pos+4 > len(code) {
		return 0, 0, fmt.Errorf("truncated disp32")
	}
	u := uint32(code[pos]) | uint32(code[pos+1])<<8 | uint32(code[pos+2])<<16 | uint32(code[pos+3])<<24
	return int32(u), 4, nil
}

func formatMem(isRIP bool, base string, haveBase bool, index string, haveIndex bool, scale int, disp int64) string {
	if isRIP {
		return fmt.Sprintf("[rip%s]", signedHex(disp))
	}
	var parts []string
	if haveBase {
		parts = append(parts, base)
	}
	if haveIndex {
		parts = append(parts, fmt.Sprintf("%s*%d", index, scale))
	}
	inner := ""
	for i, p := range parts {
		if i == 0 {
			inner = p
		} else {
			inner += "+" + p
		}
	}
	if disp != 0 || inner == "" {
		if inner == "" {
			return fmt.Sprintf("[%#x]", uint32(disp))
		}
		inner += signedHex(disp)
	}
	return "[" + inner + "]"
}

func signedHex(v int64) string {
	if v == 0 {
		return ""
	}
	if v < 0 {
		return fmt.Sprintf("-%#x", -v)
	}
	return fmt.Sprintf("+%#x", v)
}
