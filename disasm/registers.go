package disasm

import (
	"fmt"

	"github.com/Urethramancer/x64asm/isa"
)

type regKey struct {
	w   isa.Width
	num uint8
	ext bool
}

var regNames map[regKey]string

func init() {
	regNames = make(map[regKey]string, len(isa.Registers))
	for name, r := range isa.Registers {
		if r.Width == isa.WidthXMM || r.Width == isa.WidthYMM || r.Width == isa.WidthZMM {
			continue
		}
		if name == "rip" {
			continue
		}
		regNames[regKey{r.Width, r.Num, r.Ext}] = name
	}
}

// regName resolves a (width, number, extension-bit) triple back to the
// source register name it was assembled from.
func regName(w isa.Width, num uint8, ext bool) string {
	if n, ok := regNames[regKey{w, num, ext}]; ok {
		return n
	}
	return fmt.Sprintf("<reg w=%d n=%d e=%v>", w, num, ext)
}
