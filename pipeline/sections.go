package pipeline

import (
	"errors"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/encoder"
	"github.com/Urethramancer/x64asm/layout"
	"github.com/Urethramancer/x64asm/parser"
)

// buildSections performs the encode pass (spec.md §4.3 Phase B): walking
// the same statement order and section cursor logic layout.Run used to
// size things, now emitting real bytes for .text and .data, and tracking
// .bss's memory-only extent.
func buildSections(stmts []parser.Statement, lr *layout.Result, diags *diag.List) (text, data []byte, bssSize uint32, err error) {
	resolver := symResolver{t: lr.Symbols}
	cur := layout.DefaultSection
	cursors := map[string]uint32{}

	var textBuf, dataBuf []byte

	var emit func(s *parser.Statement, cur string) error
	emit = func(s *parser.Statement, cur string) error {
		switch s.Kind {
		case parser.StmtData:
			b := encodeData(s, resolver)
			appendTo(cur, b, &textBuf, &dataBuf)
			cursors[cur] += uint32(len(b))
			return nil
		case parser.StmtTimes:
			for i := 0; i < s.Count; i++ {
				if err := emit(s.Inner, cur); err != nil {
					return err
				}
			}
			return nil
		case parser.StmtInstruction:
			va := lr.SectionVA[cur] + uint64(cursors[cur])
			b, err := encoder.Encode(s.Instr, va, resolver)
			if err != nil {
				return err
			}
			s.Instr.EncodedBytes = b
			appendTo(cur, b, &textBuf, &dataBuf)
			cursors[cur] += uint32(len(b))
			return nil
		default:
			return nil
		}
	}

	for i := range stmts {
		s := &stmts[i]
		if s.Kind == parser.StmtSectionSwitch {
			cur = s.SectionName
			continue
		}
		if err := emit(s, cur); err != nil {
			var undef *encoder.UndefinedLabelError
			if errors.As(err, &undef) {
				d := diag.New(diag.UndefinedLabel, s.Pos, "%v", err).
					WithNote("check for a typo, or a label defined in a section that was never reached")
				diags.Add(d)
				return nil, nil, 0, err
			}
			diags.Add(diag.New(diag.InvalidOperandCombination, s.Pos, "%v", err))
			return nil, nil, 0, err
		}
	}

	return textBuf, dataBuf, cursors[".bss"], nil
}

func appendTo(section string, b []byte, text, data *[]byte) {
	switch section {
	case ".text":
		*text = append(*text, b...)
	case ".data":
		*data = append(*data, b...)
	}
}

// encodeData renders one db/dw/dd/dq statement's items to raw bytes.
// A label item stores its resolved virtual address truncated to the
// directive's unit width.
func encodeData(s *parser.Statement, resolver symResolver) []byte {
	var out []byte
	for _, it := range s.Items {
		if it.IsString {
			out = append(out, it.String...)
			continue
		}
		v := it.Value
		if it.IsLabel {
			va, _ := resolver.ResolveVA(it.Label)
			v = int64(va)
		}
		out = append(out, leBytes(v, int(s.Unit))...)
	}
	return out
}

func leBytes(v int64, n int) []byte {
	u := uint64(v)
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return b
}
