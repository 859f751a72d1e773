// Package layout implements the three-pass symbol/address resolution
// scheme of spec.md §4.3: collect labels into sections, size every
// statement and assign section-relative offsets, then fix absolute
// virtual addresses from the fixed section bases.
package layout

import (
	"fmt"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/encoder"
	"github.com/Urethramancer/x64asm/parser"
	"github.com/Urethramancer/x64asm/symtab"
)

// BaseVA are the fixed constant section bases from spec.md §4.3.
var BaseVA = map[string]uint64{
	".text": 0x400000,
	".data": 0x600000,
	".bss":  0x800000,
}

// Result is everything the encode pass needs: the fixed section base
// addresses and the resolved symbol table (the Phase A/B contract from
// spec.md §4.3 — the encode pass re-derives each instruction's length
// itself via encoder.Encode rather than consuming a separate size table).
type Result struct {
	Sections  []string
	SectionVA map[string]uint64
	Symbols   *symtab.Table
	EntryVA   uint64
}

// DefaultSection is the section a statement belongs to before any
// `section` directive switches it, per spec.md §4.2.
const DefaultSection = ".text"

// Run executes all three passes over stmts. It returns the layout result
// and true only when no diagnostic was recorded; otherwise it returns
// false and the fatal/non-fatal diagnostics are in diags.
func Run(stmts []parser.Statement, diags *diag.List) (*Result, bool) {
	symbols := symtab.New()

	// --- Pass 1: collect labels into their owning section. ---
	secOrder := []string{}
	secSeen := map[string]bool{}
	cur := DefaultSection
	ensureSection := func(name string) {
		if !secSeen[name] {
			secSeen[name] = true
			secOrder = append(secOrder, name)
		}
	}
	ensureSection(cur)

	// equ names are scalar constants (spec.md's `$ - label` byte-count
	// idiom), not section-relative addresses: their Offset already holds
	// the resolved value, so pass 3 must not add a section base to it the
	// way it does for a real label.
	equNames := map[string]bool{}

	for i := range stmts {
		s := &stmts[i]
		switch s.Kind {
		case parser.StmtSectionSwitch:
			cur = s.SectionName
			ensureSection(cur)
		case parser.StmtGlobal:
			for _, n := range s.Names {
				symbols.MarkGlobal(n)
			}
		case parser.StmtExtern:
			for _, n := range s.Names {
				symbols.MarkExtern(n)
			}
		case parser.StmtLabelDef:
			if err := symbols.Define(s.Label, cur); err != nil {
				if !diags.Add(diag.New(diag.DuplicateLabel, s.Pos, "%v", err)) {
					return nil, false
				}
			}
		case parser.StmtEqu:
			// equ names behave like labels for duplicate-detection purposes
			if err := symbols.Define(s.EquName, cur); err != nil {
				if !diags.Add(diag.New(diag.DuplicateLabel, s.Pos, "%v", err)) {
					return nil, false
				}
			}
			equNames[s.EquName] = true
		}
	}

	// --- Pass 2: size and offset. ---
	cursors := map[string]uint32{}
	for _, n := range secOrder {
		cursors[n] = 0
	}
	cur = DefaultSection

	var sizeStmt func(s *parser.Statement) (uint32, error)
	sizeStmt = func(s *parser.Statement) (uint32, error) {
		switch s.Kind {
		case parser.StmtData:
			return dataSize(s), nil
		case parser.StmtTimes:
			inner, err := sizeStmt(s.Inner)
			if err != nil {
				return 0, err
			}
			return uint32(s.Count) * inner, nil
		case parser.StmtInstruction:
			n, err := encoder.SizeInstruction(s.Instr)
			return uint32(n), err
		default:
			return 0, nil
		}
	}

	for i := range stmts {
		s := &stmts[i]
		switch s.Kind {
		case parser.StmtSectionSwitch:
			cur = s.SectionName
		case parser.StmtLabelDef:
			symbols.SetOffset(s.Label, cursors[cur])
		case parser.StmtEqu:
			off, err := resolveEqu(s.Equ, symbols, cursors[cur])
			if err != nil {
				if !diags.Add(diag.New(diag.UndefinedLabel, s.Pos, "%v", err)) {
					return nil, false
				}
				continue
			}
			symbols.SetOffset(s.EquName, uint32(off))
		case parser.StmtData, parser.StmtTimes, parser.StmtInstruction:
			n, err := sizeStmt(s)
			if err != nil {
				if !diags.Add(diag.New(diag.InvalidOperandCombination, s.Pos, "%v", err)) {
					return nil, false
				}
				continue
			}
			cursors[cur] += n
		}
	}

	// --- Pass 3: absolute addresses. ---
	sectionVA := map[string]uint64{}
	for _, n := range secOrder {
		base, ok := BaseVA[n]
		if !ok {
			cause := fmt.Errorf("section %q has no base virtual address", n)
			diags.Add(diag.Wrap(diag.SectionError, diag.Pos{}, cause, "unknown section %q", n))
			return nil, false
		}
		sectionVA[n] = base
	}

	if textSize, ok := cursors[".text"]; ok {
		if dataBase, hasData := BaseVA[".data"]; hasData {
			if BaseVA[".text"]+uint64(textSize) > dataBase {
				cause := fmt.Errorf(".text of %d bytes overruns .data's base virtual address 0x%x", textSize, dataBase)
				diags.Add(diag.Wrap(diag.SectionError, diag.Pos{}, cause, "section layout overflow"))
				return nil, false
			}
		}
	}

	for _, sym := range symbols.All() {
		if !sym.Defined {
			continue
		}
		if equNames[sym.Name] {
			sym.VA = uint64(sym.Offset)
			continue
		}
		base := sectionVA[sym.Section]
		sym.VA = base + uint64(sym.Offset)
	}

	entry, ok := symbols.Lookup("_start")
	if !ok || !entry.Defined || entry.Section != ".text" {
		cause := fmt.Errorf("'_start' label not found in .text")
		d := diag.Wrap(diag.MissingEntryPoint, diag.Pos{}, cause, "no entry point defined").
			WithHelp("define a global '_start:' label inside section .text")
		diags.Add(d)
		return nil, false
	}

	if diags.HasErrors() {
		return nil, false
	}

	return &Result{
		Sections:  secOrder,
		SectionVA: sectionVA,
		Symbols:   symbols,
		EntryVA:   entry.VA,
	}, true
}

func dataSize(s *parser.Statement) uint32 {
	var total uint32
	for _, it := range s.Items {
		if it.IsString {
			total += uint32(len(it.String))
			continue
		}
		total += uint32(s.Unit)
	}
	return total
}

func resolveEqu(e parser.EquExpr, symbols *symtab.Table, curOffset uint32) (int64, error) {
	if e.IsImmediate {
		return e.Value, nil
	}
	if e.IsDollarMinusLabel {
		sym, ok := symbols.Lookup(e.Label)
		if !ok || !sym.Defined {
			return 0, fmt.Errorf("undefined label %q in 'equ' expression", e.Label)
		}
		return int64(curOffset) - int64(sym.Offset), nil
	}
	sym, ok := symbols.Lookup(e.Label)
	if !ok || !sym.Defined {
		return 0, fmt.Errorf("undefined label %q in 'equ' expression", e.Label)
	}
	return int64(sym.Offset), nil
}
