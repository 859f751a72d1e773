// Package symtab holds the symbol table described in spec.md §3: a
// mapping from identifier to the section/offset/address record that
// layout (package layout) fills in across its passes.
package symtab

import "fmt"

// Symbol is one entry in the table.
type Symbol struct {
	Name    string
	Section string
	Offset  uint32
	VA      uint64
	Global  bool
	Extern  bool
	Defined bool
}

// Table is the assembler-wide symbol table. Identifiers are case
// sensitive, and each may be defined at most once (spec.md §3).
type Table struct {
	order []string
	byName map[string]*Symbol
}

// New creates an empty table.
func New() *Table {
	return &Table{byName: make(map[string]*Symbol)}
}

// Define records a label definition in the given section. It returns an
// error if the name was already defined (DuplicateLabel territory — the
// caller attaches source location and turns this into a diag.Diagnostic).
func (t *Table) Define(name, section string) error {
	if sym, ok := t.byName[name]; ok && sym.Defined {
		return fmt.Errorf("label %q already defined", name)
	}
	if sym, ok := t.byName[name]; ok {
		sym.Section = section
		sym.Defined = true
		return nil
	}
	sym := &Symbol{Name: name, Section: section, Defined: true}
	t.byName[name] = sym
	t.order = append(t.order, name)
	return nil
}

// Reference ensures an entry exists for name without marking it defined,
// so extern/forward references have something to look up later.
func (t *Table) Reference(name string) *Symbol {
	if sym, ok := t.byName[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name}
	t.byName[name] = sym
	t.order = append(t.order, name)
	return sym
}

// MarkGlobal flags name as exported (global directive).
func (t *Table) MarkGlobal(name string) {
	t.Reference(name).Global = true
}

// MarkExtern flags name as an external reference (accepted at parse time,
// flagged at encode time since linking is out of scope per spec.md §3).
func (t *Table) MarkExtern(name string) {
	t.Reference(name).Extern = true
}

// Lookup returns the symbol for name, if any entry exists for it.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.byName[name]
	return sym, ok
}

// SetOffset records a defined symbol's section-relative offset.
func (t *Table) SetOffset(name string, offset uint32) {
	t.Reference(name).Offset = offset
}

// SetVA records a defined symbol's absolute virtual address.
func (t *Table) SetVA(name string, va uint64) {
	t.Reference(name).VA = va
}

// All returns every symbol in first-reference order, useful for
// deterministic diagnostics and for dumping.
func (t *Table) All() []*Symbol {
	out := make([]*Symbol, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.byName[n])
	}
	return out
}
