// Package pipeline drives the single-threaded lexer → parser → layout →
// encoder → elfwriter sequence spec.md §5 describes, threading one
// diagnostic list and one symbol table through every stage in order.
package pipeline

import (
	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/elfwriter"
	"github.com/Urethramancer/x64asm/layout"
	"github.com/Urethramancer/x64asm/lexer"
	"github.com/Urethramancer/x64asm/parser"
	"github.com/Urethramancer/x64asm/symtab"
)

// Result is everything a caller (typically cmd/x64asm) needs to decide
// an exit code and produce output, per spec.md §7's exit-code contract.
type Result struct {
	ELF   []byte
	Diags *diag.List
}

// Assemble runs the full pipeline over one source file's bytes.
func Assemble(file string, src []byte, stopOnFirst bool) Result {
	lx := lexer.New(file, src)
	lx.StopOnFirst(stopOnFirst)
	toks := lx.Tokenize()

	prog := parser.Parse(toks, stopOnFirst)
	if prog.Diags.HasErrors() {
		return Result{Diags: prog.Diags}
	}

	lr, ok := layout.Run(prog.Statements, prog.Diags)
	if !ok {
		return Result{Diags: prog.Diags}
	}

	text, data, bssSize, err := buildSections(prog.Statements, lr, prog.Diags)
	if err != nil {
		return Result{Diags: prog.Diags}
	}
	if prog.Diags.HasErrors() {
		return Result{Diags: prog.Diags}
	}

	img := elfwriter.Image{
		EntryVA: lr.EntryVA,
		TextVA:  lr.SectionVA[".text"],
		Text:    text,
		DataVA:  lr.SectionVA[".data"],
		Data:    data,
		BSSVA:   lr.SectionVA[".bss"],
		BSSSize: bssSize,
	}
	elf, err := elfwriter.Build(img)
	if err != nil {
		prog.Diags.Add(diag.Wrap(diag.ElfWriteError, diag.Pos{}, err, "writing ELF image"))
		return Result{Diags: prog.Diags}
	}

	return Result{ELF: elf, Diags: prog.Diags}
}

// symResolver adapts *symtab.Table to encoder.SymbolResolver: only a
// symbol that is actually defined resolves to an address, so a reference
// to an extern-only or never-defined name reports undefined the same way
// at encode time as it would at layout time.
type symResolver struct{ t *symtab.Table }

func (s symResolver) ResolveVA(name string) (uint64, bool) {
	sym, ok := s.t.Lookup(name)
	if !ok || !sym.Defined {
		return 0, false
	}
	return sym.VA, true
}
