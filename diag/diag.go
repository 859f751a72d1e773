// Package diag implements the diagnostic taxonomy from spec.md §7: a flat,
// accumulated list of located errors plus the fatal/non-fatal split that
// governs whether the pipeline driver can keep going after one is seen.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one diagnostic category from spec.md §7's taxonomy table.
type Kind int

const (
	// Lexer
	UnexpectedCharacter Kind = iota
	UnclosedString
	InvalidToken

	// Parser
	UnexpectedToken
	ExpectedToken
	InvalidSection
	UnknownDirective
	UnknownInstruction
	InvalidMemoryReference

	// Symbol
	DuplicateLabel
	UndefinedLabel
	MalformedLabel

	// Encoder
	InvalidOperandCombination
	InvalidAddressingMode
	OperandCountMismatch

	// Layout/Writer (fatal)
	MissingEntryPoint
	SectionError
	ElfWriteError
	UnsupportedFormat

	// I/O (fatal)
	FileError

	// Anywhere (fatal)
	InternalError
)

var names = map[Kind]string{
	UnexpectedCharacter:       "UnexpectedCharacter",
	UnclosedString:            "UnclosedString",
	InvalidToken:              "InvalidToken",
	UnexpectedToken:           "UnexpectedToken",
	ExpectedToken:             "ExpectedToken",
	InvalidSection:            "InvalidSection",
	UnknownDirective:          "UnknownDirective",
	UnknownInstruction:        "UnknownInstruction",
	InvalidMemoryReference:    "InvalidMemoryReference",
	DuplicateLabel:            "DuplicateLabel",
	UndefinedLabel:            "UndefinedLabel",
	MalformedLabel:            "MalformedLabel",
	InvalidOperandCombination: "InvalidOperandCombination",
	InvalidAddressingMode:     "InvalidAddressingMode",
	OperandCountMismatch:      "OperandCountMismatch",
	MissingEntryPoint:         "MissingEntryPoint",
	SectionError:              "SectionError",
	ElfWriteError:             "ElfWriteError",
	UnsupportedFormat:         "UnsupportedFormat",
	FileError:                 "FileError",
	InternalError:             "InternalError",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UnknownKind"
}

// Fatal reports whether a diagnostic of this kind must stop the pipeline
// immediately, per spec.md §7's taxonomy.
func (k Kind) Fatal() bool {
	switch k {
	case MissingEntryPoint, SectionError, ElfWriteError, UnsupportedFormat, FileError, InternalError:
		return true
	default:
		return false
	}
}

// Pos is a source location: file name plus 1-based line and column.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" && p.Line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Diagnostic is one located error with an optional help/note and an
// optional wrapped cause, mirroring spec.md §7's "location, message, help,
// note, optional sub-errors" shape.
type Diagnostic struct {
	Kind    Kind
	Pos     Pos
	Message string
	Help    string
	Note    string
	Cause   error
}

func (d *Diagnostic) Error() string {
	if d.Pos.Line != 0 {
		return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As and to
// github.com/pkg/errors' Cause().
func (d *Diagnostic) Unwrap() error { return d.Cause }

// New builds a non-fatal-looking diagnostic; callers set Help/Note via
// the With* helpers before appending it to a List.
func New(kind Kind, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// WithHelp attaches a help string and returns the same diagnostic for
// chaining, e.g. diag.New(...).WithHelp("...").
func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

// WithNote attaches a note string and returns the same diagnostic.
func (d *Diagnostic) WithNote(note string) *Diagnostic {
	d.Note = note
	return d
}

// Wrap turns a fatal diagnostic into one with a causal chain, using
// github.com/pkg/errors so the top-level driver can print the full chain
// with %+v when it wants a stack trace. This is the "sub-errors" support
// spec.md §7 calls optional.
func Wrap(kind Kind, pos Pos, cause error, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
		Cause:   errors.WithStack(cause),
	}
}

// List accumulates diagnostics through the pipeline in source order, as
// required by spec.md §5's ordering guarantee.
type List struct {
	items []*Diagnostic
	stop  bool // stop-on-first-error mode
}

// NewList creates an accumulator; stopOnFirst mirrors the CLI's -s flag.
func NewList(stopOnFirst bool) *List {
	return &List{stop: stopOnFirst}
}

// Add appends a diagnostic. It returns false when stop-on-first-error is
// active and this was the first diagnostic added, signalling the caller
// to abort the current stage.
func (l *List) Add(d *Diagnostic) bool {
	l.items = append(l.items, d)
	return !(l.stop && len(l.items) >= 1)
}

// HasErrors reports whether any diagnostic was recorded.
func (l *List) HasErrors() bool { return len(l.items) > 0 }

// Items returns the accumulated diagnostics in the order they were added,
// which is source order per spec.md §5.
func (l *List) Items() []*Diagnostic { return l.items }

// First returns the first diagnostic added, or nil.
func (l *List) First() *Diagnostic {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}
