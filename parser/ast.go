// Package parser groups the lexer's token stream into statements, the way
// spec.md §4.2 describes: one statement per source line, recursive-descent,
// arity-checked but not yet shape-checked (the encoder does that).
package parser

import (
	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/isa"
)

// OperandKind tags the variant an Operand holds.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandImmediate
	OperandLabel
	OperandString
	OperandMemory
)

// Operand is the tagged union from spec.md §3.
type Operand struct {
	Kind OperandKind
	Pos  diag.Pos

	Register string // OperandRegister

	ImmValue int64  // OperandImmediate
	ImmBase  int    // OperandImmediate: 10/16/2/8, or -1 for a character literal
	ImmLabel string // set instead of ImmValue when the immediate is `label` itself (mov r64, imm64 with a label)

	LabelName string // OperandLabel

	StringValue []byte // OperandString, already escape-decoded

	Mem Memory // OperandMemory
}

// Memory is a `[base + index*scale + disp]` operand. Scale defaults to 1.
type Memory struct {
	Base       string // register name, or "" if absent
	Index      string // register name, or "" if absent
	Scale      int    // 1, 2, 4 or 8
	HasDisp    bool
	DispValue  int64
	DispLabel  string // set instead of DispValue for a label displacement
	RIPRelative bool  // true whenever the displacement is a label, as in `[label]`; `[rel label]` is not parsed
	SizeHint   isa.Width // from a leading byte/word/dword/qword keyword; WidthNone if absent
}

// StatementKind tags the variant a Statement holds.
type StatementKind int

const (
	StmtSectionSwitch StatementKind = iota
	StmtGlobal
	StmtExtern
	StmtLabelDef
	StmtData
	StmtEqu
	StmtTimes
	StmtInstruction
	StmtEmpty
)

// DataUnit is the element size of a data directive (db/dw/dd/dq = 1/2/4/8).
type DataUnit int

const (
	Unit1 DataUnit = 1
	Unit2 DataUnit = 2
	Unit4 DataUnit = 4
	Unit8 DataUnit = 8
)

// DataItem is one comma-separated item inside a db/dw/dd/dq directive.
type DataItem struct {
	IsString bool
	String   []byte
	IsLabel  bool
	Label    string
	Value    int64
}

// EquExpr is the restricted expression grammar spec.md §4.2 allows for
// `equ`: a bare immediate, a bare label, or `$ - label`.
type EquExpr struct {
	IsDollarMinusLabel bool
	Label              string // used both for a bare label and for the rhs of `$ - label`
	Value              int64
	IsImmediate        bool
}

// Instruction is one decoded mnemonic + operand list, still carrying its
// source line for diagnostics; EncodedBytes is filled in with the
// encoder's output during the emission pass (§4.3/§4.4).
type Instruction struct {
	Mnemonic     string
	SizeSuffix   string // optional explicit "b"/"w"/"d"/"q"-style hint, rarely used in Intel syntax
	Operands     []Operand
	EncodedBytes []byte
}

// Statement is one parsed line of source, exactly as spec.md §3 defines it.
type Statement struct {
	Kind StatementKind
	Pos  diag.Pos

	// StmtSectionSwitch
	SectionName string

	// StmtGlobal / StmtExtern
	Names []string

	// StmtLabelDef
	Label string

	// StmtData
	Unit  DataUnit
	Items []DataItem

	// StmtEqu
	EquName string
	Equ     EquExpr

	// StmtTimes
	Count int
	Inner *Statement

	// StmtInstruction
	Instr Instruction
}

// Program is the full ordered statement list plus accumulated diagnostics
// produced by Parse, mirroring spec.md §4.2's contract.
type Program struct {
	Statements []Statement
	Diags      *diag.List
}
