package parser

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/lexer"
)

// arity gives the required operand count for mnemonics whose shape can't
// be inferred structurally (most instructions take 0, 1 or 2 operands;
// a handful are fixed at parse time so a bad count is reported early per
// spec.md §4.2).
var arity = map[string][2]int{
	"ret": {0, 0}, "syscall": {0, 0}, "nop": {0, 0}, "cqo": {0, 0}, "cdq": {0, 0},
	"push": {1, 1}, "pop": {1, 1}, "inc": {1, 1}, "dec": {1, 1}, "neg": {1, 1}, "not": {1, 1},
	"mul": {1, 1}, "imul": {1, 3}, "div": {1, 1}, "idiv": {1, 1},
	"jmp": {1, 1}, "call": {1, 1}, "int": {1, 1},
	"mov": {2, 2}, "lea": {2, 2}, "xchg": {2, 2},
	"add": {2, 2}, "sub": {2, 2}, "and": {2, 2}, "or": {2, 2}, "xor": {2, 2},
	"shl": {2, 2}, "sal": {2, 2}, "shr": {2, 2}, "sar": {2, 2},
	"cmp": {2, 2}, "test": {2, 2},
}

// Parse consumes a token stream (already produced by lexer.Tokenize) and
// returns the statement list plus accumulated diagnostics.
func Parse(tokens []lexer.Token, stopOnFirst bool) *Program {
	p := &parserState{toks: tokens, diags: diag.NewList(stopOnFirst)}
	p.run()
	return &Program{Statements: p.stmts, Diags: p.diags}
}

type parserState struct {
	toks  []lexer.Token
	pos   int
	stmts []Statement
	diags *diag.List
}

func (p *parserState) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parserState) atEnd() bool       { return p.cur().Kind == lexer.KindEOF }
func (p *parserState) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parserState) skipNewlines() {
	for p.cur().Kind == lexer.KindNewline {
		p.advance()
	}
}

func (p *parserState) error(kind diag.Kind, pos diag.Pos, format string, args ...interface{}) bool {
	return p.diags.Add(diag.New(kind, pos, format, args...))
}

// run drives one statement per line until EOF, matching spec.md §4.2's
// "recursive-descent, one statement per line" contract.
func (p *parserState) run() {
	for !p.atEnd() {
		if p.cur().Kind == lexer.KindNewline {
			p.advance()
			continue
		}
		if p.cur().Kind == lexer.KindError {
			if !p.error(diag.InvalidToken, p.cur().Pos, "%s", p.cur().Diag.Message) {
				return
			}
			p.advance()
			continue
		}
		if !p.statement() {
			return
		}
		// consume to end of line
		for p.cur().Kind != lexer.KindNewline && p.cur().Kind != lexer.KindEOF {
			p.advance()
		}
	}
}

// statement parses one line's worth of statement(s); a LabelDef at the
// start of a line is emitted and parsing continues with the remainder of
// the same line, exactly as spec.md §4.2 allows ("label: mov rax,1").
func (p *parserState) statement() bool {
	tok := p.cur()

	if tok.Kind == lexer.KindLabelDef {
		p.advance()
		p.stmts = append(p.stmts, Statement{Kind: StmtLabelDef, Pos: tok.Pos, Label: tok.Lexeme})
		if p.cur().Kind == lexer.KindNewline || p.cur().Kind == lexer.KindEOF {
			return true
		}
		return p.statement()
	}

	if tok.Kind != lexer.KindIdent {
		return p.error(diag.UnexpectedToken, tok.Pos, "expected a label, directive or mnemonic, got %q", tok.Lexeme)
	}

	word := strings.ToLower(tok.Lexeme)
	switch word {
	case "section":
		return p.parseSection()
	case "global":
		return p.parseNameList(StmtGlobal)
	case "extern":
		return p.parseNameList(StmtExtern)
	case "db", "dw", "dd", "dq":
		return p.parseData(word)
	case "equ":
		if n := len(p.stmts); n > 0 && p.stmts[n-1].Kind == StmtLabelDef && p.stmts[n-1].Pos.Line == tok.Pos.Line {
			label := p.stmts[n-1]
			p.stmts = p.stmts[:n-1]
			p.advance() // 'equ'
			expr, ok := p.parseEquExpr()
			if !ok {
				return false
			}
			p.stmts = append(p.stmts, Statement{Kind: StmtEqu, Pos: label.Pos, EquName: label.Label, Equ: expr})
			return true
		}
		return p.error(diag.UnexpectedToken, tok.Pos, "'equ' must follow a label definition")
	case "times":
		return p.parseTimes()
	}

	// `name equ expr` written without a colon after the name shows up as a
	// bare identifier followed by 'equ'; detect that shape directly.
	if p.peekIsEqu() {
		return p.parseEqu(tok)
	}

	return p.parseInstruction()
}

func (p *parserState) peekIsEqu() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	next := p.toks[p.pos+1]
	return next.Kind == lexer.KindIdent && strings.ToLower(next.Lexeme) == "equ"
}

func (p *parserState) parseSection() bool {
	kw := p.advance()
	name := p.cur()
	if name.Kind != lexer.KindIdent || !strings.HasPrefix(name.Lexeme, ".") {
		return p.error(diag.InvalidSection, kw.Pos, "expected a section name starting with '.'")
	}
	p.advance()
	p.stmts = append(p.stmts, Statement{Kind: StmtSectionSwitch, Pos: kw.Pos, SectionName: name.Lexeme})
	return true
}

func (p *parserState) parseNameList(kind StatementKind) bool {
	kw := p.advance()
	var names []string
	for {
		id := p.cur()
		if id.Kind != lexer.KindIdent {
			return p.error(diag.ExpectedToken, id.Pos, "expected an identifier in %s list", strings.ToLower(kw.Lexeme))
		}
		names = append(names, id.Lexeme)
		p.advance()
		if p.cur().Kind != lexer.KindComma {
			break
		}
		p.advance()
	}
	p.stmts = append(p.stmts, Statement{Kind: kind, Pos: kw.Pos, Names: names})
	return true
}

func (p *parserState) parseEqu(nameTok lexer.Token) bool {
	p.advance()     // name
	p.advance()     // 'equ'
	expr, ok := p.parseEquExpr()
	if !ok {
		return false
	}
	p.stmts = append(p.stmts, Statement{Kind: StmtEqu, Pos: nameTok.Pos, EquName: nameTok.Lexeme, Equ: expr})
	return true
}

func (p *parserState) parseEquExpr() (EquExpr, bool) {
	if p.cur().Kind == lexer.KindDollar {
		dollarPos := p.cur().Pos
		p.advance()
		if p.cur().Kind != lexer.KindMinus {
			p.error(diag.UnexpectedToken, dollarPos, "'equ' only supports '$ - label'")
			return EquExpr{}, false
		}
		p.advance()
		labelTok := p.cur()
		if labelTok.Kind != lexer.KindIdent {
			p.error(diag.ExpectedToken, labelTok.Pos, "expected a label after '$ -'")
			return EquExpr{}, false
		}
		p.advance()
		return EquExpr{IsDollarMinusLabel: true, Label: labelTok.Lexeme}, true
	}

	tok := p.cur()
	if tok.Kind == lexer.KindImmediate {
		p.advance()
		v, err := parseImmediate(tok)
		if err != nil {
			p.error(diag.InvalidToken, tok.Pos, "%v", err)
			return EquExpr{}, false
		}
		return EquExpr{IsImmediate: true, Value: v}, true
	}
	if tok.Kind == lexer.KindIdent {
		p.advance()
		return EquExpr{Label: tok.Lexeme}, true
	}
	p.error(diag.UnexpectedToken, tok.Pos, "invalid 'equ' expression")
	return EquExpr{}, false
}

func (p *parserState) parseTimes() bool {
	kw := p.advance()
	countTok := p.cur()
	if countTok.Kind != lexer.KindImmediate {
		return p.error(diag.ExpectedToken, countTok.Pos, "expected a repeat count after 'times'")
	}
	p.advance()
	count, err := parseImmediate(countTok)
	if err != nil {
		return p.error(diag.InvalidToken, countTok.Pos, "%v", err)
	}
	if !p.statement() {
		return false
	}
	inner := p.stmts[len(p.stmts)-1]
	p.stmts = p.stmts[:len(p.stmts)-1]
	p.stmts = append(p.stmts, Statement{Kind: StmtTimes, Pos: kw.Pos, Count: int(count), Inner: &inner})
	return true
}

func (p *parserState) parseData(word string) bool {
	kw := p.advance()
	unit := Unit1
	switch word {
	case "dw":
		unit = Unit2
	case "dd":
		unit = Unit4
	case "dq":
		unit = Unit8
	}

	var items []DataItem
	for {
		tok := p.cur()
		switch tok.Kind {
		case lexer.KindString:
			if unit != Unit1 {
				p.error(diag.UnknownDirective, tok.Pos, "strings are only valid in 'db'")
				return false
			}
			items = append(items, DataItem{IsString: true, String: []byte(tok.Lexeme)})
			p.advance()
		case lexer.KindImmediate:
			v, err := parseImmediate(tok)
			if err != nil {
				p.error(diag.InvalidToken, tok.Pos, "%v", err)
				return false
			}
			items = append(items, DataItem{Value: v})
			p.advance()
		case lexer.KindIdent:
			items = append(items, DataItem{IsLabel: true, Label: tok.Lexeme})
			p.advance()
		default:
			return p.error(diag.ExpectedToken, tok.Pos, "expected a value in %s directive", word)
		}
		if p.cur().Kind != lexer.KindComma {
			break
		}
		p.advance()
	}
	p.stmts = append(p.stmts, Statement{Kind: StmtData, Pos: kw.Pos, Unit: unit, Items: items})
	return true
}

func (p *parserState) parseInstruction() bool {
	mn := p.advance()
	mnemonic := strings.ToLower(mn.Lexeme)

	var operands []Operand
	for p.cur().Kind != lexer.KindNewline && p.cur().Kind != lexer.KindEOF {
		op, ok := p.parseOperand()
		if !ok {
			return false
		}
		operands = append(operands, op)
		if p.cur().Kind != lexer.KindComma {
			break
		}
		p.advance()
	}

	if lo, hi, ok := lookupArity(mnemonic); ok {
		if len(operands) < lo || len(operands) > hi {
			return p.error(diag.OperandCountMismatch, mn.Pos, "%s expects %s operand(s), got %d", mnemonic, arityString(lo, hi), len(operands))
		}
	} else if !isKnownMnemonic(mnemonic) {
		return p.error(diag.UnknownInstruction, mn.Pos, "unknown instruction %q", mn.Lexeme)
	}

	p.stmts = append(p.stmts, Statement{
		Kind: StmtInstruction,
		Pos:  mn.Pos,
		Instr: Instruction{
			Mnemonic: mnemonic,
			Operands: operands,
		},
	})
	return true
}

func lookupArity(mnemonic string) (int, int, bool) {
	a, ok := arity[mnemonic]
	if !ok {
		return 0, 0, false
	}
	return a[0], a[1], true
}

func arityString(lo, hi int) string {
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return strconv.Itoa(lo) + "-" + strconv.Itoa(hi)
}

// isKnownMnemonic accepts mnemonics that have no entry in the arity
// table, i.e. the conditional-jump family in isa.JccMnemonics. The
// zero-operand names it also lists have arity entries, so lookupArity
// matches them first.
func isKnownMnemonic(mnemonic string) bool {
	if isa.JccMnemonics[mnemonic] {
		return true
	}
	switch mnemonic {
	case "nop", "ret", "syscall", "cqo", "cdq":
		return true
	}
	return false
}

// parseImmediate decodes a lexer.KindImmediate token's lexeme using the
// base the lexer recorded.
func parseImmediate(tok lexer.Token) (int64, error) {
	lex := tok.Lexeme
	switch tok.NumBase {
	case -1: // character literal: lexeme is the single decoded byte
		if len(lex) == 0 {
			return 0, nil
		}
		return int64(lex[0]), nil
	case 16:
		return strconv.ParseInt(lex[2:], 16, 64)
	case 2:
		return strconv.ParseInt(lex[2:], 2, 64)
	case 8:
		return strconv.ParseInt(lex[2:], 8, 64)
	default:
		return strconv.ParseInt(lex, 10, 64)
	}
}
