package parser

import (
	"strings"

	"github.com/Urethramancer/x64asm/diag"
	"github.com/Urethramancer/x64asm/isa"
	"github.com/Urethramancer/x64asm/lexer"
)

// sizeHints maps a leading NASM size specifier to the width it pins a
// memory operand to, for forms like `mov dword [rbx], 1` where no
// register operand is present to infer the width from.
var sizeHints = map[string]isa.Width{
	"byte":  isa.Width8,
	"word":  isa.Width16,
	"dword": isa.Width32,
	"qword": isa.Width64,
}

// parseOperand parses one operand per spec.md §4.2's operand grammar:
// register, bracketed memory reference, bare label, or string/immediate
// literal.
func (p *parserState) parseOperand() (Operand, bool) {
	tok := p.cur()

	switch tok.Kind {
	case lexer.KindLBracket:
		return p.parseMemory()

	case lexer.KindMinus:
		p.advance()
		imm, ok := p.expectImmediate()
		if !ok {
			return Operand{}, false
		}
		imm.ImmValue = -imm.ImmValue
		imm.Pos = tok.Pos
		return imm, true

	case lexer.KindImmediate:
		return p.expectImmediate()

	case lexer.KindString:
		p.advance()
		return Operand{Kind: OperandString, Pos: tok.Pos, StringValue: []byte(tok.Lexeme)}, true

	case lexer.KindIdent:
		lower := strings.ToLower(tok.Lexeme)
		if hint, ok := sizeHints[lower]; ok {
			p.advance()
			if strings.ToLower(p.cur().Lexeme) == "ptr" && p.cur().Kind == lexer.KindIdent {
				p.advance()
			}
			if p.cur().Kind != lexer.KindLBracket {
				p.error(diag.ExpectedToken, p.cur().Pos, "expected '[' after size specifier %q", tok.Lexeme)
				return Operand{}, false
			}
			op, ok := p.parseMemory()
			if !ok {
				return Operand{}, false
			}
			op.Mem.SizeHint = hint
			return op, true
		}
		if _, ok := isa.Lookup(lower); ok {
			p.advance()
			return Operand{Kind: OperandRegister, Pos: tok.Pos, Register: lower}, true
		}
		p.advance()
		return Operand{Kind: OperandLabel, Pos: tok.Pos, LabelName: tok.Lexeme}, true

	default:
		p.error(diag.UnexpectedToken, tok.Pos, "unexpected token %q in operand position", tok.Lexeme)
		return Operand{}, false
	}
}

func (p *parserState) expectImmediate() (Operand, bool) {
	tok := p.cur()
	if tok.Kind != lexer.KindImmediate {
		p.error(diag.UnexpectedToken, tok.Pos, "expected an immediate value, got %q", tok.Lexeme)
		return Operand{}, false
	}
	p.advance()
	v, err := parseImmediate(tok)
	if err != nil {
		p.error(diag.InvalidToken, tok.Pos, "invalid numeric literal %q: %v", tok.Lexeme, err)
		return Operand{}, false
	}
	return Operand{Kind: OperandImmediate, Pos: tok.Pos, ImmValue: v, ImmBase: tok.NumBase}, true
}

// parseMemory parses `[ expr ]` where expr is a sum/difference of at most
// one base register, at most one scaled index register, and at most one
// displacement (immediate or label), in any order, per spec.md §4.2.
func (p *parserState) parseMemory() (Operand, bool) {
	open := p.cur()
	p.advance() // '['

	var mem Memory
	haveBase, haveIndex := false, false
	sign := int64(1)

	for {
		tok := p.cur()
		switch tok.Kind {
		case lexer.KindMinus:
			sign = -1
			p.advance()
			continue
		case lexer.KindPlus:
			sign = 1
			p.advance()
			continue
		case lexer.KindIdent:
			lower := strings.ToLower(tok.Lexeme)
			if reg, ok := isa.Lookup(lower); ok {
				p.advance()
				scale := 1
				isIndex := false
				if p.cur().Kind == lexer.KindStar {
					p.advance()
					scaleTok := p.cur()
					if scaleTok.Kind != lexer.KindImmediate {
						p.error(diag.InvalidMemoryReference, scaleTok.Pos, "expected a scale after '*'")
						return Operand{}, false
					}
					p.advance()
					sv, err := parseImmediate(scaleTok)
					if err != nil || (sv != 1 && sv != 2 && sv != 4 && sv != 8) {
						p.error(diag.InvalidMemoryReference, scaleTok.Pos, "invalid scale %q (must be 1, 2, 4 or 8)", scaleTok.Lexeme)
						return Operand{}, false
					}
					scale = int(sv)
					isIndex = true
				}
				if reg.Width != isa.Width64 && reg.Width != isa.Width32 {
					p.error(diag.InvalidMemoryReference, tok.Pos, "memory base/index register %q must be 32 or 64 bits", tok.Lexeme)
					return Operand{}, false
				}
				if isIndex {
					if haveIndex {
						p.error(diag.InvalidMemoryReference, tok.Pos, "two index registers in memory operand")
						return Operand{}, false
					}
					mem.Index = lower
					mem.Scale = scale
					haveIndex = true
				} else if !haveBase {
					mem.Base = lower
					haveBase = true
				} else if !haveIndex {
					mem.Index = lower
					mem.Scale = 1
					haveIndex = true
				} else {
					p.error(diag.InvalidMemoryReference, tok.Pos, "too many registers in memory operand")
					return Operand{}, false
				}
				sign = 1
				continue
			}
			// bare label as displacement (RIP-relative form)
			p.advance()
			if mem.HasDisp {
				p.error(diag.InvalidMemoryReference, tok.Pos, "multiple displacements in memory operand")
				return Operand{}, false
			}
			mem.HasDisp = true
			mem.DispLabel = tok.Lexeme
			mem.RIPRelative = true
			sign = 1
			continue
		case lexer.KindImmediate:
			p.advance()
			v, err := parseImmediate(tok)
			if err != nil {
				p.error(diag.InvalidToken, tok.Pos, "%v", err)
				return Operand{}, false
			}
			if mem.HasDisp {
				p.error(diag.InvalidMemoryReference, tok.Pos, "multiple displacements in memory operand")
				return Operand{}, false
			}
			mem.HasDisp = true
			mem.DispValue = sign * v
			sign = 1
			continue
		case lexer.KindRBracket:
			p.advance()
			if mem.Index != "" && strings.HasPrefix(mem.Index, "rsp") {
				p.error(diag.InvalidMemoryReference, open.Pos, "rsp cannot be used as an index register")
				return Operand{}, false
			}
			return Operand{Kind: OperandMemory, Pos: open.Pos, Mem: mem}, true
		default:
			p.error(diag.InvalidMemoryReference, tok.Pos, "unexpected token %q in memory operand", tok.Lexeme)
			return Operand{}, false
		}
	}
}
