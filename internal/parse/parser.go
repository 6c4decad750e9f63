// Package parse reads the textual form of the lifted IR used by the
// command line tools and by tests.
//
// The grammar is line-insensitive:
//
//	func main {
//	  block entry {
//	    instr 0x400000 4
//	    r0:32 = 0x10:32
//	    r1:32 = add(r0:32, 0x4:32)
//	    *mem:32(r0:32) = r1:32
//	    jump if ult(r1:32, 0x20:32) then entry else done
//	  }
//	  block done {
//	    ret
//	  }
//	}
//
// Registers rN live in the register domain in 64-bit slots. Intrinsics
// are written unknown:N, undefined:N, sp0:N, snapshot:N, iaddr:N and
// niaddr:N. Dereferences name their domain and size: *mem:32(addr).
package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reliftlabs/relift/internal/ir"
)

// registerSlot is the bit stride between consecutive rN registers.
const registerSlot = 64

// Parser consumes tokens produced by the lexer and builds IR functions.
type Parser struct {
	tokens  []Token
	current int

	blocks map[string]*ir.BasicBlock
	used   map[string]int // referenced labels and the line of first use
	instr  *ir.Instruction
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// File parses a complete textual IR input into functions.
func File(input string) ([]*ir.Function, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse processes all tokens and returns the parsed functions.
func (p *Parser) Parse() ([]*ir.Function, error) {
	var funcs []*ir.Function
	for p.peek().Type != TokenEOF {
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	return funcs, nil
}

func (p *Parser) peek() Token { return p.tokens[p.current] }

func (p *Parser) next() Token {
	t := p.tokens[p.current]
	if t.Type != TokenEOF {
		p.current++
	}
	return t
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	t := p.next()
	if t.Type != tt {
		return t, fmt.Errorf("line %d: expected %s, got %q", t.Line, what, t.Value)
	}
	return t, nil
}

func (p *Parser) expectKeyword(kw string) error {
	t := p.next()
	if t.Type != TokenIdent || t.Value != kw {
		return fmt.Errorf("line %d: expected %q, got %q", t.Line, kw, t.Value)
	}
	return nil
}

func (p *Parser) parseFunc() (*ir.Function, error) {
	if err := p.expectKeyword("func"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLBrace, "{"); err != nil {
		return nil, err
	}

	p.blocks = make(map[string]*ir.BasicBlock)
	p.used = make(map[string]int)
	p.instr = nil

	fn := ir.NewFunction(name.Value)
	for p.peek().Type != TokenRBrace {
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		fn.Append(block)
	}
	p.next() // consume }

	for label, line := range p.used {
		if !p.isDeclared(fn, label) {
			return nil, fmt.Errorf("line %d: jump to undeclared block %q", line, label)
		}
	}
	return fn, nil
}

func (p *Parser) isDeclared(fn *ir.Function, label string) bool {
	for _, b := range fn.BasicBlocks() {
		if b.Name() == label {
			return true
		}
	}
	return false
}

func (p *Parser) block(label string) *ir.BasicBlock {
	b := p.blocks[label]
	if b == nil {
		b = ir.NewBasicBlock(label)
		p.blocks[label] = b
	}
	return b
}

func (p *Parser) parseBlock() (*ir.BasicBlock, error) {
	if err := p.expectKeyword("block"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenIdent, "block label")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLBrace, "{"); err != nil {
		return nil, err
	}

	block := p.block(name.Value)
	for p.peek().Type != TokenRBrace {
		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			st.SetInstruction(p.instr)
			block.Append(st)
		}
	}
	p.next() // consume }
	return block, nil
}

func (p *Parser) parseStatement() (*ir.Statement, error) {
	t := p.peek()
	if t.Type == TokenIdent {
		switch t.Value {
		case "asm":
			p.next()
			return ir.NewInlineAssembly(), nil
		case "ret":
			p.next()
			return ir.NewReturn(), nil
		case "call":
			p.next()
			target, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return ir.NewCall(target), nil
		case "touch", "kill":
			p.next()
			term, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			access := ir.AccessRead
			if t.Value == "kill" {
				access = ir.AccessKill
			}
			return ir.NewTouch(term, access), nil
		case "instr":
			p.next()
			return nil, p.parseInstr()
		case "jump":
			p.next()
			return p.parseJump()
		}
	}

	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	switch left.(type) {
	case *ir.MemoryAccess, *ir.Dereference:
	default:
		return nil, fmt.Errorf("line %d: left side of assignment must denote memory", t.Line)
	}
	if _, err := p.expect(TokenEqual, "="); err != nil {
		return nil, err
	}
	right, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ir.NewAssignment(left, right), nil
}

func (p *Parser) parseInstr() error {
	addr, err := p.parseNumber("instruction address")
	if err != nil {
		return err
	}
	size, err := p.parseNumber("instruction size")
	if err != nil {
		return err
	}
	p.instr = &ir.Instruction{Addr: addr, Size: size}
	return nil
}

func (p *Parser) parseNumber(what string) (uint64, error) {
	t, err := p.expect(TokenNumber, what)
	if err != nil {
		return 0, err
	}
	return parseUint(t)
}

func parseUint(t Token) (uint64, error) {
	v, err := strconv.ParseUint(t.Value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad number %q", t.Line, t.Value)
	}
	return v, nil
}

func (p *Parser) parseJump() (*ir.Statement, error) {
	t := p.peek()

	use := func(label Token) {
		if _, seen := p.used[label.Value]; !seen {
			p.used[label.Value] = label.Line
		}
	}

	// jump if <cond> then <label> else <label>
	if t.Type == TokenIdent && t.Value == "if" {
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		thenLabel, err := p.expect(TokenIdent, "block label")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("else"); err != nil {
			return nil, err
		}
		elseLabel, err := p.expect(TokenIdent, "block label")
		if err != nil {
			return nil, err
		}
		use(thenLabel)
		use(elseLabel)
		return ir.NewJump(cond,
			&ir.JumpTarget{Block: p.block(thenLabel.Value)},
			&ir.JumpTarget{Block: p.block(elseLabel.Value)}), nil
	}

	// A bare label is a direct jump; anything else is a computed target.
	if t.Type == TokenIdent && !p.looksLikeExpr() {
		p.next()
		use(t)
		return ir.NewJump(nil, &ir.JumpTarget{Block: p.block(t.Value)}, nil), nil
	}

	addr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ir.NewJump(nil, &ir.JumpTarget{Address: addr}, nil), nil
}

// looksLikeExpr reports whether the identifier at the cursor starts an
// expression rather than naming a block.
func (p *Parser) looksLikeExpr() bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.current+1]
	return next.Type == TokenColon || next.Type == TokenLParen
}

func (p *Parser) parseExpr() (ir.Term, error) {
	t := p.next()
	switch t.Type {
	case TokenNumber:
		value, err := parseUint(t)
		if err != nil {
			return nil, err
		}
		size, err := p.parseSizeSuffix()
		if err != nil {
			return nil, err
		}
		return ir.NewConstant(value, size), nil

	case TokenStar:
		return p.parseDereference()

	case TokenIdent:
		return p.parseIdentExpr(t)
	}
	return nil, fmt.Errorf("line %d: expected expression, got %q", t.Line, t.Value)
}

func (p *Parser) parseSizeSuffix() (int64, error) {
	if _, err := p.expect(TokenColon, "size suffix"); err != nil {
		return 0, err
	}
	t, err := p.expect(TokenNumber, "bit size")
	if err != nil {
		return 0, err
	}
	size, err := parseUint(t)
	if err != nil {
		return 0, err
	}
	if size == 0 || size > 64 {
		return 0, fmt.Errorf("line %d: bit size %d out of range", t.Line, size)
	}
	return int64(size), nil
}

var domains = map[string]ir.MemoryDomain{
	"mem":   ir.DomainMemory,
	"stack": ir.DomainStack,
	"reg":   ir.DomainRegisters,
	"phys":  ir.DomainPhysical,
}

func (p *Parser) parseDereference() (ir.Term, error) {
	t, err := p.expect(TokenIdent, "memory domain")
	if err != nil {
		return nil, err
	}
	domain, ok := domains[t.Value]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown memory domain %q", t.Line, t.Value)
	}
	size, err := p.parseSizeSuffix()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, err
	}
	addr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return ir.NewDereference(domain, addr, size), nil
}

var intrinsics = map[string]ir.IntrinsicKind{
	"unknown":   ir.IntrinsicUnknown,
	"undefined": ir.IntrinsicUndefined,
	"sp0":       ir.IntrinsicZeroStackOffset,
	"snapshot":  ir.IntrinsicReachingSnapshot,
	"iaddr":     ir.IntrinsicInstructionAddress,
	"niaddr":    ir.IntrinsicNextInstructionAddress,
}

var unaryOps = map[string]ir.UnaryKind{
	"not":   ir.Not,
	"neg":   ir.Negate,
	"sext":  ir.SignExtend,
	"zext":  ir.ZeroExtend,
	"trunc": ir.Truncate,
}

var binaryOps = map[string]ir.BinaryKind{
	"add":  ir.Add,
	"sub":  ir.Sub,
	"mul":  ir.Mul,
	"sdiv": ir.SignedDiv,
	"srem": ir.SignedRem,
	"udiv": ir.UnsignedDiv,
	"urem": ir.UnsignedRem,
	"and":  ir.And,
	"or":   ir.Or,
	"xor":  ir.Xor,
	"shl":  ir.Shl,
	"shr":  ir.Shr,
	"sar":  ir.Sar,
	"eq":   ir.Equal,
	"slt":  ir.SignedLess,
	"sle":  ir.SignedLessOrEqual,
	"ult":  ir.UnsignedLess,
	"ule":  ir.UnsignedLessOrEqual,
}

func isComparison(op ir.BinaryKind) bool {
	switch op {
	case ir.Equal, ir.SignedLess, ir.SignedLessOrEqual, ir.UnsignedLess, ir.UnsignedLessOrEqual:
		return true
	}
	return false
}

func (p *Parser) parseIdentExpr(t Token) (ir.Term, error) {
	if kind, ok := intrinsics[t.Value]; ok {
		size, err := p.parseSizeSuffix()
		if err != nil {
			return nil, err
		}
		return ir.NewIntrinsic(kind, size), nil
	}

	if op, ok := unaryOps[t.Value]; ok {
		return p.parseUnary(op)
	}

	if op, ok := binaryOps[t.Value]; ok {
		left, right, err := p.parseArgPair()
		if err != nil {
			return nil, err
		}
		size := left.Size()
		if isComparison(op) {
			size = 1
		}
		return ir.NewBinary(op, left, right, size), nil
	}

	if t.Value == "choice" {
		preferred, fallback, err := p.parseArgPair()
		if err != nil {
			return nil, err
		}
		return ir.NewChoice(preferred, fallback), nil
	}

	if reg, ok := strings.CutPrefix(t.Value, "r"); ok {
		n, err := strconv.ParseUint(reg, 10, 32)
		if err == nil {
			size, err := p.parseSizeSuffix()
			if err != nil {
				return nil, err
			}
			loc := ir.NewMemoryLocation(ir.DomainRegisters, int64(n)*registerSlot, size)
			return ir.NewMemoryAccess(loc), nil
		}
	}

	return nil, fmt.Errorf("line %d: unknown expression %q", t.Line, t.Value)
}

// parseUnary handles not(x), neg(x) and the sized sext:N(x), zext:N(x),
// trunc:N(x).
func (p *Parser) parseUnary(op ir.UnaryKind) (ir.Term, error) {
	var size int64
	if p.peek().Type == TokenColon {
		var err error
		size, err = p.parseSizeSuffix()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	if size == 0 {
		size = operand.Size()
	}
	return ir.NewUnary(op, operand, size), nil
}

func (p *Parser) parseArgPair() (ir.Term, ir.Term, error) {
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, nil, err
	}
	left, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(TokenComma, ","); err != nil {
		return nil, nil, err
	}
	right, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}
