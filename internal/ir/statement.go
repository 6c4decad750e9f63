package ir

// Instruction is the machine instruction a statement was lifted from.
// Size is in bytes.
type Instruction struct {
	Addr uint64
	Size uint64
}

// StatementKind discriminates the statement variants.
type StatementKind int

const (
	StmtInlineAssembly StatementKind = iota
	StmtAssignment
	StmtJump
	StmtCall
	StmtReturn
	StmtTouch
	StmtCallback
)

// JumpTarget is either a resolved basic block, a computed address term,
// or both.
type JumpTarget struct {
	Address Term
	Block   *BasicBlock
}

// Statement is a single operation of a basic block. The set of populated
// fields depends on the kind; use the constructors.
type Statement struct {
	kind  StatementKind
	block *BasicBlock
	instr *Instruction

	left, right  Term // assignment
	condition    Term // jump
	thenTarget   *JumpTarget
	elseTarget   *JumpTarget
	target       Term   // call
	term         Term   // touch
	callback     func() // callback
}

// NewInlineAssembly returns a statement with effects opaque to analysis.
func NewInlineAssembly() *Statement {
	return &Statement{kind: StmtInlineAssembly}
}

// NewAssignment returns the statement left = right. The left term is
// attached as a write, everything else as reads.
func NewAssignment(left, right Term) *Statement {
	st := &Statement{kind: StmtAssignment, left: left, right: right}
	right.attach(st, AccessRead)
	left.attach(st, AccessWrite)
	left.setSource(right)
	return st
}

// NewJump returns a jump with an optional condition and up to two targets.
func NewJump(condition Term, thenTarget, elseTarget *JumpTarget) *Statement {
	st := &Statement{kind: StmtJump, condition: condition, thenTarget: thenTarget, elseTarget: elseTarget}
	if condition != nil {
		condition.attach(st, AccessRead)
	}
	if thenTarget != nil && thenTarget.Address != nil {
		thenTarget.Address.attach(st, AccessRead)
	}
	if elseTarget != nil && elseTarget.Address != nil {
		elseTarget.Address.attach(st, AccessRead)
	}
	return st
}

// NewCall returns a call to the given target address.
func NewCall(target Term) *Statement {
	st := &Statement{kind: StmtCall, target: target}
	target.attach(st, AccessRead)
	return st
}

// NewReturn returns a return statement.
func NewReturn() *Statement {
	return &Statement{kind: StmtReturn}
}

// NewTouch returns a statement that evaluates term with the given access,
// forcing analysis of an otherwise unused term. A kill access discards
// the reaching definitions of the term's location.
func NewTouch(term Term, access AccessType) *Statement {
	st := &Statement{kind: StmtTouch, term: term}
	term.attach(st, access)
	return st
}

// NewCallback returns a statement that invokes fn when executed by the
// analysis, letting collaborators hook side effects into a pass.
func NewCallback(fn func()) *Statement {
	return &Statement{kind: StmtCallback, callback: fn}
}

func (s *Statement) Kind() StatementKind       { return s.kind }
func (s *Statement) BasicBlock() *BasicBlock   { return s.block }
func (s *Statement) Instruction() *Instruction { return s.instr }

// SetInstruction records the machine instruction this statement was
// lifted from.
func (s *Statement) SetInstruction(instr *Instruction) { s.instr = instr }

func (s *Statement) Left() Term              { return s.left }
func (s *Statement) Right() Term             { return s.right }
func (s *Statement) Condition() Term         { return s.condition }
func (s *Statement) ThenTarget() *JumpTarget { return s.thenTarget }
func (s *Statement) ElseTarget() *JumpTarget { return s.elseTarget }
func (s *Statement) Target() Term            { return s.target }
func (s *Statement) Term() Term              { return s.term }
func (s *Statement) Callback() func()        { return s.callback }

func (s *Statement) String() string {
	switch s.kind {
	case StmtInlineAssembly:
		return "asm"
	case StmtAssignment:
		return s.left.String() + " = " + s.right.String()
	case StmtJump:
		out := "jump"
		if s.condition != nil {
			out += " if " + s.condition.String()
		}
		for _, t := range []*JumpTarget{s.thenTarget, s.elseTarget} {
			switch {
			case t == nil:
			case t.Block != nil:
				out += " " + t.Block.Name()
			case t.Address != nil:
				out += " " + t.Address.String()
			}
		}
		return out
	case StmtCall:
		return "call " + s.target.String()
	case StmtReturn:
		return "ret"
	case StmtTouch:
		if s.term.Access() == AccessKill {
			return "kill " + s.term.String()
		}
		return "touch " + s.term.String()
	case StmtCallback:
		return "callback"
	default:
		return "statement(?)"
	}
}

// Detach removes the statement from its basic block. Detached statements
// make their terms disappear from the analysis results.
func (s *Statement) Detach() {
	if s.block == nil {
		return
	}
	s.block.remove(s)
	s.block = nil
}
