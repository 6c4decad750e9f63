package dflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/reliftlabs/relift/internal/arch"
	"github.com/reliftlabs/relift/internal/ir"
	"github.com/reliftlabs/relift/internal/ir/cfg"
)

const (
	// maxSweeps bounds the fixed-point iteration on pathological inputs.
	maxSweeps = 30
	// stableSweeps is how many consecutive unchanged sweeps are required
	// before the iteration is considered converged. One unchanged sweep
	// can be a coincidence in cyclic graphs.
	stableSweeps = 3
)

// Analyzer computes dataflow facts for one function by abstract
// interpretation over the bit-precise value lattice.
type Analyzer struct {
	dataflow *Dataflow
	arch     arch.Architecture
	logger   *zap.Logger
}

// NewAnalyzer returns an analyzer accumulating facts into dataflow.
// A nil logger disables diagnostics.
func NewAnalyzer(dataflow *Dataflow, architecture arch.Architecture, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{dataflow: dataflow, arch: architecture, logger: logger}
}

// Dataflow returns the fact store the analyzer writes to.
func (a *Analyzer) Dataflow() *Dataflow { return a.dataflow }

// Analyze runs the abstract interpretation over fn's basic blocks until
// the reaching definitions are stable for several consecutive sweeps.
// The context is polled once per sweep; its error aborts the analysis
// and leaves the accumulated facts in place.
func (a *Analyzer) Analyze(ctx context.Context, fn *ir.Function) error {
	if fn == nil {
		panic("dflow: nil function")
	}

	// A definition no longer covering its chunk has moved; drop it.
	notCovered := func(mloc ir.MemoryLocation, term ir.Term) bool {
		return !a.dataflow.MemoryLocation(term).Covers(mloc)
	}

	graph := cfg.New(fn.BasicBlocks())

	// Definitions reaching the end of each basic block.
	out := make(map[*ir.BasicBlock]ReachingDefinitions)

	niterations := 0
	nfixpoints := 0

	for nfixpoints < stableSweeps {
		nfixpoints++

		for _, block := range fn.BasicBlocks() {
			ec := NewExecutionContext()

			for _, pred := range graph.Predecessors(block) {
				ec.definitions.Merge(out[pred])
			}

			ec.definitions.FilterOut(notCovered)

			for _, st := range block.Statements() {
				a.executeStatement(st, ec)
			}

			stored := out[block]
			if !stored.Equal(ec.definitions) {
				out[block] = ec.definitions
				nfixpoints = 0
			}
		}

		// Term addresses may have changed during the sweep; re-filter the
		// per-term definitions.
		for _, defs := range a.dataflow.definitions {
			defs.FilterOut(notCovered)
		}

		niterations++
		if niterations >= maxSweeps {
			a.logger.Warn("fixed point not reached, giving up",
				zap.String("function", fn.Name()),
				zap.Int("sweeps", niterations))
			break
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	// Drop facts about terms whose statements have been detached.
	disappeared := func(t ir.Term) bool {
		st := t.Statement()
		return st == nil || st.BasicBlock() == nil
	}
	for _, defs := range a.dataflow.definitions {
		defs.FilterOut(func(_ ir.MemoryLocation, t ir.Term) bool {
			return disappeared(t)
		})
	}
	a.dataflow.removeWhere(disappeared)

	return nil
}

func (a *Analyzer) executeStatement(st *ir.Statement, ec *ExecutionContext) {
	switch st.Kind() {
	case ir.StmtInlineAssembly:
		// Strictly the reaching definitions should be cleared here, as
		// the assembly's effects are opaque. Keeping them usually leads
		// to better decompiled output.
	case ir.StmtAssignment:
		// The left side may read definitions the right side created.
		a.executeTerm(st.Right(), ec)
		a.executeTerm(st.Left(), ec)
	case ir.StmtJump:
		if cond := st.Condition(); cond != nil {
			a.executeTerm(cond, ec)
		}
		if t := st.ThenTarget(); t != nil && t.Address != nil {
			a.executeTerm(t.Address, ec)
		}
		if t := st.ElseTarget(); t != nil && t.Address != nil {
			a.executeTerm(t.Address, ec)
		}
	case ir.StmtCall:
		a.executeTerm(st.Target(), ec)
	case ir.StmtReturn:
	case ir.StmtTouch:
		a.executeTerm(st.Term(), ec)
	case ir.StmtCallback:
		st.Callback()()
	default:
		a.logger.Warn("unknown statement kind", zap.Int("kind", int(st.Kind())))
	}
}

func (a *Analyzer) executeTerm(t ir.Term, ec *ExecutionContext) {
	switch t := t.(type) {
	case *ir.Constant:
		v := a.dataflow.Value(t)
		v.SetAbstractValue(Concrete(t.Size(), t.Value()))
		v.MakeNotStackOffset()
		v.MakeNotProduct()

	case *ir.Intrinsic:
		a.executeIntrinsic(t, ec)

	case *ir.MemoryAccess:
		a.setMemoryLocation(t, t.Location(), ec)

	case *ir.Dereference:
		a.executeTerm(t.Address(), ec)

		addrValue := a.dataflow.Value(t.Address())
		switch av := addrValue.AbstractValue(); {
		case av.IsConcrete():
			addr := int64(av.AsConcrete())
			if t.Domain() == ir.DomainMemory {
				// Memory addresses are in bytes; locations are in bits.
				addr *= 8
			}
			a.setMemoryLocation(t, ir.NewMemoryLocation(t.Domain(), addr, t.Size()), ec)
		case addrValue.IsStackOffset():
			a.setMemoryLocation(t, ir.NewMemoryLocation(ir.DomainStack, addrValue.StackOffset()*8, t.Size()), ec)
		default:
			a.setMemoryLocation(t, ir.MemoryLocation{}, ec)
		}

	case *ir.Unary:
		a.executeUnary(t, ec)

	case *ir.Binary:
		a.executeBinary(t, ec)

	case *ir.Choice:
		a.executeTerm(t.Preferred(), ec)
		a.executeTerm(t.Fallback(), ec)

		if a.dataflow.HasDefinitions(t.Preferred()) {
			*a.dataflow.Value(t) = *a.dataflow.Value(t.Preferred())
		} else {
			*a.dataflow.Value(t) = *a.dataflow.Value(t.Fallback())
		}

	default:
		a.logger.Warn("unknown term kind", zap.String("term", t.String()))
	}
}

func (a *Analyzer) executeIntrinsic(t *ir.Intrinsic, ec *ExecutionContext) {
	v := a.dataflow.Value(t)

	switch t.IntrinsicKind() {
	case ir.IntrinsicUnknown, ir.IntrinsicUndefined:
		v.SetAbstractValue(Nondeterministic(t.Size()))
		v.MakeNotStackOffset()
		v.MakeNotProduct()

	case ir.IntrinsicZeroStackOffset:
		v.SetAbstractValue(Nondeterministic(t.Size()))
		v.MakeStackOffset(0)
		v.MakeNotProduct()

	case ir.IntrinsicReachingSnapshot:
		*a.dataflow.Definitions(t) = ec.definitions.Clone()

	case ir.IntrinsicInstructionAddress:
		instr := t.Statement().Instruction()
		if instr == nil {
			a.logger.Warn("instruction address intrinsic outside an instruction")
			return
		}
		v.SetAbstractValue(Concrete(t.Size(), instr.Addr))
		v.MakeNotStackOffset()
		v.MakeNotProduct()

	case ir.IntrinsicNextInstructionAddress:
		instr := t.Statement().Instruction()
		if instr == nil {
			a.logger.Warn("instruction address intrinsic outside an instruction")
			return
		}
		v.SetAbstractValue(Concrete(t.Size(), instr.Addr+instr.Size))
		v.MakeNotStackOffset()
		v.MakeNotProduct()

	default:
		a.logger.Warn("unknown intrinsic kind", zap.Int("kind", int(t.IntrinsicKind())))
	}
}

// setMemoryLocation records the term's resolved location and maintains
// the reaching definitions of the current program point.
func (a *Analyzer) setMemoryLocation(t ir.Term, newLoc ir.MemoryLocation, ec *ExecutionContext) {
	oldLoc := a.dataflow.MemoryLocation(t)

	if oldLoc != newLoc {
		a.dataflow.setMemoryLocation(t, newLoc)

		// A write whose location moved may still be recorded as defining
		// the old location; scrub those stale entries.
		if !oldLoc.IsEmpty() && ir.IsWrite(t) {
			ec.definitions.FilterOut(func(_ ir.MemoryLocation, def ir.Term) bool {
				return def == t
			})
		}
	}

	if !newLoc.IsEmpty() && !a.arch.IsGlobalMemory(newLoc) {
		if ir.IsRead(t) {
			defs := a.dataflow.Definitions(t)
			*defs = ec.definitions.Project(newLoc)
			a.mergeReachingValues(t, newLoc, defs)
		}
		if ir.IsWrite(t) {
			ec.definitions.AddDefinition(newLoc, t)
		}
		if ir.IsKill(t) {
			ec.definitions.KillDefinitions(newLoc)
		}
	} else {
		if ir.IsRead(t) && !oldLoc.IsEmpty() {
			a.dataflow.Definitions(t).Clear()
		}
	}
}

// mergeReachingValues folds the values of the definitions reaching the
// read term t into t's own value, shifting each definition's bits to t's
// location according to the byte order.
func (a *Analyzer) mergeReachingValues(t ir.Term, termLoc ir.MemoryLocation, defs *ReachingDefinitions) {
	if !ir.IsRead(t) {
		panic("dflow: merging reaching values into a non-read term")
	}
	if termLoc.IsEmpty() {
		panic("dflow: merging reaching values for an empty location")
	}
	if defs.IsEmpty() {
		return
	}

	littleEndian := a.arch.ByteOrder() == arch.LittleEndian

	termValue := a.dataflow.Value(t)
	abs := termValue.AbstractValue()

	for _, chunk := range defs.Chunks() {
		chunkLoc := chunk.Location()
		if !termLoc.Covers(chunkLoc) {
			panic("dflow: chunk outside the term's location")
		}

		// Mask of the term's bits covered by this chunk.
		mask := widthMask(chunkLoc.Size)
		if littleEndian {
			mask = shiftBits(mask, chunkLoc.Addr-termLoc.Addr)
		} else {
			mask = shiftBits(mask, termLoc.EndAddr()-chunkLoc.EndAddr())
		}

		for _, def := range chunk.Definitions() {
			defLoc := a.dataflow.MemoryLocation(def)
			if !defLoc.Covers(chunkLoc) {
				panic("dflow: definition does not cover its chunk")
			}

			dv := a.dataflow.Value(def).AbstractValue()
			if littleEndian {
				dv = dv.Shift(defLoc.Addr - termLoc.Addr)
			} else {
				dv = dv.Shift(termLoc.EndAddr() - defLoc.EndAddr())
			}
			dv = dv.Project(mask)
			abs = abs.Merge(dv)
		}
	}

	termValue.SetAbstractValue(abs.Resize(t.Size()))

	// Merge the stack-offset and product flags, but only from the
	// definitions of the term's lowest-addressed bits.
	var lowerBits []ir.Term
	chunks := defs.Chunks()
	if littleEndian {
		if chunks[0].Location().Addr == termLoc.Addr {
			lowerBits = chunks[0].Definitions()
		}
	} else {
		if chunks[len(chunks)-1].Location().EndAddr() == termLoc.EndAddr() {
			lowerBits = chunks[len(chunks)-1].Definitions()
		}
	}

	for _, def := range lowerBits {
		dv := a.dataflow.Value(def)

		if dv.IsNotStackOffset() {
			termValue.MakeNotStackOffset()
		} else if dv.IsStackOffset() {
			termValue.MakeStackOffset(dv.StackOffset())
		}

		if dv.IsNotProduct() {
			termValue.MakeNotProduct()
		} else if dv.IsProduct() {
			termValue.MakeProduct()
		}
	}
}

func shiftBits(v uint64, bits int64) uint64 {
	switch {
	case bits >= maxBits || bits <= -maxBits:
		return 0
	case bits >= 0:
		return v << uint(bits)
	default:
		return v >> uint(-bits)
	}
}

func (a *Analyzer) executeUnary(t *ir.Unary, ec *ExecutionContext) {
	a.executeTerm(t.Operand(), ec)

	v := a.dataflow.Value(t)
	ov := a.dataflow.Value(t.Operand())

	// Join with the existing value: re-evaluation with a more general
	// operand must never oscillate.
	v.SetAbstractValue(a.applyUnary(t, ov.AbstractValue()).Merge(v.AbstractValue()))

	switch t.Op() {
	case ir.SignExtend, ir.ZeroExtend, ir.Truncate:
		if ov.IsNotStackOffset() {
			v.MakeNotStackOffset()
		} else if ov.IsStackOffset() {
			v.MakeStackOffset(ov.StackOffset())
		}
		if ov.IsNotProduct() {
			v.MakeNotProduct()
		} else if ov.IsProduct() {
			v.MakeProduct()
		}
	default:
		v.MakeNotStackOffset()
		v.MakeNotProduct()
	}
}

func (a *Analyzer) executeBinary(t *ir.Binary, ec *ExecutionContext) {
	a.executeTerm(t.Left(), ec)
	a.executeTerm(t.Right(), ec)

	v := a.dataflow.Value(t)
	lv := a.dataflow.Value(t.Left())
	rv := a.dataflow.Value(t.Right())

	v.SetAbstractValue(a.applyBinary(t, lv.AbstractValue(), rv.AbstractValue()).Merge(v.AbstractValue()))

	switch t.Op() {
	case ir.Add:
		if lv.IsStackOffset() {
			if rv.AbstractValue().IsConcrete() {
				v.MakeStackOffset(lv.StackOffset() + rv.AbstractValue().AsSignedConcrete())
			} else if rv.AbstractValue().IsNondeterministic() {
				v.MakeNotStackOffset()
			}
		}
		if rv.IsStackOffset() {
			if lv.AbstractValue().IsConcrete() {
				v.MakeStackOffset(rv.StackOffset() + lv.AbstractValue().AsSignedConcrete())
			} else if lv.AbstractValue().IsNondeterministic() {
				v.MakeNotStackOffset()
			}
		}
		if lv.IsNotStackOffset() && rv.IsNotStackOffset() {
			v.MakeNotStackOffset()
		}

	case ir.Sub:
		if lv.IsStackOffset() && rv.AbstractValue().IsConcrete() {
			v.MakeStackOffset(lv.StackOffset() - rv.AbstractValue().AsSignedConcrete())
		} else if lv.IsNotStackOffset() || rv.AbstractValue().IsNondeterministic() {
			v.MakeNotStackOffset()
		}

	case ir.And:
		// Masking the stack pointer is how compilers align stack frames.
		if lv.IsStackOffset() && rv.AbstractValue().IsConcrete() {
			v.MakeStackOffset(lv.StackOffset() & int64(rv.AbstractValue().AsConcrete()))
		} else if rv.IsStackOffset() && lv.AbstractValue().IsConcrete() {
			v.MakeStackOffset(rv.StackOffset() & int64(lv.AbstractValue().AsConcrete()))
		} else if lv.AbstractValue().IsNondeterministic() && lv.IsNotStackOffset() ||
			rv.AbstractValue().IsNondeterministic() && rv.IsNotStackOffset() {
			v.MakeNotStackOffset()
		}

	default:
		v.MakeNotStackOffset()
	}

	switch t.Op() {
	case ir.Mul, ir.Shl:
		v.MakeProduct()
	default:
		v.MakeNotProduct()
	}
}

func (a *Analyzer) applyUnary(t *ir.Unary, v AbstractValue) AbstractValue {
	switch t.Op() {
	case ir.Not:
		return v.Not()
	case ir.Negate:
		return v.Negate()
	case ir.SignExtend:
		return v.SignExtend(t.Size())
	case ir.ZeroExtend:
		return v.ZeroExtend(t.Size())
	case ir.Truncate:
		return v.Resize(t.Size())
	default:
		a.logger.Warn("unknown unary operator", zap.Int("op", int(t.Op())))
		return AbstractValue{}
	}
}

func (a *Analyzer) applyBinary(t *ir.Binary, l, r AbstractValue) AbstractValue {
	switch t.Op() {
	case ir.And:
		return l.And(r)
	case ir.Or:
		return l.Or(r)
	case ir.Xor:
		return l.Xor(r)
	case ir.Shl:
		return l.Shl(r)
	case ir.Shr:
		return l.Shr(r)
	case ir.Sar:
		return l.Sar(r)
	case ir.Add:
		return l.Add(r)
	case ir.Sub:
		return l.Sub(r)
	case ir.Mul:
		return l.Mul(r)
	case ir.SignedDiv:
		return l.DivSigned(r)
	case ir.SignedRem:
		return l.RemSigned(r)
	case ir.UnsignedDiv:
		return l.DivUnsigned(r)
	case ir.UnsignedRem:
		return l.RemUnsigned(r)
	case ir.Equal:
		return l.Equal(r)
	case ir.SignedLess:
		return l.LessSigned(r)
	case ir.SignedLessOrEqual:
		return l.LessOrEqualSigned(r)
	case ir.UnsignedLess:
		return l.LessUnsigned(r)
	case ir.UnsignedLessOrEqual:
		return l.LessOrEqualUnsigned(r)
	default:
		a.logger.Warn("unknown binary operator", zap.Int("op", int(t.Op())))
		return AbstractValue{}
	}
}
