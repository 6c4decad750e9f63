package dflow

// flagState is a three-valued flag: undecided, set, or ruled out. Once
// ruled out it never comes back, which keeps the transfer functions
// monotone.
type flagState int

const (
	flagUndecided flagState = iota
	flagSet
	flagRuledOut
)

// Value is the per-term dataflow record: the abstract value plus the
// stack-offset and product flags.
type Value struct {
	abs AbstractValue

	offsetState flagState
	stackOffset int64

	productState flagState
}

// AbstractValue returns the current abstraction of the term's value.
func (v *Value) AbstractValue() AbstractValue { return v.abs }

// SetAbstractValue replaces the abstraction of the term's value.
func (v *Value) SetAbstractValue(a AbstractValue) { v.abs = a }

// IsStackOffset reports whether the term is known to be the entry stack
// pointer plus a constant.
func (v *Value) IsStackOffset() bool { return v.offsetState == flagSet }

// IsNotStackOffset reports whether the term is known not to be a stack
// offset.
func (v *Value) IsNotStackOffset() bool { return v.offsetState == flagRuledOut }

// StackOffset returns the offset in bytes. Meaningful only when
// IsStackOffset reports true.
func (v *Value) StackOffset() int64 { return v.stackOffset }

// MakeStackOffset records the term as a stack offset of the given byte
// value. Conflicting offsets demote the term to not-stack-offset; a
// ruled-out flag stays ruled out.
func (v *Value) MakeStackOffset(offset int64) {
	switch v.offsetState {
	case flagUndecided:
		v.offsetState = flagSet
		v.stackOffset = offset
	case flagSet:
		if v.stackOffset != offset {
			v.MakeNotStackOffset()
		}
	}
}

// MakeNotStackOffset rules the stack-offset flag out.
func (v *Value) MakeNotStackOffset() {
	v.offsetState = flagRuledOut
	v.stackOffset = 0
}

// IsProduct reports whether the term is known to be a multiplication or
// left-shift result.
func (v *Value) IsProduct() bool { return v.productState == flagSet }

// IsNotProduct reports whether the term is known not to be a product.
func (v *Value) IsNotProduct() bool { return v.productState == flagRuledOut }

// MakeProduct records the term as a product unless that has been ruled
// out.
func (v *Value) MakeProduct() {
	if v.productState == flagUndecided {
		v.productState = flagSet
	}
}

// MakeNotProduct rules the product flag out.
func (v *Value) MakeNotProduct() {
	v.productState = flagRuledOut
}
