package dflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leq reports whether every value a admits is also admitted by b.
func leq(a, b AbstractValue) bool {
	merged := b.Merge(a)
	return merged == b
}

func TestConcrete(t *testing.T) {
	v := Concrete(32, 0x14)

	assert.True(t, v.IsConcrete())
	assert.False(t, v.IsNondeterministic())
	assert.Equal(t, uint64(0x14), v.AsConcrete())
	assert.Equal(t, "0x14", v.String())
}

func TestNondeterministic(t *testing.T) {
	v := Nondeterministic(16)

	assert.False(t, v.IsConcrete())
	assert.True(t, v.IsNondeterministic())
}

func TestEmptyIsMergeIdentity(t *testing.T) {
	v := Concrete(32, 0xAB)
	empty := AbstractValue{}

	assert.Equal(t, v, empty.Merge(v))
	assert.Equal(t, v, v.Merge(empty))
}

func TestMergeLaws(t *testing.T) {
	a := Concrete(8, 0x0F)
	b := Concrete(8, 0xF0)
	c := Nondeterministic(8)

	assert.Equal(t, a.Merge(b), b.Merge(a), "commutative")
	assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)), "associative")
	assert.Equal(t, a, a.Merge(a), "idempotent")
}

func TestMergeKeepsAgreedBits(t *testing.T) {
	// 0x0 and 0x1 agree on everything but the lowest bit.
	v := Concrete(32, 0).Merge(Concrete(32, 1))

	assert.False(t, v.IsConcrete())
	assert.False(t, v.IsNondeterministic())
	z, o := v.bit(0)
	assert.True(t, z && o, "low bit unknown")
	z, o = v.bit(1)
	assert.True(t, z && !o, "bit 1 known zero")
}

func TestSignedConcrete(t *testing.T) {
	v := Concrete(8, 0xF0)
	assert.Equal(t, int64(-16), v.AsSignedConcrete())
	assert.Equal(t, int64(0x70), Concrete(8, 0x70).AsSignedConcrete())
}

func TestNot(t *testing.T) {
	assert.Equal(t, Concrete(8, 0xA5), Concrete(8, 0x5A).Not())
}

func TestNegate(t *testing.T) {
	assert.Equal(t, uint64(0xFC), Concrete(8, 4).Negate().AsConcrete())
	assert.Equal(t, uint64(0), Concrete(8, 0).Negate().AsConcrete())
}

func TestAddConcrete(t *testing.T) {
	sum := Concrete(32, 0x10).Add(Concrete(32, 4))

	require.True(t, sum.IsConcrete())
	assert.Equal(t, uint64(0x14), sum.AsConcrete())
}

func TestAddWraps(t *testing.T) {
	sum := Concrete(8, 0xFF).Add(Concrete(8, 1))

	require.True(t, sum.IsConcrete())
	assert.Equal(t, uint64(0), sum.AsConcrete())
}

func TestAddUnknownBitStopsCarry(t *testing.T) {
	// join(0, 1) has only its lowest bit unknown; adding 1 can carry into
	// bit 1 but never further.
	a := Concrete(32, 0).Merge(Concrete(32, 1))
	sum := a.Add(Concrete(32, 1))

	z, o := sum.bit(0)
	assert.True(t, z && o)
	z, o = sum.bit(1)
	assert.True(t, z && o)
	z, o = sum.bit(2)
	assert.True(t, z && !o, "carry cannot reach bit 2")
}

func TestSubConcrete(t *testing.T) {
	diff := Concrete(32, 0x20).Sub(Concrete(32, 0x30))

	require.True(t, diff.IsConcrete())
	assert.Equal(t, int64(-0x10), diff.AsSignedConcrete())
}

func TestBitwiseOperators(t *testing.T) {
	a := Concrete(8, 0b1100)
	b := Concrete(8, 0b1010)

	assert.Equal(t, uint64(0b1000), a.And(b).AsConcrete())
	assert.Equal(t, uint64(0b1110), a.Or(b).AsConcrete())
	assert.Equal(t, uint64(0b0110), a.Xor(b).AsConcrete())
}

func TestAndWithUnknown(t *testing.T) {
	// x & 0 is 0 no matter what x is.
	v := Nondeterministic(8).And(Concrete(8, 0))

	require.True(t, v.IsConcrete())
	assert.Equal(t, uint64(0), v.AsConcrete())
}

func TestOrWithUnknown(t *testing.T) {
	// x | 0xFF is 0xFF no matter what x is.
	v := Nondeterministic(8).Or(Concrete(8, 0xFF))

	require.True(t, v.IsConcrete())
	assert.Equal(t, uint64(0xFF), v.AsConcrete())
}

func TestShifts(t *testing.T) {
	v := Concrete(8, 0b10010110)

	assert.Equal(t, uint64(0b10110000), v.Shl(Concrete(8, 3)).AsConcrete())
	assert.Equal(t, uint64(0b00010010), v.Shr(Concrete(8, 3)).AsConcrete())
	assert.Equal(t, uint64(0b11110010), v.Sar(Concrete(8, 3)).AsConcrete())
}

func TestShiftByUnknownCount(t *testing.T) {
	v := Concrete(8, 1).Shl(Nondeterministic(8))
	assert.True(t, v.IsNondeterministic())
}

func TestSarUnknownSign(t *testing.T) {
	v := Nondeterministic(8).Sar(Concrete(8, 4))
	assert.True(t, v.IsNondeterministic())
}

func TestMul(t *testing.T) {
	assert.Equal(t, uint64(0x50), Concrete(32, 0x10).Mul(Concrete(32, 5)).AsConcrete())

	// 4 * (unknown << 1): the three low bits are known zero.
	even := Nondeterministic(32).Shl(Concrete(32, 1))
	product := Concrete(32, 4).Mul(even)
	assert.False(t, product.IsConcrete())
	for i := int64(0); i < 3; i++ {
		z, o := product.bit(i)
		assert.True(t, z && !o, "trailing bit %d known zero", i)
	}
}

func TestDivRem(t *testing.T) {
	assert.Equal(t, uint64(3), Concrete(32, 7).DivUnsigned(Concrete(32, 2)).AsConcrete())
	assert.Equal(t, uint64(1), Concrete(32, 7).RemUnsigned(Concrete(32, 2)).AsConcrete())

	minusSeven := Concrete(32, 7).Negate()
	q := minusSeven.DivSigned(Concrete(32, 2))
	assert.Equal(t, int64(-3), q.AsSignedConcrete())

	assert.True(t, Concrete(32, 7).DivUnsigned(Concrete(32, 0)).IsNondeterministic())
	assert.True(t, Concrete(32, 7).DivSigned(Nondeterministic(32)).IsNondeterministic())
}

func TestComparisons(t *testing.T) {
	one := Concrete(32, 1)
	two := Concrete(32, 2)
	minusOne := Concrete(32, 1).Negate()

	assert.Equal(t, knownTrue(), one.Equal(one))
	assert.Equal(t, knownFalse(), one.Equal(two))
	assert.Equal(t, unknownBool(), one.Equal(Nondeterministic(32)))

	assert.Equal(t, knownTrue(), one.LessUnsigned(two))
	assert.Equal(t, knownFalse(), two.LessUnsigned(one))
	assert.Equal(t, knownTrue(), one.LessOrEqualUnsigned(one))

	// -1 is the largest unsigned value but the smallest signed one here.
	assert.Equal(t, knownFalse(), minusOne.LessUnsigned(two))
	assert.Equal(t, knownTrue(), minusOne.LessSigned(two))
	assert.Equal(t, knownTrue(), minusOne.LessOrEqualSigned(minusOne))
}

func TestComparisonWithPartialOperands(t *testing.T) {
	// Any value with bit 4 set is at least 16.
	atLeast16 := NewAbstractValue(8, 0xEF, 0xFF)
	assert.Equal(t, knownTrue(), Concrete(8, 3).LessUnsigned(atLeast16))
}

func TestZeroExtendTruncateRoundTrip(t *testing.T) {
	values := []AbstractValue{
		Concrete(8, 0x5A),
		Nondeterministic(8),
		Concrete(8, 0).Merge(Concrete(8, 3)),
	}
	for _, v := range values {
		assert.Equal(t, v, v.ZeroExtend(32).Resize(8))
	}
}

func TestSignExtend(t *testing.T) {
	v := Concrete(8, 0xF0).SignExtend(16)
	require.True(t, v.IsConcrete())
	assert.Equal(t, uint64(0xFFF0), v.AsConcrete())

	u := Nondeterministic(8).SignExtend(16)
	assert.True(t, u.IsNondeterministic())
}

func TestShiftAndProject(t *testing.T) {
	v := Concrete(8, 0xAB).Shift(8)
	assert.Equal(t, int64(16), v.Size())

	// Compose two byte-wide contributions on disjoint masks.
	high := v.Project(0xFF00)
	low := Concrete(8, 0xCD).ZeroExtend(16).Project(0x00FF)
	assert.Equal(t, Concrete(16, 0xABCD), low.Merge(high))
}

func TestOperatorsAreMonotone(t *testing.T) {
	small := Concrete(8, 0x12)
	big := small.Merge(Concrete(8, 0x13))
	other := Concrete(8, 0x31)

	binary := []func(a, b AbstractValue) AbstractValue{
		AbstractValue.Add,
		AbstractValue.Sub,
		AbstractValue.And,
		AbstractValue.Or,
		AbstractValue.Xor,
		AbstractValue.Mul,
	}
	for i, op := range binary {
		assert.True(t, leq(op(small, other), op(big, other)), "binary op %d monotone in left", i)
		assert.True(t, leq(op(other, small), op(other, big)), "binary op %d monotone in right", i)
	}

	unary := []func(a AbstractValue) AbstractValue{
		AbstractValue.Not,
		AbstractValue.Negate,
	}
	for i, op := range unary {
		assert.True(t, leq(op(small), op(big)), "unary op %d monotone", i)
	}
}
