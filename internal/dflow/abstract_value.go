package dflow

import (
	"fmt"
	"strings"
)

const maxBits = 64

func widthMask(size int64) uint64 {
	if size <= 0 {
		return 0
	}
	if size >= maxBits {
		return ^uint64(0)
	}
	return (uint64(1) << uint(size)) - 1
}

// AbstractValue is a bit-precise ternary abstraction of a machine integer
// of up to 64 bits. For every bit it records whether the bit can be zero
// and whether it can be one: exactly one possibility means the bit is
// known, both mean the bit is unknown. The empty value (size 0) is the
// bottom of the lattice and the identity of Merge.
type AbstractValue struct {
	size      int64
	canBeZero uint64
	canBeOne  uint64
}

// NewAbstractValue builds a value from raw possibility masks. Mask bits
// beyond the declared size are discarded.
func NewAbstractValue(size int64, canBeZero, canBeOne uint64) AbstractValue {
	mask := widthMask(size)
	return AbstractValue{size: size, canBeZero: canBeZero & mask, canBeOne: canBeOne & mask}
}

// Concrete returns the fully known value v of the given bit size.
func Concrete(size int64, v uint64) AbstractValue {
	mask := widthMask(size)
	return AbstractValue{size: size, canBeZero: ^v & mask, canBeOne: v & mask}
}

// Nondeterministic returns the value of the given size with every bit
// unknown.
func Nondeterministic(size int64) AbstractValue {
	mask := widthMask(size)
	return AbstractValue{size: size, canBeZero: mask, canBeOne: mask}
}

func (a AbstractValue) Size() int64 { return a.size }

// IsEmpty reports whether a is the bottom element.
func (a AbstractValue) IsEmpty() bool { return a.size == 0 }

// IsConcrete reports whether every bit of a is known.
func (a AbstractValue) IsConcrete() bool {
	return a.size > 0 && a.canBeZero&a.canBeOne == 0
}

// IsNondeterministic reports whether no bit of a is known.
func (a AbstractValue) IsNondeterministic() bool {
	mask := widthMask(a.size)
	return a.size > 0 && a.canBeZero&a.canBeOne == mask
}

// AsConcrete returns the concrete bits of a. Meaningful only when
// IsConcrete reports true.
func (a AbstractValue) AsConcrete() uint64 { return a.canBeOne }

// AsSignedConcrete returns the concrete value interpreted as a signed
// integer of a's width.
func (a AbstractValue) AsSignedConcrete() int64 {
	return signExtendValue(a.canBeOne, a.size)
}

func signExtendValue(v uint64, size int64) int64 {
	if size <= 0 || size >= maxBits {
		return int64(v)
	}
	shift := uint(maxBits - size)
	return int64(v<<shift) >> shift
}

// Merge joins a and b bit-wise: the result admits every value either
// operand admits. Merging with the empty value is the identity.
func (a AbstractValue) Merge(b AbstractValue) AbstractValue {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	size := a.size
	if b.size > size {
		size = b.size
	}
	return AbstractValue{
		size:      size,
		canBeZero: a.canBeZero | b.canBeZero,
		canBeOne:  a.canBeOne | b.canBeOne,
	}
}

// Project confines a's possibilities to the bits selected by mask. Bits
// outside the mask contribute nothing when the result is merged.
func (a AbstractValue) Project(mask uint64) AbstractValue {
	a.canBeZero &= mask
	a.canBeOne &= mask
	return a
}

// Shift moves a's bits by the given signed bit count (positive is towards
// higher addresses) and adjusts the size accordingly.
func (a AbstractValue) Shift(bits int64) AbstractValue {
	switch {
	case bits >= maxBits || bits <= -maxBits:
		return AbstractValue{size: clampSize(a.size + bits)}
	case bits > 0:
		a.canBeZero <<= uint(bits)
		a.canBeOne <<= uint(bits)
	case bits < 0:
		a.canBeZero >>= uint(-bits)
		a.canBeOne >>= uint(-bits)
	}
	a.size = clampSize(a.size + bits)
	mask := widthMask(a.size)
	a.canBeZero &= mask
	a.canBeOne &= mask
	return a
}

func clampSize(size int64) int64 {
	if size < 0 {
		return 0
	}
	if size > maxBits {
		return maxBits
	}
	return size
}

// Resize truncates or grows a to the given size. New bits are unknown.
func (a AbstractValue) Resize(size int64) AbstractValue {
	if size > a.size {
		grown := widthMask(size) &^ widthMask(a.size)
		a.canBeZero |= grown
		a.canBeOne |= grown
	} else {
		mask := widthMask(size)
		a.canBeZero &= mask
		a.canBeOne &= mask
	}
	a.size = size
	return a
}

// ZeroExtend grows a to the given size with known-zero bits.
func (a AbstractValue) ZeroExtend(size int64) AbstractValue {
	if size <= a.size {
		return a.Resize(size)
	}
	a.canBeZero |= widthMask(size) &^ widthMask(a.size)
	a.size = size
	return a
}

// SignExtend grows a to the given size, with the new bits admitting
// whatever the sign bit admits.
func (a AbstractValue) SignExtend(size int64) AbstractValue {
	if size <= a.size {
		return a.Resize(size)
	}
	grown := widthMask(size) &^ widthMask(a.size)
	signZero, signOne := a.bit(a.size - 1)
	if signZero {
		a.canBeZero |= grown
	}
	if signOne {
		a.canBeOne |= grown
	}
	a.size = size
	return a
}

// bit returns the possibility pair of bit i; bits beyond a's size read as
// known zero, matching zero extension.
func (a AbstractValue) bit(i int64) (canZero, canOne bool) {
	if i < 0 || i >= a.size || i >= maxBits {
		return true, false
	}
	return a.canBeZero>>uint(i)&1 == 1, a.canBeOne>>uint(i)&1 == 1
}

var bitChoices = [2][2][]bool{
	{nil, {true}},
	{{false}, {false, true}},
}

func choices(canZero, canOne bool) []bool {
	z, o := 0, 0
	if canZero {
		z = 1
	}
	if canOne {
		o = 1
	}
	return bitChoices[z][o]
}

// Not flips every bit.
func (a AbstractValue) Not() AbstractValue {
	a.canBeZero, a.canBeOne = a.canBeOne, a.canBeZero
	return a
}

// Negate returns the two's complement of a.
func (a AbstractValue) Negate() AbstractValue {
	return a.Not().addWithCarry(Concrete(a.size, 0), false, true)
}

// Add returns a + b with bit-precise carry propagation.
func (a AbstractValue) Add(b AbstractValue) AbstractValue {
	return a.addWithCarry(b, true, false)
}

// Sub returns a - b.
func (a AbstractValue) Sub(b AbstractValue) AbstractValue {
	return a.addWithCarry(b.Not(), false, true)
}

// addWithCarry ripples a three-valued carry through the bits of a + b.
// A sum bit is known whenever all incoming possibilities agree on it.
func (a AbstractValue) addWithCarry(b AbstractValue, carryZero, carryOne bool) AbstractValue {
	size := a.size
	if b.size > size {
		size = b.size
	}
	var resZero, resOne uint64
	cz, co := carryZero, carryOne
	for i := int64(0); i < size; i++ {
		az, ao := a.bit(i)
		bz, bo := b.bit(i)
		var sumZero, sumOne, nextCz, nextCo bool
		for _, av := range choices(az, ao) {
			for _, bv := range choices(bz, bo) {
				for _, cv := range choices(cz, co) {
					sum := av != bv != cv
					carry := av && bv || av && cv || bv && cv
					if sum {
						sumOne = true
					} else {
						sumZero = true
					}
					if carry {
						nextCo = true
					} else {
						nextCz = true
					}
				}
			}
		}
		if sumZero {
			resZero |= 1 << uint(i)
		}
		if sumOne {
			resOne |= 1 << uint(i)
		}
		cz, co = nextCz, nextCo
	}
	return AbstractValue{size: size, canBeZero: resZero, canBeOne: resOne}
}

// And returns the bitwise conjunction.
func (a AbstractValue) And(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	az, bz := a.ZeroExtend(size), b.ZeroExtend(size)
	return AbstractValue{
		size:      size,
		canBeZero: az.canBeZero | bz.canBeZero,
		canBeOne:  az.canBeOne & bz.canBeOne,
	}
}

// Or returns the bitwise disjunction.
func (a AbstractValue) Or(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	az, bz := a.ZeroExtend(size), b.ZeroExtend(size)
	return AbstractValue{
		size:      size,
		canBeZero: az.canBeZero & bz.canBeZero,
		canBeOne:  az.canBeOne | bz.canBeOne,
	}
}

// Xor returns the bitwise exclusive or.
func (a AbstractValue) Xor(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	az, bz := a.ZeroExtend(size), b.ZeroExtend(size)
	return AbstractValue{
		size:      size,
		canBeZero: az.canBeZero&bz.canBeZero | az.canBeOne&bz.canBeOne,
		canBeOne:  az.canBeZero&bz.canBeOne | az.canBeOne&bz.canBeZero,
	}
}

func maxSize(a, b AbstractValue) int64 {
	if a.size >= b.size {
		return a.size
	}
	return b.size
}

// Shl returns a shifted left by b. A non-concrete shift count makes the
// result nondeterministic.
func (a AbstractValue) Shl(b AbstractValue) AbstractValue {
	if !b.IsConcrete() {
		return Nondeterministic(a.size)
	}
	k := b.AsConcrete()
	if k >= uint64(a.size) {
		return Concrete(a.size, 0)
	}
	mask := widthMask(a.size)
	return AbstractValue{
		size:      a.size,
		canBeZero: a.canBeZero<<k&mask | widthMask(int64(k)),
		canBeOne:  a.canBeOne << k & mask,
	}
}

// Shr returns the logical right shift of a by b.
func (a AbstractValue) Shr(b AbstractValue) AbstractValue {
	if !b.IsConcrete() {
		return Nondeterministic(a.size)
	}
	k := b.AsConcrete()
	if k >= uint64(a.size) {
		return Concrete(a.size, 0)
	}
	vacated := widthMask(a.size) &^ widthMask(a.size - int64(k))
	return AbstractValue{
		size:      a.size,
		canBeZero: a.canBeZero>>k | vacated,
		canBeOne:  a.canBeOne >> k,
	}
}

// Sar returns the arithmetic right shift of a by b; vacated bits admit
// whatever the sign bit admits.
func (a AbstractValue) Sar(b AbstractValue) AbstractValue {
	if !b.IsConcrete() {
		return Nondeterministic(a.size)
	}
	signZero, signOne := a.bit(a.size - 1)
	k := b.AsConcrete()
	if k >= uint64(a.size) {
		k = uint64(a.size)
	}
	vacated := widthMask(a.size) &^ widthMask(a.size - int64(k))
	res := AbstractValue{
		size:      a.size,
		canBeZero: a.canBeZero >> k,
		canBeOne:  a.canBeOne >> k,
	}
	if signZero {
		res.canBeZero |= vacated
	}
	if signOne {
		res.canBeOne |= vacated
	}
	return res
}

// Mul returns a * b. The product is concrete for concrete operands; for
// partially known operands only the trailing known-zero bits survive.
func (a AbstractValue) Mul(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	if a.IsConcrete() && b.IsConcrete() {
		return Concrete(size, a.AsConcrete()*b.AsConcrete())
	}
	if a.IsConcrete() && a.AsConcrete() == 0 || b.IsConcrete() && b.AsConcrete() == 0 {
		return Concrete(size, 0)
	}
	tz := a.trailingKnownZeros() + b.trailingKnownZeros()
	if tz >= size {
		return Concrete(size, 0)
	}
	known := widthMask(tz)
	mask := widthMask(size)
	return AbstractValue{size: size, canBeZero: mask, canBeOne: mask &^ known}
}

func (a AbstractValue) trailingKnownZeros() int64 {
	var n int64
	for n < a.size {
		z, o := a.bit(n)
		if !z || o {
			break
		}
		n++
	}
	return n
}

// DivUnsigned returns a / b on unsigned interpretations; division by a
// non-concrete or zero divisor is nondeterministic.
func (a AbstractValue) DivUnsigned(b AbstractValue) AbstractValue {
	if a.IsConcrete() && b.IsConcrete() && b.AsConcrete() != 0 {
		return Concrete(a.size, a.AsConcrete()/b.AsConcrete())
	}
	return Nondeterministic(a.size)
}

// RemUnsigned returns a % b on unsigned interpretations.
func (a AbstractValue) RemUnsigned(b AbstractValue) AbstractValue {
	if a.IsConcrete() && b.IsConcrete() && b.AsConcrete() != 0 {
		return Concrete(a.size, a.AsConcrete()%b.AsConcrete())
	}
	return Nondeterministic(a.size)
}

// DivSigned returns a / b on signed interpretations.
func (a AbstractValue) DivSigned(b AbstractValue) AbstractValue {
	if a.IsConcrete() && b.IsConcrete() && b.AsConcrete() != 0 {
		return Concrete(a.size, uint64(a.AsSignedConcrete()/b.AsSignedConcrete()))
	}
	return Nondeterministic(a.size)
}

// RemSigned returns a % b on signed interpretations.
func (a AbstractValue) RemSigned(b AbstractValue) AbstractValue {
	if a.IsConcrete() && b.IsConcrete() && b.AsConcrete() != 0 {
		return Concrete(a.size, uint64(a.AsSignedConcrete()%b.AsSignedConcrete()))
	}
	return Nondeterministic(a.size)
}

func knownTrue() AbstractValue   { return Concrete(1, 1) }
func knownFalse() AbstractValue  { return Concrete(1, 0) }
func unknownBool() AbstractValue { return Nondeterministic(1) }

// Equal returns the 1-bit comparison a == b.
func (a AbstractValue) Equal(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	az, bz := a.ZeroExtend(size), b.ZeroExtend(size)
	agree := az.canBeZero&bz.canBeZero | az.canBeOne&bz.canBeOne
	if agree != widthMask(size) {
		return knownFalse()
	}
	if az.IsConcrete() && bz.IsConcrete() {
		return knownTrue()
	}
	return unknownBool()
}

// unsignedRange returns the least and greatest unsigned values a admits.
func (a AbstractValue) unsignedRange() (min, max uint64) {
	return a.canBeOne &^ a.canBeZero, a.canBeOne
}

// LessUnsigned returns the 1-bit comparison a < b on unsigned
// interpretations.
func (a AbstractValue) LessUnsigned(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	amin, amax := a.ZeroExtend(size).unsignedRange()
	bmin, bmax := b.ZeroExtend(size).unsignedRange()
	switch {
	case amax < bmin:
		return knownTrue()
	case amin >= bmax:
		return knownFalse()
	}
	return unknownBool()
}

// LessOrEqualUnsigned returns the 1-bit comparison a <= b on unsigned
// interpretations.
func (a AbstractValue) LessOrEqualUnsigned(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	amin, amax := a.ZeroExtend(size).unsignedRange()
	bmin, bmax := b.ZeroExtend(size).unsignedRange()
	switch {
	case amax <= bmin:
		return knownTrue()
	case amin > bmax:
		return knownFalse()
	}
	return unknownBool()
}

// toBiased flips the sign bit, mapping signed order onto unsigned order.
func (a AbstractValue) toBiased(size int64) AbstractValue {
	v := a.SignExtend(size)
	if size <= 0 {
		return v
	}
	sign := uint64(1) << uint(size-1)
	z, o := v.canBeZero&sign, v.canBeOne&sign
	v.canBeZero = v.canBeZero&^sign | o
	v.canBeOne = v.canBeOne&^sign | z
	return v
}

// LessSigned returns the 1-bit comparison a < b on signed
// interpretations.
func (a AbstractValue) LessSigned(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	return a.toBiased(size).LessUnsigned(b.toBiased(size))
}

// LessOrEqualSigned returns the 1-bit comparison a <= b on signed
// interpretations.
func (a AbstractValue) LessOrEqualSigned(b AbstractValue) AbstractValue {
	size := maxSize(a, b)
	return a.toBiased(size).LessOrEqualUnsigned(b.toBiased(size))
}

func (a AbstractValue) String() string {
	if a.IsEmpty() {
		return "empty"
	}
	if a.IsConcrete() {
		return fmt.Sprintf("0x%x", a.canBeOne)
	}
	var sb strings.Builder
	for i := a.size - 1; i >= 0; i-- {
		z, o := a.bit(i)
		switch {
		case z && o:
			sb.WriteByte('x')
		case o:
			sb.WriteByte('1')
		case z:
			sb.WriteByte('0')
		default:
			sb.WriteByte('!')
		}
	}
	return sb.String()
}
