package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocationCovers(t *testing.T) {
	outer := NewMemoryLocation(DomainRegisters, 0, 32)
	inner := NewMemoryLocation(DomainRegisters, 8, 8)

	assert.True(t, outer.Covers(inner))
	assert.True(t, outer.Covers(outer))
	assert.False(t, inner.Covers(outer))
	assert.False(t, outer.Covers(NewMemoryLocation(DomainStack, 8, 8)))
	assert.False(t, outer.Covers(NewMemoryLocation(DomainRegisters, 24, 16)))
}

func TestMemoryLocationEmpty(t *testing.T) {
	var empty MemoryLocation
	loc := NewMemoryLocation(DomainRegisters, 0, 32)

	assert.True(t, empty.IsEmpty())
	assert.False(t, loc.IsEmpty())
	assert.False(t, empty.Covers(loc))
	assert.False(t, loc.Covers(empty))
	assert.False(t, empty.Overlaps(loc))
}

func TestMemoryLocationOverlaps(t *testing.T) {
	a := NewMemoryLocation(DomainRegisters, 0, 16)
	b := NewMemoryLocation(DomainRegisters, 8, 16)
	c := NewMemoryLocation(DomainRegisters, 16, 16)

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "adjacent ranges do not overlap")
}

func TestAssignmentAccessAndSource(t *testing.T) {
	left := NewMemoryAccess(NewMemoryLocation(DomainRegisters, 0, 32))
	right := NewConstant(7, 32)
	st := NewAssignment(left, right)

	assert.True(t, IsWrite(left))
	assert.True(t, IsRead(right))
	assert.Equal(t, Term(right), left.Source())
	assert.Same(t, st, left.Statement())
	assert.Same(t, st, right.Statement())
}

func TestDereferenceAttachesAddressAsRead(t *testing.T) {
	addr := NewMemoryAccess(NewMemoryLocation(DomainRegisters, 0, 32))
	deref := NewDereference(DomainMemory, addr, 32)
	NewAssignment(deref, NewConstant(1, 32))

	assert.True(t, IsWrite(deref))
	assert.True(t, IsRead(addr), "the address of a written dereference is still read")
}

func TestTouchKill(t *testing.T) {
	target := NewMemoryAccess(NewMemoryLocation(DomainRegisters, 0, 32))
	st := NewTouch(target, AccessKill)

	assert.True(t, IsKill(target))
	assert.Equal(t, StmtTouch, st.Kind())
}

func TestDetach(t *testing.T) {
	block := NewBasicBlock("entry")
	st := NewReturn()
	block.Append(st)

	require.Same(t, block, st.BasicBlock())
	require.Len(t, block.Statements(), 1)

	st.Detach()

	assert.Nil(t, st.BasicBlock())
	assert.Empty(t, block.Statements())
}

func TestStatementTermsWalksSubTerms(t *testing.T) {
	inner := NewConstant(1, 32)
	sum := NewBinary(Add, inner, NewConstant(2, 32), 32)
	st := NewAssignment(NewMemoryAccess(NewMemoryLocation(DomainRegisters, 0, 32)), sum)

	var seen []Term
	StatementTerms(st, func(t Term) { seen = append(seen, t) })

	assert.Len(t, seen, 4)
	assert.Contains(t, seen, Term(inner))
	assert.Contains(t, seen, Term(sum))
}

func TestTermStrings(t *testing.T) {
	c := NewConstant(0x10, 32)
	assert.Equal(t, "0x10:32", c.String())

	deref := NewDereference(DomainMemory, c, 32)
	assert.Equal(t, "*mem:32(0x10:32)", deref.String())

	sum := NewBinary(Add, NewConstant(1, 32), NewConstant(2, 32), 32)
	assert.Equal(t, "add(0x1:32, 0x2:32)", sum.String())

	ext := NewUnary(ZeroExtend, NewConstant(1, 8), 32)
	assert.Equal(t, "zext:32(0x1:8)", ext.String())
}

func TestStatementStrings(t *testing.T) {
	st := NewAssignment(
		NewMemoryAccess(NewMemoryLocation(DomainRegisters, 0, 32)),
		NewConstant(7, 32),
	)
	assert.Equal(t, "reg[0..32) = 0x7:32", st.String())

	then := NewBasicBlock("loop")
	jump := NewJump(nil, &JumpTarget{Block: then}, nil)
	assert.Equal(t, "jump loop", jump.String())
}
