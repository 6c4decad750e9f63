package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reliftlabs/relift/internal/ir"
)

func TestGenericGlobalMemory(t *testing.T) {
	a := NewGeneric(LittleEndian)

	assert.True(t, a.IsGlobalMemory(ir.NewMemoryLocation(ir.DomainMemory, 0x1000, 32)))
	assert.False(t, a.IsGlobalMemory(ir.NewMemoryLocation(ir.DomainStack, -64, 32)))
	assert.False(t, a.IsGlobalMemory(ir.NewMemoryLocation(ir.DomainRegisters, 0, 32)))
	assert.False(t, a.IsGlobalMemory(ir.NewMemoryLocation(ir.DomainPhysical, 0, 32)))
}

func TestByteOrderString(t *testing.T) {
	assert.Equal(t, "little", LittleEndian.String())
	assert.Equal(t, "big", BigEndian.String())
}
