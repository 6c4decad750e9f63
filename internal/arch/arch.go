package arch

import "github.com/reliftlabs/relift/internal/ir"

// ByteOrder is the memory byte order of the analyzed target.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (b ByteOrder) String() string {
	if b == BigEndian {
		return "big"
	}
	return "little"
}

// Architecture supplies the target-specific facts the dataflow analysis
// depends on.
type Architecture interface {
	ByteOrder() ByteOrder
	// IsGlobalMemory reports whether a location may be written by code
	// outside the analyzed function and must not be tracked.
	IsGlobalMemory(loc ir.MemoryLocation) bool
}

// Generic is a register-machine architecture description sufficient for
// the textual IR front end and for tests. Global memory is the plain
// memory domain; stack, registers and physical memory are tracked.
type Generic struct {
	byteOrder ByteOrder
}

func NewGeneric(byteOrder ByteOrder) *Generic {
	return &Generic{byteOrder: byteOrder}
}

func (g *Generic) ByteOrder() ByteOrder { return g.byteOrder }

func (g *Generic) IsGlobalMemory(loc ir.MemoryLocation) bool {
	return loc.Domain == ir.DomainMemory
}
