package dflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackOffsetFlag(t *testing.T) {
	var v Value
	assert.False(t, v.IsStackOffset())
	assert.False(t, v.IsNotStackOffset())

	v.MakeStackOffset(-16)
	assert.True(t, v.IsStackOffset())
	assert.Equal(t, int64(-16), v.StackOffset())

	// Same offset again keeps the flag.
	v.MakeStackOffset(-16)
	assert.True(t, v.IsStackOffset())

	// A conflicting offset demotes.
	v.MakeStackOffset(-24)
	assert.True(t, v.IsNotStackOffset())

	// Ruled out stays ruled out.
	v.MakeStackOffset(-16)
	assert.True(t, v.IsNotStackOffset())
}

func TestNotStackOffsetWins(t *testing.T) {
	var v Value
	v.MakeStackOffset(8)
	v.MakeNotStackOffset()
	assert.True(t, v.IsNotStackOffset())
	assert.False(t, v.IsStackOffset())
}

func TestProductFlag(t *testing.T) {
	var v Value
	assert.False(t, v.IsProduct())
	assert.False(t, v.IsNotProduct())

	v.MakeProduct()
	assert.True(t, v.IsProduct())

	v.MakeNotProduct()
	assert.True(t, v.IsNotProduct())

	v.MakeProduct()
	assert.True(t, v.IsNotProduct(), "not-product is final")
}
