package report

import (
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliftlabs/relift/internal/arch"
	"github.com/reliftlabs/relift/internal/dflow"
	"github.com/reliftlabs/relift/internal/ir"
)

func init() {
	color.NoColor = true
}

func analyzed(t *testing.T) (*ir.Function, *dflow.Dataflow) {
	t.Helper()

	r0 := ir.NewMemoryAccess(ir.NewMemoryLocation(ir.DomainRegisters, 0, 32))
	block := ir.NewBasicBlock("entry")
	block.Append(ir.NewAssignment(r0, ir.NewConstant(0x10, 32)))
	block.Append(ir.NewAssignment(
		ir.NewMemoryAccess(ir.NewMemoryLocation(ir.DomainRegisters, 64, 32)),
		ir.NewBinary(ir.Add, ir.NewMemoryAccess(ir.NewMemoryLocation(ir.DomainRegisters, 0, 32)), ir.NewConstant(4, 32), 32),
	))

	fn := ir.NewFunction("main")
	fn.Append(block)

	dataflow := dflow.NewDataflow()
	analyzer := dflow.NewAnalyzer(dataflow, arch.NewGeneric(arch.LittleEndian), nil)
	require.NoError(t, analyzer.Analyze(context.Background(), fn))
	return fn, dataflow
}

func TestFormatFunction(t *testing.T) {
	fn, dataflow := analyzed(t)

	out := FormatFunction(fn, dataflow)

	assert.Contains(t, out, "func main")
	assert.Contains(t, out, "block entry")
	assert.Contains(t, out, "reg[0..32) = 0x10:32")
	assert.Contains(t, out, "0x14", "the computed sum is rendered")
	assert.Contains(t, out, "reg[0..32)")
}

func TestFormatFunctionSkipsUnknownTerms(t *testing.T) {
	fn := ir.NewFunction("empty")
	block := ir.NewBasicBlock("entry")
	block.Append(ir.NewReturn())
	fn.Append(block)

	out := FormatFunction(fn, dflow.NewDataflow())

	assert.Contains(t, out, "func empty")
	assert.Contains(t, out, "ret")
	assert.NotContains(t, out, "=>")
}
