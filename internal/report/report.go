// Package report renders the facts accumulated by the dataflow analysis
// in a human-readable, colorized form.
package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/reliftlabs/relift/internal/dflow"
	"github.com/reliftlabs/relift/internal/ir"
)

var (
	funcStyle  = color.New(color.FgCyan, color.Bold)
	blockStyle = color.New(color.FgBlue, color.Bold)
	termStyle  = color.New(color.FgYellow)
	valueStyle = color.New(color.FgGreen)
	locStyle   = color.New(color.FgMagenta)
)

// FormatFunction renders the statements of fn together with the facts
// recorded for their terms.
func FormatFunction(fn *ir.Function, df *dflow.Dataflow) string {
	var sb strings.Builder
	sb.WriteString(funcStyle.Sprintf("func %s\n", fn.Name()))
	for _, block := range fn.BasicBlocks() {
		sb.WriteString(blockStyle.Sprintf("  block %s\n", block.Name()))
		for _, st := range block.Statements() {
			sb.WriteString("    " + st.String() + "\n")
			ir.StatementTerms(st, func(t ir.Term) {
				if line := formatTermFacts(t, df); line != "" {
					sb.WriteString("      " + line + "\n")
				}
			})
		}
	}
	return sb.String()
}

// formatTermFacts returns one line of facts for the term, or "" when
// nothing interesting is recorded.
func formatTermFacts(t ir.Term, df *dflow.Dataflow) string {
	var parts []string

	if v, ok := df.LookupValue(t); ok && !v.AbstractValue().IsEmpty() {
		parts = append(parts, valueStyle.Sprint(v.AbstractValue().String()))
		if v.IsStackOffset() {
			parts = append(parts, fmt.Sprintf("stack-offset(%d)", v.StackOffset()))
		}
		if v.IsProduct() {
			parts = append(parts, "product")
		}
	}

	if loc := df.MemoryLocation(t); !loc.IsEmpty() {
		parts = append(parts, locStyle.Sprint(loc.String()))
	}

	if df.HasDefinitions(t) {
		parts = append(parts, fmt.Sprintf("defs %s", df.Definitions(t)))
	}

	if len(parts) == 0 {
		return ""
	}
	return termStyle.Sprint(t.String()) + " => " + strings.Join(parts, ", ")
}
