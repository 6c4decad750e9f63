package cfg

import "github.com/reliftlabs/relift/internal/ir"

// Graph holds the control-flow edges between the basic blocks of one
// function.
type Graph struct {
	blocks       []*ir.BasicBlock
	predecessors map[*ir.BasicBlock][]*ir.BasicBlock
	successors   map[*ir.BasicBlock][]*ir.BasicBlock
}

// New builds the graph for the given blocks by scanning their jump
// statements for resolved targets.
func New(blocks []*ir.BasicBlock) *Graph {
	g := &Graph{
		blocks:       blocks,
		predecessors: make(map[*ir.BasicBlock][]*ir.BasicBlock),
		successors:   make(map[*ir.BasicBlock][]*ir.BasicBlock),
	}
	for _, block := range blocks {
		for _, st := range block.Statements() {
			if st.Kind() != ir.StmtJump {
				continue
			}
			g.addEdgeTo(block, st.ThenTarget())
			g.addEdgeTo(block, st.ElseTarget())
		}
	}
	return g
}

func (g *Graph) addEdgeTo(from *ir.BasicBlock, target *ir.JumpTarget) {
	if target == nil || target.Block == nil {
		return
	}
	for _, succ := range g.successors[from] {
		if succ == target.Block {
			return
		}
	}
	g.successors[from] = append(g.successors[from], target.Block)
	g.predecessors[target.Block] = append(g.predecessors[target.Block], from)
}

// Blocks returns the blocks the graph was built from.
func (g *Graph) Blocks() []*ir.BasicBlock { return g.blocks }

// Predecessors returns the blocks with an edge into b.
func (g *Graph) Predecessors(b *ir.BasicBlock) []*ir.BasicBlock {
	return g.predecessors[b]
}

// Successors returns the blocks b has an edge into.
func (g *Graph) Successors(b *ir.BasicBlock) []*ir.BasicBlock {
	return g.successors[b]
}
