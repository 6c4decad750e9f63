// # Description
//
// Package cfg provides predecessor and successor queries over the basic
// blocks of a lifted function.
//
// ## Control Flow Graph (CFG)
//
// A CFG is a representation, using graph notation, of all paths that might
// be traversed through a function during its execution:
//
//   - Each node is a basic block (straight-line code without jumps in).
//   - Directed edges represent transfers of control between blocks.
//
// Edges are recovered from the jump statements of each block; jumps whose
// target address is computed and not resolved to a block contribute no
// edge.
//
// ## Package Functionality
//
//  1. Build a graph from a function's basic blocks with New.
//  2. Query Predecessors and Successors during iterative analyses.
package cfg
