// # Description
//
// Package dflow computes dataflow facts for a lifted function by abstract
// interpretation over a bit-precise value lattice.
//
// ## Facts
//
// For every term of the function the analysis produces:
//
//   - an abstract value recording which bits are statically known;
//   - a memory location, when the term denotes memory, with a resolved
//     bit address;
//   - the definitions reaching each read: the writes whose locations
//     overlap the read and may supply its value;
//   - stack-offset and product flags used later to reconstruct variables
//     and addressing expressions.
//
// ## Fixed point
//
// Memory locations are resolved from values computed by the same
// analysis, so reads and writes create their own locations and the
// interpretation must iterate. The driver sweeps all basic blocks until
// the per-block reaching definitions are unchanged for several
// consecutive sweeps, with a hard cap on the number of sweeps.
//
// Absent entries in the resulting Dataflow mean "no information".
package dflow
