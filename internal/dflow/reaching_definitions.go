package dflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reliftlabs/relift/internal/ir"
)

// Chunk is a contiguous bit range together with the write terms that
// define its bits.
type Chunk struct {
	location    ir.MemoryLocation
	definitions []ir.Term
}

// Location returns the bit range the chunk covers.
func (c Chunk) Location() ir.MemoryLocation { return c.location }

// Definitions returns the terms defining the chunk's bits.
func (c Chunk) Definitions() []ir.Term { return c.definitions }

func (c Chunk) withLocation(loc ir.MemoryLocation) Chunk {
	return Chunk{location: loc, definitions: append([]ir.Term(nil), c.definitions...)}
}

func sameDefinitions(a, b []ir.Term) bool {
	if len(a) != len(b) {
		return false
	}
	for _, t := range a {
		if !containsTerm(b, t) {
			return false
		}
	}
	return true
}

func containsTerm(defs []ir.Term, t ir.Term) bool {
	for _, d := range defs {
		if d == t {
			return true
		}
	}
	return false
}

func unionDefinitions(a, b []ir.Term) []ir.Term {
	out := make([]ir.Term, 0, len(a)+len(b))
	out = append(out, a...)
	for _, t := range b {
		if !containsTerm(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// ReachingDefinitions maps disjoint bit ranges to the sets of terms that
// may have defined them. Chunks are kept sorted by (domain, address),
// pairwise disjoint and non-empty.
type ReachingDefinitions struct {
	chunks []Chunk
}

// Chunks returns the chunks in address order.
func (r *ReachingDefinitions) Chunks() []Chunk { return r.chunks }

// IsEmpty reports whether no definition is recorded.
func (r *ReachingDefinitions) IsEmpty() bool { return len(r.chunks) == 0 }

// Clear drops all chunks.
func (r *ReachingDefinitions) Clear() { r.chunks = nil }

// Clone returns a deep copy.
func (r *ReachingDefinitions) Clone() ReachingDefinitions {
	out := ReachingDefinitions{chunks: make([]Chunk, len(r.chunks))}
	for i, c := range r.chunks {
		out.chunks[i] = Chunk{
			location:    c.location,
			definitions: append([]ir.Term(nil), c.definitions...),
		}
	}
	return out
}

func locLess(a, b ir.MemoryLocation) bool {
	if a.Domain != b.Domain {
		return a.Domain < b.Domain
	}
	return a.Addr < b.Addr
}

// AddDefinition records term as the definition of every bit of loc,
// overwriting earlier definitions of those bits. Partially overlapped
// chunks are split so the disjointness invariant holds.
func (r *ReachingDefinitions) AddDefinition(loc ir.MemoryLocation, term ir.Term) {
	if loc.IsEmpty() {
		return
	}
	r.carve(loc)
	r.insert(Chunk{location: loc, definitions: []ir.Term{term}})
	r.coalesce()
}

// KillDefinitions removes all definitions of the bits of loc.
func (r *ReachingDefinitions) KillDefinitions(loc ir.MemoryLocation) {
	if loc.IsEmpty() {
		return
	}
	r.carve(loc)
	r.coalesce()
}

// carve removes the bits of loc from every chunk, splitting chunks that
// stick out on either side.
func (r *ReachingDefinitions) carve(loc ir.MemoryLocation) {
	out := r.chunks[:0:0]
	for _, c := range r.chunks {
		if !c.location.Overlaps(loc) {
			out = append(out, c)
			continue
		}
		if c.location.Addr < loc.Addr {
			left := ir.NewMemoryLocation(c.location.Domain, c.location.Addr, loc.Addr-c.location.Addr)
			out = append(out, c.withLocation(left))
		}
		if loc.EndAddr() < c.location.EndAddr() {
			right := ir.NewMemoryLocation(c.location.Domain, loc.EndAddr(), c.location.EndAddr()-loc.EndAddr())
			out = append(out, c.withLocation(right))
		}
	}
	r.chunks = out
}

func (r *ReachingDefinitions) insert(c Chunk) {
	i := sort.Search(len(r.chunks), func(i int) bool {
		return !locLess(r.chunks[i].location, c.location)
	})
	r.chunks = append(r.chunks, Chunk{})
	copy(r.chunks[i+1:], r.chunks[i:])
	r.chunks[i] = c
}

// coalesce merges adjacent chunks with identical definition sets.
func (r *ReachingDefinitions) coalesce() {
	if len(r.chunks) < 2 {
		return
	}
	out := r.chunks[:1]
	for _, c := range r.chunks[1:] {
		last := &out[len(out)-1]
		if last.location.Domain == c.location.Domain &&
			last.location.EndAddr() == c.location.Addr &&
			sameDefinitions(last.definitions, c.definitions) {
			last.location.Size += c.location.Size
			continue
		}
		out = append(out, c)
	}
	r.chunks = out
}

// Project returns the definitions of the bits of loc. Chunk locations in
// the result are clipped to loc.
func (r *ReachingDefinitions) Project(loc ir.MemoryLocation) ReachingDefinitions {
	var out ReachingDefinitions
	for _, c := range r.chunks {
		if !c.location.Overlaps(loc) {
			continue
		}
		addr := max64(c.location.Addr, loc.Addr)
		end := min64(c.location.EndAddr(), loc.EndAddr())
		clipped := ir.NewMemoryLocation(loc.Domain, addr, end-addr)
		out.chunks = append(out.chunks, Chunk{
			location:    clipped,
			definitions: append([]ir.Term(nil), c.definitions...),
		})
	}
	return out
}

// Merge unions other into r: every bit ends up defined by the union of
// the terms defining it in either operand. Chunks are split where the
// operands' boundaries disagree.
func (r *ReachingDefinitions) Merge(other ReachingDefinitions) {
	if other.IsEmpty() {
		return
	}
	if r.IsEmpty() {
		*r = other.Clone()
		return
	}
	all := make([]Chunk, 0, len(r.chunks)+len(other.chunks))
	all = append(all, r.chunks...)
	all = append(all, other.chunks...)

	var domains []ir.MemoryDomain
	points := map[ir.MemoryDomain][]int64{}
	for _, c := range all {
		d := c.location.Domain
		if _, seen := points[d]; !seen {
			domains = append(domains, d)
		}
		points[d] = append(points[d], c.location.Addr, c.location.EndAddr())
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	var merged []Chunk
	for _, d := range domains {
		ps := points[d]
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
		ps = uniq64(ps)
		for i := 0; i+1 < len(ps); i++ {
			interval := ir.NewMemoryLocation(d, ps[i], ps[i+1]-ps[i])
			// Elementary intervals never straddle a chunk boundary, so
			// overlap implies containment.
			var defs []ir.Term
			for _, c := range all {
				if c.location.Covers(interval) {
					defs = unionDefinitions(defs, c.definitions)
				}
			}
			if defs != nil {
				merged = append(merged, Chunk{location: interval, definitions: defs})
			}
		}
	}
	r.chunks = merged
	r.coalesce()
}

// FilterOut removes every (location, term) pair satisfying the predicate
// and drops chunks left without definitions.
func (r *ReachingDefinitions) FilterOut(pred func(ir.MemoryLocation, ir.Term) bool) {
	out := r.chunks[:0]
	for _, c := range r.chunks {
		kept := c.definitions[:0]
		for _, t := range c.definitions {
			if !pred(c.location, t) {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			c.definitions = kept
			out = append(out, c)
		}
	}
	r.chunks = out
	r.coalesce()
}

// Equal reports whether r and other have the same chunk boundaries with
// the same definition sets.
func (r *ReachingDefinitions) Equal(other ReachingDefinitions) bool {
	if len(r.chunks) != len(other.chunks) {
		return false
	}
	for i, c := range r.chunks {
		o := other.chunks[i]
		if c.location != o.location || !sameDefinitions(c.definitions, o.definitions) {
			return false
		}
	}
	return true
}

func (r *ReachingDefinitions) String() string {
	var parts []string
	for _, c := range r.chunks {
		parts = append(parts, fmt.Sprintf("%s<-%d", c.location, len(c.definitions)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func uniq64(xs []int64) []int64 {
	out := xs[:0]
	for i, x := range xs {
		if i == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
