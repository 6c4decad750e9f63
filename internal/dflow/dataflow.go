package dflow

import "github.com/reliftlabs/relift/internal/ir"

// Dataflow accumulates the analysis results for one function: for every
// term its abstract value, its memory location, and the definitions
// reaching its reads. Entries appear lazily on first access and absent
// entries mean "no information".
type Dataflow struct {
	values      map[ir.Term]*Value
	locations   map[ir.Term]ir.MemoryLocation
	definitions map[ir.Term]*ReachingDefinitions
}

func NewDataflow() *Dataflow {
	return &Dataflow{
		values:      make(map[ir.Term]*Value),
		locations:   make(map[ir.Term]ir.MemoryLocation),
		definitions: make(map[ir.Term]*ReachingDefinitions),
	}
}

// Value returns the record for the term, creating it on first use.
// A term with a source (a write on the left of an assignment) shares the
// record of its source, so the written value is the assigned one.
func (d *Dataflow) Value(t ir.Term) *Value {
	if v := d.values[t]; v != nil {
		return v
	}
	var v *Value
	if src := t.Source(); src != nil {
		v = d.Value(src)
	} else {
		v = &Value{}
	}
	d.values[t] = v
	return v
}

// MemoryLocation returns the location assigned to the term, or the empty
// sentinel.
func (d *Dataflow) MemoryLocation(t ir.Term) ir.MemoryLocation {
	return d.locations[t]
}

func (d *Dataflow) setMemoryLocation(t ir.Term, loc ir.MemoryLocation) {
	d.locations[t] = loc
}

// Definitions returns the reaching definitions recorded for the term's
// reads, creating an empty set on first use.
func (d *Dataflow) Definitions(t ir.Term) *ReachingDefinitions {
	defs := d.definitions[t]
	if defs == nil {
		defs = &ReachingDefinitions{}
		d.definitions[t] = defs
	}
	return defs
}

// LookupValue returns the recorded value without creating one.
func (d *Dataflow) LookupValue(t ir.Term) (*Value, bool) {
	v, ok := d.values[t]
	return v, ok
}

// HasDefinitions reports whether a non-empty definitions set is recorded
// for the term.
func (d *Dataflow) HasDefinitions(t ir.Term) bool {
	defs := d.definitions[t]
	return defs != nil && !defs.IsEmpty()
}

func (d *Dataflow) removeWhere(disappeared func(ir.Term) bool) {
	for t := range d.values {
		if disappeared(t) {
			delete(d.values, t)
		}
	}
	for t := range d.locations {
		if disappeared(t) {
			delete(d.locations, t)
		}
	}
	for t := range d.definitions {
		if disappeared(t) {
			delete(d.definitions, t)
		}
	}
}
