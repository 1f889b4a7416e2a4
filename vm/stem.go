package vm

import (
	"iter"
	"strings"
)

// ---------------------------------------------------------------------------
// Stem: container of compound variables
// ---------------------------------------------------------------------------

// Stem is a sparse array variable such as A. backed by a CompoundTable.
// An unassigned tail evaluates to the stem's default value when one has
// been assigned to the whole stem, otherwise to its own compound name.
type Stem struct {
	name       string
	table      *CompoundTable
	value      Value
	hasDefault bool
}

// NewStem creates an empty stem. The name is stored with a trailing
// period, so NewStem("A") and NewStem("A.") are equivalent.
func NewStem(name string) *Stem {
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	s := &Stem{name: name, table: NewCompoundTable()}
	s.table.owner = s
	return s
}

// Name returns the stem name including its trailing period.
func (s *Stem) Name() string { return s.name }

// Table returns the stem's compound table.
func (s *Stem) Table() *CompoundTable { return s.table }

// CompoundName returns the full variable name for tail, e.g. A.1.
func (s *Stem) CompoundName(tail string) string { return s.name + tail }

// Assign gives the whole stem a value. Every existing element is
// discarded and v becomes the default for all tails.
func (s *Stem) Assign(v Value) {
	s.table.Clear()
	s.value = v
	s.hasDefault = true
}

// Reset drops the stem: all elements and the default value go away.
func (s *Stem) Reset() {
	s.table.Clear()
	s.value = nil
	s.hasDefault = false
}

// Default returns the stem's default value, if one was assigned.
func (s *Stem) Default() (Value, bool) { return s.value, s.hasDefault }

// Lookup returns the value stored under tail without applying defaults.
func (s *Stem) Lookup(tail string) (Value, bool) {
	e, ok := s.table.Find(tail)
	if !ok || !e.Assigned() {
		return nil, false
	}
	return e.Value(), true
}

// Get evaluates the compound variable for tail.
func (s *Stem) Get(tail string) Value {
	if v, ok := s.Lookup(tail); ok {
		return v
	}
	if s.hasDefault {
		return s.value
	}
	return s.CompoundName(tail)
}

// Set assigns v to tail.
func (s *Stem) Set(tail string, v Value) {
	s.table.FindOrCreate(tail).Set(v)
}

// Drop drops the compound variable for tail.
func (s *Stem) Drop(tail string) {
	s.table.Remove(tail)
}

// Has reports whether tail holds an explicitly assigned value.
func (s *Stem) Has(tail string) bool {
	_, ok := s.Lookup(tail)
	return ok
}

// Items returns the number of assigned tails.
func (s *Stem) Items() int { return s.table.Len() }

// Empty drops every tail but keeps the default value.
func (s *Stem) Empty() { s.table.Clear() }

// Tails returns the assigned tails in table order.
func (s *Stem) Tails() []string { return s.table.Tails() }

// Values returns the assigned values in table order.
func (s *Stem) Values() []Value {
	values := make([]Value, 0, s.table.Len())
	for _, e := range s.table.All() {
		values = append(values, e.Value())
	}
	return values
}

// All yields the assigned tails and values in table order.
func (s *Stem) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for tail, e := range s.table.All() {
			if !yield(tail, e.Value()) {
				return
			}
		}
	}
}

// CopyFrom seeds s from other by value: the default value is replaced
// and every assigned element of other is stored into s.
func (s *Stem) CopyFrom(other *Stem) {
	if other == nil || other == s {
		return
	}
	s.value = other.value
	s.hasDefault = other.hasDefault
	s.table.CopyFrom(other.table)
}
