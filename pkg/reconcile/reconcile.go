// Package reconcile merges registry contributions into one canonical,
// de-duplicated, override-resolved tag sequence per tag type.
//
// For every identity key only the declarations of the most recently
// registered contribution using that key survive, all of them together,
// in their original order. Unkeyed declarations are only filtered for
// validity. Reconcile is pure: the same snapshot always yields the same Set.
package reconcile

import (
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/registry"
)

// Entry is a declaration that survived reconciliation.
type Entry struct {
	Key      string
	Keyed    bool
	Decl     headtag.Declaration
	Sequence uint64
}

// Set is the canonical tag set, keyed by tag type.
type Set map[headtag.Type][]Entry

// Entries returns the canonical sequence for t.
func (s Set) Entries(t headtag.Type) []Entry {
	return s[t]
}

// Declarations returns the declarations of the canonical sequence for t.
func (s Set) Declarations(t headtag.Type) []headtag.Declaration {
	entries := s[t]
	out := make([]headtag.Declaration, len(entries))
	for i, e := range entries {
		out[i] = e.Decl
	}
	return out
}

// Len returns the total number of entries across all types.
func (s Set) Len() int {
	n := 0
	for _, entries := range s {
		n += len(entries)
	}
	return n
}

// Equal reports whether both sets hold the same entries in the same order.
// Types with empty sequences compare equal to absent types.
func (s Set) Equal(other Set) bool {
	for t, entries := range s {
		if !entriesEqual(entries, other[t]) {
			return false
		}
	}
	for t, entries := range other {
		if _, ok := s[t]; !ok && len(entries) > 0 {
			return false
		}
	}
	return true
}

func entriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || a[i].Keyed != b[i].Keyed ||
			a[i].Sequence != b[i].Sequence || !a[i].Decl.Equal(b[i].Decl) {
			return false
		}
	}
	return true
}

// Reconcile computes the canonical set for contributions, which must be in
// ascending sequence order as returned by registry.Snapshot. Every type in
// table has an entry in the result, empty when nothing survives.
func Reconcile(table *headtag.Table, contributions []registry.Contribution) Set {
	set := make(Set, len(table.Types()))
	for _, t := range table.Types() {
		set[t] = reconcileType(table, t, contributions)
	}
	return set
}

func reconcileType(table *headtag.Table, t headtag.Type, contributions []registry.Contribution) []Entry {
	// Concatenate in sequence order, dropping invalid declarations.
	var candidates []Entry
	for _, c := range contributions {
		for _, d := range c.Tags[t] {
			class := table.Classify(t, d)
			if !class.Valid {
				continue
			}
			candidates = append(candidates, Entry{
				Key:      class.Key,
				Keyed:    class.Keyed,
				Decl:     d,
				Sequence: c.Sequence,
			})
		}
	}

	winner := make(map[string]uint64)
	for _, e := range candidates {
		if e.Keyed && e.Sequence > winner[e.Key] {
			winner[e.Key] = e.Sequence
		}
	}

	out := make([]Entry, 0, len(candidates))
	for _, e := range candidates {
		if e.Keyed && e.Sequence < winner[e.Key] {
			continue
		}
		out = append(out, e)
	}
	return out
}
