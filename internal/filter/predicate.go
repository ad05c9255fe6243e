// Package filter builds query predicates from user actions and reduces
// them to the form sent to the backend.
package filter

import (
	"strings"
	"sync/atomic"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// UIDSource hands out process-local filter identities.
type UIDSource struct {
	next atomic.Uint64
}

// Next returns a fresh identity. Identities start at 1 so the zero value
// marks a filter that has not been assigned one.
func (s *UIDSource) Next() uint64 {
	return s.next.Add(1)
}

var defaultUIDs UIDSource

// NextUID returns a fresh identity from the process-wide source.
func NextUID() uint64 {
	return defaultUIDs.Next()
}

// Action is a predicate edit.
type Action interface {
	apply(p types.Predicate) types.Predicate
}

// Add appends an incomplete filter on Slug.
type Add struct {
	Slug string
	// UID overrides the process-wide identity source when non-zero
	UID uint64
}

// Update replaces the value of the filter at Index.
type Update struct {
	Index int
	Value *string
}

// Remove deletes the filter at Index.
type Remove struct {
	Index int
}

// SelectPreFilter replaces the selected pre-filter. A nil PreFilter clears it.
type SelectPreFilter struct {
	PreFilter *types.PreFilter
}

// Reduce applies a to p and returns the new predicate. p is never
// modified. Out of range indices leave the predicate unchanged.
func Reduce(p types.Predicate, a Action) types.Predicate {
	if a == nil {
		return p
	}
	return a.apply(p)
}

func (a Add) apply(p types.Predicate) types.Predicate {
	uid := a.UID
	if uid == 0 {
		uid = NextUID()
	}
	filters := make([]types.Filter, len(p.Filters), len(p.Filters)+1)
	copy(filters, p.Filters)
	p.Filters = append(filters, types.Filter{UID: uid, Slug: a.Slug})
	return p
}

func (a Update) apply(p types.Predicate) types.Predicate {
	if a.Index < 0 || a.Index >= len(p.Filters) {
		return p
	}
	filters := make([]types.Filter, len(p.Filters))
	copy(filters, p.Filters)
	filters[a.Index] = filters[a.Index].WithValue(a.Value)
	p.Filters = filters
	return p
}

func (a Remove) apply(p types.Predicate) types.Predicate {
	if a.Index < 0 || a.Index >= len(p.Filters) {
		return p
	}
	filters := make([]types.Filter, 0, len(p.Filters)-1)
	filters = append(filters, p.Filters[:a.Index]...)
	filters = append(filters, p.Filters[a.Index+1:]...)
	p.Filters = filters
	return p
}

func (a SelectPreFilter) apply(p types.Predicate) types.Predicate {
	p.PreFilter = a.PreFilter
	return p
}

// Restore assigns fresh identities to filters that carry none, as happens
// after decoding saved state.
func Restore(filters []types.Filter, uids *UIDSource) []types.Filter {
	if filters == nil {
		return nil
	}
	out := make([]types.Filter, len(filters))
	for i, f := range filters {
		if f.UID == 0 {
			if uids != nil {
				f.UID = uids.Next()
			} else {
				f.UID = NextUID()
			}
		}
		out[i] = f
	}
	return out
}

// Wire reduces p to the filters that reach the backend, dropping those
// still being edited.
func Wire(p types.Predicate) []types.WireFilter {
	out := make([]types.WireFilter, 0, len(p.Filters))
	for _, f := range p.Filters {
		if !f.Complete() {
			continue
		}
		out = append(out, types.WireFilter{Slug: f.Slug, Value: *f.Value})
	}
	return out
}

// Expression renders p as the backend filter parameter: the pre-filter
// condition first, then one clause per complete filter, joined by "&&".
func Expression(p types.Predicate) string {
	wire := Wire(p)
	clauses := make([]string, 0, len(wire)+1)
	if p.PreFilter != nil {
		clauses = append(clauses, "("+p.PreFilter.Condition+")")
	}
	for _, f := range wire {
		clauses = append(clauses, "("+f.Slug+f.Value+")")
	}
	return strings.Join(clauses, "&&")
}

// Visible returns the filters of p whose slug still names a property of
// coll. Dangling filters are hidden, not reported.
func Visible(p types.Predicate, coll *types.Collection) []types.Filter {
	if coll == nil {
		return nil
	}
	known := make(map[string]struct{}, len(coll.Properties))
	for _, prop := range coll.Properties {
		known[prop.Slug] = struct{}{}
	}
	out := make([]types.Filter, 0, len(p.Filters))
	for _, f := range p.Filters {
		if _, ok := known[f.Slug]; ok {
			out = append(out, f)
		}
	}
	return out
}
