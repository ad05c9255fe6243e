package filter

import (
	"fmt"

	"github.com/mathhub/mdh-explorer/internal/codec"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Editor carries one filter through its edit life cycle: the stored value
// is parsed into the codec's editing form, edited, validated and finally
// cleaned into the canonical string that replaces the filter's value.
type Editor struct {
	codec  codec.Codec
	filter types.Filter

	editing bool
	value   any
	valid   *bool
	message string
}

// NewEditor starts editing f with c. Incomplete filters start in edit mode.
func NewEditor(c codec.Codec, f types.Filter) *Editor {
	return &Editor{
		codec:   c,
		filter:  f,
		editing: !f.Complete(),
		value:   c.ParseFilterValue(f.Value),
	}
}

// Filter returns the filter as last applied.
func (e *Editor) Filter() types.Filter { return e.filter }

// Editing reports whether the editor is in edit mode.
func (e *Editor) Editing() bool { return e.editing }

// Value returns the current editing value.
func (e *Editor) Value() any { return e.value }

// Valid returns the result of the last validation, nil if the current
// value has not been validated.
func (e *Editor) Valid() *bool { return e.valid }

// Message returns the rejection message of the last validation.
func (e *Editor) Message() string { return e.message }

// Begin switches to edit mode.
func (e *Editor) Begin() {
	e.editing = true
	ok := true
	e.valid = &ok
	e.message = ""
}

// Set replaces the editing value and validates it unless suppressed.
func (e *Editor) Set(value any, suppressValidation bool) {
	e.value = value
	if suppressValidation {
		e.valid = nil
		e.message = ""
		return
	}
	res := e.validate()
	e.valid = &res.Valid
	e.message = res.Message
}

// Apply validates the editing value. When it is accepted the filter takes
// the canonical value, edit mode ends and the updated filter is returned
// with true. Otherwise the editor stays in edit mode.
func (e *Editor) Apply() (types.Filter, bool) {
	res := e.validate()
	e.valid = &res.Valid
	e.message = res.Message
	if !res.Valid {
		return e.filter, false
	}
	e.filter = e.filter.WithValue(types.StringPtr(res.Value))
	e.editing = false
	return e.filter, true
}

func (e *Editor) validate() (res types.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = types.Reject(fmt.Sprint(r))
		}
	}()
	return e.codec.CleanFilterValue(e.value, e.filter.Value)
}

// CleanPredicate runs every complete filter of p through the codec of its
// property, as an editor applying the stored value would. Accepted values
// are replaced by their canonical form. Rejected values, and filters on
// properties missing from codecs, become incomplete and never reach the
// backend. p is not modified.
func CleanPredicate(p types.Predicate, codecs map[string]codec.Codec) types.Predicate {
	if p.Filters == nil {
		return p
	}
	filters := make([]types.Filter, len(p.Filters))
	for i, f := range p.Filters {
		filters[i] = cleanFilter(f, codecs[f.Slug])
	}
	return types.Predicate{Filters: filters, PreFilter: p.PreFilter}
}

func cleanFilter(f types.Filter, c codec.Codec) types.Filter {
	if !f.Complete() {
		return f
	}
	if c == nil {
		return f.WithValue(nil)
	}
	ed := NewEditor(c, types.Filter{UID: f.UID, Slug: f.Slug})
	ed.Set(c.ParseFilterValue(f.Value), true)
	cleaned, ok := ed.Apply()
	if !ok {
		return f.WithValue(nil)
	}
	return cleaned
}
