// Package codec defines how typed column values are parsed, validated,
// serialized as filters and rendered. Codecs are looked up by slug through a
// Registry; unknown slugs resolve to a per-slug Fallback.
package codec

import (
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Ordering describes whether and in which default direction values of a
// codec can be sorted by the backend.
type Ordering int

const (
	Unordered Ordering = iota
	Ascending
	Descending
)

// Orderable reports whether the backend can sort by this codec.
func (o Ordering) Orderable() bool {
	return o != Unordered
}

// Sign returns the default sort prefix, "+" or "-".
func (o Ordering) Sign() string {
	if o == Descending {
		return "-"
	}
	return "+"
}

func (o Ordering) String() string {
	switch o {
	case Ascending:
		return "+"
	case Descending:
		return "-"
	default:
		return "false"
	}
}

// Cell is the display representation of a single value.
type Cell struct {
	// Text is the plain-text rendering, empty for null values
	Text string `json:"text"`

	// Rows holds a tabular rendering for matrix-like values
	Rows [][]string `json:"rows,omitempty"`

	// Badge is a visible warning attached to the value
	Badge string `json:"badge,omitempty"`
}

// Codec is the capability contract every value type implements.
type Codec interface {
	// Slug uniquely identifies the codec and its configuration.
	Slug() string

	// Ordered reports the default sort direction, or Unordered.
	Ordered() Ordering

	// Present renders one decoded value for display.
	Present(value any) Cell

	// ParseFilterValue turns a serialized filter value into the editing
	// representation. It never fails; malformed input yields a neutral value.
	ParseFilterValue(raw *string) any

	// CleanFilterValue validates an editing value and returns its canonical
	// serialized form. It is pure and idempotent.
	CleanFilterValue(value any, lastValid *string) types.ValidationResult
}

// InputKind names the kind of editor a filterable codec offers.
type InputKind string

const (
	InputText   InputKind = "text"
	InputToggle InputKind = "toggle"
)

// FilterEditor is implemented by codecs offering an input for filter values.
type FilterEditor interface {
	FilterInput() InputKind
}

// FilterViewer is implemented by codecs that can describe an applied filter.
type FilterViewer interface {
	ViewFilter(value any) string
}

// FilterListPolicy overrides the default filter-list visibility rule.
type FilterListPolicy interface {
	HiddenFromFilterList(prop types.Property) bool
}

// Clipboarder is implemented by codecs with a single-line text form.
type Clipboarder interface {
	// ToClipboardValue returns false when no sensible text form exists.
	ToClipboardValue(value any) (string, bool)
}

// ExportProvider is implemented by codecs offering exporters for their column.
type ExportProvider interface {
	Exporters() []export.ValueExporter
}

// HiddenFromFilterList reports whether prop should be left out of the
// "add a filter" list. By default a property is hidden iff its codec has
// neither an editor nor a viewer.
func HiddenFromFilterList(c Codec, prop types.Property) bool {
	if p, ok := c.(FilterListPolicy); ok {
		return p.HiddenFromFilterList(prop)
	}
	_, editor := c.(FilterEditor)
	_, viewer := c.(FilterViewer)
	return !editor && !viewer
}

// ToClipboard returns the clipboard text of value, if the codec has one.
func ToClipboard(c Codec, value any) (string, bool) {
	cl, ok := c.(Clipboarder)
	if !ok || value == nil {
		return "", false
	}
	return cl.ToClipboardValue(value)
}

// ExportersOf returns the column exporters a codec offers, if any.
func ExportersOf(c Codec) []export.ValueExporter {
	if p, ok := c.(ExportProvider); ok {
		return p.Exporters()
	}
	return nil
}

// noFilter is embedded by codecs that do not support filtering.
type noFilter struct{}

func (noFilter) ParseFilterValue(*string) any { return nil }

func (noFilter) CleanFilterValue(any, *string) types.ValidationResult {
	return types.Reject("")
}

// unsupported rejects every filter value for the named codec.
func unsupported(slug string) types.ValidationResult {
	return types.Reject("Filtering for " + slug + " not supported")
}
