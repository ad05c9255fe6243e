package codec

import (
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Fallback stands in for a codec slug with no registration. Values are
// still rendered, but always carry an "Unknown Codec" badge.
type Fallback struct {
	slug string
}

// NewFallback returns a Fallback for slug. Callers should go through
// Registry.GetWithFallback so each unknown slug maps to one instance.
func NewFallback(slug string) *Fallback {
	return &Fallback{slug: slug}
}

func (f *Fallback) Slug() string      { return f.slug }
func (f *Fallback) Ordered() Ordering { return Unordered }

func (f *Fallback) Present(value any) Cell {
	return Cell{
		Text:  export.FormatValue(value),
		Badge: "Unknown Codec " + f.slug,
	}
}

func (f *Fallback) ParseFilterValue(*string) any { return nil }

func (f *Fallback) CleanFilterValue(any, *string) types.ValidationResult {
	return types.Reject("Unknown codec")
}

func (f *Fallback) HiddenFromFilterList(types.Property) bool { return true }
