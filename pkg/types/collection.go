// Package types provides the core data types of the explorer: collections,
// properties, items, paged responses, filters and predicates.
package types

import "encoding/json"

// Collection describes a dataset as returned by the schema endpoint.
type Collection struct {
	// Slug uniquely identifies the collection
	Slug string `json:"slug"`

	// DisplayName is the human-readable name
	DisplayName string `json:"displayName"`

	// Description is free text shown on the collection page
	Description string `json:"description"`

	// URL is an optional external link
	URL string `json:"url,omitempty"`

	// FlagLargeCollection marks collections too large to count quickly
	FlagLargeCollection bool `json:"flag_large_collection"`

	// Count is the total number of items, nil if unknown
	Count *int64 `json:"count"`

	// PreFilters are canned predicates offered for this collection
	PreFilters []PreFilter `json:"preFilters"`

	// Exporters lists collection exporter slugs the backend suggests
	Exporters []string `json:"exporters,omitempty"`

	// Metadata is opaque backend metadata
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// Properties are the column definitions
	Properties []Property `json:"properties"`
}

// Property is one column definition of a collection.
type Property struct {
	Slug        string          `json:"slug"`
	DisplayName string          `json:"displayName"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`

	// Codec names the codec governing this column's values
	Codec string `json:"codec"`

	// Default marks properties shown when no columns are selected
	Default bool `json:"default,omitempty"`
}

// PreFilter is a backend-defined named predicate with a precomputed count.
type PreFilter struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
	Count       *int64 `json:"count"`
}

// Item is a single record keyed by property slug plus the reserved "_id".
type Item map[string]any

// ItemIDKey is the reserved key holding an item's identifier.
const ItemIDKey = "_id"

// ID returns the item identifier as a string, or "" if absent.
func (it Item) ID() string {
	switch v := it[ItemIDKey].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
