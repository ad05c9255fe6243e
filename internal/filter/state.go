package filter

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// State is the saved search state of a collection view.
type State struct {
	PerPage int            `json:"per_page"`
	Page    int            `json:"page"`
	Filters []types.Filter `json:"filters"`
	Columns []string       `json:"columns"`
	Widths  []float64      `json:"widths"`
}

// stateKeys is the allow-list of keys, in encoding order.
var stateKeys = []string{"per_page", "page", "filters", "columns", "widths"}

func (s *State) field(key string) any {
	switch key {
	case "per_page":
		return &s.PerPage
	case "page":
		return &s.Page
	case "filters":
		return &s.Filters
	case "columns":
		return &s.Columns
	case "widths":
		return &s.Widths
	}
	return nil
}

// EncodeState serializes s as "key=<escaped JSON>" pairs. Nil slices
// encode as null.
func EncodeState(s State) string {
	parts := make([]string, 0, len(stateKeys))
	for _, key := range stateKeys {
		b, err := json.Marshal(s.field(key))
		if err != nil {
			continue
		}
		parts = append(parts, key+"="+url.QueryEscape(string(b)))
	}
	return strings.Join(parts, "&")
}

// DecodeState parses a query string produced by EncodeState. Unknown keys
// and malformed values are skipped; null decodes to the zero value. It
// returns false when no saved state was found, in which case the caller
// substitutes defaults. Decoded filters carry no identity, see Restore.
func DecodeState(query string) (State, bool) {
	var s State
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return s, false
	}

	// ParseQuery keeps every well-formed pair even when it reports an error
	values, _ := url.ParseQuery(query)

	found := false
	for _, key := range stateKeys {
		raw, ok := values[key]
		if !ok || len(raw) == 0 {
			continue
		}
		var probe State
		if err := json.Unmarshal([]byte(raw[0]), probe.field(key)); err != nil {
			continue
		}
		copyField(&s, &probe, key)
		found = true
	}
	return s, found
}

func copyField(dst, src *State, key string) {
	switch key {
	case "per_page":
		dst.PerPage = src.PerPage
	case "page":
		dst.Page = src.Page
	case "filters":
		dst.Filters = src.Filters
	case "columns":
		dst.Columns = src.Columns
	case "widths":
		dst.Widths = src.Widths
	}
}

// Predicate returns the predicate stored in s with fresh identities.
func (s State) Predicate(preFilter *types.PreFilter) types.Predicate {
	return types.Predicate{Filters: Restore(s.Filters, nil), PreFilter: preFilter}
}
