package filter

import (
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// wirePredicate is the hashed view of a predicate.
type wirePredicate struct {
	PreFilter *string            `json:"pre_filter"`
	Filters   []types.WireFilter `json:"filters"`
}

// Hash returns the canonical JSON encoding of v. Struct fields encode in
// declaration order and map keys sorted, so equal values hash equally.
func Hash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// only channels, funcs and cyclic values end up here
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

// Key returns a compact 128-bit murmur3 digest of Hash(v) as hex.
func Key(v any) string {
	h1, h2 := murmur3.Sum128([]byte(Hash(v)))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// PredicateHash hashes the backend-visible part of p: the pre-filter
// condition and the complete filters in order. Identities, incomplete
// filters and the pre-filter's description and count do not contribute.
func PredicateHash(p types.Predicate) string {
	return Hash(WireView(p))
}

// WireView returns the backend-visible part of p in its hashed shape.
func WireView(p types.Predicate) any {
	return wirePredicate{PreFilter: Condition(p.PreFilter), Filters: Wire(p)}
}

// Condition returns the condition of pf, or nil without a pre-filter.
func Condition(pf *types.PreFilter) *string {
	if pf == nil {
		return nil
	}
	return &pf.Condition
}
