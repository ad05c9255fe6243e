package client

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// FetchItems fetches one 1-based page of items of coll restricted to the
// given columns, filtered by pred and sorted by order.
func (c *Client) FetchItems(ctx context.Context, coll *Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}
	params := map[string]string{
		"properties": strings.Join(columns, ","),
		"page":       strconv.Itoa(page),
		"per_page":   strconv.Itoa(perPage),
		"order":      BuildSortOrder(coll, columns, order),
		"filter":     filter.Expression(pred),
	}

	var resp types.ItemPage
	if err := c.fetchJSON(ctx, "/query/"+url.PathEscape(coll.Slug)+"/", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchItemCount returns the number of items of the collection named slug
// matching pred.
func (c *Client) FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	params := map[string]string{"filter": filter.Expression(pred)}
	if err := c.fetchJSON(ctx, "/query/"+url.PathEscape(slug)+"/count/", params, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// SortPart is one entry of a sort order string.
type SortPart struct {
	// Mod is "+", "-" or "" when no direction was given
	Mod string
	ID  string
}

// ParseSortPart splits a sort entry into its direction modifier and
// property slug.
func ParseSortPart(part string) SortPart {
	if rest, ok := strings.CutPrefix(part, "+"); ok {
		return SortPart{Mod: "+", ID: rest}
	}
	if rest, ok := strings.CutPrefix(part, "-"); ok {
		return SortPart{Mod: "-", ID: rest}
	}
	return SortPart{ID: part}
}

// BuildSortOrder builds the order parameter sent to the backend. Properties
// missing from order are appended in schema order. Only requested, known
// and orderable properties are kept, and entries without a direction get
// their codec's default one.
func BuildSortOrder(coll *Collection, properties []string, order string) string {
	sorder := strings.Split(order, ",")

	mentioned := make(map[string]struct{}, len(sorder))
	for _, n := range sorder {
		mentioned[ParseSortPart(n).ID] = struct{}{}
	}
	for _, slug := range coll.PropertySlugs {
		if _, ok := mentioned[slug]; !ok {
			sorder = append(sorder, slug)
		}
	}

	out := make([]string, 0, len(sorder))
	for _, n := range sorder {
		part := ParseSortPart(n)
		if !slices.Contains(properties, part.ID) {
			continue
		}
		if _, ok := coll.PropMap[part.ID]; !ok {
			continue
		}
		if !coll.Orderable(part.ID) {
			continue
		}
		if part.Mod != "" {
			out = append(out, n)
			continue
		}
		out = append(out, coll.CodecMap[part.ID].Ordered().Sign()+n)
	}
	return strings.Join(out, ",")
}

type itemsHash struct {
	Collection string             `json:"collection"`
	PreFilter  *string            `json:"pre_filter"`
	Filters    []types.WireFilter `json:"filters"`
	Properties []string           `json:"properties"`
	Order      string             `json:"order"`
	PageNumber int                `json:"page_number"`
	PerPage    int                `json:"per_page"`
}

type countHash struct {
	Collection string             `json:"collection"`
	PreFilter  *string            `json:"pre_filter"`
	Filters    []types.WireFilter `json:"filters"`
}

// HashFetchItems hashes the arguments of FetchItems. Incomplete filters
// and filter identities do not contribute.
func HashFetchItems(slug string, properties []string, pred types.Predicate, order string, page, perPage int) string {
	return filter.Hash(itemsHash{
		Collection: slug,
		PreFilter:  filter.Condition(pred.PreFilter),
		Filters:    filter.Wire(pred),
		Properties: properties,
		Order:      order,
		PageNumber: page,
		PerPage:    perPage,
	})
}

// HashFetchItemCount hashes the arguments of FetchItemCount. Two calls with
// equal hashes request the same count.
func HashFetchItemCount(slug string, pred types.Predicate) string {
	return filter.Hash(countHash{
		Collection: slug,
		PreFilter:  filter.Condition(pred.PreFilter),
		Filters:    filter.Wire(pred),
	})
}
