// Package export runs paginated exports of a filtered collection. A Job
// walks every page of a query, folds each page into an exporter's
// accumulator and produces a single downloadable Artifact.
package export

import (
	"context"
	"iter"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// PageSize is the number of items requested per export page.
const PageSize = 1000

// Source is the query backend an export reads from.
type Source interface {
	FetchCollection(ctx context.Context, slug string) (*types.Collection, error)
	FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error)
	FetchItems(ctx context.Context, coll *types.Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error)
}

// PageQuery selects the pages walked by Pages.
type PageQuery struct {
	Collection *types.Collection
	Columns    []string
	Predicate  types.Predicate
	Order      string
	PerPage    int
}

// Page is one fetched page together with its 1-based index.
type Page struct {
	Index int
	*types.ItemPage
}

// Pages returns the lazy sequence of result pages, starting at page 1.
// Before each fetch gate is called with the page index; when it returns
// false the sequence yields ErrCancelled and ends. The sequence also ends
// after the first page whose next link is empty, or after a fetch error.
func Pages(ctx context.Context, src Source, q PageQuery, gate func(index int) bool) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for index := 1; ; index++ {
			if gate != nil && !gate(index) {
				yield(Page{Index: index}, ErrCancelled)
				return
			}
			resp, err := src.FetchItems(ctx, q.Collection, q.Columns, q.Predicate, q.Order, index, q.PerPage)
			if err != nil {
				yield(Page{Index: index}, err)
				return
			}
			if !yield(Page{Index: index, ItemPage: resp}, nil) {
				return
			}
			if !resp.HasNext() {
				return
			}
		}
	}
}
