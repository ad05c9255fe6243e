package view

import (
	"context"
	"sync"

	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Backend is the part of the query client the views read from.
type Backend interface {
	FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error)
	FetchItems(ctx context.Context, coll *client.Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error)
	FetchCollections(ctx context.Context, page, perPage int) (*types.PagedResponse[types.Collection], error)
}

var _ Backend = (*client.Client)(nil)

// Counter shows the number of items matching a predicate.
type Counter struct {
	src Backend
	d   domain[int64]
}

// NewCounter creates an item count view.
func NewCounter(src Backend, opts Options) *Counter {
	return &Counter{src: src, d: domain[int64]{name: "count", quiet: opts.Quiet}}
}

// Refresh requests the count for pred unless the same count is already
// shown. It reports whether the response was applied.
func (c *Counter) Refresh(ctx context.Context, coll *client.Collection, pred types.Predicate) bool {
	hash := client.HashFetchItemCount(coll.Slug, pred)
	return c.d.refresh(ctx, hash, false, func(ctx context.Context) (int64, error) {
		return c.src.FetchItemCount(ctx, coll.Slug, pred)
	})
}

// State returns the shown count.
func (c *Counter) State() State[int64] { return c.d.snapshot() }

// Query selects a results page.
type Query struct {
	Collection *client.Collection
	Columns    []string
	Predicate  types.Predicate
	Order      string
	Page       int
	PerPage    int
}

// Results shows one page of items. When the filter part of the query
// changes, the page number is reset to 1.
type Results struct {
	src Backend
	d   domain[*types.ItemPage]

	mu         sync.Mutex
	filterHash string
	page       int
}

// NewResults creates a results page view.
func NewResults(src Backend, opts Options) *Results {
	return &Results{src: src, d: domain[*types.ItemPage]{name: "results", quiet: opts.Quiet}}
}

// Refresh requests the page selected by q. It returns the page number
// actually requested, which is 1 whenever the filters changed since the
// previous call, and whether the response was applied.
func (r *Results) Refresh(ctx context.Context, q Query) (int, bool) {
	if q.Page <= 0 {
		q.Page = 1
	}

	r.mu.Lock()
	filterHash := client.HashFetchItemCount(q.Collection.Slug, q.Predicate)
	if r.filterHash != "" && r.filterHash != filterHash {
		q.Page = 1
	}
	r.filterHash = filterHash
	r.page = q.Page
	r.mu.Unlock()

	hash := client.HashFetchItems(q.Collection.Slug, q.Columns, q.Predicate, q.Order, q.Page, q.PerPage)
	applied := r.d.refresh(ctx, hash, false, func(ctx context.Context) (*types.ItemPage, error) {
		return r.src.FetchItems(ctx, q.Collection, q.Columns, q.Predicate, q.Order, q.Page, q.PerPage)
	})
	return q.Page, applied
}

// Page returns the page number of the latest request.
func (r *Results) Page() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// State returns the shown page.
func (r *Results) State() State[*types.ItemPage] { return r.d.snapshot() }

// CollectionList shows one page of the collection list.
type CollectionList struct {
	src Backend
	d   domain[*types.PagedResponse[types.Collection]]
}

// NewCollectionList creates a collection list view.
func NewCollectionList(src Backend, opts Options) *CollectionList {
	return &CollectionList{src: src, d: domain[*types.PagedResponse[types.Collection]]{name: "collections", quiet: opts.Quiet}}
}

// Refresh requests a page of the collection list. Unlike the other views
// the list is always refetched, bypassing the client's response cache,
// since it can change without any input.
func (l *CollectionList) Refresh(ctx context.Context, page, perPage int) bool {
	return l.d.refresh(ctx, "", true, func(ctx context.Context) (*types.PagedResponse[types.Collection], error) {
		return l.src.FetchCollections(client.Fresh(ctx), page, perPage)
	})
}

// State returns the shown page of collections.
func (l *CollectionList) State() State[*types.PagedResponse[types.Collection]] { return l.d.snapshot() }
