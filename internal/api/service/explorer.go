// Package service holds the transport-independent operations exposed by
// the HTTP and gRPC APIs.
package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/internal/codec"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/internal/observability"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Backend is the query backend the explorer reads from. *client.Client
// implements it.
type Backend interface {
	Registry() *codec.Registry
	FetchCollection(ctx context.Context, slug string) (*client.Collection, error)
	FetchCollections(ctx context.Context, page, perPage int) (*types.PagedResponse[types.Collection], error)
	FetchItems(ctx context.Context, coll *client.Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error)
	FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error)
}

var _ Backend = (*client.Client)(nil)

// FilterInput is one filter as typed by a user.
type FilterInput struct {
	Slug  string  `json:"slug"`
	Value *string `json:"value"`
}

// CleanRequest asks for the filters of a collection to be validated.
type CleanRequest struct {
	Collection string           `json:"collection"`
	Filters    []FilterInput    `json:"filters"`
	PreFilter  *types.PreFilter `json:"pre_filter,omitempty"`
	Columns    []string         `json:"columns,omitempty"`
	Page       int              `json:"page,omitempty"`
	PerPage    int              `json:"per_page,omitempty"`
}

// CleanedFilter is the outcome of cleaning one input.
type CleanedFilter struct {
	Slug    string  `json:"slug"`
	Value   *string `json:"value"`
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
}

// CleanResult is the cleaned predicate together with its backend
// expression, its hash and the URL state that restores it.
type CleanResult struct {
	Filters    []CleanedFilter `json:"filters"`
	Expression string          `json:"expression"`
	Hash       string          `json:"hash"`
	State      string          `json:"state"`
}

// QueryResult is one page of a collection query.
type QueryResult struct {
	Collection types.Collection `json:"collection"`
	Columns    []string         `json:"columns"`
	Order      string           `json:"order"`
	Count      int64            `json:"count"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	NumPages   int              `json:"num_pages"`
	Results    []types.Item     `json:"results"`
	Filters    []types.Filter   `json:"filters"`
	State      string           `json:"state"`
}

// Explorer implements the API operations on top of a Backend.
type Explorer struct {
	backend Backend
	stats   *observability.FilterStats
	perPage int
}

// New creates an Explorer. stats may be nil; perPage defaults to 20.
func New(backend Backend, stats *observability.FilterStats, perPage int) *Explorer {
	if perPage <= 0 {
		perPage = 20
	}
	return &Explorer{backend: backend, stats: stats, perPage: perPage}
}

// Backend returns the underlying backend.
func (e *Explorer) Backend() Backend { return e.backend }

// Stats returns the usage statistics, possibly nil.
func (e *Explorer) Stats() *observability.FilterStats { return e.stats }

// Clean validates every input with the codec of its property. Accepted
// values are replaced by their canonical form; rejected and incomplete
// filters stay in the predicate without a value, as an editor would keep
// them. Inputs naming unknown properties are reported and dropped.
func (e *Explorer) Clean(ctx context.Context, req CleanRequest) (*CleanResult, error) {
	if req.Collection == "" {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidRequest, "collection is required")
	}

	coll, err := e.backend.FetchCollection(ctx, req.Collection)
	if err != nil {
		return nil, err
	}

	res := &CleanResult{Filters: make([]CleanedFilter, 0, len(req.Filters))}
	pred := filter.Reduce(types.Predicate{Filters: []types.Filter{}}, filter.SelectPreFilter{PreFilter: req.PreFilter})

	for _, in := range req.Filters {
		cd, ok := coll.CodecMap[in.Slug]
		if !ok {
			res.Filters = append(res.Filters, CleanedFilter{
				Slug:    in.Slug,
				Value:   in.Value,
				Message: fmt.Sprintf("collection %s has no property %s", coll.Slug, in.Slug),
			})
			continue
		}

		pred = filter.Reduce(pred, filter.Add{Slug: in.Slug})
		out := CleanedFilter{Slug: in.Slug}
		if in.Value != nil {
			ed := filter.NewEditor(cd, types.Filter{Slug: in.Slug})
			ed.Set(cd.ParseFilterValue(in.Value), true)
			f, ok := ed.Apply()
			out.Valid = ok
			out.Message = ed.Message()
			if ok {
				out.Value = f.Value
				pred = filter.Reduce(pred, filter.Update{Index: len(pred.Filters) - 1, Value: f.Value})
			}
		}
		res.Filters = append(res.Filters, out)
	}

	if e.stats != nil {
		e.stats.RecordPredicate(coll.Slug, pred)
	}

	res.Expression = filter.Expression(pred)
	res.Hash = filter.PredicateHash(pred)
	res.State = filter.EncodeState(filter.State{
		PerPage: req.PerPage,
		Page:    req.Page,
		Filters: pred.Filters,
		Columns: req.Columns,
	})
	return res, nil
}

// Query runs the query described by URL state st against the collection
// named slug. Missing state falls back to the first page, the default page
// size and the default columns. Filter values are cleaned with their
// property's codec first; values the codec rejects are not sent. The item
// count and the page are fetched concurrently.
func (e *Explorer) Query(ctx context.Context, slug string, st filter.State, order string) (*QueryResult, error) {
	coll, err := e.backend.FetchCollection(ctx, slug)
	if err != nil {
		return nil, err
	}

	if st.Page < 1 {
		st.Page = 1
	}
	if st.PerPage < 1 {
		st.PerPage = e.perPage
	}
	if len(st.Columns) == 0 {
		st.Columns = coll.DefaultPropertySlugs
	}
	if st.Filters == nil {
		st.Filters = []types.Filter{}
	}

	pred := filter.CleanPredicate(st.Predicate(coll.DefaultPreFilter), coll.CodecMap)
	st.Filters = pred.Filters
	order = client.BuildSortOrder(coll, st.Columns, order)

	var (
		count int64
		page  *types.ItemPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.backend.FetchItemCount(gctx, coll.Slug, pred)
		count = n
		return err
	})
	g.Go(func() error {
		p, err := e.backend.FetchItems(gctx, coll, st.Columns, pred, order, st.Page, st.PerPage)
		page = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.stats != nil {
		e.stats.RecordPredicate(coll.Slug, pred)
	}

	res := &QueryResult{
		Collection: coll.Collection,
		Columns:    st.Columns,
		Order:      order,
		Count:      count,
		Page:       st.Page,
		PerPage:    st.PerPage,
		NumPages:   page.NumPages,
		Results:    page.Results,
		Filters:    filter.Visible(pred, &coll.Collection),
		State:      filter.EncodeState(st),
	}
	if res.Results == nil {
		res.Results = []types.Item{}
	}
	if res.Filters == nil {
		res.Filters = []types.Filter{}
	}
	return res, nil
}

// Count returns the number of items of the collection named slug matching
// the given filters, once cleaned, and the collection's default pre-filter.
func (e *Explorer) Count(ctx context.Context, slug string, filters []types.Filter) (int64, error) {
	coll, err := e.backend.FetchCollection(ctx, slug)
	if err != nil {
		return 0, err
	}
	pred := filter.CleanPredicate(types.Predicate{
		Filters:   filter.Restore(filters, nil),
		PreFilter: coll.DefaultPreFilter,
	}, coll.CodecMap)
	if e.stats != nil {
		e.stats.RecordPredicate(coll.Slug, pred)
	}
	return e.backend.FetchItemCount(ctx, coll.Slug, pred)
}
