package client

import (
	"context"
	"sync"

	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// ExportSource adapts a Client to export.Source. Parsed collections are
// remembered per slug so that every page request reuses the same codecs.
// Predicates are cleaned with those codecs before they are sent.
type ExportSource struct {
	c *Client

	mu     sync.Mutex
	parsed map[string]*Collection
}

var _ export.Source = (*ExportSource)(nil)

// ExportSource returns an export.Source backed by c.
func (c *Client) ExportSource() *ExportSource {
	return &ExportSource{c: c, parsed: make(map[string]*Collection)}
}

func (s *ExportSource) FetchCollection(ctx context.Context, slug string) (*types.Collection, error) {
	pc, err := s.c.FetchCollection(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.parsed[slug] = pc
	s.mu.Unlock()
	return &pc.Collection, nil
}

func (s *ExportSource) FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error) {
	s.mu.Lock()
	pc, ok := s.parsed[slug]
	s.mu.Unlock()
	if !ok {
		// the count may be requested alongside the collection
		var err error
		if pc, err = s.c.FetchCollection(ctx, slug); err != nil {
			return 0, err
		}
	}
	return s.c.FetchItemCount(ctx, slug, filter.CleanPredicate(pred, pc.CodecMap))
}

func (s *ExportSource) FetchItems(ctx context.Context, coll *types.Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error) {
	s.mu.Lock()
	pc, ok := s.parsed[coll.Slug]
	if !ok {
		pc = s.c.ParseCollection(*coll)
		s.parsed[coll.Slug] = pc
	}
	s.mu.Unlock()
	return s.c.FetchItems(ctx, pc, columns, filter.CleanPredicate(pred, pc.CodecMap), order, page, perPage)
}
