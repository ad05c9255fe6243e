package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/internal/codec"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// fakeBackend serves one collection from memory and records the
// predicates it was asked about.
type fakeBackend struct {
	registry *codec.Registry
	coll     *client.Collection
	countErr error

	mu    sync.Mutex
	preds []types.Predicate
	pages []int
}

func newFakeBackend() *fakeBackend {
	reg := codec.NewRegistry()
	coll := client.ParseCollection(types.Collection{
		Slug: "graphs",
		Properties: []types.Property{
			{Slug: "n", Codec: "StandardInt", Default: true},
			{Slug: "planar", Codec: "StandardBool"},
		},
		PreFilters: []types.PreFilter{{Description: "small", Condition: "n<5"}},
	}, reg)
	return &fakeBackend{registry: reg, coll: coll}
}

func (f *fakeBackend) Registry() *codec.Registry { return f.registry }

func (f *fakeBackend) FetchCollection(_ context.Context, slug string) (*client.Collection, error) {
	if slug != f.coll.Slug {
		return nil, apperrors.NewNotFoundError(apperrors.CodeCollectionNotFound, "no such collection")
	}
	return f.coll, nil
}

func (f *fakeBackend) FetchCollections(context.Context, int, int) (*types.PagedResponse[types.Collection], error) {
	return &types.PagedResponse[types.Collection]{Count: 1, NumPages: 1, Results: []types.Collection{f.coll.Collection}}, nil
}

func (f *fakeBackend) FetchItems(_ context.Context, _ *client.Collection, _ []string, pred types.Predicate, _ string, page, _ int) (*types.ItemPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preds = append(f.preds, pred)
	f.pages = append(f.pages, page)
	return &types.ItemPage{NumPages: 1}, nil
}

func (f *fakeBackend) FetchItemCount(_ context.Context, _ string, pred types.Predicate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preds = append(f.preds, pred)
	return 7, f.countErr
}

func TestQuery_Defaults(t *testing.T) {
	b := newFakeBackend()
	e := New(b, nil, 0)

	res, err := e.Query(context.Background(), "graphs", filter.State{}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PerPage)
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.Equal(t, int64(7), res.Count)
	assert.NotNil(t, res.Results)
	assert.NotNil(t, res.Filters)

	require.Len(t, b.preds, 2)
	require.NotNil(t, b.preds[0].PreFilter)
	assert.Equal(t, "n<5", b.preds[0].PreFilter.Condition)
}

func TestQuery_CountFailure(t *testing.T) {
	b := newFakeBackend()
	b.countErr = errors.New("backend down")

	_, err := New(b, nil, 10).Query(context.Background(), "graphs", filter.State{Page: 3}, "")
	assert.ErrorContains(t, err, "backend down")
}

func TestClean_KeepsIncompleteFilters(t *testing.T) {
	e := New(newFakeBackend(), nil, 10)

	res, err := e.Clean(context.Background(), CleanRequest{
		Collection: "graphs",
		Filters: []FilterInput{
			{Slug: "planar", Value: types.StringPtr("true")},
			{Slug: "n", Value: types.StringPtr("<=x")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Filters, 2)
	assert.True(t, res.Filters[0].Valid)
	assert.False(t, res.Filters[1].Valid)

	st, ok := filter.DecodeState(res.State)
	require.True(t, ok)
	require.Len(t, st.Filters, 2)
	assert.Nil(t, st.Filters[1].Value)
}

func TestClean_Errors(t *testing.T) {
	e := New(newFakeBackend(), nil, 10)

	_, err := e.Clean(context.Background(), CleanRequest{})
	assert.Equal(t, apperrors.ErrCategoryValidation, apperrors.GetCategory(err))

	_, err = e.Clean(context.Background(), CleanRequest{Collection: "nope"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCount_AppliesDefaultPreFilter(t *testing.T) {
	b := newFakeBackend()
	e := New(b, nil, 10)

	n, err := e.Count(context.Background(), "graphs", []types.Filter{{Slug: "n", Value: types.StringPtr("=3")}})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	require.Len(t, b.preds, 1)
	got := b.preds[0]
	require.NotNil(t, got.PreFilter)
	require.Len(t, got.Filters, 1)
	assert.NotZero(t, got.Filters[0].UID)
	assert.Equal(t, "(n<5)&&(n=3)", filter.Expression(got))
}

func TestCodecs_Sorted(t *testing.T) {
	infos := New(newFakeBackend(), nil, 10).Codecs()
	require.NotEmpty(t, infos)
	for i := 1; i < len(infos); i++ {
		assert.Less(t, infos[i-1].Slug, infos[i].Slug)
	}
}

func TestQuery_CleansStateFilters(t *testing.T) {
	b := newFakeBackend()
	e := New(b, nil, 10)

	st, ok := filter.DecodeState(`filters=[{"slug":"n","value":"5"},{"slug":"n","value":"=1)||(n>0"}]`)
	require.True(t, ok)

	res, err := e.Query(context.Background(), "graphs", st, "")
	require.NoError(t, err)

	require.Len(t, b.preds, 2)
	for _, pred := range b.preds {
		assert.Equal(t, "(n<5)&&(n=5)", filter.Expression(pred))
	}

	require.Len(t, res.Filters, 2)
	assert.Equal(t, "=5", *res.Filters[0].Value)
	assert.Nil(t, res.Filters[1].Value)

	back, ok := filter.DecodeState(res.State)
	require.True(t, ok)
	require.Len(t, back.Filters, 2)
	assert.Equal(t, "=5", *back.Filters[0].Value)
	assert.Nil(t, back.Filters[1].Value)
}

func TestCount_CleansFilters(t *testing.T) {
	b := newFakeBackend()
	e := New(b, nil, 10)

	_, err := e.Count(context.Background(), "graphs", []types.Filter{
		{Slug: "n", Value: types.StringPtr("<>3")},
		{Slug: "n", Value: types.StringPtr("3)||(1")},
		{Slug: "gone", Value: types.StringPtr("=1")},
	})
	require.NoError(t, err)

	require.Len(t, b.preds, 1)
	assert.Equal(t, "(n<5)&&(n!=3)", filter.Expression(b.preds[0]))
}
