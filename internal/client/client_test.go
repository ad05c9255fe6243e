package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/mdh-explorer/internal/cache"
	"github.com/mathhub/mdh-explorer/internal/codec"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

const collectionJSON = `{
	"slug": "ints",
	"displayName": "Integers",
	"description": "Some integers",
	"flag_large_collection": false,
	"count": 3,
	"preFilters": [{"description": "small", "condition": "n<10", "count": 2}],
	"exporters": ["json", "no-such-exporter"],
	"properties": [
		{"slug": "n", "displayName": "N", "codec": "StandardInt", "default": true},
		{"slug": "even", "displayName": "Even", "codec": "StandardBool"},
		{"slug": "name", "displayName": "Name", "codec": "StandardString", "default": true},
		{"slug": "blob", "displayName": "Blob", "codec": "Mystery"}
	]
}`

type backend struct {
	t        *testing.T
	requests atomic.Int64
	lastURL  atomic.Value
	server   *httptest.Server

	mu   sync.Mutex
	urls []*url.URL
}

func newBackend(t *testing.T) *backend {
	b := &backend{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schema/collections/{$}", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1, "next": null, "previous": null, "num_pages": 1, "results": [` + collectionJSON + `]}`))
	})
	mux.HandleFunc("/api/schema/collections/ints/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_, _ = w.Write([]byte(collectionJSON))
	})
	mux.HandleFunc("/api/query/ints/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		page := r.URL.Query().Get("page")
		next := `"/api/query/ints/?page=2"`
		if page == "2" {
			next = "null"
		}
		_, _ = w.Write([]byte(`{"count": 3, "next": ` + next + `, "previous": null, "num_pages": 2, "results": [{"_id": "a", "n": 1}]}`))
	})
	mux.HandleFunc("/api/query/ints/count/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_, _ = w.Write([]byte(`{"count": 42}`))
	})
	mux.HandleFunc("/api/item/ints/a/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_, _ = w.Write([]byte(`{"_id": "a", "n": 1}`))
	})
	mux.HandleFunc("/api/query/broken/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/query/garbage/count/", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		_, _ = w.Write([]byte(`not json`))
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) record(r *http.Request) {
	b.requests.Add(1)
	b.lastURL.Store(r.URL.String())
	b.mu.Lock()
	b.urls = append(b.urls, r.URL)
	b.mu.Unlock()
}

// filters returns the filter parameter of every query request so far.
func (b *backend) filters() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, u := range b.urls {
		if strings.HasPrefix(u.Path, "/api/query/") {
			out = append(out, u.Query().Get("filter"))
		}
	}
	return out
}

func (b *backend) last() *url.URL {
	u, err := url.Parse(b.lastURL.Load().(string))
	require.NoError(b.t, err)
	return u
}

func (b *backend) client(opts ...Option) *Client {
	return New(Config{BaseURL: b.server.URL + "/api/"}, codec.NewRegistry(), opts...)
}

func TestFetchCollection_Parses(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	coll, err := c.FetchCollection(context.Background(), "ints")
	require.NoError(t, err)

	assert.Equal(t, "Integers", coll.DisplayName)
	assert.Equal(t, []string{"n", "even", "name", "blob"}, coll.PropertySlugs)
	assert.Equal(t, []string{"n", "name"}, coll.DefaultPropertySlugs)
	assert.Equal(t, "Even", coll.NameMap["even"])
	assert.Equal(t, "StandardInt", coll.CodecMap["n"].Slug())
	assert.IsType(t, &codec.Fallback{}, coll.CodecMap["blob"])
	require.NotNil(t, coll.DefaultPreFilter)
	assert.Equal(t, "n<10", coll.DefaultPreFilter.Condition)
	require.Len(t, coll.RowExporters, 1)
	assert.Equal(t, "json", coll.RowExporters[0].Info().Slug)
}

func TestFetchCollection_NotFound(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	_, err := c.FetchCollection(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, apperrors.CodeCollectionNotFound, apperrors.GetCode(err))

	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Contains(t, re.Error(), "/schema/collections/missing/")
}

func TestFetchItems_BadStatusIsTransport(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	coll := c.ParseCollection(types.Collection{Slug: "broken"})
	_, err := c.FetchItems(context.Background(), coll, nil, types.Predicate{}, "", 1, 10)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, apperrors.ErrCategoryTransport, apperrors.GetCategory(err))
	assert.Equal(t, apperrors.CodeBadStatus, apperrors.GetCode(err))
}

func TestFetchItemCount_DecodeFailure(t *testing.T) {
	b := newBackend(t)
	_, err := b.client().FetchItemCount(context.Background(), "garbage", types.Predicate{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDecodeFailed, apperrors.GetCode(err))
}

func TestFetchItems_Parameters(t *testing.T) {
	b := newBackend(t)
	c := b.client()
	ctx := context.Background()

	coll, err := c.FetchCollection(ctx, "ints")
	require.NoError(t, err)

	pred := types.Predicate{
		PreFilter: coll.DefaultPreFilter,
		Filters: []types.Filter{
			{UID: 1, Slug: "n", Value: types.StringPtr(">=1")},
			{UID: 2, Slug: "even"},
		},
	}
	page, err := c.FetchItems(ctx, coll, []string{"n", "name"}, pred, "-name", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Count)
	assert.False(t, page.HasNext())
	require.Len(t, page.Results, 1)
	assert.Equal(t, "a", page.Results[0].ID())

	q := b.last().Query()
	assert.Equal(t, "/api/query/ints/", b.last().Path)
	assert.Equal(t, "n,name", q.Get("properties"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("per_page"))
	assert.Equal(t, "-name,+n", q.Get("order"))
	assert.Equal(t, "(n<10)&&(n>=1)", q.Get("filter"))
}

func TestFetchItemCount_DropsEmptyParams(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	n, err := c.FetchItemCount(context.Background(), "ints", types.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "/api/query/ints/count/", b.last().Path)
	assert.Empty(t, b.last().RawQuery)
}

func TestFetchItemAndCollections(t *testing.T) {
	b := newBackend(t)
	c := b.client()
	ctx := context.Background()

	coll, item, err := c.FetchCollectionAndItem(ctx, "ints", "a")
	require.NoError(t, err)
	assert.Equal(t, "ints", coll.Slug)
	assert.Equal(t, "a", item.ID())

	_, err = c.FetchItem(ctx, "ints", "zzz")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, apperrors.CodeItemNotFound, apperrors.GetCode(err))

	list, err := c.FetchCollections(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "ints", list.Results[0].Slug)
	assert.Equal(t, "1", b.last().Query().Get("page"))
	assert.Equal(t, "20", b.last().Query().Get("per_page"))
}

func TestClient_CachesBodies(t *testing.T) {
	b := newBackend(t)
	lru := cache.NewLRU(0, time.Minute)
	c := b.client(WithCache(lru))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := c.FetchItemCount(ctx, "ints", types.Predicate{})
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	}
	assert.Equal(t, int64(1), b.requests.Load())
	assert.Equal(t, 1, lru.Len())

	// failures are never cached
	for i := 0; i < 2; i++ {
		_, err := c.FetchCollection(ctx, "missing")
		require.Error(t, err)
	}
	assert.Equal(t, int64(3), b.requests.Load())
}

func TestClient_FreshSkipsCachedBody(t *testing.T) {
	b := newBackend(t)
	lru := cache.NewLRU(0, time.Minute)
	c := b.client(WithCache(lru))
	ctx := context.Background()

	_, err := c.FetchCollections(ctx, 1, 20)
	require.NoError(t, err)
	_, err = c.FetchCollections(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.requests.Load())

	_, err = c.FetchCollections(Fresh(ctx), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.requests.Load())

	// the fresh body replaced the cached one
	_, err = c.FetchCollections(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.requests.Load())
	assert.Equal(t, 1, lru.Len())
}

func TestClient_CoalescesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"count": 7}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, codec.NewRegistry())
	var wg sync.WaitGroup
	results := make([]int64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := c.FetchItemCount(context.Background(), "x", types.Predicate{})
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	// let the goroutines pile up on the in-flight request
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, n := range results {
		assert.Equal(t, int64(7), n)
	}
	assert.Less(t, hits.Load(), int64(8))
}

func TestParseSortPart(t *testing.T) {
	assert.Equal(t, SortPart{Mod: "+", ID: "n"}, ParseSortPart("+n"))
	assert.Equal(t, SortPart{Mod: "-", ID: "n"}, ParseSortPart("-n"))
	assert.Equal(t, SortPart{ID: "n"}, ParseSortPart("n"))
	assert.Equal(t, SortPart{}, ParseSortPart(""))
}

func TestBuildSortOrder(t *testing.T) {
	var coll types.Collection
	require.NoError(t, json.Unmarshal([]byte(collectionJSON), &coll))
	pc := ParseCollection(coll, codec.NewRegistry())

	tests := []struct {
		name       string
		properties []string
		order      string
		want       string
	}{
		{"defaults appended", []string{"n", "name"}, "", "+n,+name"},
		{"explicit direction kept", []string{"n", "name"}, "-name", "-name,+n"},
		{"unordered dropped", []string{"n", "even", "blob"}, "even,n", "+n"},
		{"unrequested dropped", []string{"name"}, "-n", "+name"},
		{"unknown dropped", []string{"n", "ghost"}, "ghost,-n", "-n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSortOrder(pc, tt.properties, tt.order))
		})
	}
}

func TestHashes(t *testing.T) {
	pf := &types.PreFilter{Description: "d", Condition: "c"}
	a := types.Predicate{PreFilter: pf, Filters: []types.Filter{
		{UID: 1, Slug: "n", Value: types.StringPtr("=1")},
		{UID: 2, Slug: "m"},
	}}
	b := types.Predicate{PreFilter: pf, Filters: []types.Filter{
		{UID: 9, Slug: "n", Value: types.StringPtr("=1")},
	}}

	assert.Equal(t, HashFetchItemCount("ints", a), HashFetchItemCount("ints", b))
	assert.NotEqual(t, HashFetchItemCount("ints", a), HashFetchItemCount("other", a))
	assert.NotEqual(t, HashFetchItemCount("ints", a), HashFetchItemCount("ints", types.Predicate{Filters: b.Filters}))

	h1 := HashFetchItems("ints", []string{"n"}, a, "", 1, 10)
	assert.Equal(t, h1, HashFetchItems("ints", []string{"n"}, b, "", 1, 10))
	assert.NotEqual(t, h1, HashFetchItems("ints", []string{"n"}, a, "", 2, 10))
	assert.NotEqual(t, h1, HashFetchItems("ints", []string{"n"}, a, "-n", 1, 10))
	assert.NotEqual(t, h1, HashFetchItems("ints", []string{"n", "m"}, a, "", 1, 10))

	// a re-fetched pre-filter with a new count hashes the same
	count := int64(7)
	refetched := types.Predicate{PreFilter: &types.PreFilter{Description: "d2", Condition: "c", Count: &count}, Filters: b.Filters}
	assert.Equal(t, HashFetchItemCount("ints", a), HashFetchItemCount("ints", refetched))
	assert.Equal(t, h1, HashFetchItems("ints", []string{"n"}, refetched, "", 1, 10))
}

func TestExportSource_RunsJob(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	exp, ok := formats.LookupRow("json")
	require.True(t, ok)

	job := export.NewCollectionJob(c.ExportSource(), exp, export.Request{Collection: "ints"}).WithPageSize(1)
	art, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, art)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(art.Data, &items))
	assert.Len(t, items, 2)
	assert.Equal(t, "finished", job.Status().State)
}

func TestExportSource_CleansPredicate(t *testing.T) {
	b := newBackend(t)
	c := b.client()

	exp, ok := formats.LookupRow("json")
	require.True(t, ok)

	req := export.Request{
		Collection: "ints",
		Predicate: types.Predicate{
			PreFilter: &types.PreFilter{Condition: "n<10"},
			Filters: []types.Filter{
				{UID: 1, Slug: "n", Value: types.StringPtr("5")},
				{UID: 2, Slug: "n", Value: types.StringPtr("=1)||(n>0")},
				{UID: 3, Slug: "even", Value: types.StringPtr("=false")},
			},
		},
	}
	job := export.NewCollectionJob(c.ExportSource(), exp, req).WithPageSize(1)
	_, err := job.Run(context.Background(), nil)
	require.NoError(t, err)

	sent := b.filters()
	require.NotEmpty(t, sent)
	for _, f := range sent {
		assert.Equal(t, "(n<10)&&(n=5)&&(even=false)", f)
	}
}
