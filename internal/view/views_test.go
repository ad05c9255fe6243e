package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/internal/codec"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

type reply struct {
	count int64
	err   error
}

// gatedBackend blocks every count request until the test releases it,
// so responses can be delivered in any order.
type gatedBackend struct {
	mu      sync.Mutex
	calls   int
	gates   map[string]chan reply
	arrived chan string

	pages []int
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{gates: make(map[string]chan reply), arrived: make(chan string, 16)}
}

func (b *gatedBackend) gate(expr string) chan reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.gates[expr]
	if !ok {
		ch = make(chan reply, 1)
		b.gates[expr] = ch
	}
	return ch
}

func (b *gatedBackend) FetchItemCount(ctx context.Context, slug string, pred types.Predicate) (int64, error) {
	expr := filter.Expression(pred)
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.arrived <- expr
	r := <-b.gate(expr)
	return r.count, r.err
}

func (b *gatedBackend) FetchItems(ctx context.Context, coll *client.Collection, columns []string, pred types.Predicate, order string, page, perPage int) (*types.ItemPage, error) {
	b.mu.Lock()
	b.calls++
	b.pages = append(b.pages, page)
	b.mu.Unlock()
	return &types.ItemPage{Count: int64(page)}, nil
}

func (b *gatedBackend) FetchCollections(ctx context.Context, page, perPage int) (*types.PagedResponse[types.Collection], error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()
	if n == 2 {
		return nil, errors.New("backend down")
	}
	return &types.PagedResponse[types.Collection]{Count: int64(n)}, nil
}

func (b *gatedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func testCollection() *client.Collection {
	return client.ParseCollection(types.Collection{
		Slug:       "ints",
		Properties: []types.Property{{Slug: "n", Codec: "StandardInt"}},
	}, codec.NewRegistry())
}

func predicate(value string) types.Predicate {
	return types.Predicate{Filters: []types.Filter{{Slug: "n", Value: types.StringPtr(value)}}}
}

func TestCounter_DiscardsStaleResponse(t *testing.T) {
	b := newGatedBackend()
	c := NewCounter(b, Options{Quiet: true})
	coll := testCollection()
	ctx := context.Background()

	results := make(chan bool, 2)
	go func() { results <- c.Refresh(ctx, coll, predicate("=1")) }()
	require.Equal(t, "(n=1)", <-b.arrived)
	go func() { results <- c.Refresh(ctx, coll, predicate("=2")) }()
	require.Equal(t, "(n=2)", <-b.arrived)

	// the newer request answers first, the older one afterwards
	b.gate("(n=2)") <- reply{count: 2}
	assert.True(t, <-results)
	b.gate("(n=1)") <- reply{count: 1}
	assert.False(t, <-results)

	st := c.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.Equal(t, int64(2), st.Value)
	assert.False(t, st.Pending)
}

func TestCounter_OlderResponseShownUntilNewerArrives(t *testing.T) {
	b := newGatedBackend()
	c := NewCounter(b, Options{Quiet: true})
	coll := testCollection()
	ctx := context.Background()

	results := make(chan bool, 2)
	go func() { results <- c.Refresh(ctx, coll, predicate("=1")) }()
	<-b.arrived
	go func() { results <- c.Refresh(ctx, coll, predicate("=2")) }()
	<-b.arrived

	b.gate("(n=1)") <- reply{count: 1}
	assert.True(t, <-results)
	st := c.State()
	assert.Equal(t, int64(1), st.Value)
	assert.True(t, st.Pending)

	b.gate("(n=2)") <- reply{count: 2}
	assert.True(t, <-results)
	assert.Equal(t, int64(2), c.State().Value)
}

func TestCounter_SkipsUnchangedAndRetriesAfterError(t *testing.T) {
	b := newGatedBackend()
	c := NewCounter(b, Options{Quiet: true})
	coll := testCollection()
	ctx := context.Background()

	b.gate("(n=1)") <- reply{err: errors.New("connection refused")}
	assert.True(t, c.Refresh(ctx, coll, predicate("=1")))
	<-b.arrived
	st := c.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Error(t, st.Err)
	assert.Zero(t, st.Value)

	// the same request is made again on the next state change
	b.gate("(n=1)") <- reply{count: 5}
	assert.True(t, c.Refresh(ctx, coll, predicate("=1")))
	<-b.arrived
	assert.Equal(t, int64(5), c.State().Value)

	// now nothing changed, so nothing is fetched
	calls := b.callCount()
	withUID := predicate("=1")
	withUID.Filters[0].UID = 77
	withUID.Filters = append(withUID.Filters, types.Filter{Slug: "n"})
	assert.False(t, c.Refresh(ctx, coll, withUID))
	assert.Equal(t, calls, b.callCount())
}

func TestResults_ResetsPageWhenFiltersChange(t *testing.T) {
	b := newGatedBackend()
	r := NewResults(b, Options{Quiet: true})
	coll := testCollection()
	ctx := context.Background()

	q := Query{Collection: coll, Columns: []string{"n"}, Predicate: predicate("=1"), Page: 3, PerPage: 10}
	page, applied := r.Refresh(ctx, q)
	assert.Equal(t, 3, page)
	assert.True(t, applied)

	// paging alone keeps the requested page
	q.Page = 4
	page, _ = r.Refresh(ctx, q)
	assert.Equal(t, 4, page)

	// a different filter goes back to the first page
	q.Predicate = predicate("=2")
	q.Page = 4
	page, _ = r.Refresh(ctx, q)
	assert.Equal(t, 1, page)
	assert.Equal(t, 1, r.Page())
	assert.Equal(t, []int{3, 4, 1}, b.pages)

	st := r.State()
	require.NotNil(t, st.Value)
	assert.Equal(t, int64(1), st.Value.Count)

	// an identical query is not refetched
	_, applied = r.Refresh(ctx, Query{Collection: coll, Columns: []string{"n"}, Predicate: predicate("=2"), Page: 1, PerPage: 10})
	assert.False(t, applied)
	assert.Len(t, b.pages, 3)
}

func TestCollectionList_SwallowsErrors(t *testing.T) {
	b := newGatedBackend()
	l := NewCollectionList(b, Options{})
	ctx := context.Background()

	assert.True(t, l.Refresh(ctx, 1, 20))
	assert.Equal(t, StatusReady, l.State().Status)

	assert.True(t, l.Refresh(ctx, 1, 20))
	st := l.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Nil(t, st.Value)
	assert.EqualError(t, st.Err, "backend down")

	assert.True(t, l.Refresh(ctx, 1, 20))
	assert.Equal(t, int64(3), l.State().Value.Count)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "error", StatusError.String())
}

func TestCounter_ConcurrentRefreshesSettleOnNewest(t *testing.T) {
	b := newGatedBackend()
	c := NewCounter(b, Options{Quiet: true})
	coll := testCollection()
	ctx := context.Background()

	values := []string{"=1", "=2", "=3"}
	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(ctx, coll, predicate(v))
		}()
		<-b.arrived
	}
	// release in reverse issue order
	for i := len(values) - 1; i >= 0; i-- {
		b.gate("(n" + values[i] + ")") <- reply{count: int64(i + 1)}
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	assert.Equal(t, int64(3), c.State().Value)
}
