// Package main implements the mdh-query binary. It prints the collection
// list, or the item count and one results page of a collection, as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mathhub/mdh-explorer/internal/app"
	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/internal/config"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/internal/view"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Output is the document printed for a collection query.
type Output struct {
	Collection string         `json:"collection"`
	Count      int64          `json:"count"`
	Page       int            `json:"page"`
	NumPages   int            `json:"num_pages"`
	Order      string         `json:"order"`
	Columns    []string       `json:"columns"`
	Filters    []types.Filter `json:"filters"`
	Results    []types.Item   `json:"results"`
}

func main() {
	var (
		configFile string
		collection string
		state      string
		order      string
		page       int
		perPage    int
	)
	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&collection, "collection", "", "Collection slug; lists collections when empty")
	flag.StringVar(&state, "state", "", "Explorer URL state, e.g. 'page=2&filters=...'")
	flag.StringVar(&order, "order", "", "Sort order, e.g. '-n,+name'")
	flag.IntVar(&page, "page", 0, "Page number, overriding the state")
	flag.IntVar(&perPage, "per-page", 0, "Page size, overriding the state")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responses, err := app.OpenResponses(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open response cache: %v", err)
	}
	defer responses.Close()
	c := app.NewClient(cfg, responses)
	opts := view.Options{Quiet: cfg.Production}

	st, _ := filter.DecodeState(state)
	if page > 0 {
		st.Page = page
	}
	if perPage > 0 {
		st.PerPage = perPage
	}
	if st.PerPage <= 0 {
		st.PerPage = cfg.Query.PerPage
	}

	var out any
	if collection == "" {
		out, err = listCollections(ctx, c, opts, st)
	} else {
		out, err = queryCollection(ctx, c, opts, collection, st, order)
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}

func listCollections(ctx context.Context, c *client.Client, opts view.Options, st filter.State) (any, error) {
	list := view.NewCollectionList(c, opts)
	list.Refresh(ctx, st.Page, st.PerPage)
	s := list.State()
	if s.Status != view.StatusReady {
		return nil, fmt.Errorf("collections: %w", s.Err)
	}
	return s.Value, nil
}

func queryCollection(ctx context.Context, c *client.Client, opts view.Options, slug string, st filter.State, order string) (any, error) {
	coll, err := c.FetchCollection(ctx, slug)
	if err != nil {
		return nil, err
	}

	columns := st.Columns
	if len(columns) == 0 {
		columns = coll.DefaultPropertySlugs
	}
	pred := filter.CleanPredicate(st.Predicate(coll.DefaultPreFilter), coll.CodecMap)
	order = client.BuildSortOrder(coll, columns, order)

	counter := view.NewCounter(c, opts)
	results := view.NewResults(c, opts)

	done := make(chan struct{})
	go func() {
		counter.Refresh(ctx, coll, pred)
		close(done)
	}()
	pageNo, _ := results.Refresh(ctx, view.Query{
		Collection: coll,
		Columns:    columns,
		Predicate:  pred,
		Order:      order,
		Page:       st.Page,
		PerPage:    st.PerPage,
	})
	<-done

	cs, rs := counter.State(), results.State()
	if cs.Status != view.StatusReady {
		return nil, fmt.Errorf("count: %w", cs.Err)
	}
	if rs.Status != view.StatusReady {
		return nil, fmt.Errorf("results: %w", rs.Err)
	}

	return Output{
		Collection: coll.Slug,
		Count:      cs.Value,
		Page:       pageNo,
		NumPages:   rs.Value.NumPages,
		Order:      order,
		Columns:    columns,
		Filters:    filter.Visible(pred, &coll.Collection),
		Results:    rs.Value.Results,
	}, nil
}
