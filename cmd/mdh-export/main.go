// Package main implements the mdh-export binary. It runs one export of a
// MathDataHub collection in the foreground and writes the artifact to a
// directory or to the configured artifact storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mathhub/mdh-explorer/internal/app"
	"github.com/mathhub/mdh-explorer/internal/codec"
	"github.com/mathhub/mdh-explorer/internal/config"
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/internal/storage"
)

// Options holds the export options.
type Options struct {
	ConfigFile  string
	Collection  string
	Format      string
	Property    string
	State       string
	Order       string
	Compression string
	Timeout     time.Duration
	OutDir      string
	ListFormats bool
}

func main() {
	opts := parseFlags()

	if opts.ListFormats {
		listFormats()
		return
	}
	if opts.Collection == "" {
		fmt.Fprintln(os.Stderr, "mdh-export: -collection is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Resolve()
	if opts.Compression != "" {
		cfg.Export.Compression = export.Compression(opts.Compression)
	}
	if opts.Timeout > 0 {
		cfg.Export.Timeout = opts.Timeout
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}

func parseFlags() Options {
	var opts Options
	flag.StringVar(&opts.ConfigFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&opts.Collection, "collection", "", "Collection slug")
	flag.StringVar(&opts.Format, "format", "json", "Export format")
	flag.StringVar(&opts.Property, "property", "", "Export a single property with a value format")
	flag.StringVar(&opts.State, "state", "", "Explorer URL state selecting the filters, e.g. 'filters=...'")
	flag.StringVar(&opts.Order, "order", "", "Sort order, e.g. '-n,+name'")
	flag.StringVar(&opts.Compression, "compression", "", "Artifact compression: none, snappy, xz")
	flag.DurationVar(&opts.Timeout, "timeout", 0, "Cancel the export after this duration")
	flag.StringVar(&opts.OutDir, "out", "", "Write the artifact to this directory instead of artifact storage")
	flag.BoolVar(&opts.ListFormats, "formats", false, "List export formats and exit")
	flag.Parse()
	return opts
}

func run(ctx context.Context, cfg *config.Config, opts Options) error {
	responses, err := app.OpenResponses(cfg.Cache)
	if err != nil {
		return err
	}
	defer responses.Close()
	c := app.NewClient(cfg, responses)

	coll, err := c.FetchCollection(ctx, opts.Collection)
	if err != nil {
		return err
	}

	st, _ := filter.DecodeState(opts.State)
	req := export.Request{
		Collection: coll.Slug,
		Predicate:  filter.CleanPredicate(st.Predicate(coll.DefaultPreFilter), coll.CodecMap),
		Order:      opts.Order,
	}

	step := export.WithContext(ctx, func(p float64) bool {
		log.Printf("[export] %s: %.0f%%", coll.Slug, p*100)
		return true
	})
	if cfg.Export.Timeout > 0 {
		step = export.WithDeadline(step, time.Now().Add(cfg.Export.Timeout))
	}

	var art *export.Artifact
	if opts.Property != "" {
		cd, ok := coll.CodecMap[opts.Property]
		if !ok {
			return fmt.Errorf("collection %s has no property %s", coll.Slug, opts.Property)
		}
		exp, ok := formats.LookupValue(opts.Format, codec.ExportersOf(cd)...)
		if !ok {
			return fmt.Errorf("unknown value format %q", opts.Format)
		}
		job := export.NewColumnJob(c.ExportSource(), exp, opts.Property, req).WithPageSize(cfg.Query.ExportPageSize)
		art, err = job.Run(ctx, step)
	} else {
		exp, ok := formats.LookupRow(opts.Format)
		if !ok {
			return fmt.Errorf("unknown row format %q", opts.Format)
		}
		job := export.NewCollectionJob(c.ExportSource(), exp, req).WithPageSize(cfg.Query.ExportPageSize)
		art, err = job.Run(ctx, step)
	}
	if err != nil {
		return err
	}
	if art == nil {
		log.Printf("[export] %s: export declined", coll.Slug)
		return nil
	}

	art, err = export.Compress(art, cfg.Export.Compression)
	if err != nil {
		return err
	}

	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(opts.OutDir, art.Name)
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return err
		}
		log.Printf("[export] wrote %s (%d bytes)", path, len(art.Data))
		return nil
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	store, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	obj, err := storage.SaveArtifact(ctx, store, uuid.New().String(), art)
	if err != nil {
		return err
	}
	log.Printf("[export] stored %s (%d bytes)", obj.Key, obj.Size)
	return nil
}

func listFormats() {
	fmt.Println("Row formats:")
	for _, e := range formats.Rows() {
		info := e.Info()
		fmt.Printf("  %-18s %s (.%s)\n", info.Slug, info.DisplayName, info.Extension)
	}
	fmt.Println("Value formats (-property):")
	for _, e := range formats.Values() {
		info := e.Info()
		fmt.Printf("  %-18s %s (.%s)\n", info.Slug, info.DisplayName, info.Extension)
	}
}
