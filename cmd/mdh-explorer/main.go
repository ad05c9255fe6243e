// Package main implements the mdh-explorer server binary. It serves the
// explorer HTTP API and, when enabled, the gRPC API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mathhub/mdh-explorer/internal/app"
	"github.com/mathhub/mdh-explorer/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		baseURL     string
		httpAddr    string
		grpcAddr    string
		cacheType   string
		production  bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&baseURL, "api", "", "MathDataHub API base URL")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	flag.StringVar(&cacheType, "cache", "", "Response cache: none, lru, sqlite")
	flag.BoolVar(&production, "production", false, "Silence request failure logging")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mdh-explorer - query and export MathDataHub collections\n\n")
		fmt.Fprintf(os.Stderr, "Usage: mdh-explorer [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mdh-explorer --data-dir /var/lib/mdh\n")
		fmt.Fprintf(os.Stderr, "  mdh-explorer --config /etc/mdh/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  MDH_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  MDH_API_BASE_URL    MathDataHub API base URL\n")
		fmt.Fprintf(os.Stderr, "  MDH_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  MDH_GRPC_ADDR       gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  MDH_STORAGE_TYPE    Artifact storage (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("mdh-explorer version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags take precedence over file and environment
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}
	if cacheType != "" {
		cfg.Cache.Type = cacheType
	}
	if production {
		cfg.Production = true
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

func printBanner(cfg *config.Config) {
	log.Printf("mdh-explorer %s", version)
	log.Printf("  Backend:  %s", cfg.API.BaseURL)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Cache:    %s", cfg.Cache.Type)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	if cfg.GRPC.Enabled {
		log.Printf("  gRPC:     %s", cfg.GRPC.Addr)
	}
}
