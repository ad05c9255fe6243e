// Package app wires the explorer services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/mathhub/mdh-explorer/internal/api/grpc"
	httpapi "github.com/mathhub/mdh-explorer/internal/api/http"
	"github.com/mathhub/mdh-explorer/internal/api/service"
	"github.com/mathhub/mdh-explorer/internal/cache"
	"github.com/mathhub/mdh-explorer/internal/client"
	"github.com/mathhub/mdh-explorer/internal/codec"
	"github.com/mathhub/mdh-explorer/internal/config"
	"github.com/mathhub/mdh-explorer/internal/jobs"
	"github.com/mathhub/mdh-explorer/internal/observability"
	"github.com/mathhub/mdh-explorer/internal/server"
	"github.com/mathhub/mdh-explorer/internal/storage"
)

// ServiceName names the server in health responses.
const ServiceName = "mdh-explorer"

// maintenanceInterval is how often usage statistics and the persistent
// response cache are pruned.
const maintenanceInterval = 10 * time.Minute

// App manages the explorer service lifecycle.
type App struct {
	cfg *config.Config

	// Shared resources
	responses *Responses
	client    *client.Client
	storage   storage.ObjectStorage
	jobs      *jobs.Manager
	stats     *observability.FilterStats
	shutdown  *server.ShutdownManager

	// Servers
	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{cfg: cfg}, nil
}

// Start initializes shared resources and starts the HTTP and, when
// enabled, gRPC servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	explorer := service.New(a.client, a.stats, a.cfg.Query.PerPage)

	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start http server: %w", err)
	}
	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(explorer); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start grpc server: %w", err)
		}
	}

	a.wg.Add(1)
	go a.maintain(ctx)

	log.Printf("[app] %s started: backend=%s cache=%s storage=%s", ServiceName, a.cfg.API.BaseURL, a.cfg.Cache.Type, a.cfg.Storage.Type)
	return nil
}

// initSharedResources opens the response cache, the backend client, the
// artifact storage and the export job manager.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.responses, err = OpenResponses(a.cfg.Cache)
	if err != nil {
		return err
	}
	a.client = NewClient(a.cfg, a.responses)

	a.storage, err = OpenStorage(ctx, a.cfg.Storage)
	if err != nil {
		return err
	}

	a.jobs = jobs.NewManager(a.client.ExportSource(), a.storage, jobs.Config{
		Concurrency: a.cfg.Export.Concurrency,
		PageSize:    a.cfg.Query.ExportPageSize,
		Compression: a.cfg.Export.Compression,
		Timeout:     a.cfg.Export.Timeout,
	})
	a.stats = observability.NewFilterStats(24 * time.Hour)

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser("response cache", a.responses)
	a.shutdown.RegisterCloser("export jobs", server.CloserFunc(func() error {
		a.jobs.Close()
		return nil
	}))
	return nil
}

func (a *App) startHTTP() error {
	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	a.httpListener = lis

	chain := []func(http.Handler) http.Handler{
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
	}
	if !a.cfg.Production {
		chain = append(chain, httpapi.LoggingMiddleware)
	}
	middleware := httpapi.ChainMiddleware(chain...)

	mux := http.NewServeMux()
	httpapi.Register(mux, httpapi.Deps{
		Backend:      a.client,
		Jobs:         a.jobs,
		Stats:        a.stats,
		CacheMetrics: a.responses.Snapshot,
		PerPage:      a.cfg.Query.PerPage,
		Service:      ServiceName,
	}, middleware)

	a.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("[app] http server listening on %s", lis.Addr())
		if err := a.shutdown.ServeHTTP(a.httpServer, lis); err != nil {
			log.Printf("[app] http server error: %v", err)
		}
	}()
	return nil
}

func (a *App) startGRPC(explorer *service.Explorer) error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	a.grpcListener = lis

	a.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(server.UnaryInterceptor(a.shutdown)))
	grpcapi.RegisterExplorerServer(a.grpcServer, grpcapi.NewExplorerServer(explorer, a.jobs))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("[app] grpc server listening on %s", lis.Addr())
		if err := a.shutdown.ServeGRPC(a.grpcServer, lis); err != nil {
			log.Printf("[app] grpc server error: %v", err)
		}
	}()
	return nil
}

// maintain periodically prunes stale usage statistics and expired cache
// rows until ctx is done.
func (a *App) maintain(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
			if n, err := a.responses.Prune(ctx); err != nil {
				log.Printf("[app] cache prune failed: %v", err)
			} else if n > 0 {
				log.Printf("[app] pruned %d expired cache entries", n)
			}
		}
	}
}

// HTTPAddr returns the address the HTTP server listens on.
func (a *App) HTTPAddr() net.Addr {
	if a.httpListener == nil {
		return nil
	}
	return a.httpListener.Addr()
}

// GRPCAddr returns the address the gRPC server listens on, or nil when
// gRPC is disabled.
func (a *App) GRPCAddr() net.Addr {
	if a.grpcListener == nil {
		return nil
	}
	return a.grpcListener.Addr()
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("[app] shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("[app] %s stopped", ServiceName)
	return err
}

// cleanup releases resources after a failed start.
func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.httpListener != nil {
		a.httpListener.Close()
	}
	if a.grpcListener != nil {
		a.grpcListener.Close()
	}
	if a.jobs != nil {
		a.jobs.Close()
	}
	if a.responses != nil {
		a.responses.Close()
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// WaitForShutdown blocks until a shutdown signal is received, then stops
// the app.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		log.Printf("[app] shutdown: %v", err)
	}
	return a.Stop(context.Background())
}

// Responses is the configured response cache. A "none" cache holds no
// store and reports empty metrics.
type Responses struct {
	store   cache.Cache
	metrics *cache.Metrics
	closer  io.Closer
	pruner  func(context.Context) (int64, error)
}

// OpenResponses opens the response cache described by cfg.
func OpenResponses(cfg config.CacheConfig) (*Responses, error) {
	switch cfg.Type {
	case "", "none":
		return &Responses{metrics: &cache.Metrics{}}, nil
	case "lru":
		lru := cache.NewLRU(cfg.MaxBytes, cfg.TTL)
		return &Responses{store: lru, metrics: lru.Metrics()}, nil
	case "sqlite":
		sc, err := cache.NewSQLiteCache(cfg.Path, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		log.Printf("[app] response cache opened: %s", cfg.Path)
		return &Responses{store: sc, metrics: sc.Metrics(), closer: sc, pruner: sc.Prune}, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Store returns the underlying cache, or nil when caching is disabled.
func (r *Responses) Store() cache.Cache { return r.store }

// Snapshot reports the cache metrics.
func (r *Responses) Snapshot() cache.MetricsSnapshot { return r.metrics.Snapshot() }

// Prune drops expired entries of persistent caches.
func (r *Responses) Prune(ctx context.Context) (int64, error) {
	if r.pruner == nil {
		return 0, nil
	}
	return r.pruner(ctx)
}

// Close releases persistent caches.
func (r *Responses) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// NewClient creates a backend client configured by cfg, caching responses
// in r when it holds a store.
func NewClient(cfg *config.Config, r *Responses) *client.Client {
	var opts []client.Option
	if r != nil && r.Store() != nil {
		opts = append(opts, client.WithCache(r.Store()))
	}
	return client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
	}, codec.Default(), opts...)
}

// OpenStorage opens the artifact storage described by cfg.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	var (
		store storage.ObjectStorage
		err   error
	)
	switch cfg.Type {
	case "local":
		store, err = storage.NewLocalStorage(cfg.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		if cfg.S3.Endpoint != "" {
			s3Cfg.Endpoint = cfg.S3.Endpoint
		}
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		store, err = storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("[app] storage initialized: type=%s", cfg.Type)
	return store, nil
}
