// Package config provides unified configuration for the explorer services.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mathhub/mdh-explorer/internal/export"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "MDH_"

// Config holds the unified configuration for the explorer services.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Production silences request failure logging in views
	Production bool `json:"production" yaml:"production"`

	// API configuration of the MathDataHub backend
	API APIConfig `json:"api" yaml:"api"`

	// Query defaults
	Query QueryConfig `json:"query" yaml:"query"`

	// Cache configuration for backend responses
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Export configuration
	Export ExportConfig `json:"export" yaml:"export"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Storage configuration for export artifacts
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// APIConfig holds the backend connection settings.
type APIConfig struct {
	// BaseURL is the backend API root, e.g. https://data.mathhub.info/api
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Timeout bounds a single backend request
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is sent with every backend request
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// QueryConfig holds paging defaults.
type QueryConfig struct {
	// PerPage is the default page size of result tables
	PerPage int `json:"per_page" yaml:"per_page"`

	// ExportPageSize is the number of items fetched per export page
	ExportPageSize int `json:"export_page_size" yaml:"export_page_size"`
}

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	// Type is the cache type: none, lru, sqlite
	Type string `json:"type" yaml:"type"`

	// Path is the SQLite database path (for sqlite type)
	Path string `json:"path" yaml:"path"`

	// MaxBytes bounds the in-memory cache (for lru type)
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// TTL is how long a cached response stays valid
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// ExportConfig holds export job configuration.
type ExportConfig struct {
	// Compression applied to artifacts before storage: none, snappy, xz
	Compression export.Compression `json:"compression" yaml:"compression"`

	// Concurrency is the number of export jobs running at once
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout cancels an export at the next page boundary; zero disables it
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/mdh",
		API: APIConfig{
			BaseURL:   "https://data.mathhub.info/api",
			Timeout:   30 * time.Second,
			UserAgent: "mdh-explorer",
		},
		Query: QueryConfig{
			PerPage:        20,
			ExportPageSize: export.PageSize,
		},
		Cache: CacheConfig{
			Type:     "lru",
			MaxBytes: 64 * 1024 * 1024,
			TTL:      5 * time.Minute,
		},
		Export: ExportConfig{
			Compression: export.CompressionNone,
			Concurrency: 2,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/mdh"
	}

	// Resolve storage path
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "artifacts")
	}

	// Resolve cache path
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.DataDir, "responses.db")
	}

	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	if c.Query.PerPage < 1 || c.Query.PerPage > 1000 {
		return fmt.Errorf("query.per_page must be between 1 and 1000, got %d", c.Query.PerPage)
	}

	if c.Query.ExportPageSize < 1 || c.Query.ExportPageSize > 1000 {
		return fmt.Errorf("query.export_page_size must be between 1 and 1000, got %d", c.Query.ExportPageSize)
	}

	switch c.Cache.Type {
	case "none", "lru", "sqlite":
	default:
		return fmt.Errorf("invalid cache type: %s (must be none, lru, or sqlite)", c.Cache.Type)
	}

	if !c.Export.Compression.Valid() {
		return fmt.Errorf("invalid export compression: %s (must be none, snappy, or xz)", c.Export.Compression)
	}

	if c.Export.Concurrency < 1 {
		return fmt.Errorf("export.concurrency must be positive, got %d", c.Export.Concurrency)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// Load builds the configuration of a command: the defaults, overridden by
// the config file at path when non-empty, overridden by the environment.
// Variables from ./.env are loaded first.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	LoadFromEnv(cfg)
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MDH_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("PRODUCTION"); v != "" {
		cfg.Production = parseBool(v)
	}

	// API configuration
	if v := getenv("API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := getenv("API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := getenv("API_USER_AGENT"); v != "" {
		cfg.API.UserAgent = v
	}

	// Query configuration
	if v := getenv("QUERY_PER_PAGE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.PerPage)
	}
	if v := getenv("QUERY_EXPORT_PAGE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.ExportPageSize)
	}

	// Cache configuration
	if v := getenv("CACHE_TYPE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := getenv("CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := getenv("CACHE_MAX_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.MaxBytes)
	}
	if v := getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Export configuration
	if v := getenv("EXPORT_COMPRESSION"); v != "" {
		cfg.Export.Compression = export.Compression(v)
	}
	if v := getenv("EXPORT_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Export.Concurrency)
	}
	if v := getenv("EXPORT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Export.Timeout = d
		}
	}

	// HTTP configuration
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// gRPC configuration
	if v := getenv("GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := getenv("GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = parseBool(v)
	}

	// Storage configuration
	if v := getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := getenv("S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := getenv("S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = parseBool(v)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.Cache.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Cache.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
