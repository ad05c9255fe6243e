package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS responses (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	raw_size   INTEGER NOT NULL,
	stored_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_stored_at ON responses(stored_at);`

// SQLiteCache persists snappy-compressed response bodies in a SQLite
// database so they survive restarts.
type SQLiteCache struct {
	db      *sql.DB
	mu      sync.Mutex // Write-only lock (reads don't need this)
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics
}

// NewSQLiteCache opens (creating if needed) the cache database at dbPath.
// A zero ttl keeps entries until Prune or Clear removes them.
func NewSQLiteCache(dbPath string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: failed to initialize schema: %w", err)
	}

	c := &SQLiteCache{db: db, ttl: ttl, now: time.Now}
	if err := c.refreshMetrics(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the cached body for key, decompressed.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var compressed []byte
	var storedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT body, stored_at FROM responses WHERE key = ?`, key,
	).Scan(&compressed, &storedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[cache] warning: lookup of %s failed: %v", key, err)
		}
		c.metrics.Misses.Add(1)
		return nil, false
	}

	if c.expired(storedAt) {
		c.metrics.Misses.Add(1)
		return nil, false
	}

	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		log.Printf("[cache] warning: corrupt entry %s: %v", key, err)
		c.metrics.Misses.Add(1)
		return nil, false
	}
	c.metrics.Hits.Add(1)
	return body, true
}

// Put stores body under key, replacing any previous entry.
func (c *SQLiteCache) Put(ctx context.Context, key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (key, body, raw_size, stored_at) VALUES (?, ?, ?, ?)`,
		key, snappy.Encode(nil, body), len(body), c.now().UnixNano(),
	)
	if err != nil {
		log.Printf("[cache] warning: failed to store %s: %v", key, err)
		return
	}
	if err := c.refreshMetrics(ctx); err != nil {
		log.Printf("[cache] warning: %v", err)
	}
}

// Prune deletes entries older than the TTL and returns how many were removed.
func (c *SQLiteCache) Prune(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune failed: %w", err)
	}
	n, _ := res.RowsAffected()
	c.metrics.Evictions.Add(n)
	return n, c.refreshMetrics(ctx)
}

// Clear removes all entries.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM responses`); err != nil {
		return fmt.Errorf("cache: clear failed: %w", err)
	}
	return c.refreshMetrics(ctx)
}

// Len returns the number of stored entries, including expired ones not yet pruned.
func (c *SQLiteCache) Len() int {
	return int(c.metrics.Entries.Load())
}

// Metrics returns the cache counters.
func (c *SQLiteCache) Metrics() *Metrics {
	return &c.metrics
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) expired(storedAt int64) bool {
	return c.ttl > 0 && c.now().Sub(time.Unix(0, storedAt)) > c.ttl
}

func (c *SQLiteCache) refreshMetrics(ctx context.Context) error {
	var entries, size int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(raw_size), 0) FROM responses`,
	).Scan(&entries, &size)
	if err != nil {
		return fmt.Errorf("cache: failed to read stats: %w", err)
	}
	c.metrics.Entries.Store(entries)
	c.metrics.SizeBytes.Store(size)
	return nil
}
