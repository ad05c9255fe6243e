// Package observability tracks how collections are filtered and exported,
// so popular properties and formats can be surfaced and monitored.
package observability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

// FilterStats tracks property filter and export format frequency.
type FilterStats struct {
	mu         sync.RWMutex
	filterFreq map[string]*PropertyStats
	exportFreq map[string]*PropertyStats
	window     time.Duration
	now        func() time.Time
}

// PropertyStats holds statistics for a filtered property or an export format.
type PropertyStats struct {
	Key       string         `json:"key"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Operators map[string]int `json:"operators,omitempty"` // operator → count (e.g., "=" → 5, ">=" → 2)
}

// NewFilterStats creates a new statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewFilterStats(window time.Duration) *FilterStats {
	return &FilterStats{
		filterFreq: make(map[string]*PropertyStats),
		exportFreq: make(map[string]*PropertyStats),
		window:     window,
		now:        time.Now,
	}
}

// RecordPredicate records every complete filter of pred against
// collection. Incomplete filters are not counted.
func (s *FilterStats) RecordPredicate(collection string, pred types.Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, f := range pred.Filters {
		if f.Value == nil {
			continue
		}
		stats := entry(s.filterFreq, collection+"."+f.Slug)
		stats.Frequency++
		stats.LastSeen = now
		stats.Operators[Operator(*f.Value)]++
	}
}

// RecordExport records an export of collection in format.
func (s *FilterStats) RecordExport(collection, format string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := entry(s.exportFreq, format)
	stats.Frequency++
	stats.LastSeen = s.now()
	stats.Operators[collection]++
}

// TopFilters returns the top N filtered properties by frequency.
func (s *FilterStats) TopFilters(n int) []PropertyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return top(s.filterFreq, n)
}

// TopExports returns the top N export formats by frequency. Operators
// holds the per-collection counts.
func (s *FilterStats) TopExports(n int) []PropertyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return top(s.exportFreq, n)
}

// Prune removes entries where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (s *FilterStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-s.window)
	for key, stats := range s.filterFreq {
		if stats.LastSeen.Before(threshold) {
			delete(s.filterFreq, key)
		}
	}
	for key, stats := range s.exportFreq {
		if stats.LastSeen.Before(threshold) {
			delete(s.exportFreq, key)
		}
	}
}

// Operator returns the leading comparison operator of a filter value,
// or "" when the value has none.
func Operator(value string) string {
	v := strings.TrimSpace(value)
	for _, op := range []string{"<=", ">=", "!=", "<>", "==", "<", ">", "="} {
		if strings.HasPrefix(v, op) {
			return op
		}
	}
	return ""
}

func entry(m map[string]*PropertyStats, key string) *PropertyStats {
	stats, exists := m[key]
	if !exists {
		stats = &PropertyStats{Key: key, Operators: make(map[string]int)}
		m[key] = stats
	}
	return stats
}

// top returns deep copies sorted by frequency (descending), ties by key.
func top(m map[string]*PropertyStats, n int) []PropertyStats {
	if n <= 0 || len(m) == 0 {
		return []PropertyStats{}
	}

	stats := make([]PropertyStats, 0, len(m))
	for _, s := range m {
		c := *s
		c.Operators = make(map[string]int, len(s.Operators))
		for op, count := range s.Operators {
			c.Operators[op] = count
		}
		stats = append(stats, c)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Key < stats[j].Key
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}
