package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/mathhub/mdh-explorer/pkg/types"
)

func pred(filters ...types.Filter) types.Predicate {
	return types.Predicate{Filters: filters}
}

func value(slug, v string) types.Filter {
	return types.Filter{Slug: slug, Value: types.StringPtr(v)}
}

// TestRecordPredicateConcurrent tests concurrent RecordPredicate calls for race conditions.
func TestRecordPredicateConcurrent(t *testing.T) {
	fs := NewFilterStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				fs.RecordPredicate("graphs", pred(value("n", "=3"), value("girth", ">=4"), value("name", "Petersen")))
			}
		}()
	}

	wg.Wait()

	top := fs.TopFilters(10)
	if len(top) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(top))
	}

	expectedFreq := int64(numGoroutines * recordsPerGoroutine)
	for _, stat := range top {
		if stat.Frequency != expectedFreq {
			t.Errorf("expected frequency %d for %s, got %d", expectedFreq, stat.Key, stat.Frequency)
		}
	}
}

func TestRecordPredicateSkipsIncompleteFilters(t *testing.T) {
	fs := NewFilterStats(time.Hour)
	fs.RecordPredicate("graphs", pred(types.Filter{Slug: "n"}, value("n", "<10"), value("n", "< 20")))

	top := fs.TopFilters(5)
	if len(top) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(top))
	}
	if top[0].Key != "graphs.n" || top[0].Frequency != 2 {
		t.Errorf("unexpected stats %+v", top[0])
	}
	if top[0].Operators["<"] != 2 {
		t.Errorf("expected 2 uses of <, got %v", top[0].Operators)
	}
}

// TestTopFiltersOrdering tests that TopFilters returns results sorted by frequency.
func TestTopFiltersOrdering(t *testing.T) {
	fs := NewFilterStats(1 * time.Hour)

	for i := 0; i < 10; i++ {
		fs.RecordPredicate("graphs", pred(value("n", "=1")))
	}
	for i := 0; i < 5; i++ {
		fs.RecordPredicate("graphs", pred(value("girth", ">3")))
	}
	for i := 0; i < 20; i++ {
		fs.RecordPredicate("abelian", pred(value("order", "<=8")))
	}

	top := fs.TopFilters(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(top))
	}
	if top[0].Key != "abelian.order" || top[0].Frequency != 20 {
		t.Errorf("expected abelian.order with frequency 20, got %s with %d", top[0].Key, top[0].Frequency)
	}
	if top[1].Key != "graphs.n" || top[1].Frequency != 10 {
		t.Errorf("expected graphs.n with frequency 10, got %s with %d", top[1].Key, top[1].Frequency)
	}

	if got := fs.TopFilters(0); len(got) != 0 {
		t.Errorf("expected empty result for n=0, got %d", len(got))
	}
}

func TestTopFiltersReturnsCopies(t *testing.T) {
	fs := NewFilterStats(time.Hour)
	fs.RecordPredicate("graphs", pred(value("n", "=1")))

	top := fs.TopFilters(1)
	top[0].Operators["="] = 100

	if got := fs.TopFilters(1)[0].Operators["="]; got != 1 {
		t.Errorf("expected internal count 1, got %d", got)
	}
}

func TestRecordExport(t *testing.T) {
	fs := NewFilterStats(time.Hour)
	fs.RecordExport("graphs", "json")
	fs.RecordExport("graphs", "json")
	fs.RecordExport("abelian", "json")
	fs.RecordExport("graphs", "csv")

	top := fs.TopExports(5)
	if len(top) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(top))
	}
	if top[0].Key != "json" || top[0].Frequency != 3 {
		t.Errorf("unexpected first entry %+v", top[0])
	}
	if top[0].Operators["graphs"] != 2 || top[0].Operators["abelian"] != 1 {
		t.Errorf("unexpected per-collection counts %v", top[0].Operators)
	}
}

// TestPruneRemovesOldEntries tests that Prune removes entries older than the window.
func TestPruneRemovesOldEntries(t *testing.T) {
	fs := NewFilterStats(time.Hour)
	now := time.Now()
	fs.now = func() time.Time { return now }

	fs.RecordPredicate("graphs", pred(value("n", "=1")))
	fs.RecordExport("graphs", "json")

	now = now.Add(30 * time.Minute)
	fs.RecordPredicate("graphs", pred(value("girth", "=5")))

	now = now.Add(45 * time.Minute)
	fs.Prune()

	top := fs.TopFilters(10)
	if len(top) != 1 || top[0].Key != "graphs.girth" {
		t.Errorf("expected only graphs.girth to survive, got %+v", top)
	}
	if len(fs.TopExports(10)) != 0 {
		t.Error("expected export stats to be pruned")
	}
}

func TestOperator(t *testing.T) {
	tests := map[string]string{
		"=3":       "=",
		">=4":      ">=",
		" <= 4":    "<=",
		"!=2":      "!=",
		"<5":       "<",
		">5":       ">",
		"Petersen": "",
		"":         "",
	}
	for in, want := range tests {
		if got := Operator(in); got != want {
			t.Errorf("Operator(%q) = %q, want %q", in, got, want)
		}
	}
}
