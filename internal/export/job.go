package export

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// ErrCancelled is returned by Run when the step function asked to stop.
var ErrCancelled = apperrors.New(apperrors.ErrCategoryExport, apperrors.CodeExportCancelled, "export cancelled")

// State is the life cycle state of a Job.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StepFunc receives the estimated progress in [0, 1] before every page
// fetch and once more with 1 on success. Returning false cancels the run
// at the next page boundary.
type StepFunc func(progress float64) bool

// Request identifies what to export.
type Request struct {
	Collection string          `json:"collection"`
	Predicate  types.Predicate `json:"predicate"`
	Order      string          `json:"order"`
}

// Status is a snapshot of a job.
type Status struct {
	ID       string  `json:"id"`
	Exporter string  `json:"exporter"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Pages    int     `json:"pages"`
	Error    string  `json:"error,omitempty"`
}

// Job is a single-use export run. P is the per-item value folded into the
// accumulator: whole items for row exports, one column value for value
// exports.
type Job[P any] struct {
	id       string
	exporter string
	src      Source
	req      Request
	pageSize int

	columns func(coll *types.Collection) []string
	open    func(ctx context.Context, coll *types.Collection) (Accumulator[P], error)
	project func(item types.Item) P

	mu       sync.Mutex
	state    State
	progress float64
	pages    int
	err      error
}

// NewCollectionJob exports whole items of every property.
func NewCollectionJob(src Source, exp RowExporter, req Request) *Job[types.Item] {
	return &Job[types.Item]{
		id:       uuid.NewString(),
		exporter: exp.Info().Slug,
		src:      src,
		req:      req,
		pageSize: PageSize,
		columns: func(coll *types.Collection) []string {
			slugs := make([]string, len(coll.Properties))
			for i, p := range coll.Properties {
				slugs[i] = p.Slug
			}
			return slugs
		},
		open: func(ctx context.Context, coll *types.Collection) (Accumulator[types.Item], error) {
			return exp.Open(ctx, coll)
		},
		project: func(item types.Item) types.Item { return item },
	}
}

// NewColumnJob exports the values of a single property.
func NewColumnJob(src Source, exp ValueExporter, property string, req Request) *Job[any] {
	return &Job[any]{
		id:       uuid.NewString(),
		exporter: exp.Info().Slug,
		src:      src,
		req:      req,
		pageSize: PageSize,
		columns:  func(*types.Collection) []string { return []string{property} },
		open: func(ctx context.Context, coll *types.Collection) (Accumulator[any], error) {
			for _, p := range coll.Properties {
				if p.Slug == property {
					return exp.Open(ctx, coll, p)
				}
			}
			return nil, apperrors.NewValidationError(apperrors.CodeInvalidRequest,
				fmt.Sprintf("collection %s has no property %s", coll.Slug, property))
		},
		project: func(item types.Item) any { return item[property] },
	}
}

// WithPageSize overrides the number of items fetched per page.
func (j *Job[P]) WithPageSize(n int) *Job[P] {
	if n > 0 {
		j.pageSize = n
	}
	return j
}

// ID returns the job identifier.
func (j *Job[P]) ID() string { return j.id }

// Status returns a snapshot of the job.
func (j *Job[P]) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := Status{ID: j.id, Exporter: j.exporter, State: j.state.String(), Progress: j.progress, Pages: j.pages}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// Run executes the export. The collection and the item count are fetched
// concurrently, then pages are fetched one at a time until the backend
// reports no next page. Once the accumulator is open it is closed exactly
// once, with aborted=true on cancellation or failure. Cancellation returns
// an error matching ErrCancelled. A job can only be run once.
func (j *Job[P]) Run(ctx context.Context, onStep StepFunc) (*Artifact, error) {
	if err := j.begin(); err != nil {
		return nil, err
	}
	if onStep == nil {
		onStep = func(float64) bool { return true }
	}

	start := time.Now()
	art, err := j.run(ctx, onStep)
	j.finish(err)

	switch {
	case err == nil:
		log.Printf("[export] %s: %s export of %s finished in %v (%d pages)", j.id, j.exporter, j.req.Collection, time.Since(start), j.pageCount())
	case apperrors.IsCancelled(err):
		log.Printf("[export] %s: %s export of %s cancelled", j.id, j.exporter, j.req.Collection)
	default:
		log.Printf("[export] %s: %s export of %s failed: %v", j.id, j.exporter, j.req.Collection, err)
	}
	return art, err
}

func (j *Job[P]) run(ctx context.Context, onStep StepFunc) (*Artifact, error) {
	var (
		coll  *types.Collection
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := j.src.FetchCollection(gctx, j.req.Collection)
		coll = c
		return err
	})
	g.Go(func() error {
		n, err := j.src.FetchItemCount(gctx, j.req.Collection, j.req.Predicate)
		count = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	estimate := float64(count) / float64(j.pageSize)

	acc, err := j.open(ctx, coll)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		onStep(1)
		return nil, nil
	}

	q := PageQuery{
		Collection: coll,
		Columns:    j.columns(coll),
		Predicate:  j.req.Predicate,
		Order:      j.req.Order,
		PerPage:    j.pageSize,
	}
	gate := func(index int) bool {
		p := progressOf(index-1, estimate)
		j.setProgress(p, index-1)
		return onStep(p)
	}

	var runErr error
	for page, err := range Pages(ctx, j.src, q, gate) {
		if err != nil {
			runErr = err
			break
		}
		values := make([]P, len(page.Results))
		for i, item := range page.Results {
			values[i] = j.project(item)
		}
		if err := acc.Add(ctx, values, page.Index); err != nil {
			runErr = apperrors.NewExportError(apperrors.CodeExportFailed,
				fmt.Sprintf("failed to add page %d", page.Index), err)
			break
		}
		j.setProgress(progressOf(page.Index, estimate), page.Index)
	}

	if runErr != nil {
		if _, err := acc.Close(ctx, true); err != nil {
			log.Printf("[export] %s: close after abort failed: %v", j.id, err)
		}
		return nil, runErr
	}

	art, err := acc.Close(ctx, false)
	if err != nil {
		return nil, apperrors.NewExportError(apperrors.CodeExportFailed, "failed to finalize export", err)
	}
	j.setProgress(1, j.pageCount())
	onStep(1)
	return art, nil
}

func (j *Job[P]) begin() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateIdle {
		return apperrors.NewExportError(apperrors.CodeExportRunning,
			fmt.Sprintf("export %s already %s", j.id, j.state), nil)
	}
	j.state = StateRunning
	return nil
}

func (j *Job[P]) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	switch {
	case err == nil:
		j.state = StateFinished
	case apperrors.IsCancelled(err):
		j.state = StateCancelled
	default:
		j.state = StateFailed
	}
}

func (j *Job[P]) setProgress(p float64, pages int) {
	j.mu.Lock()
	j.progress = p
	j.pages = pages
	j.mu.Unlock()
}

func (j *Job[P]) pageCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pages
}

// progressOf estimates progress after done pages. The estimate may be
// wrong in either direction, so the result is clamped to [0, 1].
func progressOf(done int, estimate float64) float64 {
	if estimate <= 0 {
		return 0
	}
	p := float64(done) / estimate
	if p > 1 {
		return 1
	}
	return p
}
