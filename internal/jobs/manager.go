// Package jobs runs export jobs in the background, a bounded number at a
// time, and keeps their artifacts in object storage.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/internal/storage"
)

// Spec describes an export to run.
type Spec struct {
	export.Request

	// Format is the exporter slug: a row format, or a value format when
	// Property is set.
	Format string `json:"format"`

	// Property selects a single column export.
	Property string `json:"property,omitempty"`

	// Compression overrides the manager default when set.
	Compression export.Compression `json:"compression,omitempty"`
}

// Record is the externally visible state of a submitted job.
type Record struct {
	export.Status
	Collection string          `json:"collection"`
	Submitted  time.Time       `json:"submitted"`
	Artifact   *storage.Object `json:"artifact,omitempty"`
}

// Config configures a Manager.
type Config struct {
	// Concurrency is the number of jobs running at once (default 2).
	Concurrency int

	// PageSize overrides export.PageSize when positive.
	PageSize int

	// Compression is applied to artifacts unless a Spec overrides it.
	Compression export.Compression

	// Timeout cancels a job at its next page boundary; zero disables it.
	Timeout time.Duration
}

type runner interface {
	ID() string
	Status() export.Status
	Run(ctx context.Context, onStep export.StepFunc) (*export.Artifact, error)
}

type entry struct {
	job         runner
	spec        Spec
	compression export.Compression
	submitted   time.Time
	cancelled   atomic.Bool

	mu     sync.Mutex
	object *storage.Object
	err    error
	done   chan struct{}
}

// Manager schedules export jobs against one source and one store.
type Manager struct {
	src   export.Source
	store storage.ObjectStorage
	cfg   Config
	sem   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewManager creates a manager. Close stops it.
func NewManager(src export.Source, store storage.ObjectStorage, cfg Config) *Manager {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		src:    src,
		store:  store,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*entry),
	}
}

// Submit validates spec and queues the job. The returned record is the
// job's initial state.
func (m *Manager) Submit(spec Spec) (Record, error) {
	if spec.Collection == "" {
		return Record{}, apperrors.NewValidationError(apperrors.CodeInvalidRequest, "collection is required")
	}
	compression := spec.Compression
	if compression == "" {
		compression = m.cfg.Compression
	}
	if !compression.Valid() {
		return Record{}, apperrors.NewValidationError(apperrors.CodeInvalidRequest,
			fmt.Sprintf("unknown compression %q", compression))
	}

	job, err := m.newJob(spec)
	if err != nil {
		return Record{}, err
	}

	e := &entry{job: job, spec: spec, compression: compression, submitted: time.Now(), done: make(chan struct{})}
	m.mu.Lock()
	m.jobs[job.ID()] = e
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(e)

	log.Printf("[jobs] %s: queued %s export of %s", job.ID(), spec.Format, spec.Collection)
	return e.record(), nil
}

func (m *Manager) newJob(spec Spec) (runner, error) {
	if spec.Property != "" {
		exp, ok := formats.LookupValue(spec.Format)
		if !ok {
			return nil, apperrors.NewValidationError(apperrors.CodeUnknownFormat,
				fmt.Sprintf("unknown value format %q", spec.Format))
		}
		return export.NewColumnJob(m.src, exp, spec.Property, spec.Request).WithPageSize(m.cfg.PageSize), nil
	}
	exp, ok := formats.LookupRow(spec.Format)
	if !ok {
		return nil, apperrors.NewValidationError(apperrors.CodeUnknownFormat,
			fmt.Sprintf("unknown row format %q", spec.Format))
	}
	return export.NewCollectionJob(m.src, exp, spec.Request).WithPageSize(m.cfg.PageSize), nil
}

func (m *Manager) run(e *entry) {
	defer m.wg.Done()
	defer close(e.done)

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		e.finish(nil, export.ErrCancelled)
		return
	}
	defer m.sem.Release(1)

	step := export.WithContext(m.ctx, func(float64) bool { return !e.cancelled.Load() })
	if m.cfg.Timeout > 0 {
		step = export.WithDeadline(step, time.Now().Add(m.cfg.Timeout))
	}

	// Close stops the job at the step gate; a page already requested is
	// allowed to complete and is then discarded.
	runCtx := context.WithoutCancel(m.ctx)
	art, err := e.job.Run(runCtx, step)
	if err != nil || art == nil {
		e.finish(nil, err)
		return
	}

	art, err = export.Compress(art, e.compression)
	if err != nil {
		e.finish(nil, apperrors.NewExportError(apperrors.CodeExportFailed, "failed to compress artifact", err))
		return
	}

	obj, err := storage.SaveArtifact(runCtx, m.store, e.job.ID(), art)
	if err != nil {
		log.Printf("[jobs] %s: failed to store artifact: %v", e.job.ID(), err)
	}
	e.finish(obj, err)
}

// Get returns the record of job id.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	return e.record(), true
}

// List returns all records, oldest first.
func (m *Manager) List() []Record {
	m.mu.RLock()
	records := make([]Record, 0, len(m.jobs))
	for _, e := range m.jobs {
		records = append(records, e.record())
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Submitted.Before(records[j].Submitted)
	})
	return records
}

// Cancel asks job id to stop at its next page boundary. It reports
// whether the job exists.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if ok {
		e.cancelled.Store(true)
	}
	return ok
}

// Wait blocks until job id has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Record{}, apperrors.NewNotFoundError(apperrors.CodeObjectNotFound, fmt.Sprintf("export %s not found", id))
	}
	select {
	case <-e.done:
		return e.record(), nil
	case <-ctx.Done():
		return e.record(), ctx.Err()
	}
}

// Artifact loads the stored artifact of a finished job.
func (m *Manager) Artifact(ctx context.Context, id string) (*export.Artifact, error) {
	rec, ok := m.Get(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(apperrors.CodeObjectNotFound, fmt.Sprintf("export %s not found", id))
	}
	if rec.Artifact == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeObjectNotFound,
			fmt.Sprintf("export %s has no artifact (%s)", id, rec.State))
	}
	return storage.LoadArtifact(ctx, m.store, rec.Artifact.Key)
}

// Close cancels queued jobs, stops running jobs at their next page
// boundary and waits for them to return.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (e *entry) finish(obj *storage.Object, err error) {
	e.mu.Lock()
	e.object = obj
	e.err = err
	e.mu.Unlock()
}

func (e *entry) record() Record {
	st := e.job.Status()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil && st.Error == "" {
		// failures after the run itself finished
		st.State = export.StateFailed.String()
		if apperrors.IsCancelled(e.err) {
			st.State = export.StateCancelled.String()
		}
		st.Error = e.err.Error()
	}
	return Record{Status: st, Collection: e.spec.Collection, Submitted: e.submitted, Artifact: e.object}
}
