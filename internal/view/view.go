// Package view keeps the data behind the interactive displays of a
// collection: the item count, the current results page and the collection
// list. Each display is its own race domain; a response is shown only if no
// response to a later request has been shown already. Transport failures
// become an error state instead of propagating.
package view

import (
	"context"
	"log"
	"sync"

	"github.com/mathhub/mdh-explorer/internal/sequence"
)

// Status is the load status of a view.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a view.
type State[T any] struct {
	Status Status
	Value  T
	Err    error

	// Pending is true while a request newer than the shown value is in flight
	Pending bool
}

// Options configures a view.
type Options struct {
	// Quiet suppresses logging of swallowed failures (production mode)
	Quiet bool
}

// domain is one staleness race domain holding the last applied value.
type domain[T any] struct {
	name  string
	quiet bool

	tr sequence.Tracker

	mu      sync.Mutex
	hash    string
	started bool
	state   State[T]
}

// refresh fetches a new value unless hash equals the hash of the last
// request and that request did not fail. It reports whether a result was
// applied.
func (d *domain[T]) refresh(ctx context.Context, hash string, force bool, fetch func(context.Context) (T, error)) bool {
	d.mu.Lock()
	if !force && d.started && d.hash == hash && d.state.Status != StatusError {
		d.mu.Unlock()
		return false
	}
	d.hash = hash
	d.started = true
	tok := d.tr.Issue()
	if d.state.Status != StatusReady {
		d.state.Status = StatusLoading
	}
	d.state.Pending = true
	d.mu.Unlock()

	value, err := fetch(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.tr.Apply(tok, nil) {
		return false
	}
	pending := !d.tr.Current(tok)
	if err != nil {
		if !d.quiet {
			log.Printf("[view] %s: request failed: %v", d.name, err)
		}
		var zero T
		d.state = State[T]{Status: StatusError, Value: zero, Err: err, Pending: pending}
		return true
	}
	d.state = State[T]{Status: StatusReady, Value: value, Pending: pending}
	return true
}

func (d *domain[T]) snapshot() State[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
