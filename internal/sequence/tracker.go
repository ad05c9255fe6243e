// Package sequence guards asynchronous results against staleness. Every
// request takes a token when it is issued; its result is applied only if
// no result of a later request has been applied in the meantime.
package sequence

import "sync"

// Token marks the issue order of a request. Tokens from one Tracker are
// strictly increasing.
type Token uint64

// Tracker is one race domain. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	issued  Token
	applied Token
}

// Issue returns a token newer than every token issued before.
func (t *Tracker) Issue() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// Apply runs fn and returns true unless a newer token has already been
// applied, in which case the result is stale and fn is not called. fn runs
// under the tracker's lock and must not call back into it.
func (t *Tracker) Apply(tok Token, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok < t.applied {
		return false
	}
	t.applied = tok
	if fn != nil {
		fn()
	}
	return true
}

// Current reports whether tok is the most recently issued token.
func (t *Tracker) Current(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tok == t.issued
}

// Applied returns the newest applied token, zero if none.
func (t *Tracker) Applied() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied
}
