// Package liveness implements the liveness tracker (C5): a map from
// subscriber handle to liveness token, used to decide whether a
// disappearance notification is still relevant to the subscriber's
// current epoch. The mechanism that actually detects disappearance is
// external — see Watcher — the tracker only accounts for tokens.
package liveness

import (
	"errors"

	"github.com/google/uuid"
)

// Token uniquely identifies a subscriber's watch epoch. Re-subscribing
// the same handle yields a new token; a disappearance notification is
// accepted only when it carries the token currently on file.
type Token string

// NewToken generates a fresh, globally unique token.
func NewToken() Token {
	return Token(uuid.NewString())
}

// ErrNotSubscribed is returned by Unwatch and OnDown when the handle has
// no current liveness entry.
var ErrNotSubscribed = errors.New("liveness: subscriber not subscribed")

// ErrWrongToken is returned by OnDown when the supplied token does not
// match the one currently on file — a stale signal from a superseded
// epoch that should be dropped, not treated as a caller error.
var ErrWrongToken = errors.New("liveness: stale liveness token")

// Watcher is the pluggable liveness mechanism the core consumes. Concrete
// integrations can back this with process supervision, connection
// keepalives, health checks, or (in tests) manual signals. Tracker calls
// Watch only for subscribers it is not already tracking, so Watch itself
// need not be idempotent.
type Watcher[S comparable] interface {
	// Watch registers a liveness watch for sub and returns a fresh token
	// that identifies this epoch.
	Watch(sub S) Token
	// Unwatch cancels any liveness watch for sub.
	Unwatch(sub S)
}

// Tracker maps subscriber handles to liveness tokens.
type Tracker[S comparable] struct {
	watcher Watcher[S]
	tokens  map[S]Token
}

// New creates a Tracker backed by the given Watcher.
func New[S comparable](watcher Watcher[S]) *Tracker[S] {
	return &Tracker[S]{
		watcher: watcher,
		tokens:  make(map[S]Token),
	}
}

// Watch registers sub if not already watched. Idempotent: re-watching an
// already-tracked subscriber is a no-op and does not issue a new token.
func (t *Tracker[S]) Watch(sub S) {
	if _, ok := t.tokens[sub]; ok {
		return
	}
	t.tokens[sub] = t.watcher.Watch(sub)
}

// Unwatch discards sub's entry and any pending disappearance notification
// for it. Returns ErrNotSubscribed if sub has no entry.
func (t *Tracker[S]) Unwatch(sub S) error {
	if _, ok := t.tokens[sub]; !ok {
		return ErrNotSubscribed
	}
	delete(t.tokens, sub)
	t.watcher.Unwatch(sub)
	return nil
}

// OnDown processes a disappearance notification. It succeeds only if sub
// is tracked and token matches the one on file, in which case the entry
// is removed. A mismatched token returns ErrWrongToken and leaves the
// entry untouched — it is a stale signal from a prior epoch, not a
// caller error.
func (t *Tracker[S]) OnDown(sub S, token Token) error {
	current, ok := t.tokens[sub]
	if !ok {
		return ErrNotSubscribed
	}
	if current != token {
		return ErrWrongToken
	}
	delete(t.tokens, sub)
	return nil
}

// Size returns the number of subscribers currently watched.
func (t *Tracker[S]) Size() int {
	return len(t.tokens)
}
