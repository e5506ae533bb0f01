// Package session manages anonymous client sessions. It resolves the session
// id cookie and stores per-session attributes in memory, Redis or
// PostgreSQL. The flash scope keeps its buffers in these attributes.
package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long an idle session keeps its attributes.
const DefaultTTL = 1 * time.Hour

// ErrInvalidSessionID is returned for an empty session id.
var ErrInvalidSessionID = errors.New("session: invalid session id")

// Backend stores attributes for many sessions. Every write refreshes the
// session's TTL.
type Backend interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Put(ctx context.Context, sessionID, key string, value []byte) error
	Remove(ctx context.Context, sessionID, key string) error
	Keys(ctx context.Context, sessionID string) ([]string, error)

	// Touch extends the session's TTL without writing.
	Touch(ctx context.Context, sessionID string) error
	// Delete drops the session and all of its attributes.
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Attributes is the attribute map of one session. It satisfies flash.Store.
type Attributes struct {
	backend Backend
	id      string
}

// Scope binds backend to a single session.
func Scope(backend Backend, sessionID string) *Attributes {
	return &Attributes{backend: backend, id: sessionID}
}

// ID returns the session id.
func (a *Attributes) ID() string { return a.id }

func (a *Attributes) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return a.backend.Get(ctx, a.id, key)
}

func (a *Attributes) Put(ctx context.Context, key string, value []byte) error {
	return a.backend.Put(ctx, a.id, key, value)
}

func (a *Attributes) Remove(ctx context.Context, key string) error {
	return a.backend.Remove(ctx, a.id, key)
}

func (a *Attributes) Keys(ctx context.Context) ([]string, error) {
	return a.backend.Keys(ctx, a.id)
}
