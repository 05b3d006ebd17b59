// Package identity provides learner identities. Authentication mechanics are
// out of scope; a provider only yields a stable opaque ID per session.
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Provider emits the current learner identity, again on every sign-in, and
// "" on sign-out.
type Provider interface {
	Identities(ctx context.Context) <-chan string
}

// Static yields a fixed identity (a pre-issued token or a client-supplied ID).
type Static struct {
	id string
}

func NewStatic(id string) *Static {
	return &Static{id: id}
}

func (s *Static) Identities(_ context.Context) <-chan string {
	ch := make(chan string, 1)
	ch <- s.id
	return ch
}

// Anonymous mints a random identity once and keeps it for its lifetime.
type Anonymous struct {
	Static
}

func NewAnonymous() *Anonymous {
	return &Anonymous{Static: Static{id: uuid.NewString()}}
}

// ID returns the minted identity.
func (a *Anonymous) ID() string {
	return a.id
}

// Manual lets callers drive sign-in and sign-out explicitly.
type Manual struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

func NewManual() *Manual {
	return &Manual{ch: make(chan string, 4)}
}

func (m *Manual) Identities(_ context.Context) <-chan string {
	return m.ch
}

func (m *Manual) SignIn(id string) {
	m.emit(id)
}

func (m *Manual) SignOut() {
	m.emit("")
}

// Close ends the identity stream, which ends the session.
func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

func (m *Manual) emit(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.ch <- id
	}
}
