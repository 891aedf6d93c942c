package search

import (
	"context"
	"sync"
)

// Token marks the operations of one generation. Fetch adapters watch
// Context(); the aggregator asks the TokenManager whether the token is
// still the active one before it writes anything.
type Token struct {
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

func (t *Token) Generation() uint64 {
	return t.generation
}

func (t *Token) Context() context.Context {
	return t.ctx
}

// Canceled reports whether the token has been invalidated.
func (t *Token) Canceled() bool {
	return t.ctx.Err() != nil
}

// TokenManager holds at most one active token.
type TokenManager struct {
	parent     context.Context
	mu         sync.Mutex
	active     *Token
	generation uint64
}

func NewTokenManager(parent context.Context) *TokenManager {
	if parent == nil {
		parent = context.Background()
	}
	return &TokenManager{parent: parent}
}

// BeginGeneration cancels the held token and returns a fresh one.
func (m *TokenManager) BeginGeneration() *Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelLocked()

	m.generation++
	ctx, cancel := context.WithCancel(m.parent)
	m.active = &Token{
		generation: m.generation,
		ctx:        ctx,
		cancel:     cancel,
	}
	return m.active
}

// CancelActive invalidates the held token, if any.
func (m *TokenManager) CancelActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
}

func (m *TokenManager) cancelLocked() {
	if m.active == nil {
		return
	}
	m.active.cancel()
	m.active = nil
}

func (m *TokenManager) IsActive(t *Token) bool {
	if t == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == t && t.ctx.Err() == nil
}

// Generation is the number of the most recently minted token.
func (m *TokenManager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}
