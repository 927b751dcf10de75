package session

import (
	"context"
	"sync"
	"time"
)

// MemoryManager keeps the registry in process memory under one RWMutex.
// Expired entries read as absent and are dropped by PurgeExpired.
type MemoryManager struct {
	base

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryManager returns an empty in-memory registry.
func NewMemoryManager(cfg Config, opts ...Option) *MemoryManager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryManager{
		base:    newBase(cfg, o),
		entries: make(map[string]Entry),
	}
}

func (m *MemoryManager) HasSession(ctx context.Context, tok string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if tok == "" {
		return false, nil
	}

	k := m.key(tok)
	now := m.now()

	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	return ok && e.liveAt(now), nil
}

func (m *MemoryManager) AddSession(ctx context.Context, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tok == "" {
		return ErrEmptyToken
	}

	k := m.key(tok)
	now := m.now()
	e, err := m.newEntry(now)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[k]; ok && cur.liveAt(now) {
		return ErrDuplicateSession
	}
	m.entries[k] = e
	return nil
}

func (m *MemoryManager) RemoveSession(ctx context.Context, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := m.key(tok)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		return ErrSessionNotFound
	}
	delete(m.entries, k)
	if !e.liveAt(now) {
		return ErrSessionNotFound
	}
	return nil
}

func (m *MemoryManager) PatchSession(ctx context.Context, oldToken, newToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newToken == "" {
		return ErrEmptyToken
	}

	oldKey, newKey := m.key(oldToken), m.key(newToken)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[oldKey]
	if !ok || !e.liveAt(now) {
		return ErrSessionNotFound
	}
	if cur, ok := m.entries[newKey]; ok && cur.liveAt(now) {
		return ErrDuplicateSession
	}

	delete(m.entries, oldKey)
	e.RotatedAt = now
	e.ExpiresAt = m.expiresAt(now)
	m.entries[newKey] = e
	return nil
}

// PurgeExpired drops entries that expired at or before now.
func (m *MemoryManager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, e := range m.entries {
		if !e.liveAt(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored entries, expired ones included until purged.
func (m *MemoryManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
