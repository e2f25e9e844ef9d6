package cache

import (
	"context"
	"sync"

	"github.com/veilletech/triage-cli/internal/model"
)

// Memory is the in-process cache level: a plain map behind an RWMutex.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]model.PartialResult
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]model.PartialResult)}
}

func (m *Memory) Get(_ context.Context, key string) (model.PartialResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Put(_ context.Context, key string, value model.PartialResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.PartialResult)
}
