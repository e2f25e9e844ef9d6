package cache

import (
	"context"

	"github.com/veilletech/triage-cli/internal/model"
)

// Layered combines the memory level with an optional durable level.
// Hits on the durable level are promoted into memory; writes go through
// to both. With a nil durable level it degrades to memory-only caching.
type Layered struct {
	mem     *Memory
	durable *SQLite
}

var (
	_ Store        = (*Layered)(nil)
	_ Instrumented = (*Layered)(nil)
)

// NewLayered builds the two-level cache. durable may be nil.
func NewLayered(mem *Memory, durable *SQLite) *Layered {
	if mem == nil {
		mem = NewMemory()
	}
	return &Layered{mem: mem, durable: durable}
}

func (l *Layered) Get(ctx context.Context, key string) (model.PartialResult, bool) {
	if v, ok := l.mem.Get(ctx, key); ok {
		return v, true
	}
	if l.durable == nil {
		return model.PartialResult{}, false
	}
	v, ok := l.durable.Get(ctx, key)
	if ok {
		l.mem.Put(ctx, key, v)
	}
	return v, ok
}

func (l *Layered) Put(ctx context.Context, key string, value model.PartialResult) {
	l.mem.Put(ctx, key, value)
	if l.durable != nil {
		l.durable.Put(ctx, key, value)
	}
}

func (l *Layered) IOErrors() int64 {
	if l.durable == nil {
		return 0
	}
	return l.durable.IOErrors()
}

// Clear drops both levels.
func (l *Layered) Clear(ctx context.Context) error {
	l.mem.Clear()
	if l.durable == nil {
		return nil
	}
	return l.durable.Clear(ctx)
}
