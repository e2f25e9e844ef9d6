// Package cache implements the two-level classification cache: a
// process-local map in front of a durable SQLite file. Keys are digests of
// (strategy, version, text), so bumping a strategy version implicitly
// invalidates its entries. Entries never expire on their own.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/veilletech/triage-cli/internal/model"
)

// Store is the cache surface the pipeline sees. Implementations must be
// safe for concurrent use; workers hit the cache in parallel. Lookup
// misses and storage failures are absorbed, never surfaced as errors.
type Store interface {
	Get(ctx context.Context, key string) (model.PartialResult, bool)
	Put(ctx context.Context, key string, value model.PartialResult)
}

// Instrumented is implemented by stores that track I/O failures. The
// orchestrator reads the counter once per run for the benchmark report.
type Instrumented interface {
	IOErrors() int64
}

// Key derives the cache key for one record under one strategy. The digest
// covers the strategy identifier, its version and the record text.
func Key(strategy, version, text string) string {
	h := sha256.Sum256([]byte(strategy + ":" + version + ":" + text))
	return fmt.Sprintf("%x", h)
}
