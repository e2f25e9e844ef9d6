package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/cache"
	"github.com/veilletech/triage-cli/internal/model"
)

// StageStats counts the cache and failure activity of one stage
// invocation. Stats are returned to the caller rather than written to
// shared state; only the orchestrating goroutine aggregates them.
type StageStats struct {
	Hits          int
	Misses        int
	StrategyCalls int
	Failures      int
	Fallbacks     int
}

// Add folds other into s.
func (s *StageStats) Add(other StageStats) {
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.StrategyCalls += other.StrategyCalls
	s.Failures += other.Failures
	s.Fallbacks += other.Fallbacks
}

// StageRunner executes one strategy over one span of texts with
// read-through caching. Cached records are served directly; the uncached
// remainder forms a single ClassifyBatch call whose results are written
// back and merged in original order.
type StageRunner struct {
	strategy RecordClassifier
	cache    cache.Store
}

// NewStageRunner binds a strategy to a cache.
func NewStageRunner(strategy RecordClassifier, store cache.Store) *StageRunner {
	return &StageRunner{strategy: strategy, cache: store}
}

// Run classifies texts and returns one result per text, in order. A failed
// batch call degrades every uncached text to the strategy's fallback and
// is counted in the returned stats; it never surfaces as an error.
func (r *StageRunner) Run(ctx context.Context, texts []string) ([]model.PartialResult, StageStats) {
	var stats StageStats
	results := make([]model.PartialResult, len(texts))

	keys := make([]string, len(texts))
	uncached := make([]int, 0, len(texts))
	for i, text := range texts {
		keys[i] = cache.Key(r.strategy.Name(), r.strategy.Version(), text)
		if hit, ok := r.cache.Get(ctx, keys[i]); ok {
			results[i] = hit
			stats.Hits++
			continue
		}
		stats.Misses++
		uncached = append(uncached, i)
	}
	if len(uncached) == 0 {
		return results, stats
	}

	batch := make([]string, len(uncached))
	for j, i := range uncached {
		batch[j] = texts[i]
	}

	stats.StrategyCalls++
	fresh, err := r.strategy.ClassifyBatch(ctx, batch)
	if err != nil || len(fresh) != len(batch) {
		if err != nil {
			zap.L().Warn("classify: batch call failed, using fallbacks",
				zap.String("strategy", r.strategy.Name()),
				zap.Int("records", len(batch)),
				zap.Error(err),
			)
		} else {
			zap.L().Warn("classify: batch returned wrong result count, using fallbacks",
				zap.String("strategy", r.strategy.Name()),
				zap.Int("want", len(batch)),
				zap.Int("got", len(fresh)),
			)
		}
		stats.Failures++
		stats.Fallbacks += len(uncached)
		for j, i := range uncached {
			results[i] = r.strategy.Fallback(batch[j])
		}
		return results, stats
	}

	for j, i := range uncached {
		results[i] = fresh[j]
		r.cache.Put(ctx, keys[i], fresh[j])
	}
	return results, stats
}
