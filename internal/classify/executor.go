package classify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/veilletech/triage-cli/internal/cache"
	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/resilience"
)

// retryClassifier decorates a strategy with a bounded retry loop around
// each batch call. Name, Version and Fallback pass through unchanged, so
// cache keys are unaffected.
type retryClassifier struct {
	RecordClassifier
	retry resilience.Config
}

func withRetry(s RecordClassifier, retry resilience.Config) RecordClassifier {
	// Sub-batch calls retry on any failure; only cancellation stops the
	// loop early.
	retry.ShouldRetry = func(error) bool { return true }
	retry.OnRetry = resilience.RetryLogger(s.Name(), "classify_batch")
	return &retryClassifier{RecordClassifier: s, retry: retry}
}

func (r *retryClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]model.PartialResult, error) {
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]model.PartialResult, error) {
		return r.RecordClassifier.ClassifyBatch(ctx, texts)
	})
}

// ConcurrentExecutor runs the expensive stage over the sampled indices on
// a bounded worker pool sized once at construction. Workers write into
// disjoint regions of a single pre-sized slice, so results need no lock;
// per-chunk stats stream back to the calling goroutine, which owns all
// aggregation and progress reporting.
type ConcurrentExecutor struct {
	workers int
	retry   resilience.Config
	cache   cache.Store
}

// NewConcurrentExecutor builds an executor with the given pool size and
// per-sub-batch retry policy.
func NewConcurrentExecutor(workers int, retry resilience.Config, store cache.Store) *ConcurrentExecutor {
	return &ConcurrentExecutor{workers: workers, retry: retry, cache: store}
}

// Run classifies records[i] for every i in indices and returns the results
// keyed by record index, exactly one entry per index. onSubBatch, when not
// nil, is invoked from the calling goroutine after each sub-batch
// completes. The only error returned is ctx.Err on cancellation; strategy
// failures degrade to fallbacks inside the StageRunner.
func (e *ConcurrentExecutor) Run(
	ctx context.Context,
	strategy RecordClassifier,
	records []model.Record,
	indices []int,
	onSubBatch func(done, total int),
) (map[int]model.PartialResult, StageStats, error) {
	var agg StageStats
	out := make(map[int]model.PartialResult, len(indices))
	if len(indices) == 0 {
		return out, agg, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, agg, err
	}

	chunks := Chunk(indices, e.workers)
	results := make([]model.PartialResult, len(indices))
	offsets := make([]int, len(chunks))
	for i, off := 1, 0; i < len(chunks); i++ {
		off += len(chunks[i-1])
		offsets[i] = off
	}

	wrapped := withRetry(strategy, e.retry)
	completions := make(chan StageStats, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for ci, chunk := range chunks {
		g.Go(func() error {
			texts := make([]string, len(chunk))
			for j, idx := range chunk {
				texts[j] = records[idx].Text
			}
			res, stats := NewStageRunner(wrapped, e.cache).Run(gctx, texts)
			copy(results[offsets[ci]:offsets[ci]+len(chunk)], res)
			completions <- stats
			return nil
		})
	}

	// The channel is buffered to len(chunks), so workers never block on
	// send and this loop observes every completion unless cancelled.
	for done := 0; done < len(chunks); done++ {
		select {
		case stats := <-completions:
			agg.Add(stats)
			if onSubBatch != nil {
				onSubBatch(done+1, len(chunks))
			}
		case <-ctx.Done():
			_ = g.Wait()
			return nil, agg, ctx.Err()
		}
	}
	if err := g.Wait(); err != nil {
		return nil, agg, err
	}

	for ci, chunk := range chunks {
		for j, idx := range chunk {
			out[idx] = results[offsets[ci]+j]
		}
	}
	return out, agg, nil
}
