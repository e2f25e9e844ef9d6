// Package classify implements the staged classification pipeline: a fast
// lexicon pass and a pattern pass over every record, claim-priority
// sampling, a bounded-concurrency expensive pass over the sampled subset,
// and a final per-field merge. All strategies are consumed through the
// RecordClassifier interface; implementations live in internal/strategy.
package classify

import (
	"context"

	"github.com/veilletech/triage-cli/internal/model"
)

// RecordClassifier is one classification strategy.
type RecordClassifier interface {
	// Name is the stable strategy identifier, used in cache keys.
	Name() string

	// Version is folded into cache keys. Bump it whenever the strategy's
	// output for the same text can change, which invalidates prior entries.
	Version() string

	// ClassifyBatch classifies texts in order and returns exactly one
	// result per text, or an error covering the whole call.
	ClassifyBatch(ctx context.Context, texts []string) ([]model.PartialResult, error)

	// Fallback is the deterministic per-strategy default assigned to a
	// record when the batch call fails.
	Fallback(text string) model.PartialResult
}

// AvailabilityChecker is implemented by strategies that depend on an
// external service. The orchestrator consults it once at construction,
// never mid-run.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}
