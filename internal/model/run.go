package model

import "time"

// RunStatus represents the current state of a classification run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single classification run over one dataset.
type Run struct {
	ID        string           `json:"id"`
	Dataset   string           `json:"dataset"`
	Status    RunStatus        `json:"status"`
	Report    *BenchmarkReport `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PhaseTiming records the wall-clock duration of one pipeline phase.
type PhaseTiming struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
	Records  int    `json:"records"`
}

// RunMode describes how the expensive stage executed.
type RunMode string

const (
	// RunModeFull means the LLM strategy classified the sampled subset.
	RunModeFull RunMode = "full"
	// RunModePatternFallback means the LLM was unavailable and the pattern
	// engine covered the sampled subset instead.
	RunModePatternFallback RunMode = "pattern_fallback"
)

// BenchmarkReport summarizes one pipeline run: volume, wall-clock time,
// throughput, cache effectiveness, per-phase timing and degradation
// counters. It is assembled by the orchestrating goroutine only.
type BenchmarkReport struct {
	TotalRecords     int           `json:"total_records"`
	ElapsedMs        int64         `json:"elapsed_ms"`
	RecordsPerSecond float64       `json:"records_per_second"`
	CacheHits        int           `json:"cache_hits"`
	CacheMisses      int           `json:"cache_misses"`
	CacheHitRate     float64       `json:"cache_hit_rate_percent"`
	CacheIOErrors    int           `json:"cache_io_errors"`
	Phases           []PhaseTiming `json:"phases"`
	SubBatchFailures int           `json:"sub_batch_failures"`
	FallbackRecords  int           `json:"fallback_records"`
	StrategyCalls    int           `json:"strategy_calls"`
	Workers          int           `json:"workers"`
	SampledRecords   int           `json:"sampled_records"`
	SampledFraction  float64       `json:"sampled_fraction"`
	Mode             RunMode       `json:"mode"`
}
