// Package monitoring aggregates run history into health metrics: failure
// rates, throughput, cache effectiveness and LLM degradation over a recent
// window. The status command prints one snapshot; the serve command can run
// a background checker that alerts on threshold breaches.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/store"
)

// collectLimit bounds the history scan. Runs older than the lookback
// window are filtered out after the fetch.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Run counts (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunsPending   int     `json:"runs_pending"`
	FailRate      float64 `json:"fail_rate"`

	// Aggregates over completed runs that carry a report.
	RecordsProcessed int     `json:"records_processed"`
	AvgThroughput    float64 `json:"avg_throughput_rps"`
	AvgCacheHitRate  float64 `json:"avg_cache_hit_rate_percent"`
	CacheIOErrors    int     `json:"cache_io_errors"`

	// LLM degradation (within lookback window).
	FallbackRuns     int `json:"fallback_runs"`
	FallbackRecords  int `json:"fallback_records"`
	SubBatchFailures int `json:"sub_batch_failures"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, collectLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalThroughput float64
	var totalHitRate float64
	var reportedRuns int

	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		case model.RunStatusPending:
			snap.RunsPending++
		}
		if r.Report == nil {
			continue
		}
		reportedRuns++
		snap.RecordsProcessed += r.Report.TotalRecords
		snap.CacheIOErrors += r.Report.CacheIOErrors
		snap.FallbackRecords += r.Report.FallbackRecords
		snap.SubBatchFailures += r.Report.SubBatchFailures
		totalThroughput += r.Report.RecordsPerSecond
		totalHitRate += r.Report.CacheHitRate
		if r.Report.Mode == model.RunModePatternFallback {
			snap.FallbackRuns++
		}
	}

	finished := snap.RunsCompleted + snap.RunsFailed
	if finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if reportedRuns > 0 {
		snap.AvgThroughput = totalThroughput / float64(reportedRuns)
		snap.AvgCacheHitRate = totalHitRate / float64(reportedRuns)
	}

	return snap, nil
}
