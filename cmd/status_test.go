//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veilletech/triage-cli/internal/monitoring"
)

func TestFormatSnapshot(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:        10,
		RunsCompleted:    7,
		RunsFailed:       2,
		RunsRunning:      1,
		FailRate:         2.0 / 9.0,
		RecordsProcessed: 14000,
		AvgThroughput:    45.5,
		AvgCacheHitRate:  62.0,
		LookbackHours:    24,
		CollectedAt:      time.Now().UTC(),
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "24h")
	assert.Contains(t, output, "10 (7 completed, 2 failed, 1 running, 0 pending)")
	assert.Contains(t, output, "22.2%")
	assert.Contains(t, output, "14000")
	assert.Contains(t, output, "45.5 records/s")
	assert.Contains(t, output, "62.0%")

	// Healthy snapshot omits the degradation rows.
	assert.NotContains(t, output, "Fallback runs")
	assert.NotContains(t, output, "Cache I/O errors")
}

func TestFormatSnapshot_Degraded(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:        3,
		RunsCompleted:    3,
		CacheIOErrors:    5,
		FallbackRuns:     1,
		FallbackRecords:  250,
		SubBatchFailures: 4,
		LookbackHours:    12,
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "Cache I/O errors")
	assert.Contains(t, output, "Fallback runs")
	assert.Contains(t, output, "250")
	assert.Contains(t, output, "Sub-batch failures")
}
