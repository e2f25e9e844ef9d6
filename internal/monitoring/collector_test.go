package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilletech/triage-cli/internal/model"
)

// mockStore implements store.Store for testing. The collector filters by
// creation time itself, so ListRuns returns everything.
type mockStore struct {
	runs    []model.Run
	listErr error
}

func (m *mockStore) ListRuns(_ context.Context, _ int) ([]model.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.runs, nil
}

// Unused store methods, satisfy the interface.
func (m *mockStore) CreateRun(context.Context, string) (*model.Run, error)             { return nil, nil }
func (m *mockStore) UpdateRunStatus(context.Context, string, model.RunStatus) error    { return nil }
func (m *mockStore) CompleteRun(context.Context, string, *model.BenchmarkReport) error { return nil }
func (m *mockStore) FailRun(context.Context, string, string) error                     { return nil }
func (m *mockStore) GetRun(context.Context, string) (*model.Run, error)                { return nil, nil }
func (m *mockStore) Ping(context.Context) error                                        { return nil }
func (m *mockStore) Migrate(context.Context) error                                     { return nil }
func (m *mockStore) Close() error                                                      { return nil }

func TestCollector_EmptyStore(t *testing.T) {
	st := &mockStore{}
	c := NewCollector(st)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Equal(t, 0, snap.RunsFailed)
	assert.Equal(t, 0.0, snap.FailRate)
	assert.Equal(t, 0.0, snap.AvgThroughput)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_RunMetrics(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{
				ID: "1", Status: model.RunStatusCompleted, CreatedAt: now.Add(-1 * time.Hour),
				Report: &model.BenchmarkReport{
					TotalRecords: 1000, RecordsPerSecond: 50, CacheHitRate: 80,
					Mode: model.RunModeFull,
				},
			},
			{
				ID: "2", Status: model.RunStatusCompleted, CreatedAt: now.Add(-2 * time.Hour),
				Report: &model.BenchmarkReport{
					TotalRecords: 500, RecordsPerSecond: 30, CacheHitRate: 60,
					SubBatchFailures: 2, FallbackRecords: 100,
					Mode: model.RunModePatternFallback,
				},
			},
			{ID: "3", Status: model.RunStatusFailed, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: "4", Status: model.RunStatusPending, CreatedAt: now.Add(-30 * time.Minute)},
			{ID: "5", Status: model.RunStatusRunning, CreatedAt: now.Add(-10 * time.Minute)},
			// Outside lookback window, should be filtered out.
			{ID: "6", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
		},
	}

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsPending)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 0.001) // 1 failed / 3 finished
	assert.Equal(t, 1500, snap.RecordsProcessed)
	assert.InDelta(t, 40.0, snap.AvgThroughput, 0.001)
	assert.InDelta(t, 70.0, snap.AvgCacheHitRate, 0.001)
	assert.Equal(t, 1, snap.FallbackRuns)
	assert.Equal(t, 100, snap.FallbackRecords)
	assert.Equal(t, 2, snap.SubBatchFailures)
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{
		runs: []model.Run{
			{ID: "1", Status: model.RunStatusPending, CreatedAt: now.Add(-1 * time.Hour)},
			{ID: "2", Status: model.RunStatusRunning, CreatedAt: now.Add(-2 * time.Hour)},
		},
	}

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	// No finished runs, so failure rate should be 0.
	assert.Equal(t, 0.0, snap.FailRate)
}

func TestCollector_ListError(t *testing.T) {
	st := &mockStore{listErr: assert.AnError}
	c := NewCollector(st)

	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
