// Package store persists classification run history. SQLite is the
// default backend; Postgres adds bulk export of per-record results.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/veilletech/triage-cli/internal/model"
)

// ErrRunNotFound is returned by GetRun when no run has the given ID.
var ErrRunNotFound = eris.New("run not found")

// Store defines run-history persistence shared by both backends.
type Store interface {
	CreateRun(ctx context.Context, dataset string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, report *model.BenchmarkReport) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
