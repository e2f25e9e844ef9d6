package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/veilletech/triage-cli/internal/model"
)

// payloadVersion tags every stored row with the serialization schema of
// model.PartialResult. Rows written under a different version read as
// misses, so schema changes only require bumping this constant.
const payloadVersion = 1

// SQLite is the durable cache level. Read and write failures degrade to
// cache misses: they are logged, counted, and never returned to callers.
type SQLite struct {
	db       *sql.DB
	ioErrors atomic.Int64
}

// NewSQLite opens (or creates) the cache database at path and configures
// WAL mode for concurrent readers.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	s := &SQLite{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key            TEXT PRIMARY KEY,
	payload        TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, cacheMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (model.PartialResult, bool) {
	var payload string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, schema_version FROM cache_entries WHERE key = ?`, key,
	).Scan(&payload, &version)
	if err == sql.ErrNoRows {
		return model.PartialResult{}, false
	}
	if err != nil {
		s.ioErrors.Add(1)
		zap.L().Warn("cache: read failed, treating as miss", zap.Error(err))
		return model.PartialResult{}, false
	}
	if version != payloadVersion {
		return model.PartialResult{}, false
	}

	var v model.PartialResult
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		s.ioErrors.Add(1)
		zap.L().Warn("cache: corrupt payload, treating as miss", zap.Error(err))
		return model.PartialResult{}, false
	}
	return v, true
}

func (s *SQLite) Put(ctx context.Context, key string, value model.PartialResult) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.ioErrors.Add(1)
		zap.L().Warn("cache: marshal failed, entry dropped", zap.Error(err))
		return
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, schema_version) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, schema_version = excluded.schema_version`,
		key, string(payload), payloadVersion,
	)
	if err != nil {
		s.ioErrors.Add(1)
		zap.L().Warn("cache: write failed, entry dropped", zap.Error(err))
	}
}

// IOErrors returns the number of read/write failures absorbed so far.
func (s *SQLite) IOErrors() int64 {
	return s.ioErrors.Load()
}

// Len returns the number of durable entries.
func (s *SQLite) Len(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, eris.Wrap(err, "cache: count entries")
}

// Clear drops every durable entry.
func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return eris.Wrap(err, "cache: clear")
}
