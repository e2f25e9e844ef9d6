// Package db holds the bulk-write helpers the Postgres store builds on:
// COPY-protocol inserts for first exports and a staging-table upsert for
// re-exports.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copy streams rows into table with the COPY protocol, the fastest way to
// land a large result set. Schema-qualified table names are supported.
func Copy(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, tableIdent(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// UpsertSpec describes one upsert target.
type UpsertSpec struct {
	Table   string
	Columns []string

	// Key names the columns of the unique constraint rows collide on.
	Key []string

	// Update limits which columns are rewritten on collision; empty means
	// every column outside the key.
	Update []string
}

func (s UpsertSpec) validate() error {
	if len(s.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(s.Key) == 0 {
		return eris.New("db: upsert: no key columns specified")
	}
	return nil
}

// updateColumns resolves which columns the merge rewrites on collision.
func (s UpsertSpec) updateColumns() []string {
	if len(s.Update) > 0 {
		return s.Update
	}
	keys := make(map[string]bool, len(s.Key))
	for _, k := range s.Key {
		keys[k] = true
	}
	var cols []string
	for _, c := range s.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// mergeSQL builds the INSERT ... ON CONFLICT statement that folds the
// staging table into the target.
func (s UpsertSpec) mergeSQL(staging string) string {
	cols := identList(s.Columns)
	assignments := make([]string, 0, len(s.Columns))
	for _, col := range s.updateColumns() {
		q := pgx.Identifier{col}.Sanitize()
		assignments = append(assignments, q+" = EXCLUDED."+q)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		tableIdent(s.Table).Sanitize(), cols, cols,
		pgx.Identifier{staging}.Sanitize(),
		identList(s.Key),
		strings.Join(assignments, ", "),
	)
}

// Upsert lands rows in the target table, replacing any that collide on the
// key. The batch is staged in a session temp table with COPY and merged
// into the target in the same transaction, so a re-export is all or
// nothing.
func Upsert(ctx context.Context, pool Pool, spec UpsertSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	staging := stagingName(spec.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(),
		tableIdent(spec.Table).Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create staging table for %s", spec.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into staging table for %s", spec.Table)
	}

	tag, err := tx.Exec(ctx, spec.mergeSQL(staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// tableIdent turns a possibly schema-qualified name into a pgx identifier.
func tableIdent(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

// stagingName derives the temp table name for one target table.
func stagingName(table string) string {
	return "_staging_" + strings.ReplaceAll(table, ".", "_")
}

// identList quotes column names and joins them for SQL interpolation.
func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
