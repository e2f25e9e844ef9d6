package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy_EmptyRows(t *testing.T) {
	n, err := Copy(context.Background(), nil, "classification_results", []string{"run_id", "record_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopy_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"classification_results"}, []string{"run_id", "record_id"}).WillReturnResult(3)

	rows := [][]any{{"run-1", "a"}, {"run-1", "b"}, {"run-1", "c"}}
	n, err := Copy(context.Background(), mock, "classification_results", []string{"run_id", "record_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopy_SchemaQualifiedTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"analytics", "results"}, []string{"run_id"}).WillReturnResult(1)

	n, err := Copy(context.Background(), mock, "analytics.results", []string{"run_id"}, [][]any{{"run-1"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopy_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"classification_results"}, []string{"run_id", "record_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"run-1", "a"}}
	_, err = Copy(context.Background(), mock, "classification_results", []string{"run_id", "record_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO classification_results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_EmptyRows(t *testing.T) {
	n, err := Upsert(context.Background(), nil, UpsertSpec{
		Table:   "classification_results",
		Columns: []string{"run_id", "record_id"},
		Key:     []string{"run_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsert_NoColumns(t *testing.T) {
	_, err := Upsert(context.Background(), nil, UpsertSpec{
		Table: "classification_results",
		Key:   []string{"run_id"},
	}, [][]any{{"run-1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsert_NoKey(t *testing.T) {
	_, err := Upsert(context.Background(), nil, UpsertSpec{
		Table:   "classification_results",
		Columns: []string{"run_id", "record_id"},
	}, [][]any{{"run-1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key columns specified")
}

func TestUpsert_StagesThenMerges(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_staging_classification_results"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_staging_classification_results"}, []string{"run_id", "record_idx", "sentiment"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "classification_results" .* ON CONFLICT \("run_id", "record_idx"\) DO UPDATE SET "sentiment" = EXCLUDED\."sentiment"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	rows := [][]any{
		{"run-1", 0, "negatif"},
		{"run-1", 1, "neutre"},
	}
	n, err := Upsert(context.Background(), mock, UpsertSpec{
		Table:   "classification_results",
		Columns: []string{"run_id", "record_idx", "sentiment"},
		Key:     []string{"run_id", "record_idx"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSpec_MergeSQL(t *testing.T) {
	spec := UpsertSpec{
		Table:   "classification_results",
		Columns: []string{"run_id", "record_idx", "sentiment", "claim"},
		Key:     []string{"run_id", "record_idx"},
	}

	sql := spec.mergeSQL("_staging_classification_results")

	assert.Equal(t,
		`INSERT INTO "classification_results" ("run_id", "record_idx", "sentiment", "claim") `+
			`SELECT "run_id", "record_idx", "sentiment", "claim" FROM "_staging_classification_results" `+
			`ON CONFLICT ("run_id", "record_idx") DO UPDATE SET "sentiment" = EXCLUDED."sentiment", "claim" = EXCLUDED."claim"`,
		sql)
}

func TestUpsertSpec_ExplicitUpdateColumns(t *testing.T) {
	spec := UpsertSpec{
		Table:   "classification_results",
		Columns: []string{"run_id", "record_idx", "sentiment", "confidence"},
		Key:     []string{"run_id", "record_idx"},
		Update:  []string{"confidence"},
	}

	sql := spec.mergeSQL("_staging_classification_results")

	assert.Contains(t, sql, `DO UPDATE SET "confidence" = EXCLUDED."confidence"`)
	assert.NotContains(t, sql, `"sentiment" = EXCLUDED`)
}

func TestTableIdent(t *testing.T) {
	tests := []struct {
		input    string
		expected pgx.Identifier
	}{
		{"runs", pgx.Identifier{"runs"}},
		{"analytics.results", pgx.Identifier{"analytics", "results"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tableIdent(tt.input))
		})
	}
}

func TestStagingName(t *testing.T) {
	assert.Equal(t, "_staging_runs", stagingName("runs"))
	assert.Equal(t, "_staging_analytics_results", stagingName("analytics.results"))
}
