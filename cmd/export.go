package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/store"
)

var (
	exportResults string
	exportReplace bool
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Bulk load per-record results for a run into Postgres",
	Long:  "Reads a results file produced by run --output and copies its rows into the classification_results table, keyed by run. Use --replace to upsert over a previous export of the same run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		results, err := loadResults(exportResults)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != model.RunStatusCompleted {
			zap.L().Warn("exporting results for an unfinished run",
				zap.String("run_id", runID),
				zap.String("status", string(run.Status)),
			)
		}

		pg, cleanup, err := exportTarget(ctx, st)
		if err != nil {
			return err
		}
		defer cleanup()

		var n int64
		if exportReplace {
			n, err = pg.UpsertResults(ctx, runID, results)
		} else {
			n, err = pg.ExportResults(ctx, runID, results)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d results for run %s.\n", n, truncateID(runID))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportResults, "results", "", "Results JSON file from run --output")
	_ = exportCmd.MarkFlagRequired("results")
	exportCmd.Flags().BoolVar(&exportReplace, "replace", false, "Upsert instead of plain copy")
	rootCmd.AddCommand(exportCmd)
}

// exportTarget returns the Postgres store to export into. When the primary
// store already is Postgres it is reused; otherwise a dedicated connection
// is opened against store.database_url and the caller's cleanup closes it.
func exportTarget(ctx context.Context, st store.Store) (*store.PostgresStore, func(), error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		return pg, func() {}, nil
	}

	pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, eris.Wrap(err, "migrate export target")
	}
	return pg, func() { _ = pg.Close() }, nil
}

// loadResults reads a results file produced by run --output.
func loadResults(path string) ([]model.ClassificationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open results file")
	}
	defer f.Close() //nolint:errcheck

	var results []model.ClassificationResult
	if err := json.NewDecoder(f).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "decode results file")
	}
	if len(results) == 0 {
		return nil, eris.New("results file is empty")
	}
	return results, nil
}
