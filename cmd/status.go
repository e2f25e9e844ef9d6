package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/veilletech/triage-cli/internal/monitoring"
)

var (
	statusLookback int
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize run health over a recent window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		lookback := statusLookback
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return eris.Wrap(err, "encode snapshot")
			}
		} else {
			formatSnapshot(os.Stdout, snap)
		}

		for _, alert := range monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap) {
			fmt.Fprintf(os.Stderr, "ALERT [%s]: %s\n", alert.Severity, alert.Message)
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookback, "lookback", 0, "Lookback window in hours (overrides config)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

// formatSnapshot renders the metrics snapshot as an aligned table.
func formatSnapshot(out io.Writer, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window\t%dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs\t%d (%d completed, %d failed, %d running, %d pending)\n",
		snap.RunsTotal, snap.RunsCompleted, snap.RunsFailed, snap.RunsRunning, snap.RunsPending)
	_, _ = fmt.Fprintf(w, "Failure rate\t%.1f%%\n", snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Records processed\t%d\n", snap.RecordsProcessed)
	_, _ = fmt.Fprintf(w, "Avg throughput\t%.1f records/s\n", snap.AvgThroughput)
	_, _ = fmt.Fprintf(w, "Avg cache hit rate\t%.1f%%\n", snap.AvgCacheHitRate)
	if snap.CacheIOErrors > 0 {
		_, _ = fmt.Fprintf(w, "Cache I/O errors\t%d\n", snap.CacheIOErrors)
	}
	if snap.FallbackRuns > 0 || snap.SubBatchFailures > 0 {
		_, _ = fmt.Fprintf(w, "Fallback runs\t%d\n", snap.FallbackRuns)
		_, _ = fmt.Fprintf(w, "Fallback records\t%d\n", snap.FallbackRecords)
		_, _ = fmt.Fprintf(w, "Sub-batch failures\t%d\n", snap.SubBatchFailures)
	}
	_ = w.Flush()
}
