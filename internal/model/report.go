package model

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders the report as a human-readable markdown summary,
// suitable for terminals and run archives.
func (r *BenchmarkReport) Markdown() string {
	var b strings.Builder

	b.WriteString("# Classification Report\n\n")

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Records: %d\n", r.TotalRecords)
	fmt.Fprintf(&b, "- Elapsed: %s\n", time.Duration(r.ElapsedMs)*time.Millisecond)
	fmt.Fprintf(&b, "- Throughput: %.1f records/s\n", r.RecordsPerSecond)
	fmt.Fprintf(&b, "- Workers: %d\n", r.Workers)
	fmt.Fprintf(&b, "- Mode: %s\n\n", r.Mode)

	b.WriteString("## Cache\n")
	fmt.Fprintf(&b, "- Hits: %d\n", r.CacheHits)
	fmt.Fprintf(&b, "- Misses: %d\n", r.CacheMisses)
	fmt.Fprintf(&b, "- Hit rate: %.1f%%\n", r.CacheHitRate)
	if r.CacheIOErrors > 0 {
		fmt.Fprintf(&b, "- I/O errors (treated as misses): %d\n", r.CacheIOErrors)
	}
	b.WriteString("\n")

	b.WriteString("## Sampling\n")
	fmt.Fprintf(&b, "- Sampled records: %d\n", r.SampledRecords)
	fmt.Fprintf(&b, "- Achieved fraction: %.1f%%\n\n", r.SampledFraction*100)

	b.WriteString("## Phases\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "- %s: %dms (%d records)\n", p.Name, p.Duration, p.Records)
	}
	b.WriteString("\n")

	if r.SubBatchFailures > 0 || r.FallbackRecords > 0 {
		b.WriteString("## Degradation\n")
		fmt.Fprintf(&b, "- Sub-batch failures: %d\n", r.SubBatchFailures)
		fmt.Fprintf(&b, "- Fallback records: %d\n", r.FallbackRecords)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Strategy calls: %d\n", r.StrategyCalls)

	return b.String()
}
