package classify

// Span is a half-open index range [Start, End) over the input records.
type Span struct {
	Start int
	End   int
}

// Len returns the number of records covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Split slices n records into contiguous spans of at most batchSize
// records each. The final span may be shorter; no span is ever empty.
// batchSize is validated by the orchestrator before any splitting, so a
// non-positive value here is a programmer error.
func Split(n, batchSize int) []Span {
	if batchSize <= 0 {
		panic("classify: batch size must be positive")
	}
	if n <= 0 {
		return nil
	}
	spans := make([]Span, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

// Chunk splits indices into at most workers contiguous chunks whose sizes
// differ by at most one. No chunk is empty; fewer indices than workers
// yields one chunk per index.
func Chunk(indices []int, workers int) [][]int {
	if workers <= 0 {
		panic("classify: worker count must be positive")
	}
	if len(indices) == 0 {
		return nil
	}
	if workers > len(indices) {
		workers = len(indices)
	}
	chunks := make([][]int, 0, workers)
	base := len(indices) / workers
	extra := len(indices) % workers
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, indices[start:start+size])
		start += size
	}
	return chunks
}
