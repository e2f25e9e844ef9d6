package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ExactMultiple(t *testing.T) {
	spans := Split(100, 10)
	require.Len(t, spans, 10)
	for i, span := range spans {
		assert.Equal(t, i*10, span.Start)
		assert.Equal(t, (i+1)*10, span.End)
		assert.Equal(t, 10, span.Len())
	}
}

func TestSplit_Remainder(t *testing.T) {
	spans := Split(7, 3)
	require.Len(t, spans, 3)
	assert.Equal(t, Span{Start: 0, End: 3}, spans[0])
	assert.Equal(t, Span{Start: 3, End: 6}, spans[1])
	assert.Equal(t, Span{Start: 6, End: 7}, spans[2])
}

func TestSplit_SingleSpan(t *testing.T) {
	spans := Split(3, 50)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 0, End: 3}, spans[0])
}

func TestSplit_CoversSequenceInOrder(t *testing.T) {
	spans := Split(53, 7)
	next := 0
	for _, span := range spans {
		assert.Equal(t, next, span.Start)
		assert.Greater(t, span.End, span.Start)
		next = span.End
	}
	assert.Equal(t, 53, next)
}

func TestSplit_NoRecords(t *testing.T) {
	assert.Nil(t, Split(0, 10))
}

func TestSplit_PanicsOnBadBatchSize(t *testing.T) {
	assert.Panics(t, func() { Split(10, 0) })
	assert.Panics(t, func() { Split(10, -1) })
}

func TestChunk_NearEqualSizes(t *testing.T) {
	indices := []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	chunks := Chunk(indices, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 3)

	var flat []int
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	assert.Equal(t, indices, flat)
}

func TestChunk_FewerIndicesThanWorkers(t *testing.T) {
	chunks := Chunk([]int{4, 9}, 8)
	require.Len(t, chunks, 2)
	assert.Equal(t, []int{4}, chunks[0])
	assert.Equal(t, []int{9}, chunks[1])
}

func TestChunk_Empty(t *testing.T) {
	assert.Nil(t, Chunk(nil, 4))
}

func TestChunk_PanicsOnBadWorkers(t *testing.T) {
	assert.Panics(t, func() { Chunk([]int{1}, 0) })
}
