package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilletech/triage-cli/internal/model"
)

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("claude", "v1", "ma box ne marche plus")
	k2 := Key("claude", "v1", "ma box ne marche plus")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
}

func TestKeyVersionBumpChangesKey(t *testing.T) {
	k1 := Key("pattern", "v1", "panne fibre")
	k2 := Key("pattern", "v2", "panne fibre")
	k3 := Key("lexicon", "v1", "panne fibre")
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	want := model.PartialResult{Sentiment: model.SentimentNegative, Confidence: 0.8, Stage: model.StageFast}
	m.Put(ctx, "k", want)

	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := Key("lexicon", "v1", string(rune('a'+n)))
				m.Put(ctx, key, model.PartialResult{Stage: model.StageFast})
				m.Get(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	want := model.PartialResult{
		Sentiment:  model.SentimentPositive,
		Claim:      model.ClaimYes,
		Urgency:    model.UrgencyHigh,
		Topic:      model.TopicFibre,
		Incident:   model.IncidentConnection,
		Confidence: 0.92,
		Stage:      model.StageLLM,
	}
	key := Key("claude", "v1", "plus de connexion depuis 3 jours")
	s.Put(ctx, key, want)

	got, ok := s.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want, got)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLitePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	key := Key("lexicon", "v1", "super service")
	s.Put(ctx, key, model.PartialResult{Sentiment: model.SentimentNeutral, Stage: model.StageFast})
	s.Put(ctx, key, model.PartialResult{Sentiment: model.SentimentPositive, Stage: model.StageFast})

	got, ok := s.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, model.SentimentPositive, got.Sentiment)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteSchemaVersionMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	// Simulate an entry written by an older build.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, schema_version) VALUES (?, ?, ?)`,
		"stale", `{"sentiment":"positif"}`, payloadVersion+1,
	)
	require.NoError(t, err)

	_, ok := s.Get(ctx, "stale")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.IOErrors(), "version mismatch is a plain miss, not an I/O error")
}

func TestSQLiteCorruptPayloadIsMissAndCounted(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, schema_version) VALUES (?, ?, ?)`,
		"bad", `{not json`, payloadVersion,
	)
	require.NoError(t, err)

	_, ok := s.Get(ctx, "bad")
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.IOErrors())
}

func TestSQLiteGetAfterCloseIsMissAndCounted(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	key := Key("claude", "v1", "texte")
	s.Put(ctx, key, model.PartialResult{Stage: model.StageLLM})
	require.NoError(t, s.Close())

	// The durable layer failing must read as a miss, never an error.
	_, ok := s.Get(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.IOErrors())

	s.Put(ctx, key, model.PartialResult{Stage: model.StageLLM})
	assert.Equal(t, int64(2), s.IOErrors())
}

func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	s.Put(ctx, "a", model.PartialResult{Stage: model.StageFast})
	s.Put(ctx, "b", model.PartialResult{Stage: model.StageFast})
	require.NoError(t, s.Clear(ctx))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLayeredPromotion(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	durable := newTestSQLite(t)
	l := NewLayered(mem, durable)

	want := model.PartialResult{Sentiment: model.SentimentNegative, Stage: model.StageLLM}
	key := Key("claude", "v1", "réseau en panne")

	// Seed only the durable level.
	durable.Put(ctx, key, want)
	assert.Equal(t, 0, mem.Len())

	got, ok := l.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// Hit was promoted into memory.
	assert.Equal(t, 1, mem.Len())
	_, ok = mem.Get(ctx, key)
	assert.True(t, ok)
}

func TestLayeredWriteThrough(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	durable := newTestSQLite(t)
	l := NewLayered(mem, durable)

	key := Key("pattern", "v2", "facture trop élevée")
	l.Put(ctx, key, model.PartialResult{Claim: model.ClaimYes, Stage: model.StagePattern})

	_, ok := mem.Get(ctx, key)
	assert.True(t, ok)
	_, ok = durable.Get(ctx, key)
	assert.True(t, ok)
}

func TestLayeredMemoryOnly(t *testing.T) {
	ctx := context.Background()
	l := NewLayered(NewMemory(), nil)

	key := Key("lexicon", "v1", "texte")
	_, ok := l.Get(ctx, key)
	assert.False(t, ok)

	l.Put(ctx, key, model.PartialResult{Stage: model.StageFast})
	_, ok = l.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, int64(0), l.IOErrors())
	assert.NoError(t, l.Clear(ctx))
}
