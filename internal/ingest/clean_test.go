package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilletech/triage-cli/internal/model"
)

func TestCleaner_RemovesURLs(t *testing.T) {
	c := NewCleaner(CleanerOptions{RemoveURLs: true})

	assert.Equal(t, "panne signalee ici", c.Clean("panne signalee ici https://status.example.com/outage"))
	assert.Equal(t, "voir", c.Clean("voir www.example.com/aide"))
}

func TestCleaner_RemovesMentions(t *testing.T) {
	c := NewCleaner(CleanerOptions{RemoveMentions: true})

	assert.Equal(t, "toujours pas de reponse", c.Clean("@free_sav toujours pas de reponse"))
}

func TestCleaner_HashtagsKeptByDefault(t *testing.T) {
	keep := NewCleaner(CleanerOptions{})
	strip := NewCleaner(CleanerOptions{RemoveHashtags: true})

	text := "panne generale #fibre ce matin"
	assert.Equal(t, "panne generale #fibre ce matin", keep.Clean(text))
	assert.Equal(t, "panne generale ce matin", strip.Clean(text))
}

func TestCleaner_CollapsesWhitespace(t *testing.T) {
	c := NewCleaner(CleanerOptions{})

	assert.Equal(t, "un deux trois", c.Clean("  un \t deux \n\n trois  "))
}

func TestCleaner_CleanRecordsDropsEmptied(t *testing.T) {
	c := NewCleaner(CleanerOptions{RemoveURLs: true, RemoveMentions: true})

	records := []model.Record{
		{ID: "1", Text: "@sav https://t.co/xyz"},
		{ID: "2", Text: "ma ligne est coupee"},
	}
	out := c.CleanRecords(records)

	assert.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)
	assert.Equal(t, "ma ligne est coupee", out[0].Text)
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	records := []model.Record{
		{ID: "1", Text: "panne de fibre"},
		{ID: "2", Text: "tout va bien"},
		{ID: "3", Text: "panne de fibre"},
		{ID: "4", Text: "panne de fibre"},
	}
	out := Dedupe(records)

	assert.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
}

func TestDedupe_NoDuplicates(t *testing.T) {
	records := []model.Record{
		{ID: "1", Text: "premier"},
		{ID: "2", Text: "deuxieme"},
	}
	out := Dedupe(records)

	assert.Equal(t, records, out)
}
