// Package strategy provides the three classification strategies the
// pipeline runs: a fast French sentiment lexicon, a compiled keyword and
// regex pattern engine, and a batched Claude strategy for the sampled
// subset. All three satisfy the classify.RecordClassifier contract.
package strategy

import (
	"context"

	"github.com/veilletech/triage-cli/internal/model"
)

// Words that force a negative sentiment: operator complaints are dominated
// by outage and billing vocabulary, so any hit outweighs positive wording
// in the same post.
var negativeLexicon = []string{
	"panne", "bug", "incident", "bloque", "lent", "probleme",
	"facture", "debit", "impossible", "erreur", "coupure", "sav",
}

var positiveLexicon = []string{
	"merci", "bravo", "super", "genial", "rapide", "parfait",
	"satisfait", "content", "excellent", "top", "formidable",
}

// Lexicon is the fast sentiment strategy: whole-word lexicon scoring with
// calibrated confidence. It is pure, deterministic and never errors, which
// lets the orchestrator run it over every record.
type Lexicon struct{}

func NewLexicon() *Lexicon { return &Lexicon{} }

func (l *Lexicon) Name() string    { return "fast" }
func (l *Lexicon) Version() string { return "v1" }

func (l *Lexicon) ClassifyBatch(_ context.Context, texts []string) ([]model.PartialResult, error) {
	out := make([]model.PartialResult, len(texts))
	for i, text := range texts {
		out[i] = l.Score(text)
	}
	return out, nil
}

// Score rates one text. Negative hits win over positive ones; confidence
// grows with the hit count and stays within [0.4, 0.99].
func (l *Lexicon) Score(text string) model.PartialResult {
	words := tokens(normalizeText(text))

	var neg, pos int
	for _, w := range negativeLexicon {
		if words[w] {
			neg++
		}
	}
	for _, w := range positiveLexicon {
		if words[w] {
			pos++
		}
	}

	sentiment := model.SentimentNeutral
	confidence := 0.5
	switch {
	case neg > 0:
		sentiment = model.SentimentNegative
		confidence = 0.75 + 0.05*float64(neg-1)
	case pos > 0:
		sentiment = model.SentimentPositive
		confidence = 0.70 + 0.05*float64(pos-1)
	}
	confidence = clampConfidence(confidence)

	return model.PartialResult{
		Sentiment:  sentiment,
		Confidence: confidence,
		Stage:      model.StageFast,
	}
}

func (l *Lexicon) Fallback(string) model.PartialResult {
	return model.PartialResult{
		Sentiment:  model.SentimentNeutral,
		Confidence: model.DefaultConfidence,
		Stage:      model.StageFast,
	}
}

func clampConfidence(c float64) float64 {
	if c < 0.4 {
		return 0.4
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}
