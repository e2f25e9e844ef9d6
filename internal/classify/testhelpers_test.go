package classify

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/veilletech/triage-cli/internal/model"
)

// stubStrategy is a configurable in-memory RecordClassifier. By default
// every text receives the fragment template; classify overrides that when
// per-text behavior is needed. calls counts batch invocations and is safe
// to read across goroutines.
type stubStrategy struct {
	name        string
	fragment    model.PartialResult
	fallback    model.PartialResult
	err         error
	unavailable bool
	classify    func(texts []string) []model.PartialResult
	calls       atomic.Int64
}

func (s *stubStrategy) Name() string    { return s.name }
func (s *stubStrategy) Version() string { return "v1" }

func (s *stubStrategy) ClassifyBatch(_ context.Context, texts []string) ([]model.PartialResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.classify != nil {
		return s.classify(texts), nil
	}
	out := make([]model.PartialResult, len(texts))
	for i := range texts {
		out[i] = s.fragment
	}
	return out, nil
}

func (s *stubStrategy) Fallback(string) model.PartialResult { return s.fallback }

func (s *stubStrategy) IsAvailable(context.Context) bool { return !s.unavailable }

func lexiconStub() *stubStrategy {
	return &stubStrategy{
		name: "fast",
		fragment: model.PartialResult{
			Sentiment:  model.SentimentNeutral,
			Confidence: 0.8,
			Stage:      model.StageFast,
		},
		fallback: model.PartialResult{
			Sentiment:  model.SentimentNeutral,
			Confidence: 0.5,
			Stage:      model.StageFast,
		},
	}
}

// patternStub flags any text containing "remboursement" as a claim.
func patternStub() *stubStrategy {
	s := &stubStrategy{
		name: "pattern",
		fallback: model.PartialResult{
			Claim:    model.ClaimNo,
			Urgency:  model.UrgencyLow,
			Topic:    model.TopicOther,
			Incident: model.IncidentNone,
			Stage:    model.StagePattern,
		},
	}
	s.classify = func(texts []string) []model.PartialResult {
		out := make([]model.PartialResult, len(texts))
		for i, text := range texts {
			out[i] = model.PartialResult{
				Claim:    model.ClaimNo,
				Urgency:  model.UrgencyLow,
				Topic:    model.TopicOther,
				Incident: model.IncidentNone,
				Stage:    model.StagePattern,
			}
			if strings.Contains(text, "remboursement") {
				out[i].Claim = model.ClaimYes
				out[i].Urgency = model.UrgencyHigh
			}
		}
		return out
	}
	return s
}

func llmStub() *stubStrategy {
	return &stubStrategy{
		name: "llm",
		fragment: model.PartialResult{
			Sentiment:  model.SentimentNegative,
			Claim:      model.ClaimYes,
			Urgency:    model.UrgencyHigh,
			Topic:      model.TopicFibre,
			Incident:   model.IncidentConnection,
			Confidence: 0.95,
			Stage:      model.StageLLM,
		},
		fallback: model.PartialResult{
			Sentiment:  model.SentimentNeutral,
			Claim:      model.ClaimNo,
			Urgency:    model.UrgencyMedium,
			Topic:      model.TopicOther,
			Incident:   model.IncidentNone,
			Confidence: 0.5,
			Stage:      model.StagePattern,
		},
	}
}

func testConfig() Config {
	return Config{
		BatchSize:        10,
		Workers:          4,
		MaxRetries:       3,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		Multiplier:       2.0,
		OnUnavailable:    OnUnavailableFallback,
		TargetFraction:   0.2,
		MinimumSample:    5,
		Seed:             42,
	}
}

// makeRecords builds n records with distinct texts; indices listed in
// claimAt mention a refund so the pattern stub flags them as claims.
func makeRecords(n int, claimAt ...int) []model.Record {
	claims := make(map[int]bool, len(claimAt))
	for _, i := range claimAt {
		claims[i] = true
	}
	records := make([]model.Record, n)
	for i := range records {
		text := fmt.Sprintf("le reseau est en panne depuis %d heures", i)
		if claims[i] {
			text = fmt.Sprintf("je demande un remboursement immediat, dossier %d", i)
		}
		records[i] = model.Record{ID: fmt.Sprintf("r%03d", i), Text: text}
	}
	return records
}
