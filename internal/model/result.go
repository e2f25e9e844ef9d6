package model

// Stage identifies which classification strategy produced a result
// fragment. Merge priority is llm > pattern > fast.
type Stage string

const (
	StageFast    Stage = "fast"
	StagePattern Stage = "pattern"
	StageLLM     Stage = "llm"
)

// Priority orders stages for merging; higher wins.
func (s Stage) Priority() int {
	switch s {
	case StageLLM:
		return 3
	case StagePattern:
		return 2
	case StageFast:
		return 1
	default:
		return 0
	}
}

// PartialResult is the output fragment one strategy produced for one
// record. A zero enum value means the strategy did not set that field;
// Confidence is meaningful only when Sentiment is set. This shape is what
// the durable cache persists, so changes here require a cache schema
// version bump.
type PartialResult struct {
	Sentiment  Sentiment `json:"sentiment,omitempty"`
	Claim      ClaimFlag `json:"claim,omitempty"`
	Urgency    Urgency   `json:"urgency,omitempty"`
	Topic      Topic     `json:"topic,omitempty"`
	Incident   Incident  `json:"incident,omitempty"`
	Confidence float64   `json:"confidence"`
	Stage      Stage     `json:"stage"`
}

// DefaultConfidence is assigned when no strategy produced a confidence.
const DefaultConfidence = 0.5

// ClassificationResult is the final merged classification of one record.
// Every field is set; unset fragments were filled with defaults. Index is
// the record's position in the input list, which the output list preserves.
type ClassificationResult struct {
	Index      int       `json:"index"`
	RecordID   string    `json:"record_id"`
	Sentiment  Sentiment `json:"sentiment"`
	Claim      ClaimFlag `json:"claim"`
	Urgency    Urgency   `json:"urgency"`
	Topic      Topic     `json:"topic"`
	Incident   Incident  `json:"incident"`
	Confidence float64   `json:"confidence"`
	Stage      Stage     `json:"stage"`
}

// ApplyDefaults fills every unset field with its documented default:
// neutral sentiment, not a claim, low urgency, topic autre, no incident,
// confidence 0.5.
func (r *ClassificationResult) ApplyDefaults() {
	if r.Sentiment == "" {
		r.Sentiment = SentimentNeutral
	}
	if r.Claim == "" {
		r.Claim = ClaimNo
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyLow
	}
	if r.Topic == "" {
		r.Topic = TopicOther
	}
	if r.Incident == "" {
		r.Incident = IncidentNone
	}
	if r.Confidence == 0 {
		r.Confidence = DefaultConfidence
	}
}
