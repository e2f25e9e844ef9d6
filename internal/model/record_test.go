package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		in   string
		want Sentiment
	}{
		{"positif", SentimentPositive},
		{"Positif", SentimentPositive},
		{"NEGATIF", SentimentNegative},
		{"négatif", SentimentNegative},
		{"neutre", SentimentNeutral},
		{"", SentimentNeutral},
		{"garbage", SentimentNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSentiment(tt.in), "input %q", tt.in)
	}
}

func TestParseClaimFlag(t *testing.T) {
	assert.Equal(t, ClaimYes, ParseClaimFlag("oui"))
	assert.Equal(t, ClaimYes, ParseClaimFlag(" OUI "))
	assert.Equal(t, ClaimNo, ParseClaimFlag("non"))
	assert.Equal(t, ClaimNo, ParseClaimFlag(""))
	assert.Equal(t, ClaimNo, ParseClaimFlag("peut-etre"))

	assert.True(t, ClaimYes.IsClaim())
	assert.False(t, ClaimNo.IsClaim())
	assert.False(t, ClaimFlag("").IsClaim())
}

func TestParseUrgency(t *testing.T) {
	assert.Equal(t, UrgencyHigh, ParseUrgency("haute"))
	assert.Equal(t, UrgencyHigh, ParseUrgency("élevée"))
	assert.Equal(t, UrgencyMedium, ParseUrgency("moyenne"))
	assert.Equal(t, UrgencyLow, ParseUrgency("basse"))
	assert.Equal(t, UrgencyLow, ParseUrgency("faible"))
	assert.Equal(t, UrgencyLow, ParseUrgency(""))
}

func TestParseTopic(t *testing.T) {
	assert.Equal(t, TopicFibre, ParseTopic("fibre"))
	assert.Equal(t, TopicFibre, ParseTopic("Freebox"))
	assert.Equal(t, TopicMobile, ParseTopic("4G"))
	assert.Equal(t, TopicBilling, ParseTopic("prélèvement"))
	assert.Equal(t, TopicNetwork, ParseTopic("réseau"))
	assert.Equal(t, TopicCustomerCare, ParseTopic("SAV"))
	assert.Equal(t, TopicOther, ParseTopic("vacances"))
	assert.Equal(t, TopicOther, ParseTopic(""))
}

func TestParseIncident(t *testing.T) {
	assert.Equal(t, IncidentConnection, ParseIncident("panne_connexion"))
	assert.Equal(t, IncidentSpeed, ParseIncident("débit"))
	assert.Equal(t, IncidentActivation, ParseIncident("activation"))
	assert.Equal(t, IncidentBilling, ParseIncident("surfacturation"))
	assert.Equal(t, IncidentTechnical, ParseIncident("technique"))
	assert.Equal(t, IncidentCustomerCare, ParseIncident("sav_injoignable"))
	assert.Equal(t, IncidentNone, ParseIncident(""))
	assert.Equal(t, IncidentNone, ParseIncident("autre chose"))
}

func TestStagePriority(t *testing.T) {
	assert.Greater(t, StageLLM.Priority(), StagePattern.Priority())
	assert.Greater(t, StagePattern.Priority(), StageFast.Priority())
	assert.Equal(t, 0, Stage("").Priority())
}

func TestApplyDefaults(t *testing.T) {
	var r ClassificationResult
	r.ApplyDefaults()

	assert.Equal(t, SentimentNeutral, r.Sentiment)
	assert.Equal(t, ClaimNo, r.Claim)
	assert.Equal(t, UrgencyLow, r.Urgency)
	assert.Equal(t, TopicOther, r.Topic)
	assert.Equal(t, IncidentNone, r.Incident)
	assert.Equal(t, DefaultConfidence, r.Confidence)
}

func TestApplyDefaultsKeepsSetFields(t *testing.T) {
	r := ClassificationResult{
		Sentiment:  SentimentNegative,
		Claim:      ClaimYes,
		Confidence: 0.9,
	}
	r.ApplyDefaults()

	assert.Equal(t, SentimentNegative, r.Sentiment)
	assert.Equal(t, ClaimYes, r.Claim)
	assert.Equal(t, 0.9, r.Confidence)
	assert.Equal(t, UrgencyLow, r.Urgency)
}
