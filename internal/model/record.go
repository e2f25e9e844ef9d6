// Package model defines the shared domain types for the classification
// pipeline: input records, per-strategy result fragments, merged results,
// persisted runs and benchmark reports.
package model

import (
	"strings"
	"time"
)

// Record is a single short French-language social-media post to classify.
// The pipeline operates on a fully materialized []Record; streaming input
// is out of scope.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentiment is the polarity of a record.
type Sentiment string

const (
	SentimentPositive Sentiment = "positif"
	SentimentNegative Sentiment = "negatif"
	SentimentNeutral  Sentiment = "neutre"
)

// ParseSentiment maps raw strategy output to a known sentiment.
// Unknown or empty input falls back to neutral.
func ParseSentiment(s string) Sentiment {
	switch normalizeToken(s) {
	case "positif", "positive", "pos":
		return SentimentPositive
	case "negatif", "negative", "neg":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// ClaimFlag marks whether a record is a customer claim. The French
// oui/non values match the upstream data model; the zero value means the
// strategy did not set the field.
type ClaimFlag string

const (
	ClaimYes ClaimFlag = "oui"
	ClaimNo  ClaimFlag = "non"
)

// IsClaim reports whether the flag is an affirmative claim.
func (c ClaimFlag) IsClaim() bool { return c == ClaimYes }

// ParseClaimFlag maps raw strategy output to a claim flag, defaulting to non.
func ParseClaimFlag(s string) ClaimFlag {
	switch normalizeToken(s) {
	case "oui", "yes", "true", "1":
		return ClaimYes
	default:
		return ClaimNo
	}
}

// Urgency grades how quickly a record needs attention.
type Urgency string

const (
	UrgencyHigh   Urgency = "haute"
	UrgencyMedium Urgency = "moyenne"
	UrgencyLow    Urgency = "basse"
)

// ParseUrgency maps raw strategy output to a known urgency. The upstream
// models disagree on the low label ("faible" vs "basse"); both normalize
// to basse, which is also the default.
func ParseUrgency(s string) Urgency {
	switch normalizeToken(s) {
	case "haute", "elevee", "high", "critique":
		return UrgencyHigh
	case "moyenne", "moyen", "medium":
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// Topic is the product area a record talks about.
type Topic string

const (
	TopicFibre        Topic = "fibre"
	TopicMobile       Topic = "mobile"
	TopicBilling      Topic = "facture"
	TopicNetwork      Topic = "reseau"
	TopicCustomerCare Topic = "service_client"
	TopicOther        Topic = "autre"
)

// ParseTopic maps raw strategy output to a known topic, defaulting to autre.
func ParseTopic(s string) Topic {
	switch normalizeToken(s) {
	case "fibre", "box", "freebox", "internet", "wifi", "adsl":
		return TopicFibre
	case "mobile", "forfait", "4g", "5g", "telephone":
		return TopicMobile
	case "facture", "facturation", "prix", "prelevement", "paiement":
		return TopicBilling
	case "reseau", "antenne", "couverture":
		return TopicNetwork
	case "service_client", "sav", "support", "assistance":
		return TopicCustomerCare
	default:
		return TopicOther
	}
}

// Incident is the operational failure category behind a record, if any.
type Incident string

const (
	IncidentConnection   Incident = "connexion"
	IncidentSpeed        Incident = "debit"
	IncidentActivation   Incident = "activation"
	IncidentBilling      Incident = "facturation"
	IncidentTechnical    Incident = "technique"
	IncidentCustomerCare Incident = "service_client"
	IncidentNone         Incident = "aucun"
)

// ParseIncident maps raw strategy output to a known incident category,
// defaulting to aucun. LLM variants emit panne_/probleme_ prefixed labels;
// those collapse onto the canonical set.
func ParseIncident(s string) Incident {
	switch normalizeToken(s) {
	case "connexion", "panne_connexion", "panne", "coupure":
		return IncidentConnection
	case "debit", "debit_lent", "lenteur":
		return IncidentSpeed
	case "activation", "probleme_activation", "souscription":
		return IncidentActivation
	case "facturation", "probleme_facturation", "surfacturation":
		return IncidentBilling
	case "technique", "probleme_technique", "materiel":
		return IncidentTechnical
	case "service_client", "sav_injoignable", "sav":
		return IncidentCustomerCare
	default:
		return IncidentNone
	}
}

// normalizeToken lowercases, trims and strips the accents that appear in
// French label variants so that "Négatif" and "negatif" compare equal.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"à", "a", "â", "a",
		"î", "i", "ï", "i",
		"ô", "o", "ö", "o",
		"ù", "u", "û", "u", "ü", "u",
		"ç", "c",
	)
	return r.Replace(s)
}
