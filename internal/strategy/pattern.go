package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/veilletech/triage-cli/internal/model"
)

// Rules holds the keyword and regex tables the pattern engine compiles.
// Tables are matched against normalized text (lowercase, accents folded),
// so entries must be written accent free. A YAML rules file replaces whole
// sections; omitted sections keep the built-ins.
type Rules struct {
	ClaimKeywords         []string `yaml:"claim_keywords"`
	UrgencyHighKeywords   []string `yaml:"urgency_high_keywords"`
	UrgencyHighPatterns   []string `yaml:"urgency_high_patterns"`
	UrgencyMediumKeywords []string `yaml:"urgency_medium_keywords"`

	// Topics are scored by keyword occurrence count; earlier entries win
	// ties, so order encodes priority.
	Topics []TopicRule `yaml:"topics"`

	// Incidents are regex alternations checked in order; the first match
	// wins.
	Incidents []IncidentRule `yaml:"incidents"`
}

// TopicRule maps a topic label to the keywords that vote for it.
type TopicRule struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

// IncidentRule maps an incident label to a regex over normalized text.
type IncidentRule struct {
	Incident string `yaml:"incident"`
	Pattern  string `yaml:"pattern"`
}

// DefaultRules returns the built-in tables tuned on French operator
// complaint feeds.
func DefaultRules() Rules {
	return Rules{
		ClaimKeywords: []string{
			"reclamation", "plainte", "reclame",
			"probleme", "souci", "bug", "erreur", "dysfonctionnement",
			"defaillance", "panne", "coupure", "interruption", "deconnexion",
			"perte de connexion",
			"ne fonctionne pas", "ne marche pas", "ca ne marche pas",
			"ne fonctionne plus", "marche plus", "fonctionne plus",
			"impossible de", "n'arrive pas", "ne peut pas",
			"plus de connexion", "plus d'internet", "plus de reseau",
			"sans connexion", "sans internet", "sans reseau",
			"aucune connexion", "aucun internet", "aucun reseau",
			"decu", "mecontent", "insatisfait", "catastrophe", "scandale",
			"honteux", "inadmissible", "inacceptable", "ras le bol",
			"en ai marre",
			"remboursement", "dedommagement", "compensation",
			"resiliation", "resilier", "changer d'operateur", "quitter",
			"nul", "pourri", "minable", "catastrophique", "lamentable", "pire",
			"depuis plusieurs jours", "depuis une semaine", "toujours pas",
			"encore rien",
		},
		UrgencyHighKeywords: []string{
			"urgent", "urgence", "immediat", "tout de suite", "au plus vite",
			"critique", "grave", "prioritaire",
			"panne totale", "coupure totale", "coupure complete", "coupure generale",
			"plus de connexion", "plus d'internet", "plus de reseau",
			"sans connexion", "sans internet", "sans reseau",
			"aucune connexion", "aucun reseau", "aucun internet",
			"plus rien", "completement hs", "totalement hs",
			"depuis plusieurs jours", "depuis une semaine", "depuis des jours",
			"teletravail", "pour le travail", "au travail",
			"reseau entreprise", "reseau professionnel",
			"systematiquement", "a chaque fois", "tous les jours",
			"chaque jour", "en permanence",
		},
		UrgencyHighPatterns: []string{
			`depuis \d+ jours`, `depuis \d+ semaines`, `depuis \d+ heures`,
			`ca fait \d+ jours`, `ca fait \d+ semaines`,
		},
		UrgencyMediumKeywords: []string{
			"probleme", "souci", "bug", "lenteur", "ralentissement",
			"parfois", "de temps en temps", "occasionnellement",
		},
		Topics: []TopicRule{
			{Topic: "fibre", Keywords: []string{
				"fibre", "box", "internet", "wifi", "connexion internet",
				"debit", "ligne", "adsl", "reseau fixe",
			}},
			{Topic: "mobile", Keywords: []string{
				"mobile", "4g", "5g", "forfait", "reseau mobile", "appel",
				"sms", "data", "roaming", "carte sim",
			}},
			{Topic: "facture", Keywords: []string{
				"facture", "facturation", "paiement", "prelevement", "montant",
				"prix", "tarif", "abonnement", "cout", "euros",
			}},
			{Topic: "reseau", Keywords: []string{
				"antenne", "couverture", "zone blanche", "signal", "reseau",
			}},
			{Topic: "service_client", Keywords: []string{
				"service client", "sav", "conseiller", "hotline", "assistance",
				"support",
			}},
		},
		Incidents: []IncidentRule{
			{Incident: "connexion", Pattern: `\b(panne|coupure|deconnexion|pas de connexion|plus de connexion)\b`},
			{Incident: "debit", Pattern: `\b(lent|lenteur|ralentissement|debit|vitesse)\b`},
			{Incident: "activation", Pattern: `\b(activation|activer|installer|installation)\b`},
			{Incident: "facturation", Pattern: `\b(facture|surfacturation|prelevement|montant errone)\b`},
			{Incident: "technique", Pattern: `\b(bug|erreur|dysfonctionnement|ne fonctionne pas)\b`},
			{Incident: "service_client", Pattern: `\b(service client|sav|support|assistance|hotline)\b`},
		},
	}
}

// LoadRules reads a YAML rules file layered over the built-in tables.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "strategy: read rules file %s", path)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, eris.Wrapf(err, "strategy: parse rules file %s", path)
	}
	return rules, nil
}

type topicMatcher struct {
	topic    model.Topic
	keywords []string
}

type incidentMatcher struct {
	incident model.Incident
	re       *regexp.Regexp
}

// Pattern is the rule strategy: compiled keyword and regex tables covering
// claims, urgency, topic and incident type. Compilation happens once at
// construction; classification is pure and never errors.
type Pattern struct {
	claimRe         *regexp.Regexp
	urgencyHighRe   *regexp.Regexp
	urgencyMediumRe *regexp.Regexp
	topics          []topicMatcher
	incidents       []incidentMatcher
	version         string
}

// NewPattern compiles the given rule tables. The engine version is derived
// from the table content, so editing a rules file invalidates prior cache
// entries on its own.
func NewPattern(rules Rules) (*Pattern, error) {
	claimRe, err := compileAlternation(rules.ClaimKeywords, nil)
	if err != nil {
		return nil, eris.Wrap(err, "strategy: compile claim keywords")
	}
	urgencyHighRe, err := compileAlternation(rules.UrgencyHighKeywords, rules.UrgencyHighPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "strategy: compile high urgency rules")
	}
	urgencyMediumRe, err := compileAlternation(rules.UrgencyMediumKeywords, nil)
	if err != nil {
		return nil, eris.Wrap(err, "strategy: compile medium urgency rules")
	}

	topics := make([]topicMatcher, 0, len(rules.Topics))
	for _, tr := range rules.Topics {
		keywords := make([]string, 0, len(tr.Keywords))
		for _, kw := range tr.Keywords {
			keywords = append(keywords, normalizeText(kw))
		}
		topics = append(topics, topicMatcher{topic: model.ParseTopic(tr.Topic), keywords: keywords})
	}

	incidents := make([]incidentMatcher, 0, len(rules.Incidents))
	for _, ir := range rules.Incidents {
		re, err := regexp.Compile(normalizeText(ir.Pattern))
		if err != nil {
			return nil, eris.Wrapf(err, "strategy: compile incident pattern %q", ir.Incident)
		}
		incidents = append(incidents, incidentMatcher{incident: model.ParseIncident(ir.Incident), re: re})
	}

	return &Pattern{
		claimRe:         claimRe,
		urgencyHighRe:   urgencyHighRe,
		urgencyMediumRe: urgencyMediumRe,
		topics:          topics,
		incidents:       incidents,
		version:         rulesVersion(rules),
	}, nil
}

// rulesVersion fingerprints the tables. The "v2" prefix tracks the engine
// semantics; bump it when matching behavior changes for identical tables.
func rulesVersion(rules Rules) string {
	data, err := yaml.Marshal(rules)
	if err != nil {
		return "v2"
	}
	sum := sha256.Sum256(data)
	return "v2-" + hex.EncodeToString(sum[:4])
}

// compileAlternation builds one case-folded word-boundary alternation from
// literal keywords plus raw regex fragments.
func compileAlternation(keywords, patterns []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(keywords)+len(patterns))
	for _, kw := range keywords {
		kw = normalizeText(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(kw))
	}
	for _, p := range patterns {
		p = normalizeText(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		alts = append(alts, p)
	}
	if len(alts) == 0 {
		return nil, nil
	}
	return regexp.Compile(fmt.Sprintf(`\b(?:%s)\b`, strings.Join(alts, "|")))
}

func (p *Pattern) Name() string    { return "pattern" }
func (p *Pattern) Version() string { return p.version }

func (p *Pattern) ClassifyBatch(_ context.Context, texts []string) ([]model.PartialResult, error) {
	out := make([]model.PartialResult, len(texts))
	for i, text := range texts {
		out[i] = p.Match(text)
	}
	return out, nil
}

// Match runs every table against one text.
func (p *Pattern) Match(text string) model.PartialResult {
	norm := normalizeText(text)

	res := model.PartialResult{
		Claim:    model.ClaimNo,
		Urgency:  model.UrgencyLow,
		Topic:    p.detectTopic(norm),
		Incident: p.detectIncident(norm),
		Stage:    model.StagePattern,
	}
	if p.claimRe != nil && p.claimRe.MatchString(norm) {
		res.Claim = model.ClaimYes
	}
	switch {
	case p.urgencyHighRe != nil && p.urgencyHighRe.MatchString(norm):
		res.Urgency = model.UrgencyHigh
	case p.urgencyMediumRe != nil && p.urgencyMediumRe.MatchString(norm):
		res.Urgency = model.UrgencyMedium
	}
	return res
}

func (p *Pattern) Fallback(string) model.PartialResult {
	return model.PartialResult{
		Claim:    model.ClaimNo,
		Urgency:  model.UrgencyLow,
		Topic:    model.TopicOther,
		Incident: model.IncidentNone,
		Stage:    model.StagePattern,
	}
}

// detectTopic votes by occurrence count; the earliest topic with the
// highest count wins, "autre" when nothing matches.
func (p *Pattern) detectTopic(norm string) model.Topic {
	best := model.TopicOther
	bestCount := 0
	for _, tm := range p.topics {
		count := 0
		for _, kw := range tm.keywords {
			if strings.Contains(norm, kw) {
				count++
			}
		}
		if count > bestCount {
			best = tm.topic
			bestCount = count
		}
	}
	return best
}

func (p *Pattern) detectIncident(norm string) model.Incident {
	for _, im := range p.incidents {
		if im.re.MatchString(norm) {
			return im.incident
		}
	}
	return model.IncidentNone
}
