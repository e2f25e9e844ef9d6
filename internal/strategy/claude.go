package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veilletech/triage-cli/internal/cost"
	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/pkg/anthropic"
)

// classifySystemPrompt is identical across every sub-batch call of a run,
// so it goes out as a cached system block: the first call warms the prompt
// cache and the rest read from it.
const classifySystemPrompt = `Tu es un expert en analyse de messages clients pour un opérateur télécom français.

OBJECTIF: classifier chaque message et retourner TOUS les champs suivants:
- sentiment ∈ positif|negatif|neutre
- is_claim ∈ oui|non ("oui" dès qu'un problème, une panne, un bug, une erreur de facturation ou un mécontentement est mentionné)
- urgence ∈ haute|moyenne|basse ("haute" si panne totale ou vocabulaire critique: "bloqué", "urgent", "impossible")
- topics ∈ fibre|mobile|facture|reseau|service_client|autre
- incident ∈ connexion|debit|activation|facturation|technique|service_client|aucun (le problème concret; "aucun" seulement si aucun problème n'est décrit)
- score_confiance entre 0.0 et 1.0 (2 décimales max)

Les messages sont numérotés; chaque résultat reprend le numéro dans "index".
Chaque message DOIT avoir exactement un objet JSON complet avec toutes les clés.

FORMAT STRICT (aucun texte avant ou après le JSON):
{
    "results": [
        {
            "index": 0,
            "sentiment": "negatif",
            "is_claim": "oui",
            "urgence": "haute",
            "topics": "fibre",
            "incident": "connexion",
            "score_confiance": 0.94
        }
    ]
}`

// ClaudeOptions configures the LLM strategy. Zero values take the
// documented defaults.
type ClaudeOptions struct {
	Model             string
	MaxTokens         int64
	RequestsPerSecond float64
	Burst             int
	PingTimeout       time.Duration
}

// Claude is the expensive strategy: one batched JSON prompt per sub-batch,
// rate limited client side. Responses are validated field by field and
// cross-checked against the rule engine; records the model skips degrade to
// the rule fallback instead of erroring the whole batch, unless coverage
// drops below half.
type Claude struct {
	client      anthropic.Client
	pattern     *Pattern
	lexicon     *Lexicon
	model       string
	maxTokens   int64
	limiter     *rate.Limiter
	pingTimeout time.Duration
	costs       *cost.Calculator
	log         *zap.Logger
}

// NewClaude builds the LLM strategy around an API client plus the two cheap
// engines it falls back on.
func NewClaude(client anthropic.Client, pattern *Pattern, lexicon *Lexicon, opts ClaudeOptions) *Claude {
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	return &Claude{
		client:      client,
		pattern:     pattern,
		lexicon:     lexicon,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		pingTimeout: opts.PingTimeout,
		costs:       cost.NewCalculator(cost.DefaultRates()),
		log:         zap.L().With(zap.String("strategy", "llm")),
	}
}

func (c *Claude) Name() string { return "llm" }

// Version ties cached results to the prompt revision and the model, so a
// model switch re-classifies instead of serving another model's answers.
func (c *Claude) Version() string { return "v2/" + c.model }

// IsAvailable probes the API with a short deadline. Called once per run at
// orchestrator init.
func (c *Claude) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := c.client.Ping(ctx); err != nil {
		c.log.Warn("availability probe failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Claude) ClassifyBatch(ctx context.Context, texts []string) ([]model.PartialResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "strategy: rate limit wait")
	}

	temperature := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: buildUserPrompt(texts)}},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, eris.Wrap(err, "strategy: classify batch")
	}

	results, covered, err := c.parseResults(extractText(resp), texts)
	if err != nil {
		return nil, err
	}

	c.logUsage(resp.Usage)

	// Guards only touch answers the model actually produced; skipped
	// records get the same fallback they would get from a failed batch.
	for i := range results {
		if covered[i] {
			results[i] = c.applyGuards(results[i], c.pattern.Match(texts[i]))
		} else {
			results[i] = c.Fallback(texts[i])
		}
	}
	return results, nil
}

// logUsage emits one cost attribution line per API call.
func (c *Claude) logUsage(u anthropic.TokenUsage) {
	c.log.Info("cost attribution",
		zap.String("model", c.model),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", c.costs.Claude(
			c.model, u.InputTokens, u.OutputTokens,
			u.CacheCreationInputTokens, u.CacheReadInputTokens)),
	)
}

// Fallback returns the best cheap classification for one record: rule
// engine fields plus lexicon sentiment, honestly labelled as pattern stage.
func (c *Claude) Fallback(text string) model.PartialResult {
	res := c.pattern.Match(text)
	scored := c.lexicon.Score(text)
	res.Sentiment = scored.Sentiment
	res.Confidence = scored.Confidence
	return res
}

// buildUserPrompt numbers the texts so the model can reference them by
// index in its answer.
func buildUserPrompt(texts []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "MESSAGES À CLASSIFIER (%d):\n", len(texts))
	for i, text := range texts {
		fmt.Fprintf(&sb, "%d: %s\n", i, text)
	}
	return sb.String()
}

// llmResult mirrors one entry of the model's results array.
type llmResult struct {
	Index      int     `json:"index"`
	Sentiment  string  `json:"sentiment"`
	IsClaim    string  `json:"is_claim"`
	Urgence    string  `json:"urgence"`
	Topics     string  `json:"topics"`
	Incident   string  `json:"incident"`
	Confidence float64 `json:"score_confiance"`
}

// parseResults decodes and validates the model output. If fewer than half
// the records come back the whole call errors so the retry loop gets
// another shot; a sparser miss is tolerated and reported through covered.
func (c *Claude) parseResults(raw string, texts []string) ([]model.PartialResult, []bool, error) {
	var payload struct {
		Results []llmResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &payload); err != nil {
		return nil, nil, eris.Wrap(err, "strategy: parse llm response")
	}

	out := make([]model.PartialResult, len(texts))
	covered := make([]bool, len(texts))
	for _, r := range payload.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			c.log.Warn("llm result index out of range", zap.Int("index", r.Index))
			continue
		}
		out[r.Index] = validateResult(r)
		covered[r.Index] = true
	}

	answered := 0
	for _, ok := range covered {
		if ok {
			answered++
		}
	}
	if answered*2 < len(texts) {
		return nil, nil, eris.Errorf("strategy: llm answered %d of %d records", answered, len(texts))
	}
	if answered < len(texts) {
		c.log.Warn("llm skipped records, using fallback",
			zap.Int("answered", answered),
			zap.Int("expected", len(texts)))
	}
	return out, covered, nil
}

// validateResult normalizes every enum through the model parse helpers, so
// label variants and junk values collapse onto the canonical set.
func validateResult(r llmResult) model.PartialResult {
	return model.PartialResult{
		Sentiment:  model.ParseSentiment(r.Sentiment),
		Claim:      model.ParseClaimFlag(r.IsClaim),
		Urgency:    model.ParseUrgency(r.Urgence),
		Topic:      model.ParseTopic(r.Topics),
		Incident:   model.ParseIncident(r.Incident),
		Confidence: clampConfidence(r.Confidence),
		Stage:      model.StageLLM,
	}
}

// applyGuards cross-checks one validated result against the rule engine's
// reading of the same text. Negative sentiment implies a claim, rule-level
// claim and urgency signals are floors, and a claim is never below medium
// urgency.
func (c *Claude) applyGuards(res model.PartialResult, ruled model.PartialResult) model.PartialResult {
	if res.Sentiment == model.SentimentNegative {
		res.Claim = model.ClaimYes
	}
	if ruled.Claim == model.ClaimYes {
		res.Claim = model.ClaimYes
	}
	if ruled.Urgency == model.UrgencyHigh {
		res.Urgency = model.UrgencyHigh
		res.Claim = model.ClaimYes
	}
	if res.Claim == model.ClaimYes && res.Urgency == model.UrgencyLow {
		res.Urgency = model.UrgencyMedium
	}
	return res
}

// cleanJSON strips markdown fences and any prose around the outermost JSON
// object. Models occasionally wrap their answer despite the format contract.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// extractText concatenates all text content blocks.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
