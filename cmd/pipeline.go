package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/cache"
	"github.com/veilletech/triage-cli/internal/classify"
	"github.com/veilletech/triage-cli/internal/ingest"
	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/strategy"
	"github.com/veilletech/triage-cli/pkg/anthropic"
)

// pipelineEnv carries the long-lived classification collaborators shared by
// the run and serve commands. Strategies and caches are built once; each run
// gets a fresh orchestrator so the LLM availability probe happens per run.
type pipelineEnv struct {
	Lexicon *strategy.Lexicon
	Pattern *strategy.Pattern
	Claude  *strategy.Claude
	Cache   cache.Store

	durable *cache.SQLite
}

// initPipeline builds the strategies and the cache from the loaded config.
// rulesPath, when non-empty, overrides the configured rule file.
func initPipeline(rulesPath string) (*pipelineEnv, error) {
	if rulesPath == "" {
		rulesPath = cfg.Rules.Path
	}

	rules := strategy.DefaultRules()
	if rulesPath != "" {
		loaded, err := strategy.LoadRules(rulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	pattern, err := strategy.NewPattern(rules)
	if err != nil {
		return nil, err
	}

	lexicon := strategy.NewLexicon()

	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic key not set, LLM stage will report unavailable")
	}
	claude := strategy.NewClaude(anthropic.NewClient(cfg.Anthropic.Key), pattern, lexicon, strategy.ClaudeOptions{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         int64(cfg.Anthropic.MaxTokens),
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		Burst:             cfg.Anthropic.Burst,
		PingTimeout:       time.Duration(cfg.Anthropic.PingTimeoutSecs) * time.Second,
	})

	env := &pipelineEnv{
		Lexicon: lexicon,
		Pattern: pattern,
		Claude:  claude,
	}

	mem := cache.NewMemory()
	if cfg.Cache.Durable {
		durable, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		env.durable = durable
		env.Cache = cache.NewLayered(mem, durable)
	} else {
		env.Cache = mem
	}

	return env, nil
}

// Close releases the durable cache, if any.
func (e *pipelineEnv) Close() error {
	if e.durable != nil {
		return e.durable.Close()
	}
	return nil
}

// newOrchestrator wires a fresh pipeline over the shared strategies and
// cache, re-probing LLM availability.
func (e *pipelineEnv) newOrchestrator() (*classify.Orchestrator, error) {
	return classify.New(classify.ConfigFrom(cfg), classify.Deps{
		Fast:       e.Lexicon,
		Pattern:    e.Pattern,
		Expensive:  e.Claude,
		Cache:      e.Cache,
		OnProgress: logProgress,
	})
}

// classifyDataset loads one dataset and runs the full pipeline over it. The
// serve command hands this to the HTTP server as its run callback.
func (e *pipelineEnv) classifyDataset(ctx context.Context, dataset string) ([]model.ClassificationResult, *model.BenchmarkReport, error) {
	records, err := loadRecords(ctx, dataset)
	if err != nil {
		return nil, nil, err
	}

	orch, err := e.newOrchestrator()
	if err != nil {
		return nil, nil, err
	}

	return orch.Run(ctx, records)
}

// loadRecords reads a dataset and applies the configured cleaning steps.
func loadRecords(ctx context.Context, path string) ([]model.Record, error) {
	records, err := ingest.Load(ctx, path, ingest.Options{
		TextColumn: cfg.Ingest.TextColumn,
		Encoding:   cfg.Ingest.Encoding,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Ingest.Clean {
		records = ingest.NewCleaner(ingest.CleanerOptions{
			RemoveURLs:     cfg.Ingest.RemoveURLs,
			RemoveMentions: cfg.Ingest.RemoveMentions,
			RemoveHashtags: cfg.Ingest.RemoveHashtags,
		}).CleanRecords(records)
	}
	if cfg.Ingest.Dedupe {
		records = ingest.Dedupe(records)
	}

	return records, nil
}

func logProgress(message string, fraction float64) {
	zap.L().Info("progress",
		zap.String("phase", message),
		zap.Float64("fraction", fraction),
	)
}
