package classify

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/cache"
	"github.com/veilletech/triage-cli/internal/config"
	"github.com/veilletech/triage-cli/internal/model"
	"github.com/veilletech/triage-cli/internal/resilience"
)

// State names one step of the orchestration state machine. States advance
// strictly in order; Failed is reachable only from Init, before any work.
type State string

const (
	StateInit      State = "init"
	StateFast      State = "fast_stage"
	StatePattern   State = "pattern_stage"
	StateSampling  State = "sampling"
	StateExpensive State = "expensive_stage"
	StateMerge     State = "merge"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Policies for an expensive strategy that fails its availability check.
const (
	OnUnavailableAbort    = "abort"
	OnUnavailableFallback = "fallback"
)

// Progress fractions reported at each phase boundary.
const (
	progressFast      = 0.30
	progressPattern   = 0.45
	progressSampling  = 0.50
	progressExpensive = 0.85
	progressMerge     = 0.90
)

// Config holds the validated pipeline parameters.
type Config struct {
	BatchSize        int
	Workers          int
	MaxRetries       int
	InitialBackoffMs int
	MaxBackoffMs     int
	Multiplier       float64
	JitterFraction   float64
	OnUnavailable    string
	TargetFraction   float64
	MinimumSample    int
	Seed             uint64
}

// ConfigFrom maps the application configuration onto pipeline parameters.
func ConfigFrom(app *config.Config) Config {
	return Config{
		BatchSize:        app.Pipeline.BatchSize,
		Workers:          app.Pipeline.Workers,
		MaxRetries:       app.Pipeline.MaxRetries,
		InitialBackoffMs: app.Pipeline.InitialBackoffMs,
		MaxBackoffMs:     app.Pipeline.MaxBackoffMs,
		Multiplier:       app.Pipeline.Multiplier,
		JitterFraction:   app.Pipeline.JitterFraction,
		OnUnavailable:    app.Pipeline.OnUnavailable,
		TargetFraction:   app.Sampling.TargetFraction,
		MinimumSample:    app.Sampling.Minimum,
		Seed:             app.Sampling.Seed,
	}
}

// sampleTarget is the expensive-stage sample size for n records: the
// configured fraction of n, floored, raised to the configured minimum and
// capped at n.
func (c Config) sampleTarget(n int) int {
	target := int(math.Floor(float64(n) * c.TargetFraction))
	if target < c.MinimumSample {
		target = c.MinimumSample
	}
	if target > n {
		target = n
	}
	return target
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Fast      RecordClassifier
	Pattern   RecordClassifier
	Expensive RecordClassifier
	Cache     cache.Store

	// OnProgress receives a human-readable phase message and a completion
	// fraction that never decreases and ends at 1.0. It is always invoked
	// from the goroutine driving Run. Nil is replaced by a no-op.
	OnProgress func(message string, fraction float64)
}

// Orchestrator drives the full classification run. Build one with New and
// reuse it across runs; it is safe for sequential use only.
type Orchestrator struct {
	cfg       Config
	fast      RecordClassifier
	pattern   RecordClassifier
	expensive RecordClassifier
	cache     cache.Store
	sampler   *Sampler
	executor  *ConcurrentExecutor
	progress  func(string, float64)
	mode      model.RunMode
	state     State
	log       *zap.Logger
}

// New validates cfg, checks the expensive strategy's availability once and
// wires the pipeline. An invalid parameter yields a *ConfigError; an
// unavailable expensive strategy yields a *UnavailableError under the
// abort policy, or silently swaps in the pattern engine under the default
// fallback policy.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case cfg.BatchSize <= 0:
		return nil, &ConfigError{Field: "batch_size", Reason: "must be positive"}
	case cfg.Workers <= 0:
		return nil, &ConfigError{Field: "workers", Reason: "must be positive"}
	case cfg.MaxRetries < 1:
		return nil, &ConfigError{Field: "max_retries", Reason: "must be at least 1"}
	case cfg.TargetFraction <= 0 || cfg.TargetFraction > 1:
		return nil, &ConfigError{Field: "target_fraction", Reason: "must be in (0, 1]"}
	case cfg.MinimumSample < 0:
		return nil, &ConfigError{Field: "minimum_sample", Reason: "must not be negative"}
	}
	if deps.Fast == nil || deps.Pattern == nil || deps.Expensive == nil {
		return nil, &ConfigError{Field: "strategies", Reason: "fast, pattern and expensive strategies are all required"}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory()
	}

	log := zap.L().With(zap.String("pkg", "classify"))

	mode := model.RunModeFull
	expensive := deps.Expensive
	if checker, ok := deps.Expensive.(AvailabilityChecker); ok && !checker.IsAvailable(context.Background()) {
		switch cfg.OnUnavailable {
		case OnUnavailableAbort:
			return nil, &UnavailableError{Strategy: deps.Expensive.Name()}
		default:
			log.Warn("orchestrator: expensive strategy unavailable, sampled records use the pattern engine",
				zap.String("strategy", deps.Expensive.Name()),
			)
			expensive = deps.Pattern
			mode = model.RunModePatternFallback
		}
	}

	progress := deps.OnProgress
	if progress == nil {
		progress = func(string, float64) {}
	}

	retry := resilience.FromMillis(cfg.MaxRetries, cfg.InitialBackoffMs, cfg.MaxBackoffMs, cfg.Multiplier, cfg.JitterFraction)

	return &Orchestrator{
		cfg:       cfg,
		fast:      deps.Fast,
		pattern:   deps.Pattern,
		expensive: expensive,
		cache:     deps.Cache,
		sampler:   NewSampler(cfg.Seed),
		executor:  NewConcurrentExecutor(cfg.Workers, retry, deps.Cache),
		progress:  progress,
		mode:      mode,
		state:     StateInit,
		log:       log,
	}, nil
}

// State reports the phase the orchestrator is currently in.
func (o *Orchestrator) State() State { return o.state }

// Mode reports whether the expensive stage runs the real strategy or the
// pattern fallback.
func (o *Orchestrator) Mode() model.RunMode { return o.mode }

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.log.Debug("orchestrator: state change", zap.String("state", string(s)))
}

// Run classifies every record and returns one result per input, in input
// order, together with the run's benchmark report. After construction
// succeeds the only error Run returns is ctx.Err on cancellation; every
// other failure degrades to fallbacks and counters inside the report.
func (o *Orchestrator) Run(ctx context.Context, records []model.Record) ([]model.ClassificationResult, *model.BenchmarkReport, error) {
	start := time.Now()
	n := len(records)

	o.log.Info("orchestrator: starting run",
		zap.Int("records", n),
		zap.Int("batch_size", o.cfg.BatchSize),
		zap.Int("workers", o.cfg.Workers),
		zap.String("mode", string(o.mode)),
	)

	report := &model.BenchmarkReport{
		TotalRecords: n,
		Workers:      o.cfg.Workers,
		Mode:         o.mode,
	}

	texts := make([]string, n)
	for i, r := range records {
		texts[i] = r.Text
	}
	spans := Split(n, o.cfg.BatchSize)

	var agg StageStats

	// Phases run sequentially on this goroutine; the helper records
	// wall-clock duration per phase and stops the run only on cancellation.
	trackPhase := func(name string, count int, fn func() error) error {
		phaseStart := time.Now()
		err := fn()
		elapsed := time.Since(phaseStart)
		report.Phases = append(report.Phases, model.PhaseTiming{
			Name:     name,
			Duration: elapsed.Milliseconds(),
			Records:  count,
		})
		if err != nil {
			o.log.Error("orchestrator: phase aborted",
				zap.String("phase", name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			return err
		}
		o.log.Info("orchestrator: phase complete",
			zap.String("phase", name),
			zap.Duration("elapsed", elapsed),
			zap.Int("records", count),
		)
		return nil
	}

	// Phase 1: fast lexicon over every span.
	o.setState(StateFast)
	fastResults := make([]model.PartialResult, n)
	if err := trackPhase("fast_lexicon", n, func() error {
		runner := NewStageRunner(o.fast, o.cache)
		for si, span := range spans {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, stats := runner.Run(ctx, texts[span.Start:span.End])
			copy(fastResults[span.Start:span.End], res)
			agg.Add(stats)
			o.progress(
				fmt.Sprintf("phase 1/4: lexicon %d/%d", span.End, n),
				progressFast*float64(si+1)/float64(len(spans)),
			)
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	o.progress(fmt.Sprintf("phase 1/4: lexicon done (%d records)", n), progressFast)

	// Phase 2: pattern engine over every span.
	o.setState(StatePattern)
	patternResults := make([]model.PartialResult, n)
	if err := trackPhase("pattern_engine", n, func() error {
		runner := NewStageRunner(o.pattern, o.cache)
		for si, span := range spans {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, stats := runner.Run(ctx, texts[span.Start:span.End])
			copy(patternResults[span.Start:span.End], res)
			agg.Add(stats)
			o.progress(
				fmt.Sprintf("phase 2/4: patterns %d/%d", span.End, n),
				progressFast+(progressPattern-progressFast)*float64(si+1)/float64(len(spans)),
			)
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	o.progress(fmt.Sprintf("phase 2/4: patterns done (%d records)", n), progressPattern)

	// Phase 3a: pick the records worth the expensive strategy. The claim
	// flag comes from the pattern pass, the sentiment from the lexicon.
	o.setState(StateSampling)
	var sampled []int
	_ = trackPhase("sampling", n, func() error {
		cheap := make([]model.PartialResult, n)
		for i := range cheap {
			cheap[i] = fastResults[i]
			cheap[i].Claim = patternResults[i].Claim
		}
		sampled = o.sampler.Select(cheap, o.cfg.sampleTarget(n))
		return nil
	})
	report.SampledRecords = len(sampled)
	if n > 0 {
		report.SampledFraction = float64(len(sampled)) / float64(n)
	}
	o.progress(fmt.Sprintf("phase 3/4: sampled %d of %d records", len(sampled), n), progressSampling)

	// Phase 3b: expensive strategy over the sampled subset.
	o.setState(StateExpensive)
	var expensiveResults map[int]model.PartialResult
	if err := trackPhase("expensive_"+o.expensive.Name(), len(sampled), func() error {
		res, stats, err := o.executor.Run(ctx, o.expensive, records, sampled, func(done, total int) {
			o.progress(
				fmt.Sprintf("phase 4/4: %s sub-batch %d/%d", o.expensive.Name(), done, total),
				progressSampling+(progressExpensive-progressSampling)*float64(done)/float64(total),
			)
		})
		if err != nil {
			return err
		}
		expensiveResults = res
		agg.Add(stats)
		return nil
	}); err != nil {
		return nil, nil, err
	}
	o.progress(fmt.Sprintf("phase 4/4: %s done (%d records)", o.expensive.Name(), len(sampled)), progressExpensive)

	// Merge: highest-priority stage wins per field, defaults fill the rest.
	o.setState(StateMerge)
	results := make([]model.ClassificationResult, n)
	_ = trackPhase("merge", n, func() error {
		for i := range records {
			merged := model.ClassificationResult{Index: i, RecordID: records[i].ID}
			applyFragment(&merged, fastResults[i])
			applyFragment(&merged, patternResults[i])
			if frag, ok := expensiveResults[i]; ok {
				applyFragment(&merged, frag)
			}
			merged.ApplyDefaults()
			results[i] = merged
		}
		return nil
	})
	o.progress("merge complete", progressMerge)

	report.CacheHits = agg.Hits
	report.CacheMisses = agg.Misses
	if lookups := agg.Hits + agg.Misses; lookups > 0 {
		report.CacheHitRate = float64(agg.Hits) / float64(lookups) * 100
	}
	if instrumented, ok := o.cache.(cache.Instrumented); ok {
		report.CacheIOErrors = int(instrumented.IOErrors())
	}
	report.StrategyCalls = agg.StrategyCalls
	report.SubBatchFailures = agg.Failures
	report.FallbackRecords = agg.Fallbacks
	report.ElapsedMs = time.Since(start).Milliseconds()
	if secs := time.Since(start).Seconds(); secs > 0 && n > 0 {
		report.RecordsPerSecond = float64(n) / secs
	}

	o.setState(StateDone)
	o.progress(fmt.Sprintf("done: %d records classified", n), 1.0)

	o.log.Info("orchestrator: run complete",
		zap.Int("records", n),
		zap.Int64("elapsed_ms", report.ElapsedMs),
		zap.Float64("records_per_second", report.RecordsPerSecond),
		zap.Int("cache_hits", report.CacheHits),
		zap.Int("cache_misses", report.CacheMisses),
		zap.Int("sampled", report.SampledRecords),
		zap.Int("sub_batch_failures", report.SubBatchFailures),
	)
	return results, report, nil
}

// applyFragment copies every field the fragment actually set onto dst,
// overwriting lower-priority values. Fragments are applied in ascending
// stage priority, so the last writer per field is the highest stage that
// owned it. Confidence rides with sentiment.
func applyFragment(dst *model.ClassificationResult, frag model.PartialResult) {
	touched := false
	if frag.Sentiment != "" {
		dst.Sentiment = frag.Sentiment
		dst.Confidence = frag.Confidence
		touched = true
	}
	if frag.Claim != "" {
		dst.Claim = frag.Claim
		touched = true
	}
	if frag.Urgency != "" {
		dst.Urgency = frag.Urgency
		touched = true
	}
	if frag.Topic != "" {
		dst.Topic = frag.Topic
		touched = true
	}
	if frag.Incident != "" {
		dst.Incident = frag.Incident
		touched = true
	}
	if touched && frag.Stage.Priority() > dst.Stage.Priority() {
		dst.Stage = frag.Stage
	}
}
