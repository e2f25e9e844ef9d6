package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Sampling   SamplingConfig   `yaml:"sampling" mapstructure:"sampling"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the classification cache.
type CacheConfig struct {
	Durable bool   `yaml:"durable" mapstructure:"durable"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for the LLM strategy.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	PingTimeoutSecs   int     `yaml:"ping_timeout_secs" mapstructure:"ping_timeout_secs"`
}

// PipelineConfig configures batching, workers and retry behavior.
type PipelineConfig struct {
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	OnUnavailable    string  `yaml:"on_unavailable" mapstructure:"on_unavailable"`
}

// SamplingConfig configures which records reach the LLM stage.
type SamplingConfig struct {
	TargetFraction float64 `yaml:"target_fraction" mapstructure:"target_fraction"`
	Minimum        int     `yaml:"minimum" mapstructure:"minimum"`
	Seed           uint64  `yaml:"seed" mapstructure:"seed"`
}

// RulesConfig points at an optional YAML file overriding the built-in
// pattern rule tables.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// IngestConfig configures dataset loading and text cleaning.
type IngestConfig struct {
	TextColumn     string `yaml:"text_column" mapstructure:"text_column"`
	Encoding       string `yaml:"encoding" mapstructure:"encoding"`
	Clean          bool   `yaml:"clean" mapstructure:"clean"`
	RemoveURLs     bool   `yaml:"remove_urls" mapstructure:"remove_urls"`
	RemoveMentions bool   `yaml:"remove_mentions" mapstructure:"remove_mentions"`
	RemoveHashtags bool   `yaml:"remove_hashtags" mapstructure:"remove_hashtags"`
	Dedupe         bool   `yaml:"dedupe" mapstructure:"dedupe"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background alert checker and the
// lookback window used by the status command.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An explicit path pins
// the config file and makes it required; an empty path searches the working
// directory for an optional config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "triage.db")
	v.SetDefault("cache.durable", true)
	v.SetDefault("cache.path", "triage-cache.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("anthropic.burst", 4)
	v.SetDefault("anthropic.ping_timeout_secs", 3)
	v.SetDefault("pipeline.batch_size", 50)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.initial_backoff_ms", 500)
	v.SetDefault("pipeline.max_backoff_ms", 8000)
	v.SetDefault("pipeline.multiplier", 2.0)
	v.SetDefault("pipeline.jitter_fraction", 0.1)
	v.SetDefault("pipeline.on_unavailable", "fallback")
	v.SetDefault("sampling.target_fraction", 0.2)
	v.SetDefault("sampling.minimum", 100)
	v.SetDefault("sampling.seed", 42)
	v.SetDefault("ingest.clean", true)
	v.SetDefault("ingest.remove_urls", true)
	v.SetDefault("ingest.remove_mentions", true)
	v.SetDefault("ingest.remove_hashtags", false)
	v.SetDefault("ingest.dedupe", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless pinned)
	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration required by the given command mode.
// Pipeline parameter bounds are validated by the orchestrator itself; this
// covers the surrounding wiring (stores, server, cache files).
func (c *Config) Validate(mode string) error {
	var issues []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			issues = append(issues, "store.path is required with the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required with the postgres driver")
		}
	default:
		issues = append(issues, "store.driver must be sqlite or postgres")
	}

	if c.Cache.Durable && c.Cache.Path == "" {
		issues = append(issues, "cache.path is required when cache.durable is set")
	}

	switch c.Pipeline.OnUnavailable {
	case "abort", "fallback":
	default:
		issues = append(issues, "pipeline.on_unavailable must be abort or fallback")
	}

	switch mode {
	case "run", "store":
		// Covered by the common checks above.
	case "serve":
		if c.Server.Port <= 0 {
			issues = append(issues, "server.port must be > 0")
		}
	case "export":
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required for export")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(issues) > 0 {
		return eris.New("config: " + strings.Join(issues, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
