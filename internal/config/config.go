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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	LLMSearch LLMSearchConfig `yaml:"llm_search" mapstructure:"llm_search"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Plans     PlansConfig     `yaml:"plans" mapstructure:"plans"`
	Executor  ExecutorConfig  `yaml:"executor" mapstructure:"executor"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LLMSearchConfig holds the web-search LLM provider settings.
type LLMSearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for analysis and synthesis.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	AnalysisModel  string `yaml:"analysis_model" mapstructure:"analysis_model"`
	SynthesisModel string `yaml:"synthesis_model" mapstructure:"synthesis_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// VerifyConfig configures business identity verification.
type VerifyConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures mention collection.
type SearchConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	MaxMentions    int    `yaml:"max_mentions" mapstructure:"max_mentions"`
	ResultsPerPage int    `yaml:"results_per_page" mapstructure:"results_per_page"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int    `yaml:"retries" mapstructure:"retries"`
}

// ScanConfig configures the scan pipeline.
type ScanConfig struct {
	SkipPlaces          bool `yaml:"skip_places" mapstructure:"skip_places"`
	ContentTimeoutSecs  int  `yaml:"content_timeout_secs" mapstructure:"content_timeout_secs"`
	MaxContentBytes     int  `yaml:"max_content_bytes" mapstructure:"max_content_bytes"`
	SentimentConcurrent int  `yaml:"sentiment_concurrent" mapstructure:"sentiment_concurrent"`
}

// PlansConfig configures plan limit enforcement.
type PlansConfig struct {
	Enforce           bool `yaml:"enforce" mapstructure:"enforce"`
	DefaultMonthly    int  `yaml:"default_monthly" mapstructure:"default_monthly"`
	DefaultConcurrent int  `yaml:"default_concurrent" mapstructure:"default_concurrent"`
}

// ExecutorConfig configures the background run executor.
type ExecutorConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// NotifyConfig configures completion notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REPUTATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("llm_search.base_url", "https://api.perplexity.ai")
	v.SetDefault("llm_search.model", "sonar-pro")
	v.SetDefault("anthropic.analysis_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synthesis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("verify.timeout_secs", 10)
	v.SetDefault("verify.user_agent", "Mozilla/5.0 (compatible; ReputationAI/1.0)")
	v.SetDefault("search.provider", "llm")
	v.SetDefault("search.max_mentions", 20)
	v.SetDefault("search.results_per_page", 10)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.retries", 1)
	v.SetDefault("scan.content_timeout_secs", 10)
	v.SetDefault("scan.max_content_bytes", 2000)
	v.SetDefault("scan.sentiment_concurrent", 4)
	v.SetDefault("plans.enforce", true)
	v.SetDefault("plans.default_monthly", 10)
	v.SetDefault("plans.default_concurrent", 1)
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.queue_size", 64)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
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
