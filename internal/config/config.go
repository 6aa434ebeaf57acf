package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/arvense/batchsight/internal/forest"
	"github.com/arvense/batchsight/internal/scoring"
)

// Config represents the complete application configuration.
type Config struct {
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Storage    StorageConfig    `mapstructure:"storage"`
	LIMS       LIMSConfig       `mapstructure:"lims"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// WeightConfig is one indicator's weight and baseline.
type WeightConfig struct {
	Weight   float64 `mapstructure:"weight"`
	Baseline float64 `mapstructure:"baseline"`
}

// ScoringConfig holds the risk-scoring weights and classification limits.
// There are no default weights or thresholds: they are process-specific
// and must be supplied per deployment.
type ScoringConfig struct {
	Weights         map[string]WeightConfig `mapstructure:"weights"`
	AlertThreshold  float64                 `mapstructure:"alert_threshold"`
	ActionThreshold float64                 `mapstructure:"action_threshold"`
}

// ClassifierConfig holds the root-cause classifier training parameters.
type ClassifierConfig struct {
	Trees        int    `mapstructure:"trees"`
	MaxDepth     int    `mapstructure:"max_depth"`
	MinLeaf      int    `mapstructure:"min_leaf"`
	MinClassSize int    `mapstructure:"min_class_size"`
	Seed         int64  `mapstructure:"seed"`
	ModelPath    string `mapstructure:"model_path"`
}

// StorageConfig holds the historical store location.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LIMSConfig holds the quality-system export API location. An empty base
// URL disables ingestion; records can still be loaded by other means.
type LIMSConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a LIMS endpoint is configured.
func (l LIMSConfig) Enabled() bool {
	return l.BaseURL != ""
}

// WatchConfig holds the scoring loop configuration.
type WatchConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NotifyConfig holds Telegram alert configuration.
type NotifyConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("BATCHSIGHT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values. Scoring weights and thresholds
// deliberately have none.
func setDefaults(v *viper.Viper) {
	v.SetDefault("classifier.trees", 100)
	v.SetDefault("classifier.max_depth", 8)
	v.SetDefault("classifier.min_leaf", 1)
	v.SetDefault("classifier.min_class_size", 5)
	v.SetDefault("classifier.seed", 1)
	v.SetDefault("classifier.model_path", "./data/model.json")

	v.SetDefault("storage.db_path", "./data/batchsight.db")

	v.SetDefault("lims.timeout", "30s")

	v.SetDefault("watch.poll_interval", "1m")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if len(c.Scoring.Weights) == 0 {
		return fmt.Errorf("scoring.weights must name at least one indicator")
	}
	if c.Scoring.ActionThreshold <= c.Scoring.AlertThreshold {
		return fmt.Errorf("scoring.action_threshold (%g) must exceed scoring.alert_threshold (%g)",
			c.Scoring.ActionThreshold, c.Scoring.AlertThreshold)
	}

	if c.Classifier.Trees < 1 {
		return fmt.Errorf("classifier.trees must be at least 1")
	}
	if c.Classifier.MaxDepth < 1 {
		return fmt.Errorf("classifier.max_depth must be at least 1")
	}
	if c.Classifier.MinLeaf < 1 {
		return fmt.Errorf("classifier.min_leaf must be at least 1")
	}
	if c.Classifier.MinClassSize < 1 {
		return fmt.Errorf("classifier.min_class_size must be at least 1")
	}
	if c.Classifier.ModelPath == "" {
		return fmt.Errorf("classifier.model_path is required")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.LIMS.Enabled() && c.LIMS.Timeout < time.Second {
		return fmt.Errorf("lims.timeout must be at least 1 second")
	}

	if c.Watch.PollInterval < 10*time.Second {
		return fmt.Errorf("watch.poll_interval must be at least 10 seconds")
	}

	if c.Notify.Enabled {
		if c.Notify.BotToken == "" {
			return fmt.Errorf("notify.bot_token is required when notify is enabled")
		}
		if c.Notify.ChatID == "" {
			return fmt.Errorf("notify.chat_id is required when notify is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EngineConfig converts the scoring section into the engine's config type.
func (c *Config) EngineConfig() scoring.Config {
	weights := make(map[string]scoring.IndicatorWeight, len(c.Scoring.Weights))
	for name, w := range c.Scoring.Weights {
		weights[name] = scoring.IndicatorWeight{Weight: w.Weight, Baseline: w.Baseline}
	}
	return scoring.Config{
		Weights: weights,
		Thresholds: scoring.Thresholds{
			Alert:  c.Scoring.AlertThreshold,
			Action: c.Scoring.ActionThreshold,
		},
	}
}

// ForestConfig converts the classifier section into the forest's config type.
func (c *Config) ForestConfig() forest.Config {
	return forest.Config{
		Trees:        c.Classifier.Trees,
		MaxDepth:     c.Classifier.MaxDepth,
		MinLeaf:      c.Classifier.MinLeaf,
		MinClassSize: c.Classifier.MinClassSize,
		Seed:         c.Classifier.Seed,
	}
}
