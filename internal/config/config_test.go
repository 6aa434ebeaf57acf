package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
scoring:
  weights:
    peak_asymmetry:
      weight: 2.0
      baseline: 1.0
    hmw_impurity:
      weight: 5.0
      baseline: 0.3
  alert_threshold: 10.0
  action_threshold: 15.0
classifier:
  trees: 50
  seed: 7
storage:
  db_path: ./data/test.db
logging:
  level: debug
  format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(cfg.Scoring.Weights) != 2 {
		t.Errorf("Expected 2 weights, got %d", len(cfg.Scoring.Weights))
	}
	if w := cfg.Scoring.Weights["hmw_impurity"]; w.Weight != 5.0 || w.Baseline != 0.3 {
		t.Errorf("Unexpected hmw_impurity weight config: %+v", w)
	}
	if cfg.Scoring.AlertThreshold != 10.0 || cfg.Scoring.ActionThreshold != 15.0 {
		t.Errorf("Unexpected thresholds: alert %g action %g",
			cfg.Scoring.AlertThreshold, cfg.Scoring.ActionThreshold)
	}
	if cfg.Classifier.Trees != 50 || cfg.Classifier.Seed != 7 {
		t.Errorf("Unexpected classifier config: %+v", cfg.Classifier)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Classifier.MaxDepth != 8 {
		t.Errorf("Expected default max_depth 8, got %d", cfg.Classifier.MaxDepth)
	}
	if cfg.Classifier.MinClassSize != 5 {
		t.Errorf("Expected default min_class_size 5, got %d", cfg.Classifier.MinClassSize)
	}
	if cfg.Classifier.ModelPath != "./data/model.json" {
		t.Errorf("Expected default model_path, got %q", cfg.Classifier.ModelPath)
	}
	if cfg.Watch.PollInterval != time.Minute {
		t.Errorf("Expected default poll_interval 1m, got %v", cfg.Watch.PollInterval)
	}
	if cfg.Notify.Enabled {
		t.Error("Expected notifications disabled by default")
	}
	if cfg.Notify.MaxRetries != 3 || cfg.Notify.RetryDelayBase != time.Second {
		t.Errorf("Unexpected notify defaults: %+v", cfg.Notify)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no weights", func(c *Config) { c.Scoring.Weights = nil }},
		{"action below alert", func(c *Config) { c.Scoring.ActionThreshold = 5.0 }},
		{"action equals alert", func(c *Config) { c.Scoring.ActionThreshold = c.Scoring.AlertThreshold }},
		{"zero trees", func(c *Config) { c.Classifier.Trees = 0 }},
		{"zero max depth", func(c *Config) { c.Classifier.MaxDepth = 0 }},
		{"empty model path", func(c *Config) { c.Classifier.ModelPath = "" }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"poll interval too short", func(c *Config) { c.Watch.PollInterval = time.Second }},
		{"lims timeout too short", func(c *Config) {
			c.LIMS.BaseURL = "https://lims.example.com"
			c.LIMS.Timeout = 0
		}},
		{"notify enabled without token", func(c *Config) { c.Notify.Enabled = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ec := cfg.EngineConfig()
	if len(ec.Weights) != 2 {
		t.Fatalf("Expected 2 engine weights, got %d", len(ec.Weights))
	}
	if w := ec.Weights["peak_asymmetry"]; w.Weight != 2.0 || w.Baseline != 1.0 {
		t.Errorf("Unexpected engine weight: %+v", w)
	}
	if ec.Thresholds.Alert != 10.0 || ec.Thresholds.Action != 15.0 {
		t.Errorf("Unexpected engine thresholds: %+v", ec.Thresholds)
	}
}

func TestForestConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fc := cfg.ForestConfig()
	if fc.Trees != 50 || fc.Seed != 7 {
		t.Errorf("Unexpected forest config: %+v", fc)
	}
	if fc.MaxDepth != 8 || fc.MinClassSize != 5 {
		t.Errorf("Defaults not carried into forest config: %+v", fc)
	}
}
