package forest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveModel writes a fitted model to path as JSON, schema included, so it
// can be served later without retraining. The write goes through a temp
// file and rename so a crash never leaves a half-written model behind.
func SaveModel(m *Model, path string) error {
	if m == nil {
		return ErrModelNotFitted
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename model file: %w", err)
	}
	return nil
}

// LoadModel restores a persisted model. The embedded schema lets Predict
// detect schema mismatches without access to the original training set.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	if len(m.Trees) == 0 || len(m.Schema.Labels) < 2 {
		return nil, fmt.Errorf("model file %s is incomplete", path)
	}
	return &m, nil
}
