// Package artifact loads the fitted scaler and classifier from their JSON
// exports.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor"
)

func LoadScaler(path string) (*StandardScaler, error) {
	var s StandardScaler
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func LoadForest(path string) (*RandomForest, error) {
	var f RandomForest
	if err := readJSON(path, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// LoadBundle loads both artifacts. On failure the returned bundle holds
// whatever did load, so the pipeline can still start and report unavailable.
func LoadBundle(scalerPath, modelPath string) (*predictor.ModelBundle, error) {
	b := &predictor.ModelBundle{}
	s, serr := LoadScaler(scalerPath)
	if serr == nil {
		b.Scaler = s
	}
	f, ferr := LoadForest(modelPath)
	if ferr == nil {
		b.Classifier = f
	}
	switch {
	case serr != nil && ferr != nil:
		return b, fmt.Errorf("load scaler: %w; load model: %v", serr, ferr)
	case serr != nil:
		return b, fmt.Errorf("load scaler: %w", serr)
	case ferr != nil:
		return b, fmt.Errorf("load model: %w", ferr)
	}
	return b, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}
