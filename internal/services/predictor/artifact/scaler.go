package artifact

import (
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// KindStandardScaler tags a serialized standard scaler.
const KindStandardScaler = "standard_scaler"

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	Kind         string    `json:"kind"`
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

func (s *StandardScaler) validate() error {
	if s.Kind != KindStandardScaler {
		return fmt.Errorf("scaler: unexpected kind %q", s.Kind)
	}
	n := len(model.FeatureNames)
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("scaler: want %d columns, got mean=%d scale=%d", n, len(s.Mean), len(s.Scale))
	}
	if len(s.FeatureNames) != 0 {
		if len(s.FeatureNames) != n {
			return fmt.Errorf("scaler: want %d feature names, got %d", n, len(s.FeatureNames))
		}
		for i, name := range s.FeatureNames {
			if name != model.FeatureNames[i] {
				return fmt.Errorf("scaler: column %d is %q, want %q", i, name, model.FeatureNames[i])
			}
		}
	}
	for i := range s.Scale {
		if math.IsNaN(s.Mean[i]) || math.IsNaN(s.Scale[i]) {
			return fmt.Errorf("scaler: column %d is NaN", i)
		}
		// zero variance columns are left unscaled
		if s.Scale[i] == 0 {
			s.Scale[i] = 1
		}
	}
	return nil
}

func (s *StandardScaler) Transform(f model.FeatureVector) (model.ScaledFeatureVector, error) {
	x := f.Values()
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: got %d features, fitted on %d", len(x), len(s.Mean))
	}
	out := make(model.ScaledFeatureVector, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
