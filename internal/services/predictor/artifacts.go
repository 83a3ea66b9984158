package predictor

import "github.com/LeonardoBeccarini/irrigation_predictor/internal/model"

// Scaler is a pre-fitted normalizer. Implementations must be safe for
// concurrent read-only use.
type Scaler interface {
	Transform(model.FeatureVector) (model.ScaledFeatureVector, error)
}

// Classifier is a pre-fitted binary classifier returning one label per call.
type Classifier interface {
	Predict(model.ScaledFeatureVector) (int, error)
}

// ModelBundle holds the two artifacts loaded at startup. It is never mutated
// after construction.
type ModelBundle struct {
	Scaler     Scaler
	Classifier Classifier
}

// Loaded reports whether both artifacts are present.
func (b *ModelBundle) Loaded() bool {
	return b != nil && b.Scaler != nil && b.Classifier != nil
}
