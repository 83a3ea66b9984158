package predictor

import (
	"log"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// Pipeline runs validation, feature mapping, scaling, classification and
// the duration formula for one reading. It holds no mutable state and is
// safe for concurrent use.
type Pipeline struct {
	bundle *ModelBundle
	logger *log.Logger
}

// NewPipeline wires the pipeline to a bundle. A nil or partial bundle is
// accepted: every call then fails with ErrServiceUnavailable.
func NewPipeline(bundle *ModelBundle, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{bundle: bundle, logger: logger}
}

// Ready reports whether both artifacts are loaded.
func (p *Pipeline) Ready() bool { return p.bundle.Loaded() }

// Decide runs the pipeline on an untyped {"h","t","m"} payload.
func (p *Pipeline) Decide(payload map[string]any) (model.IrrigationDecision, error) {
	if !p.bundle.Loaded() {
		return model.IrrigationDecision{}, ErrServiceUnavailable
	}

	reading, err := ParseReading(payload)
	if err != nil {
		return model.IrrigationDecision{}, err
	}
	features := Features(reading)

	scaled, err := p.bundle.Scaler.Transform(features)
	if err != nil {
		return model.IrrigationDecision{}, &PredictionError{Stage: "scaler", Err: err}
	}
	label, err := p.bundle.Classifier.Predict(scaled)
	if err != nil {
		return model.IrrigationDecision{}, &PredictionError{Stage: "classifier", Err: err}
	}

	decision, err := assembleDecision(label, reading.Moisture)
	if err != nil {
		p.logger.Printf("predictor: duration error m=%v: %v", reading.Moisture, err)
		return model.IrrigationDecision{}, err
	}

	p.logger.Printf("predictor: features=%v scaled=%v label=%d irrigate=%t",
		features.Values(), []float64(scaled), label, decision.ShouldIrrigate)
	return decision, nil
}
