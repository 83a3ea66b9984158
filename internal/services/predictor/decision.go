package predictor

import "github.com/LeonardoBeccarini/irrigation_predictor/internal/model"

// IrrigateLabel is the classifier label meaning "irrigation needed".
// The training set encodes the positive case as 0.
const IrrigateLabel = 0

// IsIrrigationNeeded maps a classifier label onto the decision flag.
func IsIrrigationNeeded(label int) bool {
	return label == IrrigateLabel
}

// assembleDecision builds the decision from the label; the duration uses the
// raw moisture, not the scaled or defaulted feature.
func assembleDecision(label int, rawMoisture float64) (model.IrrigationDecision, error) {
	if !IsIrrigationNeeded(label) {
		return model.IrrigationDecision{ShouldIrrigate: false}, nil
	}
	hours, err := IrrigationHours(rawMoisture)
	if err != nil {
		return model.IrrigationDecision{}, &CalculationError{Err: err}
	}
	return model.IrrigationDecision{ShouldIrrigate: true, DurationHours: &hours}, nil
}
