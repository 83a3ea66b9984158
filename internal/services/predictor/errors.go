package predictor

import (
	"errors"
	"fmt"
	"net/http"
)

// UnavailableMessage is the error body returned while artifacts are missing.
const UnavailableMessage = "Model or scaler not loaded"

// ErrServiceUnavailable is returned by every pipeline call when the scaler
// or the classifier failed to load at startup.
var ErrServiceUnavailable = errors.New("model or scaler not loaded")

var (
	ErrMissingField = errors.New("missing required field")
	ErrNonNumeric   = errors.New("non-numeric value")
)

// ValidationError reports a malformed payload. Client-caused, not retryable.
type ValidationError struct {
	Field string
	Err   error // ErrMissingField | ErrNonNumeric
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PredictionError wraps a scaler or classifier failure.
type PredictionError struct {
	Stage string // "scaler" | "classifier"
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// CalculationError wraps a duration failure after a successful classification.
type CalculationError struct {
	Err error
}

// calculationPrefix starts every CalculationError message.
const calculationPrefix = "Error calculating irrigation duration: "

func (e *CalculationError) Error() string {
	return calculationPrefix + e.Err.Error()
}

func (e *CalculationError) Unwrap() error { return e.Err }

// HTTPStatus maps a pipeline error onto the response status.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &ve):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage is the text placed in {"error": ...}.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrServiceUnavailable) {
		return UnavailableMessage
	}
	return err.Error()
}

// Outcome labels a pipeline result for metrics and logs.
func Outcome(irrigate bool, err error) string {
	var (
		ve *ValidationError
		ce *CalculationError
	)
	switch {
	case err == nil && irrigate:
		return "irrigate"
	case err == nil:
		return "skip"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ce):
		return "calculation_error"
	default:
		return "prediction_error"
	}
}
