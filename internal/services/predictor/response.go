package predictor

import "github.com/LeonardoBeccarini/irrigation_predictor/internal/model"

// Response is the success body of /predict. Prediction is 1 when the pump
// should run, Time the duration in hours (null otherwise).
type Response struct {
	Prediction int      `json:"prediction"`
	Time       *float64 `json:"time"`
}

// ErrorResponse is the failure body of /predict.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewResponse(d model.IrrigationDecision) Response {
	return Response{Prediction: d.Prediction(), Time: d.DurationHours}
}

// Decision converts the wire body back into a decision.
func (r Response) Decision() model.IrrigationDecision {
	if r.Prediction != 1 {
		return model.IrrigationDecision{ShouldIrrigate: false}
	}
	return model.IrrigationDecision{ShouldIrrigate: true, DurationHours: r.Time}
}
