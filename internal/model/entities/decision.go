package entities

// IrrigationDecision is the pipeline result. DurationHours is set iff ShouldIrrigate.
type IrrigationDecision struct {
	ShouldIrrigate bool     `json:"should_irrigate"`
	DurationHours  *float64 `json:"duration_hours,omitempty"`
}

// Prediction is the wire flag: 1 irrigate, 0 not.
func (d IrrigationDecision) Prediction() int {
	if d.ShouldIrrigate {
		return 1
	}
	return 0
}
