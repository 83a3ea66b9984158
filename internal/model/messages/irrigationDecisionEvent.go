package messages

import "time"

// IrrigationDecisionEvent is published by the controller to record WHY/WHAT was decided.
type IrrigationDecisionEvent struct {
	DecisionID     string    `json:"decision_id"`
	DeviceID       string    `json:"device_id"`
	ShouldIrrigate bool      `json:"should_irrigate"`
	DurationHours  *float64  `json:"duration_hours"`
	Moisture       float64   `json:"moisture"`
	Timestamp      time.Time `json:"timestamp"`
}
