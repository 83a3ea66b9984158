package messages

import "github.com/LeonardoBeccarini/irrigation_predictor/internal/model/entities"

// PumpCommand is published on pump/control. Duration is in hours
// (the firmware multiplies by 3600) and is 0 for OFF.
type PumpCommand struct {
	Pump     entities.PumpState `json:"pump"`
	Duration float64            `json:"duration"`
}

// NewPumpCommand maps a decision onto the pump relay command.
func NewPumpCommand(d entities.IrrigationDecision) PumpCommand {
	if d.ShouldIrrigate && d.DurationHours != nil {
		return PumpCommand{Pump: entities.PumpOn, Duration: *d.DurationHours}
	}
	return PumpCommand{Pump: entities.PumpOff, Duration: 0}
}
