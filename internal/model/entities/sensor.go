package entities

// PumpState is the pump relay state as the device firmware spells it.
type PumpState string

const (
	PumpOff PumpState = "OFF"
	PumpOn  PumpState = "ON"
)

// Device represents a single field controller (ESP32 + soil probe + pump relay).
type Device struct {
	ID    string    `json:"id"` // MAC address on real hardware
	State PumpState `json:"state"`
	// probe calibration points (raw ADC values)
	RawWet int `json:"raw_wet,omitempty"`
	RawDry int `json:"raw_dry,omitempty"`
}
