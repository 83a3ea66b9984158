package messages

import "time"

// SensorRecord is one stored reading with the decision taken for it.
// Prediction and Time are nil when the predictor could not answer.
type SensorRecord struct {
	DeviceID        string    `json:"deviceId"`
	HSoil           float64   `json:"h_soil"`
	HSoilPercentage float64   `json:"h_soil_pourcentage"`
	T               *float64  `json:"t"`
	HAir            *float64  `json:"h_air"`
	Prediction      *int      `json:"prediction"`
	Time            *float64  `json:"time"`
	DecisionID      string    `json:"decision_id,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
