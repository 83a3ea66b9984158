package predictor

import "github.com/LeonardoBeccarini/irrigation_predictor/internal/model"

// Defaults substituted when the device reports null.
const (
	DefaultTemperature = 25.0
	DefaultHumidity    = 50.0
)

// Features maps a validated reading onto the fitted feature order.
func Features(r model.SensorReading) model.FeatureVector {
	fv := model.FeatureVector{
		SoilMoisture: r.Moisture,
		Temperature:  DefaultTemperature,
		AirHumidity:  DefaultHumidity,
	}
	if r.Temperature != nil {
		fv.Temperature = *r.Temperature
	}
	if r.Humidity != nil {
		fv.AirHumidity = *r.Humidity
	}
	return fv
}
