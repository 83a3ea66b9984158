package entities

// Feature names, in the order the scaler and classifier were fitted with.
const (
	FeatureSoilMoisture = "Soil Moisture"
	FeatureTemperature  = "Temperature"
	FeatureAirHumidity  = "Air Humidity"
)

// FeatureNames lists the fitted column order.
var FeatureNames = [3]string{FeatureSoilMoisture, FeatureTemperature, FeatureAirHumidity}

// SensorReading is a validated reading. Temperature and Humidity are nil
// when the device reported null.
type SensorReading struct {
	Moisture    float64  `json:"m"` // raw probe value, ~0..1023 (higher = drier)
	Temperature *float64 `json:"t"` // °C
	Humidity    *float64 `json:"h"` // %
}

// FeatureVector is the model input, fixed order [soil moisture, temperature, air humidity].
type FeatureVector struct {
	SoilMoisture float64 `json:"soil_moisture"`
	Temperature  float64 `json:"temperature"`
	AirHumidity  float64 `json:"air_humidity"`
}

// Values returns the vector in fitted column order.
func (f FeatureVector) Values() []float64 {
	return []float64{f.SoilMoisture, f.Temperature, f.AirHumidity}
}

// ScaledFeatureVector is the scaler output, same arity as FeatureVector.
type ScaledFeatureVector []float64
