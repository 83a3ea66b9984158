package messages

import "encoding/json"

// DeviceReading is what the field device publishes on sensor/data.
// Temp and Humidity are null when the DHT read failed.
type DeviceReading struct {
	DeviceID    string   `json:"deviceId"`
	Temp        *float64 `json:"temp"`
	Humidity    *float64 `json:"humidity"`
	SoilValue   *float64 `json:"soilValue"`   // raw ADC, 0..1023
	SoilPercent *float64 `json:"soilPercent"` // firmware-side percentage, informative only
}

// PredictPayload builds the untyped predictor request ({"m","t","h"}).
// Nil pointers become JSON null.
func (r DeviceReading) PredictPayload() map[string]any {
	return map[string]any{
		"m": nullable(r.SoilValue),
		"t": nullable(r.Temp),
		"h": nullable(r.Humidity),
	}
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// DecodeDeviceReading decodes a sensor/data payload.
func DecodeDeviceReading(b []byte) (DeviceReading, error) {
	var r DeviceReading
	err := json.Unmarshal(b, &r)
	return r, err
}
