package predictor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// Payload keys of the inbound request.
const (
	KeyHumidity    = "h"
	KeyTemperature = "t"
	KeyMoisture    = "m"
)

var requiredKeys = []string{KeyHumidity, KeyTemperature, KeyMoisture}

// ParseReading validates an untyped payload. Only key presence is required;
// t and h may be null, m must coerce to a finite number.
func ParseReading(payload map[string]any) (model.SensorReading, error) {
	for _, k := range requiredKeys {
		if _, ok := payload[k]; !ok {
			return model.SensorReading{}, &ValidationError{Field: k, Err: ErrMissingField}
		}
	}

	m, ok := toFloat(payload[KeyMoisture])
	if !ok {
		return model.SensorReading{}, &ValidationError{Field: KeyMoisture, Err: ErrNonNumeric}
	}
	r := model.SensorReading{Moisture: m}

	var err error
	if r.Temperature, err = optionalFloat(payload, KeyTemperature); err != nil {
		return model.SensorReading{}, err
	}
	if r.Humidity, err = optionalFloat(payload, KeyHumidity); err != nil {
		return model.SensorReading{}, err
	}
	return r, nil
}

func optionalFloat(payload map[string]any, key string) (*float64, error) {
	v := payload[key]
	if v == nil {
		return nil, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, &ValidationError{Field: key, Err: ErrNonNumeric}
	}
	return &f, nil
}

// toFloat converte numeri/stringhe/bool -> float64 finito
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
