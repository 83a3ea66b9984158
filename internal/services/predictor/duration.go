package predictor

import (
	"errors"
	"math"
)

// waterBalance holds the drip-line and soil calibration of the field
// (sandy loam, 0..1023 capacitive probe).
type waterBalance struct {
	dripRate   float64 // D
	flowFactor float64 // Q
	efficiency float64 // E
	area       float64 // A
	fc         float64 // field capacity, fraction
	pwp        float64 // permanent wilting point, fraction
	sensorFC   float64 // raw reading at field capacity
	sensorDry  float64 // raw reading at dry soil
}

// sandyLoam must stay a variable: constant arithmetic is exact and would
// round differently from the step-by-step float64 evaluation below.
var sandyLoam = waterBalance{
	dripRate:   0.6,
	flowFactor: 0.1,
	efficiency: 0.9,
	area:       1,
	fc:         0.25,
	pwp:        0.10,
	sensorFC:   200,
	sensorDry:  1023,
}

var errNonFinite = errors.New("non-finite value")

// IrrigationHours converts a raw moisture reading into hours of irrigation.
// The result is not clamped: readings wetter than field capacity give a
// negative duration.
func IrrigationHours(m float64) (float64, error) {
	return sandyLoam.hours(m)
}

// Explicit float64 conversions keep the compiler from fusing multiply-add.
func (w waterBalance) hours(m float64) (float64, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, errNonFinite
	}
	ratio := (w.sensorDry - m) / (w.sensorDry - w.sensorFC)
	mFraction := float64(ratio*(w.fc-w.pwp)) + w.pwp
	fcMinusM := w.fc - mFraction
	t1 := float64(fcMinusM*w.area) * w.dripRate
	t2 := w.efficiency * w.flowFactor
	t := t1 / t2 // in ore
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errNonFinite
	}
	return t, nil
}
