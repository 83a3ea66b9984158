package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// ====== Tunables ======
const (
	// wetPerMin: ADC units lost per minute while the pump runs (lower = wetter).
	wetPerMin = 40.0

	adcMax = 1023.0

	// probe defaults, as on the YL-69 firmware: 1023 dry, 0 wet
	defaultRawDry = 1023
	defaultRawWet = 0

	// dhtFailRate: probability that a tick reports no temperature/humidity
	dhtFailRate = 0.02
)

// DataGenerator keeps the simulated soil state and advances it with time.
type DataGenerator struct {
	mu        sync.Mutex
	seeded    bool
	last      time.Time
	raw       float64 // ADC, 0..1023
	seedRaw   float64
	dryPerMin float64
	rnd       *rand.Rand
	now       func() time.Time
}

// NewDataGenerator starts the soil at seedRaw and dries it by dryPerMin ADC
// units per minute while the pump is off.
func NewDataGenerator(seedRaw, dryPerMin float64) *DataGenerator {
	return &DataGenerator{
		seedRaw:   clampADC(seedRaw),
		dryPerMin: math.Max(0, dryPerMin),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// Next advances the soil state for dev and returns a device-shaped reading.
func (g *DataGenerator) Next(dev model.Device) model.DeviceReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.seeded {
		g.raw = g.seedRaw
		g.last = now
		g.seeded = true
	}
	dtMin := math.Max(0, now.Sub(g.last).Minutes())
	g.last = now

	switch dev.State {
	case model.PumpOn:
		g.raw = clampADC(g.raw - wetPerMin*dtMin)
	default:
		g.raw = clampADC(g.raw + g.dryPerMin*dtMin)
	}

	soil := math.Round(g.raw)
	pct := float64(Percent(int(soil), dev))
	r := model.DeviceReading{
		DeviceID:    dev.ID,
		SoilValue:   &soil,
		SoilPercent: &pct,
	}
	if g.rnd.Float64() >= dhtFailRate {
		t := round1(24 + 2*g.rnd.NormFloat64())
		h := round1(55 + 5*g.rnd.NormFloat64())
		r.Temp, r.Humidity = &t, &h
	}
	return r
}

// Reset puts the soil back to the seed value.
func (g *DataGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seeded = false
}

// Raw returns the current soil ADC value.
func (g *DataGenerator) Raw() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded {
		return g.seedRaw
	}
	return g.raw
}

// Percent maps a raw reading onto 0..100 using the device calibration
// (0% at RawDry, 100% at RawWet), integer arithmetic like the firmware.
func Percent(raw int, dev model.Device) int {
	dry, wet := dev.RawDry, dev.RawWet
	if dry == wet {
		dry, wet = defaultRawDry, defaultRawWet
	}
	p := (raw - dry) * 100 / (wet - dry)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func clampADC(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > adcMax {
		return adcMax
	}
	return x
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
