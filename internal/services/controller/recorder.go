package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// Influx fields of the sensor_data measurement.
const (
	tagDeviceID      = "device_id"
	fieldHSoil       = "h_soil"
	fieldHSoilPct    = "h_soil_pct"
	fieldTemperature = "t"
	fieldHAir        = "h_air"
	fieldPrediction  = "prediction"
	fieldTime        = "time"
	fieldDecisionID  = "decision_id"
	fieldError       = "error"
)

// InfluxRecorder writes records synchronously and remembers the last failure
// for /readyz.
type InfluxRecorder struct {
	writeAPI    api.WriteAPIBlocking
	measurement string

	mu      sync.RWMutex
	lastErr time.Time
}

func NewInfluxRecorder(w api.WriteAPIBlocking, measurement string) *InfluxRecorder {
	if measurement == "" {
		measurement = "sensor_data"
	}
	return &InfluxRecorder{
		writeAPI:    w,
		measurement: measurement,
		lastErr:     time.Now().Add(-24 * time.Hour),
	}
}

func (r *InfluxRecorder) Record(ctx context.Context, rec model.SensorRecord) error {
	if err := r.writeAPI.WritePoint(ctx, recordPoint(r.measurement, rec)); err != nil {
		r.mu.Lock()
		r.lastErr = time.Now()
		r.mu.Unlock()
		return fmt.Errorf("influx write: %w", err)
	}
	log.Printf("controller: wrote %s device=%s", r.measurement, rec.DeviceID)
	return nil
}

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (r *InfluxRecorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return time.Since(t)
}

// recordPoint maps a record onto a point; nil values are left out since
// Influx has no null fields.
func recordPoint(measurement string, rec model.SensorRecord) *write.Point {
	fields := map[string]interface{}{
		fieldHSoil:    rec.HSoil,
		fieldHSoilPct: rec.HSoilPercentage,
	}
	if rec.T != nil {
		fields[fieldTemperature] = *rec.T
	}
	if rec.HAir != nil {
		fields[fieldHAir] = *rec.HAir
	}
	if rec.Prediction != nil {
		fields[fieldPrediction] = int64(*rec.Prediction)
	}
	if rec.Time != nil {
		fields[fieldTime] = *rec.Time
	}
	if rec.DecisionID != "" {
		fields[fieldDecisionID] = rec.DecisionID
	}
	if rec.Error != "" {
		fields[fieldError] = rec.Error
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(measurement, map[string]string{tagDeviceID: rec.DeviceID}, fields, ts)
}
