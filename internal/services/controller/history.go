package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

// HistoryLimit caps the latest-records query.
const HistoryLimit = 100

// InvalidPeriodMessage is the 400 body for an unknown period.
const InvalidPeriodMessage = "Invalid period. Use 24h, 7d, or 30d"

// ErrInvalidPeriod is returned for a period outside 24h, 7d and 30d.
var ErrInvalidPeriod = errors.New("invalid period")

var periods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParsePeriod validates a history period.
func ParsePeriod(s string) (time.Duration, error) {
	d, ok := periods[strings.TrimSpace(s)]
	if !ok {
		return 0, ErrInvalidPeriod
	}
	return d, nil
}

// HistoryStore reads stored records, newest first.
type HistoryStore interface {
	Latest(ctx context.Context, limit int) ([]model.SensorRecord, error)
	Since(ctx context.Context, window time.Duration) ([]model.SensorRecord, error)
}

type InfluxHistory struct {
	query       api.QueryAPI
	bucket      string
	measurement string
}

func NewInfluxHistory(q api.QueryAPI, bucket, measurement string) *InfluxHistory {
	if measurement == "" {
		measurement = "sensor_data"
	}
	return &InfluxHistory{query: q, bucket: bucket, measurement: measurement}
}

func (h *InfluxHistory) Latest(ctx context.Context, limit int) ([]model.SensorRecord, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	return h.run(ctx, buildHistoryFlux(h.bucket, h.measurement, "0", limit))
}

func (h *InfluxHistory) Since(ctx context.Context, window time.Duration) ([]model.SensorRecord, error) {
	start := fmt.Sprintf("-%ds", int64(window/time.Second))
	return h.run(ctx, buildHistoryFlux(h.bucket, h.measurement, start, 0))
}

func (h *InfluxHistory) run(ctx context.Context, flux string) ([]model.SensorRecord, error) {
	res, err := h.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer res.Close()

	out := make([]model.SensorRecord, 0, 32)
	for res.Next() {
		rec := res.Record()
		out = append(out, recordFromValues(rec.Values(), rec.Time()))
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("influx iter: %w", err)
	}
	return out, nil
}

// buildHistoryFlux pivots fields into one row per point. limit <= 0 means
// no limit.
func buildHistoryFlux(bucket, measurement, start string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)`, bucket, start, measurement)
	if limit > 0 {
		fmt.Fprintf(&b, "\n  |> limit(n: %d)", limit)
	}
	return b.String()
}

func recordFromValues(v map[string]interface{}, t time.Time) model.SensorRecord {
	rec := model.SensorRecord{Timestamp: t.UTC()}
	rec.DeviceID, _ = v[tagDeviceID].(string)
	rec.HSoil, _ = number(v[fieldHSoil])
	rec.HSoilPercentage, _ = number(v[fieldHSoilPct])
	rec.T = optNumber(v[fieldTemperature])
	rec.HAir = optNumber(v[fieldHAir])
	rec.Time = optNumber(v[fieldTime])
	if p, ok := number(v[fieldPrediction]); ok {
		pi := int(p)
		rec.Prediction = &pi
	}
	rec.DecisionID, _ = v[fieldDecisionID].(string)
	rec.Error, _ = v[fieldError].(string)
	return rec
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func optNumber(v interface{}) *float64 {
	if f, ok := number(v); ok {
		return &f
	}
	return nil
}
