package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/dedup"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/rabbitmq"
)

// Errors recorded and pushed to dashboards.
const (
	PredictionAPIError = "Prediction API error"
	InvalidDataError   = "Invalid MQTT data format"
)

// Predictor asks the predictor service for a decision.
type Predictor interface {
	Predict(ctx context.Context, payload map[string]any) (predictor.Response, error)
}

// Recorder stores one reading with its decision.
type Recorder interface {
	Record(ctx context.Context, rec model.SensorRecord) error
}

// Broadcaster pushes an event to the dashboards watching deviceID; an empty
// deviceID reaches every client.
type Broadcaster interface {
	Broadcast(deviceID, event string, data any)
}

type Config struct {
	PumpTopic     string
	DecisionTopic string // prefix, device id appended
	Timeout       time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	DedupTTL time.Duration

	Logger *log.Logger
}

type Controller struct {
	cfg       Config
	consumer  rabbitmq.IConsumer
	publisher rabbitmq.IPublisher
	predictor Predictor
	breaker   *gobreaker.CircuitBreaker
	recorder  Recorder
	hub       Broadcaster
	deduper   *dedup.Deduper
	metrics   *Metrics
	logger    *log.Logger

	newID func() string
	now   func() time.Time
}

func NewController(
	c rabbitmq.IConsumer,
	p rabbitmq.IPublisher,
	pred Predictor,
	rec Recorder,
	hub Broadcaster,
	metrics *Metrics,
	cfg Config,
) (*Controller, error) {
	if p == nil {
		return nil, errors.New("publisher is nil")
	}
	if pred == nil {
		return nil, errors.New("predictor client is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.PumpTopic == "" {
		cfg.PumpTopic = "pump/control"
	}
	if cfg.DecisionTopic == "" {
		cfg.DecisionTopic = "event/irrigationDecision"
	}

	ctrl := &Controller{
		cfg:       cfg,
		consumer:  c,
		publisher: p,
		predictor: pred,
		recorder:  rec,
		hub:       hub,
		deduper:   dedup.New(cfg.DedupTTL, 20000),
		metrics:   metrics,
		logger:    cfg.Logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	ctrl.breaker = newBreaker("predictor", cfg, ctrl.logger, metrics)
	if c != nil {
		c.SetHandler(ctrl.handleReading)
	}
	return ctrl, nil
}

func newBreaker(name string, cfg Config, logger *log.Logger, m *Metrics) *gobreaker.CircuitBreaker {
	fails := cfg.BreakerFailures
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		// una lettura rifiutata dal predictor non è un guasto del servizio
		IsSuccessful: func(err error) bool {
			var ve *predictor.ValidationError
			return err == nil || errors.As(err, &ve)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("controller: breaker %s %s -> %s", name, from, to)
			m.setBreakerState(to)
		},
	})
}

// Start consumes sensor readings until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) {
	if c.consumer == nil {
		<-ctx.Done()
		return
	}
	c.consumer.ConsumeMessage(ctx)
}

func (c *Controller) handleReading(topic string, msg mqtt.Message) error {
	if !c.deduper.ShouldProcess(dedup.Key(topic, msg.Payload())) {
		c.metrics.reading("duplicate")
		return nil
	}
	r, err := model.DecodeDeviceReading(msg.Payload())
	if err != nil {
		c.logger.Printf("controller: bad payload on %s: %v", topic, err)
		c.metrics.reading("invalid_payload")
		if c.hub != nil {
			c.hub.Broadcast("", EventSensorData, map[string]string{"error": InvalidDataError})
		}
		return nil
	}
	_, err = c.Process(context.Background(), r)
	return err
}

// Process runs one reading through the predictor and fans the result out:
// record, dashboard event, pump command and decision event. A predictor
// failure is recorded with a null prediction and no pump command is sent.
func (c *Controller) Process(ctx context.Context, r model.DeviceReading) (model.SensorRecord, error) {
	rec := model.SensorRecord{
		DeviceID:        r.DeviceID,
		HSoil:           deref(r.SoilValue),
		HSoilPercentage: deref(r.SoilPercent),
		T:               r.Temp,
		HAir:            r.Humidity,
		Timestamp:       c.now().UTC(),
	}

	start := time.Now()
	resp, err := c.predict(ctx, r.PredictPayload())
	c.metrics.observeLatency(time.Since(start))
	if err != nil {
		c.logger.Printf("controller: predictor error device=%s breaker=%s: %v", r.DeviceID, c.breaker.State(), err)
		rec.Error = PredictionAPIError
		c.metrics.reading("predictor_error")
		c.store(ctx, rec)
		c.broadcast(rec)
		return rec, nil
	}

	decision := resp.Decision()
	prediction := decision.Prediction()
	rec.Prediction = &prediction
	rec.Time = decision.DurationHours
	rec.DecisionID = c.newID()
	c.logger.Printf("controller: device=%s m=%v prediction=%d time=%v decision=%s",
		r.DeviceID, rec.HSoil, prediction, fmtHours(rec.Time), rec.DecisionID)

	c.store(ctx, rec)
	c.broadcast(rec)

	cmd := model.NewPumpCommand(decision)
	if err := c.publisher.PublishTo(c.cfg.PumpTopic, cmd); err != nil {
		c.metrics.reading("publish_error")
		return rec, fmt.Errorf("publish pump command: %w", err)
	}
	c.metrics.pumpCommand(cmd.Pump)

	ev := model.IrrigationDecisionEvent{
		DecisionID:     rec.DecisionID,
		DeviceID:       r.DeviceID,
		ShouldIrrigate: decision.ShouldIrrigate,
		DurationHours:  decision.DurationHours,
		Moisture:       rec.HSoil,
		Timestamp:      rec.Timestamp,
	}
	if err := c.publisher.PublishTo(c.decisionTopic(r.DeviceID), ev); err != nil {
		c.logger.Printf("controller: publish decision event %s: %v", rec.DecisionID, err)
	}

	if decision.ShouldIrrigate {
		c.metrics.reading("irrigate")
	} else {
		c.metrics.reading("skip")
	}
	return rec, nil
}

func (c *Controller) predict(ctx context.Context, payload map[string]any) (predictor.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	out, err := c.breaker.Execute(func() (any, error) {
		return c.predictor.Predict(ctx, payload)
	})
	if err != nil {
		return predictor.Response{}, err
	}
	return out.(predictor.Response), nil
}

func (c *Controller) store(ctx context.Context, rec model.SensorRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, rec); err != nil {
		c.logger.Printf("controller: record device=%s: %v", rec.DeviceID, err)
	}
}

func (c *Controller) broadcast(rec model.SensorRecord) {
	if c.hub != nil {
		c.hub.Broadcast(rec.DeviceID, EventSensorData, rec)
	}
}

func (c *Controller) decisionTopic(deviceID string) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return c.cfg.DecisionTopic + "/" + deviceID
}

// ForwardCommand relays a dashboard calibrate/reset request to the devices.
// deviceID, when set, fills the payload's deviceId unless it names one.
func (c *Controller) ForwardCommand(topic, deviceID string, payload []byte) error {
	if deviceID == "" {
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		return c.publisher.PublishTo(topic, payload)
	}
	body := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return fmt.Errorf("command payload must be a JSON object: %w", err)
		}
		if body == nil {
			body = map[string]any{}
		}
	}
	if id, _ := body["deviceId"].(string); id == "" {
		body["deviceId"] = deviceID
	}
	return c.publisher.PublishTo(topic, body)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func fmtHours(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.4fh", *v)
}
