package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/dedup"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/rabbitmq"
)

// Topics used by the simulated device.
type Topics struct {
	Data      string // publish
	Pump      string // subscribe
	Calibrate string // subscribe
	Reset     string // subscribe
}

// calibration is the optional body of a calibrate request.
type calibration struct {
	DeviceID string `json:"deviceId"`
	RawDry   *int   `json:"rawDry"`
	RawWet   *int   `json:"rawWet"`
}

type SensorSimulator struct {
	mu        sync.Mutex
	device    *model.Device
	timer     *time.Timer // single timer
	generator *DataGenerator
	publisher rabbitmq.IPublisher
	consumer  rabbitmq.IConsumer
	deduper   *dedup.Deduper
	topics    Topics

	// after is time.AfterFunc, replaced in tests
	after func(time.Duration, func()) *time.Timer
}

func NewSensorSimulator(consumer rabbitmq.IConsumer, publisher rabbitmq.IPublisher,
	gen *DataGenerator, device *model.Device, topics Topics) *SensorSimulator {
	if device.RawDry == device.RawWet {
		device.RawDry, device.RawWet = defaultRawDry, defaultRawWet
	}
	if device.State == "" {
		device.State = model.PumpOff
	}
	return &SensorSimulator{
		device:    device,
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000), // TTL e cap
		topics:    topics,
		after:     time.AfterFunc,
	}
}

// Start subscribes to pump and maintenance commands and publishes a reading
// every interval until ctx is done.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	if s.consumer != nil {
		s.consumer.SetHandler(s.handleMessage)
		go s.consumer.ConsumeMessage(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopPump()
			return
		case <-ticker.C:
			if err := s.publishReading(); err != nil {
				log.Printf("sensor: publish error: %v", err)
			}
		}
	}
}

func (s *SensorSimulator) publishReading() error {
	r := s.generator.Next(s.snapshot())
	log.Printf("sensor: pub device=%s soil=%v pct=%v", r.DeviceID, deref(r.SoilValue), deref(r.SoilPercent))
	return s.publisher.PublishTo(s.topics.Data, r)
}

func (s *SensorSimulator) snapshot() model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.device
}

func (s *SensorSimulator) handleMessage(topic string, msg mqtt.Message) error {
	// Dedup a payload: redelivery QoS1 ha lo stesso payload → stesso hash
	if s.deduper != nil && !s.deduper.ShouldProcess(dedup.Key(topic, msg.Payload())) {
		return nil
	}

	switch topic {
	case s.topics.Pump:
		var cmd model.PumpCommand
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			return fmt.Errorf("invalid pump command: %w", err)
		}
		s.applyPump(cmd)
	case s.topics.Calibrate:
		var c calibration
		if len(msg.Payload()) > 0 {
			if err := json.Unmarshal(msg.Payload(), &c); err != nil {
				return fmt.Errorf("invalid calibrate request: %w", err)
			}
		}
		if c.DeviceID != "" && c.DeviceID != s.device.ID {
			return nil
		}
		s.calibrate(c)
	case s.topics.Reset:
		var c calibration
		_ = json.Unmarshal(msg.Payload(), &c)
		if c.DeviceID != "" && c.DeviceID != s.device.ID {
			return nil
		}
		s.reset()
	default:
		log.Printf("sensor: unexpected topic %s", topic)
	}
	return nil
}

// applyPump follows the firmware: ON with a positive duration (hours) starts
// the pump unless it is already running; OFF stops it.
func (s *SensorSimulator) applyPump(cmd model.PumpCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Pump {
	case model.PumpOn:
		if cmd.Duration <= 0 {
			return
		}
		if s.device.State == model.PumpOn {
			log.Printf("sensor: pump already running on %s, ignoring ON", s.device.ID)
			return
		}
		d := time.Duration(cmd.Duration * float64(time.Hour))
		s.device.State = model.PumpOn
		log.Printf("sensor: %s pump ON for %s", s.device.ID, d)
		s.timer = s.after(d, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.device.State = model.PumpOff
			s.timer = nil
			log.Printf("sensor: %s pump OFF (timer)", s.device.ID)
		})
	case model.PumpOff:
		s.stopLocked()
	}
}

func (s *SensorSimulator) stopPump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *SensorSimulator) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.device.State == model.PumpOn {
		log.Printf("sensor: %s pump OFF", s.device.ID)
	}
	s.device.State = model.PumpOff
}

// calibrate sets the probe reference points; missing ones keep their value.
func (s *SensorSimulator) calibrate(c calibration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dry, wet := s.device.RawDry, s.device.RawWet
	if c.RawDry != nil {
		dry = *c.RawDry
	}
	if c.RawWet != nil {
		wet = *c.RawWet
	}
	if dry == wet {
		log.Printf("sensor: calibrate %s ignored, dry == wet (%d)", s.device.ID, dry)
		return
	}
	s.device.RawDry, s.device.RawWet = dry, wet
	log.Printf("sensor: %s calibrated dry=%d wet=%d", s.device.ID, dry, wet)
}

// reset stops the pump, restores the default calibration and reseeds the soil.
func (s *SensorSimulator) reset() {
	s.mu.Lock()
	s.stopLocked()
	s.device.RawDry, s.device.RawWet = defaultRawDry, defaultRawWet
	s.mu.Unlock()
	s.generator.Reset()
	log.Printf("sensor: %s reset", s.device.ID)
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
