package sensor_simulator

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

var testTopics = Topics{Data: "sensor/data", Pump: "pump/control", Calibrate: "sensor/calibrate", Reset: "sensor/reset"}

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }

type fakePublisher struct {
	topics []string
	bodies [][]byte
}

func (f *fakePublisher) PublishTo(topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, b)
	return nil
}

type timerCall struct {
	d  time.Duration
	fn func()
}

func newTestGenerator(start time.Time) (*DataGenerator, *time.Time) {
	now := start
	g := NewDataGenerator(700, 2)
	g.rnd = rand.New(rand.NewSource(1))
	g.now = func() time.Time { return now }
	return g, &now
}

func newTestSimulator(t *testing.T) (*SensorSimulator, *fakePublisher, *[]timerCall) {
	t.Helper()
	g, _ := newTestGenerator(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	pub := &fakePublisher{}
	sim := NewSensorSimulator(nil, pub, g, &model.Device{ID: "esp-1"}, testTopics)
	var calls []timerCall
	sim.after = func(d time.Duration, fn func()) *time.Timer {
		calls = append(calls, timerCall{d, fn})
		tm := time.NewTimer(time.Hour)
		tm.Stop()
		return tm
	}
	return sim, pub, &calls
}

func TestPercent(t *testing.T) {
	def := model.Device{}
	cal := model.Device{RawDry: 800, RawWet: 300}
	tests := []struct {
		raw  int
		dev  model.Device
		want int
	}{
		{1023, def, 0},
		{0, def, 100},
		{500, def, 51},
		{1200, def, 0},
		{550, cal, 50},
		{200, cal, 100},
		{900, cal, 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.raw, tt.dev); got != tt.want {
			t.Errorf("Percent(%d, dry=%d wet=%d) = %d, want %d", tt.raw, tt.dev.RawDry, tt.dev.RawWet, got, tt.want)
		}
	}
}

func TestGenerator_DriesAndWets(t *testing.T) {
	g, now := newTestGenerator(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	off := model.Device{ID: "esp-1", State: model.PumpOff}
	on := model.Device{ID: "esp-1", State: model.PumpOn}

	r := g.Next(off)
	if r.DeviceID != "esp-1" || *r.SoilValue != 700 || *r.SoilPercent != 31 {
		t.Fatalf("first reading: id=%s soil=%v pct=%v", r.DeviceID, *r.SoilValue, *r.SoilPercent)
	}

	*now = now.Add(10 * time.Minute)
	if r = g.Next(off); *r.SoilValue != 720 {
		t.Errorf("after 10m off: got %v, want 720", *r.SoilValue)
	}

	*now = now.Add(5 * time.Minute)
	if r = g.Next(on); *r.SoilValue != 520 {
		t.Errorf("after 5m on: got %v, want 520", *r.SoilValue)
	}

	*now = now.Add(time.Hour)
	if r = g.Next(on); *r.SoilValue != 0 {
		t.Errorf("clamped: got %v, want 0", *r.SoilValue)
	}

	g.Reset()
	if g.Raw() != 700 {
		t.Errorf("after reset: got %v", g.Raw())
	}
}

func TestApplyPump(t *testing.T) {
	sim, _, calls := newTestSimulator(t)

	sim.applyPump(model.PumpCommand{Pump: model.PumpOn, Duration: 0.5})
	if sim.device.State != model.PumpOn {
		t.Fatalf("state: got %s", sim.device.State)
	}
	if len(*calls) != 1 || (*calls)[0].d != 30*time.Minute {
		t.Fatalf("timer: %+v", *calls)
	}

	sim.applyPump(model.PumpCommand{Pump: model.PumpOn, Duration: 2})
	if len(*calls) != 1 {
		t.Errorf("ON while running must be ignored, timers=%d", len(*calls))
	}

	(*calls)[0].fn()
	if sim.device.State != model.PumpOff {
		t.Errorf("after timer: got %s", sim.device.State)
	}

	sim.applyPump(model.PumpCommand{Pump: model.PumpOn, Duration: -0.2})
	sim.applyPump(model.PumpCommand{Pump: model.PumpOn, Duration: 0})
	if sim.device.State != model.PumpOff || len(*calls) != 1 {
		t.Errorf("non-positive duration started the pump")
	}

	sim.applyPump(model.PumpCommand{Pump: model.PumpOn, Duration: 1})
	sim.applyPump(model.PumpCommand{Pump: model.PumpOff})
	if sim.device.State != model.PumpOff || sim.timer != nil {
		t.Errorf("OFF: state=%s timer=%v", sim.device.State, sim.timer)
	}
}

func TestHandleMessage(t *testing.T) {
	sim, _, calls := newTestSimulator(t)
	on := []byte(`{"pump":"ON","duration":0.25}`)

	if err := sim.handleMessage(testTopics.Pump, fakeMessage{payload: on}); err != nil {
		t.Fatalf("pump: %v", err)
	}
	(*calls)[0].fn()
	// redelivery of the same command is dropped
	if err := sim.handleMessage(testTopics.Pump, fakeMessage{payload: on}); err != nil {
		t.Fatalf("pump: %v", err)
	}
	if sim.device.State != model.PumpOff || len(*calls) != 1 {
		t.Errorf("duplicate applied: state=%s timers=%d", sim.device.State, len(*calls))
	}

	if err := sim.handleMessage(testTopics.Pump, fakeMessage{payload: []byte("nope")}); err == nil {
		t.Error("bad pump payload accepted")
	}

	other := []byte(`{"deviceId":"esp-2","rawDry":900,"rawWet":100}`)
	_ = sim.handleMessage(testTopics.Calibrate, fakeMessage{payload: other})
	if sim.device.RawDry != 1023 {
		t.Errorf("calibrated for another device: %+v", sim.device)
	}

	mine := []byte(`{"deviceId":"esp-1","rawDry":800,"rawWet":300}`)
	_ = sim.handleMessage(testTopics.Calibrate, fakeMessage{payload: mine})
	if sim.device.RawDry != 800 || sim.device.RawWet != 300 {
		t.Errorf("calibrate: %+v", sim.device)
	}

	_ = sim.handleMessage(testTopics.Reset, fakeMessage{payload: []byte(`{}`)})
	if sim.device.RawDry != 1023 || sim.device.RawWet != 0 {
		t.Errorf("reset: %+v", sim.device)
	}
}

func TestPublishReading(t *testing.T) {
	sim, pub, _ := newTestSimulator(t)
	if err := sim.publishReading(); err != nil {
		t.Fatalf("publishReading: %v", err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "sensor/data" {
		t.Fatalf("topics: %v", pub.topics)
	}
	var r model.DeviceReading
	if err := json.Unmarshal(pub.bodies[0], &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.DeviceID != "esp-1" || r.SoilValue == nil || *r.SoilValue != 700 {
		t.Errorf("reading: %+v", r)
	}
}
