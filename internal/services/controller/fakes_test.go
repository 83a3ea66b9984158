package controller

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor"
)

type fakePredictor struct {
	mu       sync.Mutex
	calls    int
	payloads []map[string]any
	resp     predictor.Response
	err      error
}

func (f *fakePredictor) Predict(_ context.Context, payload map[string]any) (predictor.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.resp, f.err
}

type sentMessage struct {
	topic string
	body  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakePublisher) PublishTo(topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	default:
		body, _ = json.Marshal(v)
	}
	f.sent = append(f.sent, sentMessage{topic: topic, body: body})
	return nil
}

func (f *fakePublisher) on(topic string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []model.SensorRecord
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, rec model.SensorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

type broadcastCall struct {
	deviceID string
	event    string
	data     any
}

type fakeHub struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (f *fakeHub) Broadcast(deviceID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{deviceID, event, data})
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

var fixedNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
