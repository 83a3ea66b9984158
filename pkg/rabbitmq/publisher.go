package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// IPublisher publishes a payload on a topic.
type IPublisher interface {
	PublishTo(topic string, payload any) error
}

// Publisher sends on the shared client. Payloads that are not string or
// []byte are JSON encoded.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher creates a publisher whose PublishMessage targets topic.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage publishes on the default topic.
func (p *Publisher) PublishMessage(payload any) error {
	return p.PublishTo(p.topic, payload)
}

func (p *Publisher) PublishTo(topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, qosFor(topic), false, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	log.Printf("mqtt: published to %s: %s", topic, body)
	return nil
}

func encode(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return b, nil
	}
}
