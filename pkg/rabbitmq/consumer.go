package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one delivery. A returned error is logged, the message is
// still acknowledged.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches deliveries until ctx is done.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer holds the shared client and a set of topic filters.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
}

// NewConsumer subscribes to one or more topic filters on the shared client.
func NewConsumer(client mqtt.Client, handler Handler, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, handler: handler}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// qosFor: letture, comandi pompa e decisioni viaggiano at-least-once
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/data") ||
		strings.HasPrefix(t, "pump/control") ||
		strings.HasPrefix(t, "event/irrigationDecision") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to every topic and blocks until ctx is cancelled,
// then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				log.Printf("mqtt: no handler set for topic %s", topic)
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				log.Printf("mqtt: handling message on %s: %v", msg.Topic(), err)
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, token.Error())
			continue
		}
		log.Printf("mqtt: subscribed to %s (qos=%d)", topic, qosFor(topic))
	}

	<-ctx.Done()

	if len(c.topics) > 0 {
		c.client.Unsubscribe(c.topics...).Wait()
	}
}
