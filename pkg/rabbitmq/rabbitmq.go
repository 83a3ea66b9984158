package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eclipse/paho.mqtt.golang"
)

// Config describes the RabbitMQ MQTT listener the services connect to.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// MaxRetries bounds the initial connect attempts (default 5).
	MaxRetries int
	// MaxElapsed bounds the total time spent retrying (default 10s).
	MaxElapsed time.Duration
}

func (cfg *Config) broker() string {
	return fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
}

func (cfg *Config) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.broker())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	// sessione persistente: i messaggi QoS1 non vanno persi durante un riavvio
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost (%s): %v", cfg.ClientID, err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("mqtt: connected %s as %s", cfg.broker(), cfg.ClientID)
	})
	return opts
}

// NewRabbitMQConn connects with exponential backoff and disconnects when ctx
// is cancelled.
func NewRabbitMQConn(ctx context.Context, cfg *Config) (mqtt.Client, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}

	opts := cfg.options()
	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: connect %s failed: %v", cfg.broker(), token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client)
	}()
	return client, nil
}

func CloseRabbitMQConn(client mqtt.Client) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Println("mqtt: connection closed")
	}
}
