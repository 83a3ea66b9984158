package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/config"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
	sensorSimulator "github.com/LeonardoBeccarini/irrigation_predictor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/rabbitmq"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $CONFIG_PATH)")
	deviceID := flag.String("device-id", "", "device identifier (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}
	sc, cc := cfg.Simulator, cfg.Controller
	if *deviceID != "" {
		sc.DeviceID = *deviceID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: "sensorPublisher-" + sc.DeviceID,
	})
	if err != nil {
		log.Fatalf("sensor: MQTT connect failed: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(client)

	topics := sensorSimulator.Topics{
		Data:      cc.SensorTopic,
		Pump:      cc.PumpTopic,
		Calibrate: cc.CalibrateTopic,
		Reset:     cc.ResetTopic,
	}
	publisher := rabbitmq.NewPublisher(client, topics.Data)
	consumer := rabbitmq.NewConsumer(client, nil, topics.Pump, topics.Calibrate, topics.Reset)

	device := &model.Device{ID: sc.DeviceID, State: model.PumpOff}
	sim := sensorSimulator.NewSensorSimulator(consumer, publisher,
		sensorSimulator.NewDataGenerator(sc.SeedRaw, sc.DryRate), device, topics)

	log.Printf("sensor: simulating %s every %s", sc.DeviceID, sc.Interval)
	sim.Start(ctx, sc.Interval)
}
