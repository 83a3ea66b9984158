package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/config"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/controller"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor"
	"github.com/LeonardoBeccarini/irrigation_predictor/pkg/rabbitmq"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("controller: %v", err)
	}
	cc := cfg.Controller

	auth, err := controller.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("controller: %v (set JWT_SECRET)", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MQTT
	hostname, _ := os.Hostname()
	mqClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: fmt.Sprintf("IrrigationController-%s", hostname),
	})
	if err != nil {
		log.Fatalf("controller: MQTT connect failed: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(mqClient)
	publisher := rabbitmq.NewPublisher(mqClient, cc.PumpTopic)
	consumer := rabbitmq.NewConsumer(mqClient, nil, cc.SensorTopic)

	// Predictor
	var pred controller.Predictor
	switch cc.Transport {
	case config.TransportHTTP:
		pred = predictor.NewHTTPClient(cc.PredictorURL, cc.Timeout)
		log.Printf("controller: predictor over http %s", cc.PredictorURL)
	default:
		conn, err := grpc.NewClient(cc.PredictorAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Fatalf("controller: predictor dial: %v", err)
		}
		defer conn.Close()
		pred = predictor.NewGRPCClient(conn)
		log.Printf("controller: predictor over grpc %s", cc.PredictorAddr)
	}

	// Influx
	influx := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influx.Close()
	recorder := controller.NewInfluxRecorder(influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), cfg.Influx.Measurement)
	history := controller.NewInfluxHistory(influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, cfg.Influx.Measurement)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := controller.NewMetrics(reg)

	var ctrl *controller.Controller
	hub := controller.NewHub(func(deviceID, event string, data json.RawMessage) {
		topic := cc.CalibrateTopic
		if event == controller.EventReset {
			topic = cc.ResetTopic
		}
		if err := ctrl.ForwardCommand(topic, deviceID, data); err != nil {
			log.Printf("controller: forward %s for %q: %v", event, deviceID, err)
		}
	}, nil)
	metrics.RegisterClients(reg, hub.Count)

	ctrl, err = controller.NewController(consumer, publisher, pred, recorder, hub, metrics, controller.Config{
		PumpTopic:       cc.PumpTopic,
		DecisionTopic:   cc.DecisionTopic,
		Timeout:         cc.Timeout,
		BreakerFailures: cc.Breaker.MaxFailures,
		BreakerOpenFor:  cc.Breaker.OpenTimeout,
		BreakerInterval: cc.Breaker.Interval,
		DedupTTL:        cc.DedupTTL,
	})
	if err != nil {
		log.Fatalf("controller: init: %v", err)
	}

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cc.HTTPPort),
		Handler: controller.NewHTTPHandler(controller.HTTPDeps{
			History:        history,
			Hub:            hub,
			Auth:           auth,
			MQTT:           mqClient,
			Recorder:       recorder,
			Gatherer:       reg,
			AllowedOrigins: cfg.Predictor.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go hub.Run(ctx)
	go ctrl.Start(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Printf("controller: http listening on %s sub=%s pub=%s", httpSrv.Addr, cc.SensorTopic, cc.PumpTopic)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Printf("controller: shutting down")
	case err := <-errc:
		log.Printf("controller: http: %v", err)
		exitCode = 1
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
