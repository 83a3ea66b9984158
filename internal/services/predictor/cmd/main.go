package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/config"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/services/predictor/artifact"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("predictor: %v", err)
	}
	pc := cfg.Predictor

	// un artefatto mancante non blocca l'avvio: ogni richiesta risponde 503
	bundle, err := artifact.LoadBundle(pc.ScalerPath, pc.ModelPath)
	if err != nil {
		log.Printf("predictor: artifacts not loaded, serving unavailable: %v", err)
	} else {
		log.Printf("predictor: artifacts loaded scaler=%s model=%s", pc.ScalerPath, pc.ModelPath)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := predictor.NewMetrics(reg)
	pipeline := predictor.NewPipeline(bundle, nil)

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", pc.HTTPPort),
		Handler: predictor.NewHTTPHandler(pipeline, metrics, predictor.HTTPConfig{
			AllowedOrigins: pc.AllowedOrigins,
			Gatherer:       reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	predictor.RegisterPredictorServer(grpcSrv, predictor.NewGRPCServer(pipeline, metrics))
	hs := health.NewServer()
	servingStatus := healthpb.HealthCheckResponse_SERVING
	if !pipeline.Ready() {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(predictor.ServiceName, servingStatus)
	healthpb.RegisterHealthServer(grpcSrv, hs)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", pc.GRPCPort))
	if err != nil {
		log.Fatalf("predictor: listen grpc: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	go func() {
		log.Printf("predictor: http listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		log.Printf("predictor: grpc listening on %s", lis.Addr())
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc: %w", err)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Printf("predictor: shutting down")
	case err := <-errc:
		log.Printf("predictor: %v", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
