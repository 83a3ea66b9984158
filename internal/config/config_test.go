package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Predictor.HTTPPort != 5000 || cfg.Predictor.GRPCPort != 50051 {
		t.Errorf("predictor ports: got %d/%d", cfg.Predictor.HTTPPort, cfg.Predictor.GRPCPort)
	}
	if cfg.Controller.SensorTopic != "sensor/data" || cfg.Controller.PumpTopic != "pump/control" {
		t.Errorf("topics: got %q %q", cfg.Controller.SensorTopic, cfg.Controller.PumpTopic)
	}
	if cfg.Controller.Transport != TransportGRPC {
		t.Errorf("transport: got %q", cfg.Controller.Transport)
	}
	if cfg.Influx.Measurement != "sensor_data" {
		t.Errorf("measurement: got %q", cfg.Influx.Measurement)
	}
	if len(cfg.Predictor.AllowedOrigins) != 2 {
		t.Errorf("origins: got %v", cfg.Predictor.AllowedOrigins)
	}
}

func TestLoad_YAML(t *testing.T) {
	p := writeConfig(t, `predictor:
  http_port: 6000
  model_path: /models/forest.json
controller:
  transport: http
  timeout: 1500ms
  breaker:
    max_failures: 5
    open_timeout: 30s
mqtt:
  host: broker
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Predictor.HTTPPort != 6000 {
		t.Errorf("http_port: got %d, want 6000", cfg.Predictor.HTTPPort)
	}
	if cfg.Predictor.ModelPath != "/models/forest.json" {
		t.Errorf("model_path: got %q", cfg.Predictor.ModelPath)
	}
	if cfg.Predictor.ScalerPath != "artifacts/scaler.json" {
		t.Errorf("scaler_path default lost: got %q", cfg.Predictor.ScalerPath)
	}
	if cfg.Controller.Transport != TransportHTTP || cfg.Controller.Timeout != 1500*time.Millisecond {
		t.Errorf("controller: got %q %v", cfg.Controller.Transport, cfg.Controller.Timeout)
	}
	if cfg.Controller.Breaker.MaxFailures != 5 || cfg.Controller.Breaker.OpenTimeout != 30*time.Second {
		t.Errorf("breaker: got %+v", cfg.Controller.Breaker)
	}
	if cfg.Controller.Breaker.Interval != 60*time.Second {
		t.Errorf("breaker interval default lost: got %v", cfg.Controller.Breaker.Interval)
	}
	if cfg.MQTT.Host != "broker" || cfg.MQTT.Port != 1883 {
		t.Errorf("mqtt: got %+v", cfg.MQTT)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	p := writeConfig(t, `mqtt:
  host: broker
influx:
  bucket: from-yaml
`)
	t.Setenv("RABBITMQ_HOST", "rabbit")
	t.Setenv("RABBITMQ_PORT", "1884")
	t.Setenv("INFLUX_BUCKET", "from-env")
	t.Setenv("CB_OPEN_MS", "2500")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SIM_SEED_RAW", "450.5")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Host != "rabbit" || cfg.MQTT.Port != 1884 {
		t.Errorf("mqtt: got %+v", cfg.MQTT)
	}
	if cfg.Influx.Bucket != "from-env" {
		t.Errorf("bucket: got %q", cfg.Influx.Bucket)
	}
	if cfg.Controller.Breaker.OpenTimeout != 2500*time.Millisecond {
		t.Errorf("open timeout: got %v", cfg.Controller.Breaker.OpenTimeout)
	}
	if got := cfg.Predictor.AllowedOrigins; len(got) != 2 || got[1] != "http://b.example" {
		t.Errorf("origins: got %v", got)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret: got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Simulator.SeedRaw != 450.5 {
		t.Errorf("seed raw: got %v", cfg.Simulator.SeedRaw)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "controller:\n  http_port: 7001\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.HTTPPort != 7001 {
		t.Errorf("http_port: got %d", cfg.Controller.HTTPPort)
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"bad port":      "predictor:\n  grpc_port: 70000\n",
		"bad transport": "controller:\n  transport: amqp\n",
		"bad breaker":   "controller:\n  breaker:\n    max_failures: 0\n",
		"bad seed":      "simulator:\n  seed_raw: 2000\n",
		"bad yaml":      "predictor: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
