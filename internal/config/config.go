// Package config loads the settings shared by the predictor, the controller
// and the simulator. Values come from built-in defaults, then an optional
// YAML file, then a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Predictor transports understood by the controller.
const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)

type Config struct {
	Predictor  PredictorConfig  `yaml:"predictor"`
	Controller ControllerConfig `yaml:"controller"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Influx     InfluxConfig     `yaml:"influx"`
	Auth       AuthConfig       `yaml:"auth"`
}

type PredictorConfig struct {
	HTTPPort       int      `yaml:"http_port"`
	GRPCPort       int      `yaml:"grpc_port"`
	ScalerPath     string   `yaml:"scaler_path"`
	ModelPath      string   `yaml:"model_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ControllerConfig struct {
	HTTPPort int `yaml:"http_port"`

	// Transport selects how the controller reaches the predictor: grpc | http.
	Transport     string        `yaml:"transport"`
	PredictorURL  string        `yaml:"predictor_url"`  // es. http://predictor:5000
	PredictorAddr string        `yaml:"predictor_addr"` // es. predictor:50051
	Timeout       time.Duration `yaml:"timeout"`

	SensorTopic    string `yaml:"sensor_topic"`
	PumpTopic      string `yaml:"pump_topic"`
	DecisionTopic  string `yaml:"decision_topic"` // prefix, device id appended
	CalibrateTopic string `yaml:"calibrate_topic"`
	ResetTopic     string `yaml:"reset_topic"`

	Breaker  BreakerConfig `yaml:"breaker"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// BreakerConfig tunes the circuit breaker on controller -> predictor calls.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	Interval    time.Duration `yaml:"interval"`
}

type SimulatorConfig struct {
	DeviceID string        `yaml:"device_id"`
	Interval time.Duration `yaml:"interval"`
	SeedRaw  float64       `yaml:"seed_raw"`    // starting soil ADC value, 0..1023
	DryRate  float64       `yaml:"dry_per_min"` // ADC units gained per minute with the pump off
}

type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens on the controller API.
	JWTSecret string `yaml:"jwt_secret"`
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Predictor: PredictorConfig{
			HTTPPort:       5000,
			GRPCPort:       50051,
			ScalerPath:     "artifacts/scaler.json",
			ModelPath:      "artifacts/forest.json",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Controller: ControllerConfig{
			HTTPPort:       5001,
			Transport:      TransportGRPC,
			PredictorURL:   "http://localhost:5000",
			PredictorAddr:  "localhost:50051",
			Timeout:        3 * time.Second,
			SensorTopic:    "sensor/data",
			PumpTopic:      "pump/control",
			DecisionTopic:  "event/irrigationDecision",
			CalibrateTopic: "sensor/calibrate",
			ResetTopic:     "sensor/reset",
			Breaker: BreakerConfig{
				MaxFailures: 3,
				OpenTimeout: 10 * time.Second,
				Interval:    60 * time.Second,
			},
			DedupTTL: 2 * time.Minute,
		},
		Simulator: SimulatorConfig{
			DeviceID: "esp32-1",
			Interval: 5 * time.Second,
			SeedRaw:  700,
			DryRate:  2,
		},
		MQTT: MQTTConfig{Host: "localhost", Port: 1883, User: "guest", Password: "guest"},
		Influx: InfluxConfig{
			URL:         "http://localhost:8086",
			Org:         "irrigation",
			Bucket:      "sensors",
			Measurement: "sensor_data",
		},
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_PATH
// is consulted; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	setString(&c.Predictor.ScalerPath, "SCALER_PATH")
	setString(&c.Predictor.ModelPath, "MODEL_PATH")
	setInt(&c.Predictor.HTTPPort, "PREDICTOR_HTTP_PORT")
	setInt(&c.Predictor.GRPCPort, "PREDICTOR_GRPC_PORT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Predictor.AllowedOrigins = splitList(v)
	}

	setInt(&c.Controller.HTTPPort, "CONTROLLER_PORT")
	setString(&c.Controller.Transport, "PREDICTOR_TRANSPORT")
	setString(&c.Controller.PredictorURL, "PREDICT_URL")
	setString(&c.Controller.PredictorAddr, "PREDICTOR_ADDR")
	setMillis(&c.Controller.Timeout, "TIMEOUT_MS")
	setString(&c.Controller.SensorTopic, "SENSOR_TOPIC")
	setString(&c.Controller.PumpTopic, "PUMP_TOPIC")
	setString(&c.Controller.DecisionTopic, "DECISION_TOPIC")
	setInt(&c.Controller.Breaker.MaxFailures, "CB_FAILS")
	setMillis(&c.Controller.Breaker.OpenTimeout, "CB_OPEN_MS")
	setMillis(&c.Controller.Breaker.Interval, "CB_INTERVAL_MS")

	setString(&c.Simulator.DeviceID, "SIM_DEVICE_ID")
	setMillis(&c.Simulator.Interval, "SIM_INTERVAL_MS")
	setFloat(&c.Simulator.SeedRaw, "SIM_SEED_RAW")

	setString(&c.MQTT.Host, "RABBITMQ_HOST")
	setInt(&c.MQTT.Port, "RABBITMQ_PORT")
	setString(&c.MQTT.User, "RABBITMQ_USER")
	setString(&c.MQTT.Password, "RABBITMQ_PASSWORD")

	setString(&c.Influx.URL, "INFLUX_URL")
	setString(&c.Influx.Token, "INFLUX_TOKEN")
	setString(&c.Influx.Org, "INFLUX_ORG")
	setString(&c.Influx.Bucket, "INFLUX_BUCKET")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	ports := map[string]int{
		"predictor.http_port":  c.Predictor.HTTPPort,
		"predictor.grpc_port":  c.Predictor.GRPCPort,
		"controller.http_port": c.Controller.HTTPPort,
		"mqtt.port":            c.MQTT.Port,
	}
	for name, p := range ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("%s %d out of range", name, p)
		}
	}
	switch c.Controller.Transport {
	case TransportGRPC, TransportHTTP:
	default:
		return fmt.Errorf("controller.transport %q: want %s or %s", c.Controller.Transport, TransportGRPC, TransportHTTP)
	}
	if c.Controller.Timeout <= 0 {
		return errors.New("controller.timeout must be positive")
	}
	if c.Controller.Breaker.MaxFailures <= 0 {
		return errors.New("controller.breaker.max_failures must be positive")
	}
	if c.Simulator.Interval <= 0 {
		return errors.New("simulator.interval must be positive")
	}
	if c.Simulator.SeedRaw < 0 || c.Simulator.SeedRaw > 1023 {
		return fmt.Errorf("simulator.seed_raw %v out of range 0..1023", c.Simulator.SeedRaw)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	var ms int
	setInt(&ms, key)
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
