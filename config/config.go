package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Values come from the YAML file,
// then environment variables (optionally loaded from .env) override them.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Events        EventsConfig        `yaml:"events"`
	Points        PointsConfig        `yaml:"points"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
}

// NATSConfig configures the request/reply transport.
type NATSConfig struct {
	Enabled        bool          `yaml:"enabled" env:"NATS_ENABLED"`
	URL            string        `yaml:"url" env:"NATS_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NATS_REQUEST_TIMEOUT"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS"`
	RateLimit       float64       `yaml:"rate_limit" env:"HTTP_RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"HTTP_RATE_BURST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

// EventsConfig selects where domain events go. "memory" keeps them in
// process for the audit consumer, "nats" publishes them over NATS.
type EventsConfig struct {
	Transport string `yaml:"transport" env:"EVENTS_TRANSPORT"`
	JetStream bool   `yaml:"jetstream" env:"EVENTS_JETSTREAM"`
	Stream    string `yaml:"stream" env:"EVENTS_STREAM"`
}

type PointsConfig struct {
	MaxBatchSize int `yaml:"max_batch_size" env:"POINTS_MAX_BATCH_SIZE"`
	// Defaults maps a rule category to its service-wide award value.
	Defaults map[string]int `yaml:"defaults"`
}

type ObservabilityConfig struct {
	ServiceName    string  `yaml:"service_name" env:"SERVICE_NAME"`
	Version        string  `yaml:"version" env:"SERVICE_VERSION"`
	Environment    string  `yaml:"environment" env:"ENV"`
	LogLevel       string  `yaml:"log_level" env:"LOG_LEVEL"`
	MetricsEnabled bool    `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	SampleRate     float64 `yaml:"sample_rate" env:"OTLP_SAMPLE_RATE"`
}

// Default returns the configuration used for any value left unset.
func Default() Config {
	return Config{
		Postgres: PostgresConfig{MaxOpenConns: 20},
		NATS:     NATSConfig{URL: "nats://localhost:4222", RequestTimeout: 10 * time.Second},
		HTTP: HTTPConfig{
			Address:         ":8080",
			RateLimit:       5,
			RateBurst:       10,
			ShutdownTimeout: 10 * time.Second,
		},
		Events: EventsConfig{Transport: "memory", Stream: "POINTS_EVENTS"},
		Points: PointsConfig{MaxBatchSize: 100},
		Observability: ObservabilityConfig{
			ServiceName:    "points-ledger",
			Version:        "dev",
			Environment:    "development",
			LogLevel:       "info",
			MetricsEnabled: true,
			SampleRate:     0.1,
		},
	}
}

// LoadConfig reads filename if it exists, then applies .env and process
// environment overrides. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.NATS.RequestTimeout <= 0 {
		errs = append(errs, errors.New("nats.request_timeout must be positive"))
	}
	if c.Points.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("points.max_batch_size must be positive"))
	}
	for category, value := range c.Points.Defaults {
		if value < 0 {
			errs = append(errs, fmt.Errorf("points.defaults.%s must not be negative", category))
		}
	}
	switch c.Events.Transport {
	case "memory":
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats event transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.transport %q must be memory or nats", c.Events.Transport))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, errors.New("observability.sample_rate must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
