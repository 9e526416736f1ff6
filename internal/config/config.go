package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host string
	Port int
}

// GRPC holds gRPC health server configuration.
type GRPC struct {
	Enabled bool
	Host    string
	Port    int
}

// Messaging configures the order feed bus.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	Topic          string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures feed consumer concurrency.
type Worker struct {
	Enabled     bool
	Concurrency int
}

// Database holds connection and consistency settings for the store.
type Database struct {
	Driver          string
	WriterDSN       string
	ReaderDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration

	// LockTimeout bounds how long a statement waits on a locked row or table
	// before failing with ErrStoreUnavailable.
	LockTimeout time.Duration
	// UpsertAttempts bounds the insert-or-ignore/lookup loop.
	UpsertAttempts int
	UpsertBackoff  time.Duration
}

// Loader configures the bulk loader.
type Loader struct {
	FeedPath string
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName     string
	Environment     string
	LogLevel        string
	LogEncoding     string
	EnableTracing   bool
	TraceExporter   string
	TraceEndpoint   string
	TraceInsecure   bool
	EnableMetrics   bool
	MetricsExporter string
	PrometheusPath  string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Messaging     Messaging
	Database      Database
	Loader        Loader
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables (and an optional .env file).
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		HTTP: HTTP{
			Host: envString("HTTP_HOST", "0.0.0.0"),
			Port: envInt("HTTP_PORT", 8080),
		},
		GRPC: GRPC{
			Enabled: envBool("GRPC_ENABLED", true),
			Host:    envString("GRPC_HOST", "0.0.0.0"),
			Port:    envInt("GRPC_PORT", 9090),
		},
		Messaging: Messaging{
			Driver:  envString("MESSAGING_DRIVER", "kafka"),
			Enabled: envBool("MESSAGING_ENABLED", false),
			Kafka: Kafka{
				Brokers:        envList("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       envString("KAFKA_CLIENT_ID", "orderbook"),
				Topic:          envString("KAFKA_TOPIC", "orders.feed"),
				CommitInterval: envDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       envInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       envInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: envDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: envString("KAFKA_CONSUMER_GROUP", "orderbook-loader"),
			Workers: Worker{
				Enabled:     envBool("WORKER_ENABLED", true),
				Concurrency: envInt("WORKER_CONCURRENCY", 1),
			},
		},
		Database: Database{
			Driver:          envString("DB_DRIVER", "sqlite"),
			WriterDSN:       envString("DB_WRITER_DSN", "file:db.sqlite"),
			ReaderDSN:       envString("DB_READER_DSN", ""),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
			MaxConnLifetime: envDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			LockTimeout:     envDuration("DB_LOCK_TIMEOUT", 30*time.Second),
			UpsertAttempts:  envInt("DB_UPSERT_ATTEMPTS", 3),
			UpsertBackoff:   envDuration("DB_UPSERT_BACKOFF", 10*time.Millisecond),
		},
		Loader: Loader{
			FeedPath: envString("LOADER_FEED_PATH", "example_orders.json"),
		},
		Observability: Observability{
			ServiceName:     envString("OBS_SERVICE_NAME", "orderbook"),
			Environment:     envString("OBS_ENVIRONMENT", "local"),
			LogLevel:        envString("OBS_LOG_LEVEL", "info"),
			LogEncoding:     envString("OBS_LOG_ENCODING", "json"),
			EnableTracing:   envBool("OBS_ENABLE_TRACING", false),
			TraceExporter:   envString("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:   envString("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:   envBool("OBS_OTLP_INSECURE", true),
			EnableMetrics:   envBool("OBS_ENABLE_METRICS", true),
			MetricsExporter: envString("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:  envString("OBS_PROMETHEUS_PATH", "/metrics"),
		},
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}
	if cfg.GRPC.Enabled && cfg.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	obs := &cfg.Observability
	obs.LogLevel = normalize(obs.LogLevel, "info")
	obs.LogEncoding = normalize(obs.LogEncoding, "json")
	obs.TraceExporter = normalize(obs.TraceExporter, "stdout")
	obs.MetricsExporter = normalize(obs.MetricsExporter, "prometheus")
	if obs.PrometheusPath == "" {
		obs.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(obs.PrometheusPath, "/") {
		obs.PrometheusPath = "/" + obs.PrometheusPath
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}
	switch cfg.Messaging.Driver {
	case "kafka":
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	case "noop":
	default:
		return fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}

	db := &cfg.Database
	db.Driver = normalize(db.Driver, "sqlite")
	switch db.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
	if db.WriterDSN == "" {
		return fmt.Errorf("missing DB_WRITER_DSN")
	}
	if db.ReaderDSN == "" {
		db.ReaderDSN = db.WriterDSN
	}
	if db.LockTimeout <= 0 {
		db.LockTimeout = 30 * time.Second
	}
	if db.UpsertAttempts <= 0 {
		db.UpsertAttempts = 1
	}
	if db.UpsertBackoff <= 0 {
		db.UpsertBackoff = 10 * time.Millisecond
	}

	return nil
}
