package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, 30*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 3, cfg.Database.UpsertAttempts)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", " Postgres ")
	t.Setenv("DB_WRITER_DSN", "postgres://orderbook@localhost/orderbook")
	t.Setenv("DB_LOCK_TIMEOUT", "2s")
	t.Setenv("DB_UPSERT_ATTEMPTS", "0")
	t.Setenv("OBS_PROMETHEUS_PATH", "prom")
	t.Setenv("OBS_LOG_LEVEL", "")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 1, cfg.Database.UpsertAttempts)
	assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Messaging.Kafka.Brokers)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"http port":        {"HTTP_PORT": "-1"},
		"database driver":  {"DB_DRIVER": "oracle"},
		"messaging driver": {"MESSAGING_ENABLED": "true", "MESSAGING_DRIVER": "nats"},
		"empty dsn":        {"DB_WRITER_DSN": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestEnvMalformedFallsBack(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	assert.Equal(t, 4, envInt("WORKER_CONCURRENCY", 4))

	t.Setenv("DB_UPSERT_BACKOFF", "soon")
	assert.Equal(t, time.Second, envDuration("DB_UPSERT_BACKOFF", time.Second))
}
