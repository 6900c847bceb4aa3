package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "health.data.ingested", cfg.IngestTopic)
	require.Equal(t, "health-aggregation-worker", cfg.ConsumerGroupID)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.AutoMigrate)
	require.Equal(t, 3, cfg.WorkerAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("WORKER_ATTEMPTS", "5")
	t.Setenv("WORKER_BACKOFF", "250ms")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := Load()

	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5, cfg.WorkerAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.WorkerBackoff)
	require.False(t, cfg.AutoMigrate)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("WORKER_ATTEMPTS", "many")
	t.Setenv("WORKER_BACKOFF", "soon")

	cfg := Load()

	require.Equal(t, 3, cfg.WorkerAttempts)
	require.Equal(t, time.Second, cfg.WorkerBackoff)
}
