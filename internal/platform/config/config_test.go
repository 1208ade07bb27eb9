package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("OCR_BASE_URL", "http://ocr.local")
	t.Setenv("OCR_SIGNING_KEY", "secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 3, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 8*time.Second, cfg.OCR.StatusTimeout)
	assert.Equal(t, 5*time.Second, cfg.OCR.CoupleValidationTimeout)
	assert.Equal(t, 2*time.Second, cfg.Reconcile.SettleDelay)
	assert.Equal(t, 5.0, cfg.Reconcile.QueriesPerSec)
	assert.Equal(t, TransportRedis, cfg.Realtime.Transport)
	assert.Equal(t, "docgen", cfg.Realtime.ChannelPrefix)
	assert.Equal(t, 3, cfg.Realtime.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Realtime.BreakerCooldown)
	assert.Empty(t, cfg.Postgres.URL)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REALTIME_TRANSPORT", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PIPELINE_CHUNK_SIZE", "5")
	t.Setenv("REFRESH_SETTLE_DELAY", "500ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, TransportKafka, cfg.Realtime.Transport)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconcile.SettleDelay)
}

func TestFromEnvErrors(t *testing.T) {
	t.Run("missing ocr settings", func(t *testing.T) {
		t.Setenv("REALTIME_TRANSPORT", "none")
		t.Setenv("OCR_BASE_URL", "")
		t.Setenv("OCR_SIGNING_KEY", "")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OCR_BASE_URL is required")
		assert.Contains(t, err.Error(), "OCR_SIGNING_KEY is required")
	})

	t.Run("malformed values are reported", func(t *testing.T) {
		setRequired(t)
		t.Setenv("OCR_STATUS_TIMEOUT", "soon")
		t.Setenv("BREAKER_THRESHOLD", "three")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OCR_STATUS_TIMEOUT")
		assert.Contains(t, err.Error(), "BREAKER_THRESHOLD")
	})

	t.Run("unknown transport", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REALTIME_TRANSPORT", "websocket")
		_, err := FromEnv()
		require.ErrorContains(t, err, "REALTIME_TRANSPORT")
	})
}
