package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "sandbox", cfg.GatewayMode)
	assert.Equal(t, "log", cfg.SMS.Provider)
	assert.Equal(t, 5.0, cfg.SMS.RatePerSecond)
	assert.Equal(t, 10*time.Minute, cfg.PaymentExpiry)
	assert.False(t, cfg.CallbackQueue)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MLIMI_PORT", "9000")
	t.Setenv("MLIMI_STORAGE_BACKEND", "postgres")
	t.Setenv("MLIMI_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MLIMI_CALLBACK_QUEUE", "true")
	t.Setenv("MLIMI_SESSION_TTL", "90s")
	t.Setenv("MLIMI_DARAJA_PASSKEY", "secret")
	t.Setenv("MLIMI_SMS_RATE_PER_SECOND", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres", cfg.StorageBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.CallbackQueue)
	assert.Equal(t, 90*time.Second, cfg.SessionTTL)
	assert.Equal(t, "secret", cfg.Daraja.PassKey)
	assert.Equal(t, 2.5, cfg.SMS.RatePerSecond)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "mlimizone.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
session_backend: redis
redis_addr: cache:6379
gateway_mode: daraja
daraja:
  shortcode: "174379"
  callback_url: https://mlimi.example/payment/callback
`), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "redis", cfg.SessionBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "174379", cfg.Daraja.ShortCode)
	assert.Equal(t, "https://mlimi.example/payment/callback", cfg.Daraja.CallbackURL)

	// explicit path, env still wins
	t.Setenv("MLIMI_PORT", "7001")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MLIMI_STORAGE_BACKEND", "mongo")
	t.Setenv("MLIMI_SMS_PROVIDER", "smsleopard")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_backend")
	assert.Contains(t, err.Error(), "sms.api_key")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
}
