package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "KZT", cfg.Currency)
	assert.Equal(t, 10*time.Minute, cfg.InvoiceURLTTL)
	assert.EqualValues(t, 5, cfg.InvoiceMaxAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("FRONTEND_URL", "https://shop.example/")
	t.Setenv("INVOICE_URL_TTL", "600s")
	t.Setenv("POSTGRES_MAX_CONNS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "https://shop.example", cfg.FrontendURL)
	assert.Equal(t, 600*time.Second, cfg.InvoiceURLTTL)
	assert.EqualValues(t, 7, cfg.PostgresMaxConns)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("INVOICE_WORKERS", "many")

	_, err := Load()
	require.Error(t, err)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, Config{LogLevel: "debug"}.Level())
	assert.Equal(t, zerolog.InfoLevel, Config{LogLevel: "loud"}.Level())
	assert.Equal(t, zerolog.InfoLevel, Config{}.Level())
}
