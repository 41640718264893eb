package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	values := Config{}

	applyDefaults(&values, defaultConfig)

	assert.Equal(t, ":8080", values.RunAddr)
	assert.Equal(t, "http://localhost:8080", values.BaseURL)
	assert.Equal(t, 10*time.Minute, values.ResetTokenTTL)
	assert.Equal(t, 24*time.Hour, values.SessionTokenTTL)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	values := Config{}

	applyDefaults(&values, defaultConfig)

	require.NoError(t, values.validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	values := Config{}

	applyDefaults(&values, defaultConfig)
	values.LogLevel = "verbose"

	assert.Error(t, values.validate())
}

func TestValidateRejectsEmptySecretKey(t *testing.T) {
	values := Config{}

	applyDefaults(&values, defaultConfig)
	values.SecretKey = ""

	assert.Error(t, values.validate())
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("RESET_TOKEN_TTL", "5m")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.RunAddr)
	assert.Equal(t, 5*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}
