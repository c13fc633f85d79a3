package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POKESWAP_APP_ENV", "local")
	t.Setenv("POKESWAP_JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "leopkmn", cfg.AdminLogin)
	assert.NotEmpty(t, cfg.JWTSecret, "local env falls back to a dev secret")
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("POKESWAP_APP_ENV", "production")
	t.Setenv("POKESWAP_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POKESWAP_APP_ENV", "production")
	t.Setenv("POKESWAP_JWT_SECRET", "s3cret")
	t.Setenv("POKESWAP_ACCESS_TTL", "10m")
	t.Setenv("POKESWAP_RATE_BURST", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.False(t, cfg.IsLocal())
}

func TestValidateRejectsBadRate(t *testing.T) {
	cfg := &Config{AppEnv: "local", AccessTTL: time.Hour, RefreshTTL: time.Hour}
	require.Error(t, cfg.Validate())
}

func TestLoadToolsNeedsNoSecret(t *testing.T) {
	t.Setenv("POKESWAP_APP_ENV", "production")
	t.Setenv("POKESWAP_JWT_SECRET", "")
	t.Setenv("POKESWAP_PG_DSN", "postgres://pokeswap@db/pokeswap")
	t.Setenv("POKESWAP_API_URL", "https://api.example.org/")

	cfg, err := LoadTools()
	require.NoError(t, err)
	assert.Equal(t, "postgres://pokeswap@db/pokeswap", cfg.PGDSN)
	assert.Equal(t, "https://api.example.org", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.MigrateTimeout)
	assert.Equal(t, 15*time.Second, cfg.SmokeTimeout)
}

func TestLoadToolsRejectsBadTimeout(t *testing.T) {
	t.Setenv("POKESWAP_SMOKE_TIMEOUT", "0s")
	_, err := LoadTools()
	require.Error(t, err)
}
