package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setIssuerEnv(t *testing.T) {
	t.Setenv("MARQETA_BASE_URL", "https://sandbox.example.com/v3/")
	t.Setenv("MARQETA_API_KEY", "key")
	t.Setenv("MARQETA_SECRET", "secret")
}

func TestLoadRelay_MissingCredentials(t *testing.T) {
	t.Setenv("MARQETA_BASE_URL", "")
	t.Setenv("MARQETA_API_KEY", "key")
	t.Setenv("MARQETA_SECRET", "")

	_, err := LoadRelay()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARQETA_BASE_URL")
	assert.Contains(t, err.Error(), "MARQETA_SECRET")
	assert.NotContains(t, err.Error(), "MARQETA_API_KEY")
}

func TestLoadRelay_Defaults(t *testing.T) {
	setIssuerEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "https://sandbox.example.com/v3", cfg.Issuer.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Issuer.Timeout)
	assert.Equal(t, []string{"*"}, cfg.Cors.AllowedOrigins)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadRelay_Overrides(t *testing.T) {
	setIssuerEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("ISSUER_TIMEOUT", "5s")

	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Cors.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Issuer.Timeout)
}

func TestLoadRelay_InvalidDuration(t *testing.T) {
	setIssuerEnv(t)
	t.Setenv("ISSUER_TIMEOUT", "soon")

	_, err := LoadRelay()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("BACKEND", "local")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.ProvisionDelay)
	assert.Equal(t, "http://localhost:5000", cfg.RelayURL)

	t.Setenv("BACKEND", "hosted")
	_, err = LoadClient()
	assert.Error(t, err, "hosted backend requires the project url and anon key")

	t.Setenv("BACKEND", "cloud")
	_, err = LoadClient()
	assert.Error(t, err)
}
