package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", EnvTest)
	t.Setenv("JWT_SECRET", "secret")

	cfg := LoadConfig()

	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, 5, cfg.Auth.MaxFailed)
	assert.Equal(t, "ADMIN", cfg.Auth.AdminUserTypeCode)
	assert.Equal(t, "system", cfg.Auth.SystemUserID)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("JWT_EXPIRES_IN", "7d")
	t.Setenv("BCRYPT_ROUNDS", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUTH_DISABLED", "true")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	require.NoError(t, cfg.Validate(), "auth disabled needs no secret")
}

func TestValidateRequiresSecret(t *testing.T) {
	t.Setenv("ENV", EnvTest)
	t.Setenv("JWT_SECRET", "")

	cfg := LoadConfig()
	assert.Error(t, cfg.Validate())
}
