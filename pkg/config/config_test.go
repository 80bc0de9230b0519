package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, float64(50000), cfg.School.DefaultFeeTotal)
	assert.Equal(t, "admin@qirllo.com", cfg.School.SeedAdminEmail)
	assert.Equal(t, int64(5*1024*1024), cfg.Import.MaxUploadBytes)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PUBLIC_URL", "https://school.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("SCHOOL_DEFAULT_FEE_TOTAL", "-1")
	t.Setenv("RECEIPTS_SIGNED_URL_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://school.example.com", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, float64(50000), cfg.School.DefaultFeeTotal)
	assert.Equal(t, 15*time.Minute, cfg.Receipts.SignedURLTTL)
}
