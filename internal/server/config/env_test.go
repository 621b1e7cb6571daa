package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("KIWES_HTTP_ADDR", ":7000")
	t.Setenv("KIWES_ACCESS_TOKEN_TTL", "20m")
	t.Setenv("KIWES_REFRESH_TOKEN_TTL", "1209600")
	t.Setenv("KIWES_ALLOWED_ORIGINS", "https://kiwes.org,https://admin.kiwes.org")
	t.Setenv("KIWES_RATE_LIMIT_BURST", "3")
	t.Setenv("KIWES_GOOGLE_CLIENT_SECRET", "gsecret")
	t.Setenv("KIWES_S3_BASE_ENDPOINT", "http://minio:9000")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 20*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"https://kiwes.org", "https://admin.kiwes.org"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, float64(1), cfg.RateLimit.PerSecond)
	assert.Equal(t, "gsecret", cfg.Google.ClientSecret)
	assert.Equal(t, "http://minio:9000", cfg.S3.BaseEndpoint)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
}

func Test_parseEnv_BadDuration(t *testing.T) {
	t.Setenv("KIWES_ACCESS_TOKEN_TTL", "eventually")
	assert.Error(t, parseEnv(&Config{}))
}
