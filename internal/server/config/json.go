package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/kiwes/internal/flagx"
	"github.com/dmitrijs2005/kiwes/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Lifetimes use timex.Lifetime,
// so 1800 (seconds), "30m" and "336h" are accepted. Keys missing from the file leave the
// current values untouched.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	GRPCAddr        string         `json:"grpc_addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	AccessTokenTTL  timex.Lifetime `json:"access_token_ttl"`
	RefreshTokenTTL timex.Lifetime `json:"refresh_token_ttl"`
	RefreshStore    string         `json:"refresh_store"`
	RedisAddr       string         `json:"redis_addr"`
	RedisPassword   string         `json:"redis_password"`
	LogLevel        string         `json:"log_level"`
	AllowedOrigins  []string       `json:"allowed_origins"`
	TrustProxy      bool           `json:"trust_proxy"`
	RateLimit       struct {
		PerSecond float64 `json:"per_second"`
		Burst     int     `json:"burst"`
	} `json:"rate_limit"`
	Google jsonOAuthClient `json:"google"`
	Kakao  jsonOAuthClient `json:"kakao"`
	Apple  struct {
		ClientID       string `json:"client_id"`
		TeamID         string `json:"team_id"`
		KeyID          string `json:"key_id"`
		PrivateKeyFile string `json:"private_key_file"`
		RedirectURL    string `json:"redirect_url"`
	} `json:"apple"`
	S3 struct {
		AccessKey    string `json:"access_key"`
		SecretKey    string `json:"secret_key"`
		Bucket       string `json:"bucket"`
		Region       string `json:"region"`
		BaseEndpoint string `json:"base_endpoint"`
	} `json:"s3"`
}

type jsonOAuthClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}

func toJson(c *Config) *JsonConfig {
	j := &JsonConfig{
		HTTPAddr:        c.HTTPAddr,
		GRPCAddr:        c.GRPCAddr,
		DatabaseDSN:     c.DatabaseDSN,
		SecretKey:       c.SecretKey,
		AccessTokenTTL:  timex.Lifetime{Duration: c.AccessTokenTTL},
		RefreshTokenTTL: timex.Lifetime{Duration: c.RefreshTokenTTL},
		RefreshStore:    c.RefreshStore,
		RedisAddr:       c.RedisAddr,
		RedisPassword:   c.RedisPassword,
		LogLevel:        c.LogLevel,
		AllowedOrigins:  c.AllowedOrigins,
		TrustProxy:      c.TrustProxy,
		Google:          jsonOAuthClient(c.Google),
		Kakao:           jsonOAuthClient(c.Kakao),
	}
	j.RateLimit.PerSecond, j.RateLimit.Burst = c.RateLimit.PerSecond, c.RateLimit.Burst
	j.Apple.ClientID, j.Apple.TeamID, j.Apple.KeyID = c.Apple.ClientID, c.Apple.TeamID, c.Apple.KeyID
	j.Apple.PrivateKeyFile, j.Apple.RedirectURL = c.Apple.PrivateKeyFile, c.Apple.RedirectURL
	j.S3.AccessKey, j.S3.SecretKey, j.S3.Bucket = c.S3.AccessKey, c.S3.SecretKey, c.S3.Bucket
	j.S3.Region, j.S3.BaseEndpoint = c.S3.Region, c.S3.BaseEndpoint
	return j
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenTTL = j.AccessTokenTTL.Duration
	c.RefreshTokenTTL = j.RefreshTokenTTL.Duration
	c.RefreshStore = j.RefreshStore
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.LogLevel = j.LogLevel
	c.AllowedOrigins = j.AllowedOrigins
	c.TrustProxy = j.TrustProxy
	c.RateLimit = RateLimit{PerSecond: j.RateLimit.PerSecond, Burst: j.RateLimit.Burst}
	c.Google = OAuthClient(j.Google)
	c.Kakao = OAuthClient(j.Kakao)
	c.Apple.ClientID, c.Apple.TeamID, c.Apple.KeyID = j.Apple.ClientID, j.Apple.TeamID, j.Apple.KeyID
	c.Apple.PrivateKeyFile, c.Apple.RedirectURL = j.Apple.PrivateKeyFile, j.Apple.RedirectURL
	c.S3 = S3(j.S3)
}

// parseJson overlays the JSON file named by -c or -config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	j := toJson(config)
	if err := json.Unmarshal(file, j); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	j.apply(config)
	return nil
}
