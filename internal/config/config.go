package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config 应用配置
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port string `envconfig:"PORT" default:"5000"`

	// DatabaseURL 为空时由 DB_* 分项拼接
	DatabaseURL       string        `envconfig:"DATABASE_URL"`
	DBHost            string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort            string        `envconfig:"DB_PORT" default:"5432"`
	DBUser            string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword        string        `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName            string        `envconfig:"DB_NAME" default:"casting_agency"`
	DBSSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	DBReset           bool          `envconfig:"DB_RESET" default:"false"`

	Auth0Domain      string        `envconfig:"AUTH0_DOMAIN"`
	APIAudience      string        `envconfig:"API_AUDIENCE"`
	AuthIssuer       string        `envconfig:"AUTH_ISSUER"`
	JWKSURL          string        `envconfig:"AUTH_JWKS_URL"`
	AuthAlgorithms   []string      `envconfig:"AUTH_ALGORITHMS" default:"RS256"`
	HS256Secret      string        `envconfig:"AUTH_HS256_SECRET"`
	StrictAuthStatus bool          `envconfig:"AUTH_STRICT_STATUS" default:"false"`
	AuthLeeway       time.Duration `envconfig:"AUTH_LEEWAY" default:"0s"`
	JWKSCacheTTL     time.Duration `envconfig:"JWKS_CACHE_TTL" default:"10m"`
	TokenCacheSize   int           `envconfig:"TOKEN_CACHE_SIZE" default:"1024"`

	CORSAllowOrigins   []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"0"`
	MetricsEnabled     bool     `envconfig:"METRICS_ENABLED" default:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// Load 加载配置
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.buildDatabaseURL()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查认证相关配置是否完整
func (c *Config) Validate() error {
	if c.UsesSharedSecret() {
		return nil
	}
	if c.JWKSEndpoint() == "" {
		return errors.New("必须设置 AUTH0_DOMAIN、AUTH_JWKS_URL 或 AUTH_HS256_SECRET 之一")
	}
	if c.APIAudience == "" {
		return errors.New("使用 JWKS 验证时必须设置 API_AUDIENCE")
	}
	return nil
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// UsesSharedSecret 是否使用 HS256 共享密钥验证
func (c *Config) UsesSharedSecret() bool {
	return c.HS256Secret != ""
}

// JWKSEndpoint 返回签名公钥地址，未显式配置时按 Auth0 约定推导
func (c *Config) JWKSEndpoint() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	if c.Auth0Domain == "" {
		return ""
	}
	return "https://" + strings.TrimSuffix(c.Auth0Domain, "/") + "/.well-known/jwks.json"
}

// TokenIssuer 返回期望的 iss，Auth0 的 issuer 以斜杠结尾
func (c *Config) TokenIssuer() string {
	if c.AuthIssuer != "" {
		return c.AuthIssuer
	}
	if c.Auth0Domain == "" {
		return ""
	}
	return "https://" + strings.TrimSuffix(c.Auth0Domain, "/") + "/"
}

func (c *Config) buildDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}
