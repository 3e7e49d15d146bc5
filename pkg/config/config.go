// Package config loads t3 settings from an optional YAML file and
// T3_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/classvsoftware/t3api-utils/pkg/auth"
	"github.com/classvsoftware/t3api-utils/pkg/cache"
	"github.com/classvsoftware/t3api-utils/pkg/client"
	"github.com/classvsoftware/t3api-utils/pkg/pagination"
)

// EnvPrefix is prepended to every environment variable, e.g. T3_API_HOST
// or T3_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "T3"

// Config holds all settings.
type Config struct {
	APIHost    string        `mapstructure:"api_host" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent  string        `mapstructure:"user_agent" validate:"required"`
	RateLimit  float64       `mapstructure:"rate_limit" validate:"gte=0"`
	MaxWorkers int           `mapstructure:"max_workers" validate:"gte=1,lte=100"`
	BatchSize  int           `mapstructure:"batch_size" validate:"gte=0"`
	PageSize   int           `mapstructure:"page_size" validate:"gte=1,lte=500"`
	Strategy   string        `mapstructure:"strategy" validate:"oneof=pool batched"`

	Retry RetryConfig `mapstructure:"retry"`
	Proxy ProxyConfig `mapstructure:"proxy"`

	RedisAddr   string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `mapstructure:"log_pretty"`
	EnvFile   string `mapstructure:"env_file"`
}

// RetryConfig mirrors client.RetryPolicy.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BackoffFactor time.Duration `mapstructure:"backoff_factor" validate:"gte=0"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
}

// ProxyConfig mirrors client.ProxyConfig.
type ProxyConfig struct {
	HTTPProxy  string `mapstructure:"http_proxy"`
	HTTPSProxy string `mapstructure:"https_proxy"`
	NoProxy    string `mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	retry := client.DefaultRetryPolicy()
	return Config{
		APIHost:    client.DefaultHost,
		Timeout:    30 * time.Second,
		UserAgent:  client.DefaultUserAgent,
		MaxWorkers: 10,
		PageSize:   client.DefaultPageSize,
		Strategy:   string(pagination.StrategyPool),
		Retry: RetryConfig{
			MaxAttempts:   retry.MaxAttempts,
			BackoffFactor: retry.BackoffFactor,
			MaxBackoff:    retry.MaxBackoff,
		},
		CacheTTL: cache.DefaultTTL,
		LogLevel: "info",
		EnvFile:  auth.DefaultEnvFile,
	}
}

// Load reads path (optional, empty for none), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api_host", d.APIHost)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.backoff_factor", d.Retry.BackoffFactor)
	v.SetDefault("retry.max_backoff", d.Retry.MaxBackoff)
	v.SetDefault("proxy.http_proxy", "")
	v.SetDefault("proxy.https_proxy", "")
	v.SetDefault("proxy.no_proxy", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("env_file", d.EnvFile)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ClientConfig builds the API client configuration. A Redis client is
// attached when RedisAddr is set; the caller owns closing it.
func (c *Config) ClientConfig() client.Config {
	cc := client.DefaultConfig()
	cc.Host = c.APIHost
	cc.Timeout = c.Timeout
	cc.UserAgent = c.UserAgent
	cc.RateLimit = c.RateLimit
	cc.Retry.MaxAttempts = c.Retry.MaxAttempts
	cc.Retry.BackoffFactor = c.Retry.BackoffFactor
	cc.Retry.MaxBackoff = c.Retry.MaxBackoff
	cc.Proxy = client.ProxyConfig{
		HTTPProxy:  c.Proxy.HTTPProxy,
		HTTPSProxy: c.Proxy.HTTPSProxy,
		NoProxy:    c.Proxy.NoProxy,
	}
	cc.CacheTTL = c.CacheTTL
	if c.RedisAddr != "" {
		cc.Redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	}
	return cc
}

// LoaderConfig builds the collection loader configuration.
func (c *Config) LoaderConfig() pagination.Config {
	lc := pagination.DefaultConfig()
	lc.MaxConcurrency = c.MaxWorkers
	lc.BatchSize = c.BatchSize
	lc.Strategy = pagination.Strategy(c.Strategy)
	return lc
}
