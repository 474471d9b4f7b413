package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round-robin"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type HealthCheckConfig struct {
	Interval     string `mapstructure:"interval"`
	ProbeTimeout string `mapstructure:"probe_timeout"`
}

type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type DispatchConfig struct {
	CallTimeout string          `mapstructure:"call_timeout"`
	JobCost     int64           `mapstructure:"job_cost"`
	RetryMax    int             `mapstructure:"retry_max"`
	Strategy    string          `mapstructure:"strategy"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type BackendConfig struct {
	URL string `mapstructure:"url"`
}

type LedgerConfig struct {
	StartingBalance int64 `mapstructure:"starting_balance"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Backends    []BackendConfig   `mapstructure:"backends"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("health_check.interval", "60s")
	viper.SetDefault("health_check.probe_timeout", "5s")
	viper.SetDefault("dispatch.call_timeout", "300s")
	viper.SetDefault("dispatch.job_cost", 100)
	viper.SetDefault("dispatch.retry_max", 0)
	viper.SetDefault("dispatch.strategy", StrategyRandom)
	viper.SetDefault("dispatch.rate_limit.rate", 0.0)
	viper.SetDefault("dispatch.rate_limit.burst", 1)
	viper.SetDefault("ledger.starting_balance", 1000)
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.ProbeTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Dispatch,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DispatchConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DispatchConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.CallTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&dc.JobCost,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&dc.RetryMax,
						validation.Min(0),
					),
					validation.Field(&dc.Strategy,
						validation.Required,
						validation.In(StrategyRandom, StrategyRoundRobin),
					),
					validation.Field(&dc.RateLimit,
						validation.By(validateRateLimit),
					),
				)
			}),
		),
		validation.Field(&c.Ledger,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LedgerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LedgerConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.StartingBalance,
						validation.Min(0),
					),
				)
			}),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
		),
	)
}

// Interval returns the parsed health-check interval. Valid only after
// Validate has passed.
func (c *Config) Interval() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.Interval)
	return d
}

// ProbeTimeout returns the parsed probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HealthCheck.ProbeTimeout)
	return d
}

// CallTimeout returns the parsed per-call generation timeout.
func (c *Config) CallTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Dispatch.CallTimeout)
	return d
}

// BackendURLs returns the parsed backend base URLs.
func (c *Config) BackendURLs() ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(c.Backends))
	for _, b := range c.Backends {
		u, err := url.Parse(b.URL)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateRateLimit(value interface{}) error {
	rl, ok := value.(RateLimitConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
	}

	if rl.Rate < 0 {
		return validation.NewError("validation_invalid_rate", "rate cannot be negative")
	}

	if rl.Rate > 0 && rl.Burst < 1 {
		return validation.NewError("validation_invalid_burst", "burst must be at least 1 when rate limiting is enabled")
	}

	return nil
}

func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if backend.URL == "" {
		return validation.NewError("validation_empty_url", "backend URL cannot be empty")
	}

	parsedURL, err := url.Parse(backend.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
