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

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type ProbeConfig struct {
	Interval string `mapstructure:"interval"`
}

// UpstreamConfig names an external service the gateway forwards to.
// The name doubles as the circuit breaker target for that service.
type UpstreamConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// TargetConfig holds circuit breaker thresholds for one target. Omitted
// fields fall back to the breaker defaults; durations are strings parsed
// with time.ParseDuration.
type TargetConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	SuccessThreshold int    `mapstructure:"success_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
	HalfOpenMaxCalls int    `mapstructure:"half_open_max_calls"`
	CallTimeout      string `mapstructure:"call_timeout"`
}

type CircuitBreakerConfig struct {
	Targets map[string]TargetConfig `mapstructure:"targets"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Probe          ProbeConfig          `mapstructure:"probe"`
	Upstreams      []UpstreamConfig     `mapstructure:"upstreams"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("probe.interval", "2s")
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
		validation.Field(&c.Probe,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProbeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Upstreams,
			validation.Each(validation.By(validateUpstreamConfig)),
		),
		validation.Field(&c.CircuitBreaker,
			validation.By(func(value interface{}) error {
				cbc, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				for name, target := range cbc.Targets {
					if name == "" {
						return validation.NewError("validation_empty_target", "target name cannot be empty")
					}
					if err := validateTargetConfig(target); err != nil {
						return err
					}
				}
				return nil
			}),
		),
	)
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

func validateUpstreamConfig(value interface{}) error {
	upstream, ok := value.(UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
	}

	if upstream.Name == "" {
		return validation.NewError("validation_empty_name", "upstream name cannot be empty")
	}

	if upstream.URL == "" {
		return validation.NewError("validation_empty_url", "upstream URL cannot be empty")
	}

	parsedURL, err := url.Parse(upstream.URL)
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

// validateTargetConfig rejects values the breaker itself assumes are valid.
// The core never re-checks thresholds.
func validateTargetConfig(target TargetConfig) error {
	if target.FailureThreshold < 0 {
		return validation.NewError("validation_invalid_threshold", "failure_threshold cannot be negative")
	}

	if target.SuccessThreshold < 0 {
		return validation.NewError("validation_invalid_threshold", "success_threshold cannot be negative")
	}

	if target.HalfOpenMaxCalls < 0 {
		return validation.NewError("validation_invalid_threshold", "half_open_max_calls cannot be negative")
	}

	if target.ResetTimeout != "" {
		if _, err := time.ParseDuration(target.ResetTimeout); err != nil {
			return validation.NewError("validation_invalid_duration", "reset_timeout must be a valid duration")
		}
	}

	if target.CallTimeout != "" {
		if _, err := time.ParseDuration(target.CallTimeout); err != nil {
			return validation.NewError("validation_invalid_duration", "call_timeout must be a valid duration")
		}
	}

	return nil
}
