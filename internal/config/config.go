package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	DatabaseDSN   string `mapstructure:"database_dsn"`
	DBMaxConns    int32  `mapstructure:"db_max_conns"`
	RunMigrations bool   `mapstructure:"run_migrations"`

	// Empty RedisURL disables the cart cache.
	RedisURL     string        `mapstructure:"redis_url"`
	CartCacheTTL time.Duration `mapstructure:"cart_cache_ttl"`

	// Empty AMQPURL disables event publishing.
	AMQPURL                string `mapstructure:"amqp_url"`
	PublishEnvelopedEvents bool   `mapstructure:"publish_enveloped_events"`

	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"http_addr":                ":8080",
	"request_timeout":          "5s",
	"shutdown_timeout":         "10s",
	"database_dsn":             "",
	"db_max_conns":             25,
	"run_migrations":           true,
	"redis_url":                "",
	"cart_cache_ttl":           "15m",
	"amqp_url":                 "",
	"publish_enveloped_events": true,
	"cors_allow_origins":       "http://localhost:3000",
	"log_level":                "info",
	"log_format":               "json",
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// yaml file its values sit below the environment.
func Load() (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.CORSAllowOrigins = splitCSV(cfg.CORSAllowOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be at least 1"))
	}
	return errors.Join(errs...)
}

// splitCSV flattens comma separated entries and drops blanks. An empty
// result allows every origin.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
