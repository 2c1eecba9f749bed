package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr                   string
	Environment            string
	DatabaseURL            string
	DBMaxConns             int32
	DBConnectTimeout       time.Duration
	JWTSecret              string
	RunMigrations          bool
	RunSeed                bool
	MaxBodyBytes           int64
	RateLimitPerMinute     int
	BulkRateLimitPerMinute int
	BulkMaxItems           int
	BulkConcurrency        int
	StoreTimeout           time.Duration
	KafkaBrokers           []string
	KafkaTopic             string
	KafkaRetry             time.Duration
	LogLevel               string
	MetricsEnabled         bool
}

var defaults = map[string]any{
	"APP_ADDR":                   ":8080",
	"APP_ENV":                    "development",
	"DATABASE_URL":               "",
	"DB_MAX_CONNS":               10,
	"DB_CONNECT_TIMEOUT":         "30s",
	"JWT_SECRET":                 "",
	"RUN_MIGRATIONS":             true,
	"RUN_SEED":                   true,
	"MAX_BODY_BYTES":             1048576,
	"RATE_LIMIT_PER_MINUTE":      120,
	"BULK_RATE_LIMIT_PER_MINUTE": 20,
	"BULK_MAX_ITEMS":             200,
	"BULK_CONCURRENCY":           4,
	"STORE_TIMEOUT":              "5s",
	"KAFKA_BROKERS":              "",
	"KAFKA_TOPIC":                "timesheet-events",
	"KAFKA_RETRY":                "30s",
	"LOG_LEVEL":                  "info",
	"METRICS_ENABLED":            true,
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// file its values sit between the defaults and the environment.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	return Config{
		Addr:                   v.GetString("APP_ADDR"),
		Environment:            v.GetString("APP_ENV"),
		DatabaseURL:            v.GetString("DATABASE_URL"),
		DBMaxConns:             v.GetInt32("DB_MAX_CONNS"),
		DBConnectTimeout:       v.GetDuration("DB_CONNECT_TIMEOUT"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		RunMigrations:          v.GetBool("RUN_MIGRATIONS"),
		RunSeed:                v.GetBool("RUN_SEED"),
		MaxBodyBytes:           v.GetInt64("MAX_BODY_BYTES"),
		RateLimitPerMinute:     v.GetInt("RATE_LIMIT_PER_MINUTE"),
		BulkRateLimitPerMinute: v.GetInt("BULK_RATE_LIMIT_PER_MINUTE"),
		BulkMaxItems:           v.GetInt("BULK_MAX_ITEMS"),
		BulkConcurrency:        v.GetInt("BULK_CONCURRENCY"),
		StoreTimeout:           v.GetDuration("STORE_TIMEOUT"),
		KafkaBrokers:           splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:             v.GetString("KAFKA_TOPIC"),
		KafkaRetry:             v.GetDuration("KAFKA_RETRY"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		MetricsEnabled:         v.GetBool("METRICS_ENABLED"),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.BulkRateLimitPerMinute <= 0 {
		return fmt.Errorf("BULK_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.BulkMaxItems <= 0 {
		return fmt.Errorf("BULK_MAX_ITEMS must be positive")
	}
	if c.BulkConcurrency <= 0 {
		return fmt.Errorf("BULK_CONCURRENCY must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("KAFKA_TOPIC must be set when KAFKA_BROKERS is configured")
	}
	return nil
}
