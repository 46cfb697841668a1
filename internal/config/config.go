/**
 * @description
 * Configuration management for the commission service. Values come from
 * environment variables, optionally backed by a .env file, through viper.
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/temi-crm/commission-service/internal/commission"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	Environment              string `mapstructure:"APP_ENV"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RunMigrations            bool   `mapstructure:"RUN_MIGRATIONS"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RedisCachePrefix         string `mapstructure:"REDIS_CACHE_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string `mapstructure:"EVENTS_EXCHANGE"`
	InvoiceEventQueue        string `mapstructure:"INVOICE_EVENT_QUEUE"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	InternalAPIKey           string `mapstructure:"INTERNAL_API_KEY"`
	CorsAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	BusinessTimezone         string `mapstructure:"BUSINESS_TIMEZONE"`
	PlatformCommissionRate   string `mapstructure:"PLATFORM_COMMISSION_RATE"`
	VATRate                  string `mapstructure:"VAT_RATE"`
	ApporteurCommissionRate  string `mapstructure:"APPORTEUR_COMMISSION_RATE"`
	CommissionDueDays        int    `mapstructure:"COMMISSION_DUE_DAYS"`
	TierFallback             string `mapstructure:"TIER_FALLBACK"`
	OverdueJobSchedule       string `mapstructure:"OVERDUE_JOB_SCHEDULE"`
	TierSnapshotSchedule     string `mapstructure:"TIER_SNAPSHOT_SCHEDULE"`
	SimulationRateLimit      int    `mapstructure:"SIMULATION_RATE_LIMIT_PER_MINUTE"`
	ProductionCacheTTLSecs   int    `mapstructure:"PRODUCTION_CACHE_TTL_SECONDS"`

	// Parsed from the string fields above by LoadConfig.
	Rates          commission.Rates          `mapstructure:"-"`
	FallbackPolicy commission.FallbackPolicy `mapstructure:"-"`
}

var envKeys = []string{
	"SERVER_PORT",
	"PORT",
	"APP_ENV",
	"DATABASE_URL",
	"RUN_MIGRATIONS",
	"REDIS_URL",
	"REDIS_RATE_LIMIT_PREFIX",
	"REDIS_CACHE_PREFIX",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"INVOICE_EVENT_QUEUE",
	"JWT_SECRET",
	"INTERNAL_API_KEY",
	"CORS_ALLOWED_ORIGINS",
	"BUSINESS_TIMEZONE",
	"PLATFORM_COMMISSION_RATE",
	"VAT_RATE",
	"APPORTEUR_COMMISSION_RATE",
	"COMMISSION_DUE_DAYS",
	"TIER_FALLBACK",
	"OVERDUE_JOB_SCHEDULE",
	"TIER_SNAPSHOT_SCHEDULE",
	"SIMULATION_RATE_LIMIT_PER_MINUTE",
	"PRODUCTION_CACHE_TTL_SECONDS",
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "crm:rate_limit")
	viper.SetDefault("REDIS_CACHE_PREFIX", "crm:production")
	viper.SetDefault("EVENTS_EXCHANGE", "crm.events")
	viper.SetDefault("INVOICE_EVENT_QUEUE", "commission_service.invoice_events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("BUSINESS_TIMEZONE", "Europe/Paris")
	viper.SetDefault("PLATFORM_COMMISSION_RATE", "12")
	viper.SetDefault("VAT_RATE", "20")
	viper.SetDefault("APPORTEUR_COMMISSION_RATE", "10")
	viper.SetDefault("COMMISSION_DUE_DAYS", 30)
	viper.SetDefault("TIER_FALLBACK", "lowest")
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "0 7 * * *")
	viper.SetDefault("TIER_SNAPSHOT_SCHEDULE", "0 2 1 * *")
	viper.SetDefault("SIMULATION_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("PRODUCTION_CACHE_TTL_SECONDS", 600)

	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config file: %w", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	if err = config.finalize(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) finalize() error {
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.RabbitMQURL = strings.TrimSpace(c.RabbitMQURL)
	c.InternalAPIKey = strings.TrimSpace(c.InternalAPIKey)

	var err error
	if c.Rates.Platform, err = parseRate("PLATFORM_COMMISSION_RATE", c.PlatformCommissionRate); err != nil {
		return err
	}
	if c.Rates.VAT, err = parseRate("VAT_RATE", c.VATRate); err != nil {
		return err
	}
	if c.Rates.Apporteur, err = parseRate("APPORTEUR_COMMISSION_RATE", c.ApporteurCommissionRate); err != nil {
		return err
	}

	if c.FallbackPolicy, err = commission.ParseFallbackPolicy(strings.ToLower(strings.TrimSpace(c.TierFallback))); err != nil {
		return fmt.Errorf("TIER_FALLBACK: %w", err)
	}
	if c.CommissionDueDays <= 0 {
		return fmt.Errorf("COMMISSION_DUE_DAYS must be positive, got %d", c.CommissionDueDays)
	}
	if c.SimulationRateLimit < 0 {
		c.SimulationRateLimit = 0
	}
	return nil
}

func parseRate(key, raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100, got %s", key, rate)
	}
	return rate, nil
}

// ProductionCacheTTL is how long a cached annual production stays valid.
func (c Config) ProductionCacheTTL() time.Duration {
	return time.Duration(c.ProductionCacheTTLSecs) * time.Second
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CorsAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
