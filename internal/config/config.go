/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	SessionJWTSecret          string `mapstructure:"SESSION_JWT_SECRET"`
	SessionTTLMinutes         int    `mapstructure:"SESSION_TTL_MINUTES"`
	PinAuthRateLimitPerMinute int    `mapstructure:"PIN_AUTH_RATE_LIMIT_PER_MINUTE"`
	LockWaitTimeoutMs         int    `mapstructure:"LOCK_WAIT_TIMEOUT_MS"`
	SeedDemoData              bool   `mapstructure:"SEED_DEMO_DATA"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "teller:rate_limit")
	viper.SetDefault("SESSION_TTL_MINUTES", 15)
	viper.SetDefault("PIN_AUTH_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("LOCK_WAIT_TIMEOUT_MS", 5000)
	viper.SetDefault("SEED_DEMO_DATA", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("SESSION_JWT_SECRET")
	_ = viper.BindEnv("SESSION_TTL_MINUTES")
	_ = viper.BindEnv("PIN_AUTH_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("LOCK_WAIT_TIMEOUT_MS")
	_ = viper.BindEnv("SEED_DEMO_DATA")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "teller:rate_limit"
	}
	config.SessionJWTSecret = strings.TrimSpace(config.SessionJWTSecret)

	if config.SessionTTLMinutes <= 0 {
		config.SessionTTLMinutes = 15
	}
	if config.PinAuthRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative pin auth rate limit configured; disabling limiter\" limit=%d", config.PinAuthRateLimitPerMinute)
		config.PinAuthRateLimitPerMinute = 0
	}
	if config.LockWaitTimeoutMs <= 0 {
		config.LockWaitTimeoutMs = 5000
	}

	return
}
