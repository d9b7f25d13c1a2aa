package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Telnet listener
	TelnetHost string `env:"TELNET_HOST" default:"0.0.0.0"`
	TelnetPort int    `env:"TELNET_PORT" default:"4000"`

	// Admin HTTP surface
	AdminEnabled bool `env:"ADMIN_ENABLED" default:"false"`
	AdminPort    int  `env:"ADMIN_PORT" default:"4080"`

	// Presence (empty REDIS_URL keeps presence in memory)
	RedisURL      string        `env:"REDIS_URL"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	PresenceTTL   time.Duration `env:"PRESENCE_TTL" default:"24h"`

	// Core tuning
	TickRate         int     `env:"TICK_RATE" default:"60"`
	ReadBufferSize   int     `env:"READ_BUFFER_SIZE" default:"1024"`
	InboundRateLimit float64 `env:"INBOUND_RATE_LIMIT" default:"0"`
	InboundBurst     int     `env:"INBOUND_BURST" default:"20"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from a .env file, if any, and the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// a missing .env is fine, system env vars still apply
		fmt.Fprintf(os.Stderr, "Warning: .env file not found: %v\n", err)
	}

	config := &Config{}

	loadEnvString(&config.GoEnv, "GO_ENV", "development")

	loadEnvString(&config.TelnetHost, "TELNET_HOST", "0.0.0.0")
	if err := loadEnvInt(&config.TelnetPort, "TELNET_PORT", 4000); err != nil {
		return nil, err
	}

	if err := loadEnvBool(&config.AdminEnabled, "ADMIN_ENABLED", false); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.AdminPort, "ADMIN_PORT", 4080); err != nil {
		return nil, err
	}

	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", "")
	if err := loadEnvDuration(&config.PresenceTTL, "PRESENCE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := loadEnvInt(&config.TickRate, "TICK_RATE", 60); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ReadBufferSize, "READ_BUFFER_SIZE", 1024); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.InboundRateLimit, "INBOUND_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.InboundBurst, "INBOUND_BURST", 20); err != nil {
		return nil, err
	}

	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.TelnetPort < 1 || c.TelnetPort > 65535 {
		errors = append(errors, "TELNET_PORT must be between 1 and 65535")
	}
	if c.AdminEnabled && (c.AdminPort < 1 || c.AdminPort > 65535) {
		errors = append(errors, "ADMIN_PORT must be between 1 and 65535")
	}
	if c.AdminEnabled && c.AdminPort == c.TelnetPort {
		errors = append(errors, "ADMIN_PORT must differ from TELNET_PORT")
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		errors = append(errors, "TICK_RATE must be between 1 and 1000")
	}
	if c.ReadBufferSize < 1 {
		errors = append(errors, "READ_BUFFER_SIZE must be positive")
	}
	if c.InboundRateLimit < 0 {
		errors = append(errors, "INBOUND_RATE_LIMIT must not be negative")
	}
	if c.InboundBurst < 1 {
		errors = append(errors, "INBOUND_BURST must be positive")
	}
	if c.PresenceTTL <= 0 {
		errors = append(errors, "PRESENCE_TTL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// TelnetAddr is the address the telnet listener binds
func (c *Config) TelnetAddr() string {
	return fmt.Sprintf("%s:%d", c.TelnetHost, c.TelnetPort)
}

// AdminAddr is the address of the admin HTTP server
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.AdminPort)
}

// TickInterval is the time between two polls of the network core
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
