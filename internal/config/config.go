package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	InstanceID string
	TaxRate    float64 // e.g. 0.19 for 19% VAT, applied to order subtotals
	Database   DatabaseConfig
	Remote     RemoteConfig
	Realtime   RealtimeChannelConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// RemoteConfig holds the connection to the remote order authority
type RemoteConfig struct {
	Transport string // http, odoo
	BaseURL   string
	Timeout   time.Duration
	Odoo      OdooConfig
}

// OdooConfig holds Odoo XML-RPC credentials (used when Transport is "odoo")
type OdooConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

// RealtimeChannelConfig holds the websocket event channel configuration
type RealtimeChannelConfig struct {
	URL                  string
	Topic                string
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	PingInterval         time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		NodeEnv:    getEnv("NODE_ENV", "development"),
		Port:       getEnv("PORT", "3001"),
		InstanceID: getEnv("INSTANCE_ID", "pos-terminal"),
		TaxRate:    getFloatEnv("TAX_RATE", 0.19),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5434"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "eckpos"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Remote: RemoteConfig{
			Transport: getEnv("REMOTE_TRANSPORT", "http"),
			BaseURL:   os.Getenv("REMOTE_BASE_URL"),
			Timeout:   time.Duration(getIntEnv("REMOTE_TIMEOUT", 15)) * time.Second,
			Odoo: OdooConfig{
				URL:      os.Getenv("ODOO_URL"),
				Database: os.Getenv("ODOO_DB"),
				Username: os.Getenv("ODOO_USERNAME"),
				Password: os.Getenv("ODOO_PASSWORD"),
			},
		},
		Realtime: RealtimeChannelConfig{
			URL:                  os.Getenv("REALTIME_URL"),
			Topic:                getEnv("REALTIME_TOPIC", "pos-events"),
			MaxReconnectAttempts: getIntEnv("REALTIME_MAX_RECONNECT", 10),
			ReconnectBaseDelay:   time.Duration(getIntEnv("REALTIME_RECONNECT_BASE_MS", 500)) * time.Millisecond,
			ReconnectMaxDelay:    time.Duration(getIntEnv("REALTIME_RECONNECT_MAX_MS", 30000)) * time.Millisecond,
			PingInterval:         time.Duration(getIntEnv("REALTIME_PING_INTERVAL", 30)) * time.Second,
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
