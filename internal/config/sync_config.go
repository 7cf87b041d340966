package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
)

// SyncConfig holds replication configuration
type SyncConfig struct {
	// ============ BASIC SETTINGS ============
	Enabled bool `json:"enabled"`

	// ============ SCHEDULING ============
	AutoSyncEnabled  bool `json:"auto_sync_enabled"`
	AutoSyncInterval int  `json:"auto_sync_interval"` // seconds
	SyncOnStartup    bool `json:"sync_on_startup"`

	// ============ LIMITS ============
	BatchSize     int `json:"batch_size"`
	MaxRetries    int `json:"max_retries"`
	MinRetryDelay int `json:"min_retry_delay"` // seconds between pull attempts per collection

	// ============ COLLECTIONS ============
	Collections map[string]CollectionSyncConfig `json:"collections"`

	// ============ ROUTES ============
	Routes []SyncRouteConfig `json:"routes"`
}

// CollectionSyncConfig holds sync configuration for one replicated collection
type CollectionSyncConfig struct {
	Enabled      bool   `json:"enabled"`
	Direction    string `json:"direction"`     // pull_only, push_only, bidirectional
	BatchSize    int    `json:"batch_size"`    // 0 = use global batch size
	SyncInterval int    `json:"sync_interval"` // seconds
	Priority     int    `json:"priority"`      // 1-10, where 10 = highest
}

// SyncRouteConfig represents one route to the remote authority
type SyncRouteConfig struct {
	URL      string `json:"url"`
	Type     string `json:"type"`     // primary, fallback
	Timeout  int    `json:"timeout"`  // seconds
	Priority int    `json:"priority"` // lower = higher priority
}

// LoadSyncConfig loads sync configuration from environment or file
func LoadSyncConfig() *SyncConfig {
	// Try to load from file first
	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		if cfg, err := loadSyncConfigFromFile(configPath); err == nil {
			return cfg
		} else {
			log.Printf("⚠️ Failed to load sync config from %s: %v (using defaults)", configPath, err)
		}
	}

	// Otherwise use defaults
	return getDefaultSyncConfig()
}

// loadSyncConfigFromFile loads sync config from JSON file
func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getDefaultSyncConfig returns default replication configuration
func getDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled: getBoolEnv("SYNC_ENABLED", true),

		AutoSyncEnabled:  getBoolEnv("SYNC_AUTO_ENABLED", true),
		AutoSyncInterval: getIntEnv("SYNC_AUTO_INTERVAL", 60),
		SyncOnStartup:    getBoolEnv("SYNC_ON_STARTUP", true),

		BatchSize:     getIntEnv("SYNC_BATCH_SIZE", 50),
		MaxRetries:    getIntEnv("SYNC_MAX_RETRIES", 3),
		MinRetryDelay: getIntEnv("SYNC_MIN_RETRY_DELAY", 5),

		Collections: getDefaultCollectionConfigs(),

		Routes: getDefaultRoutes(),
	}
}

// getDefaultCollectionConfigs returns the per-collection defaults. Orders
// flow both ways; tables and the menu are authority-owned projections.
func getDefaultCollectionConfigs() map[string]CollectionSyncConfig {
	return map[string]CollectionSyncConfig{
		"orders": {
			Enabled:      true,
			Direction:    "bidirectional",
			SyncInterval: 30,
			Priority:     10,
		},
		"tables": {
			Enabled:      true,
			Direction:    "pull_only",
			SyncInterval: 60,
			Priority:     8,
		},
		"menu_items": {
			Enabled:      true,
			Direction:    "pull_only",
			SyncInterval: 300,
			Priority:     5,
		},
		"menu_categories": {
			Enabled:      true,
			Direction:    "pull_only",
			SyncInterval: 300,
			Priority:     4,
		},
	}
}

// getDefaultRoutes returns default routes to the remote authority
func getDefaultRoutes() []SyncRouteConfig {
	routes := []SyncRouteConfig{}

	if primaryURL := os.Getenv("REMOTE_BASE_URL"); primaryURL != "" {
		log.Printf("🔗 Adding primary sync route: %s", primaryURL)
		routes = append(routes, SyncRouteConfig{
			URL:      primaryURL,
			Type:     "primary",
			Timeout:  10,
			Priority: 1,
		})
	}

	if fallbackURL := os.Getenv("REMOTE_FALLBACK_URL"); fallbackURL != "" {
		log.Printf("🔗 Adding fallback sync route: %s", fallbackURL)
		routes = append(routes, SyncRouteConfig{
			URL:      fallbackURL,
			Type:     "fallback",
			Timeout:  15,
			Priority: 2,
		})
	}

	if len(routes) == 0 {
		log.Println("⚠️ No sync routes configured (REMOTE_BASE_URL and REMOTE_FALLBACK_URL not set)")
	}

	return routes
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}
