package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSyncConfig(t *testing.T) {
	os.Unsetenv("SYNC_CONFIG_PATH")
	os.Unsetenv("SYNC_BATCH_SIZE")

	cfg := LoadSyncConfig()
	if !cfg.Enabled {
		t.Error("Expected sync to be enabled by default")
	}
	if cfg.BatchSize != 50 {
		t.Errorf("Expected default batch size 50, got %d", cfg.BatchSize)
	}

	orders, ok := cfg.Collections["orders"]
	if !ok {
		t.Fatal("Expected orders collection config")
	}
	if orders.Direction != "bidirectional" {
		t.Errorf("Expected orders to be bidirectional, got %s", orders.Direction)
	}

	tables, ok := cfg.Collections["tables"]
	if !ok {
		t.Fatal("Expected tables collection config")
	}
	if tables.Direction != "pull_only" {
		t.Errorf("Expected tables to be pull_only, got %s", tables.Direction)
	}
}

func TestSyncConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	content := `{
		"enabled": true,
		"batch_size": 25,
		"collections": {
			"orders": {"enabled": true, "direction": "push_only", "priority": 10}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("SYNC_CONFIG_PATH", path)
	defer os.Unsetenv("SYNC_CONFIG_PATH")

	cfg := LoadSyncConfig()
	if cfg.BatchSize != 25 {
		t.Errorf("Expected batch size 25 from file, got %d", cfg.BatchSize)
	}
	if cfg.Collections["orders"].Direction != "push_only" {
		t.Errorf("Expected direction from file, got %s", cfg.Collections["orders"].Direction)
	}
}

func TestSyncConfigBadFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("SYNC_CONFIG_PATH", path)
	defer os.Unsetenv("SYNC_CONFIG_PATH")

	cfg := LoadSyncConfig()
	if cfg.BatchSize != 50 {
		t.Errorf("Expected defaults after broken file, got batch size %d", cfg.BatchSize)
	}
}
