package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UndoWindow.Std() != time.Hour {
		t.Errorf("UndoWindow = %s", cfg.UndoWindow.Std())
	}
	if cfg.ElasticAmplify != 1.5 {
		t.Errorf("ElasticAmplify = %v", cfg.ElasticAmplify)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.yaml")
	doc := `
data_dir: /tmp/agency
undo_window: 30m
tier_bounds: [0, 0.5, 0.8, 0.95]
redis:
  address: localhost:6379
  stream: custom:events
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/tmp/agency" {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
	if cfg.UndoWindow.Std() != 30*time.Minute {
		t.Errorf("UndoWindow = %s", cfg.UndoWindow.Std())
	}
	// Untouched keys keep their defaults.
	if cfg.DecayRatePerDay != 0.15 {
		t.Errorf("DecayRatePerDay = %v", cfg.DecayRatePerDay)
	}
	if len(cfg.TierBounds) != 4 || cfg.TierBounds[3] != 0.95 {
		t.Errorf("TierBounds = %v", cfg.TierBounds)
	}
	if cfg.Redis.Address != "localhost:6379" || cfg.Redis.Stream != "custom:events" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.DBPath() != filepath.Join("/tmp/agency", "agency.db") {
		t.Errorf("DBPath = %s", cfg.DBPath())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.yaml")
	if err := os.WriteFile(path, []byte("undo_window: -5m\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative undo window")
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("AGENCY_DATA_DIR", "/custom/dir")
	t.Setenv("AGENCY_DB", "custom.db")
	cfg := Default()
	if cfg.DataDir != "/custom/dir" || cfg.DBFile != "custom.db" {
		t.Errorf("env fallbacks not applied: %+v", cfg)
	}
}
