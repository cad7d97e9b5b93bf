package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("expected port 8081 got %d", cfg.Server.Port)
	}
	if cfg.Auth.AccessTTL != 24*time.Hour || cfg.Auth.RefreshTTL != 720*time.Hour {
		t.Fatalf("unexpected ttls %v %v", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	}
	if !cfg.Registration.Open || cfg.Uploads.MaxBytes != 5*1024*1024 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DSN", "sqlite://override.db")
	t.Setenv("AUTH_ACCESS_TTL", "15m")
	t.Setenv("UPLOAD_BASE", "/srv/media")
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090 got %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "sqlite://override.db" {
		t.Fatalf("legacy DB_DSN not honoured: %q", cfg.Database.DSN)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m got %v", cfg.Auth.AccessTTL)
	}
	if cfg.Uploads.BaseDir != "/srv/media" {
		t.Fatalf("legacy UPLOAD_BASE not honoured: %q", cfg.Uploads.BaseDir)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "server:\n  port: 7000\nregistration:\n  open: false\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, v, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.ConfigFileUsed() != path {
		t.Fatalf("unexpected config file %q", v.ConfigFileUsed())
	}
	if cfg.Server.Port != 7000 || cfg.Registration.Open {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Uploads.AvatarSize != 400 {
		t.Fatalf("defaults lost after merge: %d", cfg.Uploads.AvatarSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for an explicit missing config file")
	}
}
