package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "saman"
	cfg.Store.Address = "localhost:7070"
	cfg.Timing.Heartbeat = Duration{10 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "saman" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "saman")
	}
	if loaded.Store.Address != "localhost:7070" {
		t.Errorf("Store.Address = %q, want localhost:7070", loaded.Store.Address)
	}
	if loaded.Timing.Heartbeat.Duration != 10*time.Second {
		t.Errorf("Heartbeat = %v, want 10s", loaded.Timing.Heartbeat)
	}
	if loaded.Credentials["Rishabh"] != "1234" {
		t.Errorf("credentials not round-tripped: %v", loaded.Credentials)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "default_profile = \"work\"\n\n[timing]\ntyping_stop = \"3s\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timing.TypingStop.Duration != 3*time.Second {
		t.Errorf("TypingStop = %v, want 3s", cfg.Timing.TypingStop)
	}
	if cfg.Timing.Heartbeat.Duration != 30*time.Second {
		t.Errorf("Heartbeat = %v, want default 30s", cfg.Timing.Heartbeat)
	}
	if cfg.Timing.TypingStale.Duration != 5*time.Second {
		t.Errorf("TypingStale = %v, want default 5s", cfg.Timing.TypingStale)
	}
	if cfg.Timing.DeliveredAfter.Duration != time.Second {
		t.Errorf("DeliveredAfter = %v, want default 1s", cfg.Timing.DeliveredAfter)
	}
	if len(cfg.Credentials) != 2 {
		t.Errorf("credentials = %v, want built-in table", cfg.Credentials)
	}
}

func TestLoadReplacesCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[credentials]\nAlice = \"pw\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Credentials) != 1 || cfg.Credentials["Alice"] != "pw" {
		t.Errorf("credentials = %v, want only Alice", cfg.Credentials)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	if cfg := LoadOrDefault("/nonexistent/config.toml"); cfg.DefaultProfile != "main" {
		t.Errorf("LoadOrDefault profile = %q, want main", cfg.DefaultProfile)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[timing]\nheartbeat = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed duration")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvProfile, "saman")
	t.Setenv(EnvStoreAddress, "10.0.0.2:7070")
	t.Setenv(EnvStoreListen, ":7070")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.DefaultProfile != "saman" {
		t.Errorf("DefaultProfile = %q, want saman", cfg.DefaultProfile)
	}
	if cfg.Store.Address != "10.0.0.2:7070" {
		t.Errorf("Store.Address = %q", cfg.Store.Address)
	}
	if cfg.Store.Listen != ":7070" {
		t.Errorf("Store.Listen = %q", cfg.Store.Listen)
	}
}
