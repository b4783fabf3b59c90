package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/duochat/internal/config"
)

func TestProfileDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := ProfileDir("main")
	want := filepath.Join(home, ".duochat", "profiles", "main")
	if got != want {
		t.Errorf("ProfileDir(main) = %q, want %q", got, want)
	}
}

func TestIdentityPath(t *testing.T) {
	got := IdentityPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "identity.json")) {
		t.Errorf("IdentityPath(test) = %q, want suffix profiles/test/identity.json", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("duochatd")
	if !strings.HasSuffix(got, filepath.Join(".duochat", "logs", "duochatd.log")) {
		t.Errorf("LogPath(duochatd) = %q", got)
	}
}

func TestStoreTarget(t *testing.T) {
	tests := []struct {
		name  string
		store config.Store
		want  string
	}{
		{"default socket", config.Store{}, SocketPath()},
		{"configured socket", config.Store{Socket: "/tmp/x.sock"}, "/tmp/x.sock"},
		{"address wins", config.Store{Socket: "/tmp/x.sock", Address: "db.lan:7070"}, "db.lan:7070"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store = tt.store
			if got := StoreTarget(cfg); got != tt.want {
				t.Errorf("StoreTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDataDir(t *testing.T) {
	cfg := config.Default()
	if got := DataDir(cfg); got != StoreDir() {
		t.Errorf("DataDir() = %q, want %q", got, StoreDir())
	}
	cfg.Store.DataDir = "/srv/duochat"
	if got := DataDir(cfg); got != "/srv/duochat" {
		t.Errorf("DataDir() = %q, want /srv/duochat", got)
	}
}

func TestResolveFlagWins(t *testing.T) {
	t.Setenv(config.EnvProfile, "fromenv")
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q", got)
	}
	if got := Resolve(""); got != "fromenv" {
		t.Errorf("Resolve(\"\") = %q, want fromenv", got)
	}
}
