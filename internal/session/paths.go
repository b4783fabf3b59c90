package session

import (
	"os"
	"path/filepath"

	"github.com/matheus3301/duochat/internal/config"
)

// BaseDir returns ~/.duochat.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".duochat")
}

// ProfileDir returns the profile-specific directory.
func ProfileDir(profile string) string {
	return filepath.Join(BaseDir(), "profiles", profile)
}

// IdentityPath returns the persisted identity file for a profile.
func IdentityPath(profile string) string {
	return filepath.Join(ProfileDir(profile), "identity.json")
}

// StoreDir returns the default duochatd data directory.
func StoreDir() string {
	return filepath.Join(BaseDir(), "store")
}

// SocketPath returns the default duochatd socket path.
func SocketPath() string {
	return filepath.Join(StoreDir(), "duochatd.sock")
}

// DBPath returns the tree database inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "tree.db")
}

// LogDir returns the shared log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the log file path for a binary.
func LogPath(name string) string {
	return filepath.Join(LogDir(), name+".log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DataDir returns the daemon data directory configured in cfg.
func DataDir(cfg *config.Config) string {
	if cfg.Store.DataDir != "" {
		return cfg.Store.DataDir
	}
	return StoreDir()
}

// DaemonSocket returns the socket duochatd listens on.
func DaemonSocket(cfg *config.Config) string {
	if cfg.Store.Socket != "" {
		return cfg.Store.Socket
	}
	return SocketPath()
}

// StoreTarget returns what clients dial: an explicit address wins over the
// local socket.
func StoreTarget(cfg *config.Config) string {
	if cfg.Store.Address != "" {
		return cfg.Store.Address
	}
	return DaemonSocket(cfg)
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(profile string) error {
	dirs := []string{
		ProfileDir(profile),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
