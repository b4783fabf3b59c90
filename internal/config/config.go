package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.duochat/config.toml.
type Config struct {
	DefaultProfile string            `toml:"default_profile"`
	Store          Store             `toml:"store"`
	Timing         Timing            `toml:"timing"`
	Credentials    map[string]string `toml:"credentials"`
}

// Store locates the duochatd daemon. Empty fields fall back to paths under
// the base directory.
type Store struct {
	Socket  string `toml:"socket"`
	Listen  string `toml:"listen"`
	Address string `toml:"address"`
	DataDir string `toml:"data_dir"`
}

// Timing holds the synchronizer periods.
type Timing struct {
	Heartbeat      Duration `toml:"heartbeat"`
	TypingStop     Duration `toml:"typing_stop"`
	TypingStale    Duration `toml:"typing_stale"`
	DeliveredAfter Duration `toml:"delivered_after"`
}

// Duration is a time.Duration stored as text ("30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Timing: Timing{
			Heartbeat:      Duration{30 * time.Second},
			TypingStop:     Duration{2 * time.Second},
			TypingStale:    Duration{5 * time.Second},
			DeliveredAfter: Duration{time.Second},
		},
		Credentials: map[string]string{
			"Rishabh": "1234",
			"Saman":   "chudail",
		},
	}
}

// Load reads config from the given path on top of Default. Returns nil and
// an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	// Decoding into a populated map merges keys; a file that lists
	// credentials replaces the built-in table instead.
	cfg.Credentials = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Credentials == nil {
		cfg.Credentials = Default().Credentials
	}
	cfg.fillTiming()
	return cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file cannot be read.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) fillTiming() {
	def := Default().Timing
	if c.Timing.Heartbeat.Duration <= 0 {
		c.Timing.Heartbeat = def.Heartbeat
	}
	if c.Timing.TypingStop.Duration <= 0 {
		c.Timing.TypingStop = def.TypingStop
	}
	if c.Timing.TypingStale.Duration <= 0 {
		c.Timing.TypingStale = def.TypingStale
	}
	if c.Timing.DeliveredAfter.Duration <= 0 {
		c.Timing.DeliveredAfter = def.DeliveredAfter
	}
}
