package session

import "github.com/matheus3301/duochat/internal/config"

const DefaultProfile = "main"

// Resolve determines the active profile using precedence:
// 1. flagOverride (--profile flag)
// 2. DUOCHAT_PROFILE
// 3. config.toml default_profile
// 4. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg := config.LoadOrDefault(ConfigPath())
	cfg.ApplyEnv()
	if cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultProfile
}
