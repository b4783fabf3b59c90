package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvProfile      = "DUOCHAT_PROFILE"
	EnvStoreAddress = "DUOCHAT_STORE_ADDRESS"
	EnvStoreListen  = "DUOCHAT_STORE_LISTEN"
)

// LoadEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides cfg fields from the environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvProfile); ok && v != "" {
		c.DefaultProfile = v
	}
	if v, ok := os.LookupEnv(EnvStoreAddress); ok && v != "" {
		c.Store.Address = v
	}
	if v, ok := os.LookupEnv(EnvStoreListen); ok && v != "" {
		c.Store.Listen = v
	}
}
