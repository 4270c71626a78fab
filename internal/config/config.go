package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds client settings.
type Config struct {
	ServerURL   string `yaml:"server_url"`
	SnapshotDir string `yaml:"snapshot_dir"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads CHAOS_* environment variables (with defaults), then overlays
// an optional YAML file named by CHAOS_CONFIG.
func Load() (Config, error) {
	cfg := Config{
		ServerURL:   getEnv("CHAOS_SERVER_URL", "ws://localhost:4000/socket"),
		SnapshotDir: getEnv("CHAOS_SNAPSHOT_DIR", defaultSnapshotDir()),
		LogLevel:    getEnv("CHAOS_LOG_LEVEL", "info"),
	}

	if path := os.Getenv("CHAOS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return cfg, nil
}

func defaultSnapshotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chaos-client"
	}
	return home + "/.chaos-client"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
