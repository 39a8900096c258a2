// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Keys     KeysConfig     `toml:"keys"`
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
}

// AnalysisConfig maps scoring thresholds.
type AnalysisConfig struct {
	Tolerance *float64 `toml:"tolerance"`
	TimeGap   *float64 `toml:"time-gap"`
	FocusAway *float64 `toml:"focus-away"`
}

// KeysConfig maps the keyboard layout.
type KeysConfig struct {
	Marker *int `toml:"marker"`
	Low    *int `toml:"low"`
	High   *int `toml:"high"`
}

// ServerConfig maps HTTP API settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
}

// StorageConfig maps file locations.
type StorageConfig struct {
	DB     *string `toml:"db"`
	Scores *string `toml:"scores"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
