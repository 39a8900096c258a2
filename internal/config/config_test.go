package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Analysis.Tolerance != nil || cfg.Keys.Marker != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	src := `[analysis]
tolerance = 0.4
time-gap = 2.5

[keys]
marker = 21
low = 24

[server]
addr = ":9000"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Analysis.Tolerance == nil || *cfg.Analysis.Tolerance != 0.4 {
		t.Fatalf("unexpected tolerance %v", cfg.Analysis.Tolerance)
	}
	if cfg.Analysis.TimeGap == nil || *cfg.Analysis.TimeGap != 2.5 {
		t.Fatalf("unexpected time gap %v", cfg.Analysis.TimeGap)
	}
	if cfg.Analysis.FocusAway != nil {
		t.Fatalf("expected focus-away to stay unset")
	}
	if cfg.Keys.Marker == nil || *cfg.Keys.Marker != 21 || cfg.Keys.High != nil {
		t.Fatalf("unexpected keys %+v", cfg.Keys)
	}
	if cfg.Server.Addr == nil || *cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr %v", cfg.Server.Addr)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[analysis]\ntolerence = 1.0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for misspelled key")
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "keyscore", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "keyscore", "keyscore.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultScoreDir(); got != filepath.Join("/cfg", "keyscore", "scores") {
		t.Fatalf("unexpected score dir %q", got)
	}
}
