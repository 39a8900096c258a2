package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keyscore/internal/config"
)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	meta, err := toml.Decode(defaultConfigTemplate(), &cfg)
	if err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if len(meta.Undecoded()) != 0 {
		t.Fatalf("unexpected keys: %v", meta.Undecoded())
	}
	if cfg.Analysis.Tolerance != nil || cfg.Server.Addr != nil {
		t.Fatalf("template values should be commented out")
	}
}

func TestParseAttempts(t *testing.T) {
	got, err := parseAttempts(" 2, 0 ,1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("unexpected indices: %v", got)
	}
	if got, err := parseAttempts(""); err != nil || got != nil {
		t.Fatalf("empty list: %v, %v", got, err)
	}
	if _, err := parseAttempts("1,x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseSessionID(t *testing.T) {
	if id, err := parseSessionID("12"); err != nil || id != 12 {
		t.Fatalf("unexpected result: %d, %v", id, err)
	}
	for _, raw := range []string{"0", "-3", "abc"} {
		if _, err := parseSessionID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := config.DefaultConfigPath()
	writeConfig(t, path, "[analysis]\ntolerance = 0.25\ntime-gap = 1.5\n")

	cmd := newWindowCmd()
	if err := cmd.ParseFlags([]string{"--time-gap", "2"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadSettings(cmd); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	cfg := analysisConfig()
	if cfg.Tolerance != 0.25 {
		t.Fatalf("expected tolerance from config, got %v", cfg.Tolerance)
	}
	if cfg.TimeGapThreshold != 2 {
		t.Fatalf("expected time gap from flag, got %v", cfg.TimeGapThreshold)
	}
}

func TestSimulateAnalyzeFlow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	db := filepath.Join(dir, "keyscore.db")

	out := runRoot(t, "--db", db, "-q", "simulate", "--seed", "7", "--attempts", "2", "--song", "cuckoo")
	if !strings.Contains(out, "Simulated session 1") {
		t.Fatalf("unexpected simulate output: %q", out)
	}

	out = runRoot(t, "--db", db, "sessions")
	if !strings.Contains(out, "simulated") || !strings.Contains(out, "cuckoo") {
		t.Fatalf("session missing from list: %q", out)
	}

	out = runRoot(t, "--db", db, "-q", "analyze", "1", "--tsv", "--save")
	fields := strings.Split(strings.TrimSpace(out), "\t")
	if len(fields) != 10 {
		t.Fatalf("expected 10 columns, got %q", out)
	}

	out = runRoot(t, "--db", db, "-q", "window", "1", "1")
	if !strings.Contains(out, "Roll end:        end of recording") {
		t.Fatalf("last attempt should run to the end: %q", out)
	}
}

func TestAnalyzeRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	root := newRootCmd()
	root.SetArgs([]string{"--db", filepath.Join(dir, "k.db"), "analyze", "1", "--low", "90", "--high", "80"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error")
	}
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func writeConfig(t *testing.T, path, src string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
