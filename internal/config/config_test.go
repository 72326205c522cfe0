package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/headsync/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if !cfg.Deferred() {
		t.Error("Deferred() should default to true")
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.PublishEnabled() {
		t.Error("PublishEnabled() should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E100") {
		t.Errorf("Load() error = %v, want E100", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "defer": false,
  "rules": "rules/head.yaml",
  "server": {"addr": "127.0.0.1:9000"},
  "render": {"pretty": true},
  "log": {"level": "debug"},
  "publish": {"bucket": "site", "key": "head.html", "region": "eu-west-1"}
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Deferred() {
		t.Error("Deferred() = true, want false")
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if !cfg.Render.Pretty {
		t.Error("Render.Pretty should be true")
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, default should be applied", cfg.Log.Format)
	}
	if want := filepath.Join(tmpDir, "rules", "head.yaml"); cfg.RulesPath() != want {
		t.Errorf("RulesPath() = %q, want %q", cfg.RulesPath(), want)
	}
	if !cfg.PublishEnabled() {
		t.Error("PublishEnabled() should be true")
	}
	if cfg.Path() != configPath || cfg.Dir() != tmpDir {
		t.Errorf("Path() = %q, Dir() = %q", cfg.Path(), cfg.Dir())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadDefaultsWhenFieldsAbsent(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Deferred() || cfg.Server.Addr != DefaultAddr {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.RulesPath() != "" {
		t.Errorf("RulesPath() = %q, want empty", cfg.RulesPath())
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{"defer": "yes"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpDir); !errors.HasCode(err, "E101") {
		t.Errorf("Load() error = %v, want E101", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad addr", func(c *Config) { c.Server.Addr = "7070" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bucket without key", func(c *Config) { c.Publish = PublishConfig{Bucket: "b", Region: "r"} }},
		{"bucket without region", func(c *Config) { c.Publish = PublishConfig{Bucket: "b", Key: "k"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.HasCode(err, "E102") {
				t.Errorf("Validate() error = %v, want E102", err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	cfg.Publish.Bucket = "site"
	path := filepath.Join(tmpDir, ConfigFileName)

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}
	again, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Publish.Bucket != "site" {
		t.Errorf("Publish.Bucket = %q after round trip", again.Publish.Bucket)
	}
	if err := again.Save(); err != nil {
		t.Errorf("Save() error: %v", err)
	}
	if err := New().Save(); err == nil {
		t.Error("Save() without a path should fail")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error: %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("root = %q, want %q", root, want)
	}
	if !Exists(tmpDir) || Exists(nested) {
		t.Error("Exists() mismatch")
	}
}
