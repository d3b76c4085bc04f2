package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
	os.Exit(m.Run())
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Site.Name != "Folio" {
		t.Errorf("Expected default site name, got %q", cfg.Site.Name)
	}
	if cfg.Server.Port != "12600" {
		t.Errorf("Expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Expected default backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.PollInterval != 5 {
		t.Errorf("Expected default poll interval, got %d", cfg.Store.PollInterval)
	}
	if !cfg.Theme.AllowSwitching {
		t.Error("Expected theme switching to default to true")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
site:
  name: Test Site
store:
  backend: memory
  app_id: test-app
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if AppConfig.Site.Name != "Test Site" {
		t.Errorf("Expected configured site name, got %q", AppConfig.Site.Name)
	}
	if AppConfig.Store.AppID != "test-app" {
		t.Errorf("Expected configured app id, got %q", AppConfig.Store.AppID)
	}
	// Defaults still apply to unset fields
	if AppConfig.Server.Port != "12600" {
		t.Errorf("Expected default port, got %q", AppConfig.Server.Port)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("store: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := LoadConfig(path)
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigError for malformed yaml, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		cfg.Store.AppID = "app"
		cfg.Store.Backend = "memory"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing app id", func(c *Config) { c.Store.AppID = "" }, "store.app_id"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "dynamo" }, "store.backend"},
		{"sqlite without path", func(c *Config) {
			c.Store.Backend = "sqlite"
			c.Store.SQLite.Path = ""
		}, "store.sqlite.path"},
		{"s3 without bucket", func(c *Config) { c.Store.Backend = "s3"; c.Store.S3.Endpoint = "http://localhost" }, "store.s3.bucket"},
		{"s3 without endpoint", func(c *Config) { c.Store.Backend = "s3"; c.Store.S3.Bucket = "b" }, "store.s3.endpoint"},
		{"unknown auth provider", func(c *Config) { c.Auth.Provider = "oauth" }, "auth.provider"},
		{"bad poll interval", func(c *Config) { c.Store.PollInterval = 0 }, "store.poll_interval_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}

			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, cerr.Field)
			}
		})
	}
}

func TestPostsCollectionPath(t *testing.T) {
	got := PostsCollection("my-app", "user-1")
	want := "namespace/my-app/identity/user-1/posts"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	doc := PostDocument("my-app", "user-1", "p1")
	if doc != want+"/p1" {
		t.Errorf("Expected %q, got %q", want+"/p1", doc)
	}
}
