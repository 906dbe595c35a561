package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/sdkcore/logger"
)

func TestBaseConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := BaseConfig{Name: "billing"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false and info logging", func(t *testing.T) {
		cfg := BaseConfig{Name: "billing", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit logging level wins", func(t *testing.T) {
		cfg := BaseConfig{Name: "billing", Logging: logger.Config{Level: "warn"}}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected warn, got %q", cfg.Logging.Level)
		}
	})
}

func TestBaseConfigValidate(t *testing.T) {
	valid := func(env string) BaseConfig {
		c := BaseConfig{Name: "billing", Environment: env}
		c.ApplyDefaults()
		return c
	}
	badLogging := valid("staging")
	badLogging.Logging.Format = "xml"

	tests := []struct {
		name    string
		cfg     BaseConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", valid("development"), false, ""},
		{"valid staging", valid("staging"), false, ""},
		{"valid production", valid("production"), false, ""},
		{"missing name", BaseConfig{Environment: "production"}, true, "name is required"},
		{"invalid environment", BaseConfig{Name: "billing", Environment: "invalid"}, true, "environment must be one of"},
		{"invalid logging", badLogging, true, "logging: logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type retrySection struct {
	Mode        string        `mapstructure:"mode"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

type testConfig struct {
	BaseConfig `mapstructure:",squash"`
	Endpoint   string       `mapstructure:"endpoint"`
	Retry      retrySection `mapstructure:"retry"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "billing.yml", `
name: billing
environment: staging
endpoint: https://billing.example.test
retry:
  mode: adaptive
  max_attempts: 5
  max_backoff: 2s
`)

	var cfg testConfig
	if err := LoadConfig("billing", &cfg, WithConfigFile(path), WithEnvPrefix("SDKCORE_TEST_NONE"), WithLogger(logger.Nop())); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "billing" || cfg.Environment != "staging" {
		t.Errorf("base = %+v", cfg.BaseConfig)
	}
	if cfg.Endpoint != "https://billing.example.test" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	want := retrySection{Mode: "adaptive", MaxAttempts: 5, MaxBackoff: 2 * time.Second}
	if cfg.Retry != want {
		t.Errorf("retry = %+v, want %+v", cfg.Retry, want)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "billing.yml", `
name: billing
retry:
  mode: standard
  max_attempts: 3
`)
	t.Setenv("SDKTEST_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("SDKTEST_ENDPOINT", "http://127.0.0.1:9000")
	t.Setenv("RETRY_MODE", "off") // no prefix, ignored

	var cfg testConfig
	if err := LoadConfig("billing", &cfg, WithConfigFile(path), WithEnvPrefix("sdktest_"), WithLogger(logger.Nop())); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("max_attempts = %d, want 7", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Mode != "standard" {
		t.Errorf("mode = %q, want standard", cfg.Retry.Mode)
	}
	if cfg.Endpoint != "http://127.0.0.1:9000" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "SDKENV_ENDPOINT=https://from-env-file.example.test\n")
	t.Cleanup(func() { os.Unsetenv("SDKENV_ENDPOINT") })

	var cfg testConfig
	err := LoadConfig("billing", &cfg,
		WithConfigFile(filepath.Join(dir, "missing.yml")),
		WithEnvFile(envPath),
		WithEnvPrefix("SDKENV"),
		WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Endpoint != "https://from-env-file.example.test" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	// A missing file is not an error; the config is simply left empty.
	err := LoadConfig("nonexistent", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("SDKCORE_TEST_NONE"), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
	if cfg.Name != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("applies defaults", func(t *testing.T) {
		path := writeFile(t, dir, "ok.yml", "name: billing\n")
		cfg, err := Load[testConfig]("billing", WithConfigFile(path), WithEnvPrefix("SDKCORE_TEST_NONE"), WithLogger(logger.Nop()))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Environment != "development" || cfg.Logging.Format != "json" {
			t.Errorf("defaults not applied: %+v", cfg.BaseConfig)
		}
	})

	t.Run("validates", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yml", "environment: production\n")
		_, err := Load[testConfig]("billing", WithConfigFile(path), WithEnvPrefix("SDKCORE_TEST_NONE"), WithLogger(logger.Nop()))
		if err == nil || !strings.Contains(err.Error(), "name is required") {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestResolverWithMockFS(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]bool
		wantConfig string
		wantEnv    string
	}{
		{
			name:       "named config preferred",
			files:      map[string]bool{"./config/billing.yml": true, "./config.yml": true},
			wantConfig: "./config/billing.yml",
		},
		{
			name:       "generic config fallback",
			files:      map[string]bool{"./config.yml": true, "./.env": true},
			wantConfig: "./config.yml",
			wantEnv:    "./.env",
		},
		{
			name:    "named env file preferred",
			files:   map[string]bool{"../config/.env.billing": true, "./.env": true},
			wantEnv: "../config/.env.billing",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &Resolver{FileSystem: &mockFS{files: tc.files}}
			files := resolver.ResolveFiles("billing", LoaderConfig{})
			if files.ConfigFile != tc.wantConfig {
				t.Errorf("config file = %q, want %q", files.ConfigFile, tc.wantConfig)
			}
			if files.EnvFile != tc.wantEnv {
				t.Errorf("env file = %q, want %q", files.EnvFile, tc.wantEnv)
			}
		})
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{files: map[string]bool{"./config.yml": true}}}
	files := resolver.ResolveFiles("billing", LoaderConfig{ConfigFile: "/etc/billing.yml", EnvFile: "/etc/billing.env"})
	if files.ConfigFile != "/etc/billing.yml" || files.EnvFile != "/etc/billing.env" {
		t.Errorf("files = %+v", files)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("TIMEOUTS_OPERATION_ATTEMPT")
	for _, want := range []string{
		"timeouts_operation_attempt",
		"timeouts.operation.attempt",
		"timeouts.operation_attempt",
	} {
		if !slices.Contains(got, want) {
			t.Errorf("variants %v missing %q", got, want)
		}
	}
	if got := generateEnvKeyVariants("ENDPOINT"); len(got) != 1 || got[0] != "endpoint" {
		t.Errorf("single-part variants = %v", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("sdk_")(&lc)

	if lc.FileSystem != fs {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("paths = %q, %q", lc.ConfigFile, lc.EnvFile)
	}
	if lc.EnvPrefix != "SDK" {
		t.Errorf("prefix = %q, want SDK", lc.EnvPrefix)
	}
}
