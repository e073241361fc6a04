package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8000}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_CacheRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}
	expected := "cache.addrs is required when cache.enabled is true"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}

	cfg.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DisabledCacheNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		t.Run("level="+level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for level %q: %v", level, err)
			}
		})
	}

	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestValidate_NegativeThreads(t *testing.T) {
	cfg := validConfig()
	cfg.Model.IntraOpThreads = -2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative intra_op_threads")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.HTTP.MaxUploadBytes != 20<<20 {
		t.Errorf("expected MaxUploadBytes=20MiB, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 1 || cfg.HTTP.CORSAllowedOrigins[0] != "*" {
		t.Errorf("expected permissive CORS, got %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Model.Manifest != "artifacts/manifest.yaml" {
		t.Errorf("unexpected manifest default %q", cfg.Model.Manifest)
	}
	if cfg.Model.Sessions != 1 {
		t.Errorf("expected Sessions=1, got %d", cfg.Model.Sessions)
	}
	if cfg.Model.MaxImagePixels != 40_000_000 {
		t.Errorf("expected MaxImagePixels=40000000, got %d", cfg.Model.MaxImagePixels)
	}
	if cfg.Cache.Enabled {
		t.Error("cache must be disabled by default")
	}
	if cfg.Cache.TTL() != time.Hour {
		t.Errorf("expected TTL=1h, got %v", cfg.Cache.TTL())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 9000, ReadTimeoutSec: 5, MaxUploadBytes: 1024, CORSAllowedOrigins: []string{"https://shop.example"}},
		Model: ModelConfig{Manifest: "/models/m.yaml", Sessions: 4},
		Cache: CacheConfig{TTLSec: 60, ReadinessTimeout: 3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 5 || cfg.HTTP.MaxUploadBytes != 1024 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.HTTP.CORSAllowedOrigins[0] != "https://shop.example" {
		t.Errorf("cors overridden: %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Model.Manifest != "/models/m.yaml" || cfg.Model.Sessions != 4 {
		t.Errorf("model overridden: %+v", cfg.Model)
	}
	if cfg.Cache.TTLSec != 60 || cfg.Cache.ReadinessTimeout != 3 {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TIERSCORE_TEST_PORT", "9100")
	t.Setenv("TIERSCORE_TEST_MANIFEST", "")

	path := filepath.Join(t.TempDir(), "test.yaml")
	body := `
http:
  port: ${TIERSCORE_TEST_PORT}
model:
  manifest: ${TIERSCORE_TEST_MANIFEST:-artifacts/v2/manifest.yaml}
  sessions: 2
cache:
  enabled: true
  addrs: ["${TIERSCORE_TEST_CACHE:-localhost:6379}"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.HTTP.Port)
	}
	if cfg.Model.Manifest != "artifacts/v2/manifest.yaml" {
		t.Errorf("expected default manifest, got %q", cfg.Model.Manifest)
	}
	if cfg.Model.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", cfg.Model.Sessions)
	}
	if len(cfg.Cache.Addrs) != 1 || cfg.Cache.Addrs[0] != "localhost:6379" {
		t.Errorf("unexpected cache addrs: %v", cfg.Cache.Addrs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("http: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("cache:\n  enabled: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}

func TestLoad_ShippedConfigs(t *testing.T) {
	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			if _, err := Load(env); err != nil {
				t.Fatalf("config/%s.yaml: %v", env, err)
			}
		})
	}
}
