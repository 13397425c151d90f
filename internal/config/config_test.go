package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
auth:
  jwt_secret: file-secret
redis:
  enabled: true
  addr: cache:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("write_timeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("redis = %+v, want enabled at cache:6379", cfg.Redis)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: file-secret
`)
	t.Setenv("REGISTRY_JWT_SECRET", "env-secret")
	t.Setenv("REGISTRY_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt_secret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
}

func TestMissingFileUsesEnv(t *testing.T) {
	t.Setenv("REGISTRY_JWT_SECRET", "env-only")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-only" {
		t.Errorf("jwt_secret = %q", cfg.Auth.JWTSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secret", func(c *Config) { c.Auth.JWTSecret = "s" }, false},
		{"missing secret", func(c *Config) {}, true},
		{"bad port", func(c *Config) { c.Auth.JWTSecret = "s"; c.Server.Port = 0 }, true},
		{"unknown backend", func(c *Config) { c.Auth.JWTSecret = "s"; c.Ledger.Backend = "paper" }, true},
		{"chain backend without contract", func(c *Config) {
			c.Auth.JWTSecret = "s"
			c.Ledger.Backend = "chain"
		}, true},
		{"chain backend complete", func(c *Config) {
			c.Auth.JWTSecret = "s"
			c.Ledger.Backend = "chain"
			c.Chain.ContractHash = "0xabc"
			c.Chain.SignerAccount = "NXV7ZhHiyM1aHXwpVsRZC6BwNFP2jghXAq"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
