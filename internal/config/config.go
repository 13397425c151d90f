// Package config loads the registry daemon configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full registryd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Chain     ChainConfig     `yaml:"chain"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	Passwd  string        `yaml:"password"`
	DB      int           `yaml:"db"`
	TTL     time.Duration `yaml:"ttl"`
}

type ChainConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	ContractHash   string        `yaml:"contract_hash"`
	SignerAccount  string        `yaml:"signer_account"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ResyncSchedule string        `yaml:"resync_schedule"`
}

// LedgerConfig selects where lifecycle submissions commit. "service"
// applies them to the local store; "chain" broadcasts to the contract.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a configuration suitable for local development with
// the service-backed ledger and no cache.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  5 * time.Minute,
		},
		Chain: ChainConfig{
			RPCURL:         "http://localhost:10332",
			PollInterval:   5 * time.Second,
			ResyncSchedule: "@every 1h",
		},
		Ledger: LedgerConfig{Backend: "service"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		CORS:     CORSConfig{AllowedOrigins: []string{"*"}},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error; environment
// variables alone can configure the daemon.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath is where registryd looks for its config when no -config
// flag is given.
func DefaultPath() string {
	return filepath.Join("config", "registry.yaml")
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "REGISTRY_HOST")
	setInt(&c.Server.Port, "REGISTRY_PORT")
	setString(&c.Auth.JWTSecret, "REGISTRY_JWT_SECRET")
	setString(&c.Database.DSN, "REGISTRY_DATABASE_DSN")
	setString(&c.Redis.Addr, "REGISTRY_REDIS_ADDR")
	setString(&c.Redis.Passwd, "REGISTRY_REDIS_PASSWORD")
	setString(&c.Chain.RPCURL, "REGISTRY_CHAIN_RPC_URL")
	setString(&c.Chain.ContractHash, "REGISTRY_CONTRACT_HASH")
	setString(&c.Chain.SignerAccount, "REGISTRY_SIGNER_ACCOUNT")
	setString(&c.Ledger.Backend, "REGISTRY_LEDGER_BACKEND")
	setString(&c.LogLevel, "REGISTRY_LOG_LEVEL")

	if v := os.Getenv("REGISTRY_REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = v == "true" || v == "1"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required (REGISTRY_JWT_SECRET)")
	}
	switch c.Ledger.Backend {
	case "service", "chain":
	default:
		return fmt.Errorf("ledger backend %q: must be \"service\" or \"chain\"", c.Ledger.Backend)
	}
	if c.Ledger.Backend == "chain" {
		if c.Chain.ContractHash == "" {
			return fmt.Errorf("chain contract_hash is required for the chain ledger backend")
		}
		if c.Chain.SignerAccount == "" {
			return fmt.Errorf("chain signer_account is required for the chain ledger backend")
		}
	}
	return nil
}
