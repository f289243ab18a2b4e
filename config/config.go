package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Files ending in .yaml or .yml are read
// as YAML, everything else as TOML.
type Config struct {
	RPCAddress      string    `toml:"RPCAddress" yaml:"rpcAddress"`
	DataDir         string    `toml:"DataDir" yaml:"dataDir"`
	RPCReadTimeout  int       `toml:"RPCReadTimeout" yaml:"rpcReadTimeout"`
	RPCWriteTimeout int       `toml:"RPCWriteTimeout" yaml:"rpcWriteTimeout"`
	RPCIdleTimeout  int       `toml:"RPCIdleTimeout" yaml:"rpcIdleTimeout"`
	EventRetention  int       `toml:"EventRetention" yaml:"eventRetention"`
	Auth            Auth      `toml:"auth" yaml:"auth"`
	RateLimit       RateLimit `toml:"rate_limit" yaml:"rateLimit"`
	Logging         Logging   `toml:"logging" yaml:"logging"`
	Telemetry       Telemetry `toml:"telemetry" yaml:"telemetry"`
	Genesis         Genesis   `toml:"genesis" yaml:"genesis"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration written to path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for a fresh local ledger.
func Default() *Config {
	return &Config{
		RPCAddress:      "127.0.0.1:8645",
		DataDir:         "./flake-data",
		RPCReadTimeout:  15,
		RPCWriteTimeout: 15,
		RPCIdleTimeout:  60,
		EventRetention:  10_000,
		Auth: Auth{
			HMACSecretEnv: "FLAKE_JWT_SECRET",
			Issuer:        "flake-local",
			Audience:      "flake-rpc",
			ClockSkewSecs: 30,
		},
		RateLimit: RateLimit{RatePerSecond: 20, Burst: 40},
		Logging:   Logging{Level: "info", Env: "local", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Genesis:   Genesis{Allocations: []Allocation{}},
	}
}

// applyEnv resolves the JWT secret from the environment when it is not set
// inline.
func (c *Config) applyEnv() {
	if strings.TrimSpace(c.Auth.HMACSecret) != "" {
		return
	}
	if name := strings.TrimSpace(c.Auth.HMACSecretEnv); name != "" {
		c.Auth.HMACSecret = strings.TrimSpace(os.Getenv(name))
	}
}

// createDefault creates and saves a default configuration file. Roles are left
// empty so the operator has to name the owner before the daemon can start.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes cfg to path in the format selected by its extension.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
