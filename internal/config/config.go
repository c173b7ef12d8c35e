// Package config provides configuration of registry tools. Configuration is
// read from YAML file on top of defaults and can be overridden by REGISTRY_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "REGISTRY_"

// Config is the root configuration structure.
type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Contract ContractConfig `yaml:"contract"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// RPCConfig contains Neo RPC node connection settings.
type RPCConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ContractConfig identifies deployed Registry contract.
type ContractConfig struct {
	// Hash is either Neo address or little-endian hex string of the
	// contract script hash.
	Hash string `yaml:"hash"`
}

// WalletConfig contains signing account settings.
type WalletConfig struct {
	Path     string `yaml:"path"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// IndexerConfig contains indexer database and synchronization settings.
type IndexerConfig struct {
	Path         string        `yaml:"path"`
	WALMode      bool          `yaml:"wal_mode"`
	BusyTimeout  int           `yaml:"busy_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggerConfig contains logging settings.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		RPC: RPCConfig{
			Endpoint:    "http://localhost:30333",
			DialTimeout: 10 * time.Second,
		},
		Indexer: IndexerConfig{
			Path:         "./data/registry.db",
			WALMode:      true,
			BusyTimeout:  5,
			PollInterval: time.Second,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML file at the given path. Empty path
// means defaults only. Environment overrides are applied in both cases and the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range []struct {
		key string
		dst *string
	}{
		{"RPC_ENDPOINT", &cfg.RPC.Endpoint},
		{"CONTRACT_HASH", &cfg.Contract.Hash},
		{"WALLET_PATH", &cfg.Wallet.Path},
		{"WALLET_ADDRESS", &cfg.Wallet.Address},
		{"WALLET_PASSWORD", &cfg.Wallet.Password},
		{"INDEXER_PATH", &cfg.Indexer.Path},
		{"LOGGER_LEVEL", &cfg.Logger.Level},
	} {
		if v := os.Getenv(envPrefix + o.key); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	var errs []string

	if c.RPC.Endpoint == "" {
		errs = append(errs, "rpc.endpoint is required")
	}
	if c.RPC.DialTimeout < 0 {
		errs = append(errs, "rpc.dial_timeout must not be negative")
	}
	if c.Contract.Hash != "" {
		if _, err := c.ContractHash(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Wallet.Address != "" {
		if _, err := address.StringToUint160(c.Wallet.Address); err != nil {
			errs = append(errs, fmt.Sprintf("wallet.address: %v", err))
		}
	}
	if c.Indexer.Path == "" {
		errs = append(errs, "indexer.path is required")
	}
	if c.Indexer.BusyTimeout < 0 {
		errs = append(errs, "indexer.busy_timeout must not be negative")
	}
	if c.Indexer.PollInterval <= 0 {
		errs = append(errs, "indexer.poll_interval must be positive")
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ContractHash parses Registry contract hash.
func (c *Config) ContractHash() (util.Uint160, error) {
	s := c.Contract.Hash
	if s == "" {
		return util.Uint160{}, fmt.Errorf("contract.hash is not set")
	}

	if h, err := address.StringToUint160(s); err == nil {
		return h, nil
	}

	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("contract.hash: neither address nor hex script hash: %s", s)
	}

	return h, nil
}

// LogLevel parses logger level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logger.Level)); err != nil {
		return lvl, fmt.Errorf("logger.level: %w", err)
	}
	return lvl, nil
}
