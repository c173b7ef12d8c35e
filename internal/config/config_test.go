package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoad(t *testing.T) {
	h := util.Uint160{1, 2, 3}

	p := writeConfig(t, `
rpc:
  endpoint: "http://node:40332"
  dial_timeout: 3s
contract:
  hash: "`+h.StringLE()+`"
wallet:
  path: "/wallets/w.json"
indexer:
  path: "/data/idx.db"
  poll_interval: 250ms
logger:
  level: debug
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "http://node:40332", cfg.RPC.Endpoint)
	require.Equal(t, 3*time.Second, cfg.RPC.DialTimeout)
	require.Equal(t, "/wallets/w.json", cfg.Wallet.Path)
	require.Equal(t, "/data/idx.db", cfg.Indexer.Path)
	require.Equal(t, 250*time.Millisecond, cfg.Indexer.PollInterval)
	require.True(t, cfg.Indexer.WALMode)
	require.Equal(t, 5, cfg.Indexer.BusyTimeout)

	actual, err := cfg.ContractHash()
	require.NoError(t, err)
	require.Equal(t, h, actual)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	require.Error(t, err)

	_, err = Load(writeConfig(t, "rpc: [endpoint"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "logger:\n  level: loud\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "contract:\n  hash: xyz\n"))
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = cfg.ContractHash()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	h := util.Uint160{4, 5, 6}
	addr := address.Uint160ToString(util.Uint160{7})

	t.Setenv("REGISTRY_RPC_ENDPOINT", "http://env:30333")
	t.Setenv("REGISTRY_CONTRACT_HASH", address.Uint160ToString(h))
	t.Setenv("REGISTRY_WALLET_ADDRESS", addr)
	t.Setenv("REGISTRY_WALLET_PASSWORD", "pass")
	t.Setenv("REGISTRY_INDEXER_PATH", "/env/idx.db")
	t.Setenv("REGISTRY_LOGGER_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "rpc:\n  endpoint: http://file:30333\n"))
	require.NoError(t, err)
	require.Equal(t, "http://env:30333", cfg.RPC.Endpoint)
	require.Equal(t, addr, cfg.Wallet.Address)
	require.Equal(t, "pass", cfg.Wallet.Password)
	require.Equal(t, "/env/idx.db", cfg.Indexer.Path)
	require.Equal(t, "warn", cfg.Logger.Level)

	actual, err := cfg.ContractHash()
	require.NoError(t, err)
	require.Equal(t, h, actual)
}

func TestValidate(t *testing.T) {
	for name, mod := range map[string]func(*Config){
		"no endpoint":      func(c *Config) { c.RPC.Endpoint = "" },
		"negative timeout": func(c *Config) { c.RPC.DialTimeout = -time.Second },
		"bad address":      func(c *Config) { c.Wallet.Address = "NotAnAddress" },
		"no indexer path":  func(c *Config) { c.Indexer.Path = "" },
		"zero interval":    func(c *Config) { c.Indexer.PollInterval = 0 },
		"negative busy":    func(c *Config) { c.Indexer.BusyTimeout = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mod(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Contract.Hash = "0x" + util.Uint160{9}.StringLE()
	require.NoError(t, cfg.Validate())
}
