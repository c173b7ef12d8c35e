package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/idrep-contract/internal/config"
	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var walletFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "wallet, w",
		Usage: "path to the NEP-6 wallet, overrides configuration",
	},
	cli.StringFlag{
		Name:  "address, a",
		Usage: "wallet account address, overrides configuration",
	},
}

var errMissingArgs = errors.New("missing arguments")

// readConfig loads configuration and applies global flags on top of it.
func readConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if v := c.GlobalString("rpc"); v != "" {
		cfg.RPC.Endpoint = v
	}
	if v := c.GlobalString("contract"); v != "" {
		cfg.Contract.Hash = v
	}
	if c.GlobalBool("debug") {
		cfg.Logger.Level = zapcore.DebugLevel.String()
	}
	if c.IsSet("wallet") {
		cfg.Wallet.Path = c.String("wallet")
	}
	if c.IsSet("address") {
		cfg.Wallet.Address = c.String("address")
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lvl, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build()
}

func dialRPC(ctx context.Context, cfg *config.Config) (*rpcclient.Client, error) {
	c, err := rpcclient.New(ctx, cfg.RPC.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.RPC.DialTimeout,
		RequestTimeout: cfg.RPC.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	if err = c.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("init RPC client: %w", err)
	}

	return c, nil
}

// openAccount returns unlocked wallet account referenced by configuration. If
// address is not set, wallet's default change address is used.
func openAccount(cfg *config.Config, addr string) (*wallet.Account, error) {
	if cfg.Wallet.Path == "" {
		return nil, errors.New("wallet is not set")
	}

	w, err := wallet.NewWalletFromFile(cfg.Wallet.Path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	defer w.Close()

	h := w.GetChangeAddress()
	if addr != "" {
		h, err = address.StringToUint160(addr)
		if err != nil {
			return nil, fmt.Errorf("decode account address: %w", err)
		}
	}

	acc := w.GetAccount(h)
	if acc == nil {
		return nil, fmt.Errorf("account %s is missing in the wallet", address.Uint160ToString(h))
	}

	if err = acc.Decrypt(cfg.Wallet.Password, w.Scrypt); err != nil {
		return nil, fmt.Errorf("decrypt account %s: %w", acc.Address, err)
	}

	return acc, nil
}

// parseAccount decodes account from Neo address or little-endian hex string.
func parseAccount(s string) (util.Uint160, error) {
	if h, err := address.StringToUint160(s); err == nil {
		return h, nil
	}

	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("invalid account '%s': neither address nor hex script hash", s)
	}

	return h, nil
}

// checkResult converts result of the awaited transaction into an error
// describing contract fault if any.
func checkResult(res *state.AppExecResult, err error) error {
	if err != nil {
		return fmt.Errorf("await transaction: %w", err)
	}

	if res.VMState != vmstate.Halt {
		if err = registry.FaultError(res.FaultException); err != nil {
			return err
		}
		return fmt.Errorf("transaction %s failed with %s state", res.Container.StringLE(), res.VMState)
	}

	return nil
}
