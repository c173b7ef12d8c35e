package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var registerCommand = cli.Command{
	Name:      "register",
	Usage:     "Register wallet account with the given metadata URI",
	ArgsUsage: "<uri>",
	Flags:     walletFlags,
	Action:    register,
}

var updateMetadataCommand = cli.Command{
	Name:      "update-metadata",
	Usage:     "Replace metadata URI of the registered wallet account",
	ArgsUsage: "<uri>",
	Flags:     walletFlags,
	Action:    updateMetadata,
}

var giveCommand = cli.Command{
	Name:      "give",
	Usage:     "Give reputation points from wallet account to another account",
	ArgsUsage: "<to> <amount>",
	Flags:     walletFlags,
	Action:    give,
}

// withContract dials RPC node, opens wallet account and passes Registry
// contract client acting on behalf of this account into f. f returns result of
// the sent transaction which is awaited then.
func withContract(c *cli.Context, f func(acc util.Uint160, r *registry.Contract) (util.Uint256, uint32, error)) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	contract, err := cfg.ContractHash()
	if err != nil {
		return err
	}

	acc, err := openAccount(cfg, cfg.Wallet.Address)
	if err != nil {
		return err
	}

	rpc, err := dialRPC(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer rpc.Close()

	act, err := actor.NewSimple(rpc, acc)
	if err != nil {
		return fmt.Errorf("init actor: %w", err)
	}

	txHash, vub, err := f(acc.ScriptHash(), registry.New(act, contract))
	if err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}

	log.Debug("transaction sent, waiting...",
		zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	err = checkResult(act.Wait(txHash, vub, nil))
	if err != nil {
		return err
	}

	log.Info("transaction successfully executed",
		zap.Stringer("tx", txHash), zap.String("account", address.Uint160ToString(acc.ScriptHash())))

	return nil
}

func register(c *cli.Context) error {
	if c.NArg() < 1 {
		return errMissingArgs
	}

	uri := c.Args().Get(0)

	return withContract(c, func(acc util.Uint160, r *registry.Contract) (util.Uint256, uint32, error) {
		return r.Register(acc, uri)
	})
}

func updateMetadata(c *cli.Context) error {
	if c.NArg() < 1 {
		return errMissingArgs
	}

	uri := c.Args().Get(0)

	return withContract(c, func(acc util.Uint160, r *registry.Contract) (util.Uint256, uint32, error) {
		return r.UpdateMetadata(acc, uri)
	})
}

func give(c *cli.Context) error {
	if c.NArg() < 2 {
		return errMissingArgs
	}

	to, err := parseAccount(c.Args().Get(0))
	if err != nil {
		return err
	}

	amount, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	return withContract(c, func(acc util.Uint160, r *registry.Contract) (util.Uint256, uint32, error) {
		return r.GiveReputation(acc, to, big.NewInt(amount))
	})
}
