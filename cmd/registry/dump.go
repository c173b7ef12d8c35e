package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/idrep-contract/tests/dump"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var dumpCommand = cli.Command{
	Name:  "dump",
	Usage: "Dump Registry contract state and storage for migration tests",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "label, l",
			Usage: "label of the blockchain environment (e.g. 'testnet')",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "output directory",
			Value: "testdata",
		},
	},
	Action: dumpContract,
}

func dumpContract(c *cli.Context) error {
	label := c.String("label")
	if label == "" {
		return errors.New("missing blockchain label")
	}

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

	rootDir := c.String("out")

	err = os.MkdirAll(rootDir, 0700)
	if err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}

	ctx := context.Background()

	rpc, err := dialRPC(ctx, cfg)
	if err != nil {
		return err
	}
	defer rpc.Close()

	b, err := newRemoteBlockChain(rpc)
	if err != nil {
		return fmt.Errorf("init remote blockchain: %w", err)
	}

	d, err := dump.NewCreator(rootDir, dump.ID{
		Label: label,
		Block: b.currentBlock,
	})
	if err != nil {
		return fmt.Errorf("init local dumper: %w", err)
	}

	st, err := b.getContractState(contract)
	if err != nil {
		return err
	}

	d.SetContract(st)

	err = b.iterateContractStorage(contract, d.Write)
	if err != nil {
		return fmt.Errorf("iterate contract storage: %w", err)
	}

	err = d.Flush()
	if err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}

	log.Info("Registry contract successfully dumped",
		zap.String("dir", rootDir), zap.Uint32("block", b.currentBlock),
		zap.Int("items", d.Items()), zap.Int("skipped", d.Skipped()))

	return nil
}
