package main

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/idrep-contract/contracts"
	"github.com/nspcc-dev/idrep-contract/deploy"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/urfave/cli"
)

var deployCommand = cli.Command{
	Name:  "deploy",
	Usage: "Deploy Registry contract or update it to the compiled version",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "dir",
			Usage: "directory with compiled contract.nef and manifest.json",
			Value: contracts.RegistryDir,
		},
		cli.StringFlag{
			Name:  "committee",
			Usage: "address of the committee multi-sig wallet account used for update",
		},
	}, walletFlags...),
	Action: deployContract,
}

func deployContract(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctr, err := contracts.GetRegistry(c.String("dir"))
	if err != nil {
		return err
	}

	acc, err := openAccount(cfg, cfg.Wallet.Address)
	if err != nil {
		return err
	}

	var committee *wallet.Account
	if addr := c.String("committee"); addr != "" {
		committee, err = openAccount(cfg, addr)
		if err != nil {
			return fmt.Errorf("committee account: %w", err)
		}
	}

	ctx := context.Background()

	rpc, err := dialRPC(ctx, cfg)
	if err != nil {
		return err
	}
	defer rpc.Close()

	var prm deploy.Prm
	prm.Logger = log
	prm.Blockchain = rpc
	prm.LocalAccount = acc
	prm.CommitteeAccount = committee
	prm.RegistryContract.Common.NEF = ctr.NEF
	prm.RegistryContract.Common.Manifest = ctr.Manifest

	h, err := deploy.Deploy(ctx, prm)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, address.Uint160ToString(h))

	return nil
}
