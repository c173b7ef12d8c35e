package main

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/urfave/cli"
)

var profileCommand = cli.Command{
	Name:      "profile",
	Usage:     "Print registry profile of the account",
	ArgsUsage: "<account>",
	Action:    profile,
}

var givenCommand = cli.Command{
	Name:      "given",
	Usage:     "Print total reputation given by one account to another",
	ArgsUsage: "<from> <to>",
	Action:    given,
}

var accountsCommand = cli.Command{
	Name:   "accounts",
	Usage:  "List accounts having a profile",
	Action: accounts,
}

// withReader dials RPC node and passes Registry contract reader into f.
func withReader(c *cli.Context, f func(*registry.ContractReader) error) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}

	contract, err := cfg.ContractHash()
	if err != nil {
		return err
	}

	rpc, err := dialRPC(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer rpc.Close()

	return f(registry.NewReader(invoker.New(rpc, nil), contract))
}

func profile(c *cli.Context) error {
	if c.NArg() < 1 {
		return errMissingArgs
	}

	acc, err := parseAccount(c.Args().Get(0))
	if err != nil {
		return err
	}

	return withReader(c, func(r *registry.ContractReader) error {
		p, err := r.GetProfile(acc)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}

		fmt.Fprintf(c.App.Writer, "Account:    %s\n", address.Uint160ToString(acc))
		fmt.Fprintf(c.App.Writer, "Registered: %t\n", p.Registered)
		fmt.Fprintf(c.App.Writer, "Metadata:   %s\n", p.MetadataURI)
		fmt.Fprintf(c.App.Writer, "Reputation: %s\n", p.Reputation)

		return nil
	})
}

func given(c *cli.Context) error {
	if c.NArg() < 2 {
		return errMissingArgs
	}

	from, err := parseAccount(c.Args().Get(0))
	if err != nil {
		return err
	}

	to, err := parseAccount(c.Args().Get(1))
	if err != nil {
		return err
	}

	return withReader(c, func(r *registry.ContractReader) error {
		v, err := r.Given(from, to)
		if err != nil {
			return fmt.Errorf("get given reputation: %w", err)
		}

		fmt.Fprintln(c.App.Writer, v)

		return nil
	})
}

func accounts(c *cli.Context) error {
	return withReader(c, func(r *registry.ContractReader) error {
		list, err := r.ListAccounts()
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}

		for i := range list {
			fmt.Fprintln(c.App.Writer, address.Uint160ToString(list[i]))
		}

		return nil
	})
}
