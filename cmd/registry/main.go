// Command registry is a command-line client of the Registry contract. It reads
// and writes profiles and reputation, deploys the contract, runs the
// off-chain indexer and dumps contract storage for migration tests.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "registry"
	app.Usage = "Identity and reputation registry client"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the YAML configuration file",
		},
		cli.StringFlag{
			Name:  "rpc, r",
			Usage: "Neo RPC node endpoint, overrides configuration",
		},
		cli.StringFlag{
			Name:  "contract",
			Usage: "Registry contract address or LE hash, overrides configuration",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug logging",
		},
	}
	app.Commands = []cli.Command{
		profileCommand,
		givenCommand,
		accountsCommand,
		registerCommand,
		updateMetadataCommand,
		giveCommand,
		deployCommand,
		indexCommand,
		leaderboardCommand,
		checkCommand,
		dumpCommand,
	}

	return app
}
