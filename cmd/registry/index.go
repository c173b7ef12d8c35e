package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/idrep-contract/indexer"
	"github.com/nspcc-dev/idrep-contract/internal/config"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/urfave/cli"
)

var indexCommand = cli.Command{
	Name:   "index",
	Usage:  "Replay registry notifications from the chain into local database",
	Action: index,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "once",
			Usage: "apply persisted blocks and exit",
		},
	},
}

var leaderboardCommand = cli.Command{
	Name:   "leaderboard",
	Usage:  "Print indexed accounts with the highest reputation",
	Action: leaderboard,
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "limit, n",
			Usage: "number of accounts to print",
			Value: 10,
		},
	},
}

var checkCommand = cli.Command{
	Name:   "check",
	Usage:  "Check consistency of the indexed reputation",
	Action: check,
}

func openStore(ctx context.Context, cfg *config.Config) (*indexer.Store, error) {
	return indexer.Open(ctx, indexer.Config{
		Path:        cfg.Indexer.Path,
		WALMode:     cfg.Indexer.WALMode,
		BusyTimeout: cfg.Indexer.BusyTimeout,
	})
}

func index(c *cli.Context) error {
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rpc, err := dialRPC(ctx, cfg)
	if err != nil {
		return err
	}
	defer rpc.Close()

	s := indexer.NewSyncer(indexer.SyncerPrm{
		Logger:       log,
		Chain:        rpc,
		Store:        st,
		Contract:     contract,
		PollInterval: cfg.Indexer.PollInterval,
	})

	if c.Bool("once") {
		n, err := s.SyncOnce(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "applied %d blocks\n", n)

		return nil
	}

	return s.Run(ctx)
}

var errInvalidLimit = errors.New("limit must be positive")

func leaderboard(c *cli.Context) error {
	limit := c.Int("limit")
	if limit <= 0 {
		return fmt.Errorf("%w: %d", errInvalidLimit, limit)
	}

	cfg, err := readConfig(c)
	if err != nil {
		return err
	}

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}

	for i := range list {
		fmt.Fprintf(c.App.Writer, "%d\t%s\t%d\t%s\n", i+1,
			address.Uint160ToString(list[i].Account), list[i].Reputation, list[i].MetadataURI)
	}

	return nil
}

func check(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	h, err := st.Height(ctx)
	if err != nil {
		return err
	}

	if err = st.CheckConsistency(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "index is consistent at height %d\n", h)

	return nil
}
