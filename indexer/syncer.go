package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

// DefaultPollInterval is the default interval between chain height checks.
const DefaultPollInterval = time.Second

// Chain is the part of the RPC client used by Syncer. It's implemented by
// [rpcclient.Client].
type Chain interface {
	GetBlockCount() (uint32, error)
	GetBlockByIndex(index uint32) (*block.Block, error)
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
}

// SyncerPrm groups parameters of Syncer.
type SyncerPrm struct {
	Logger *zap.Logger

	Chain Chain
	Store *Store

	// Registry contract hash.
	Contract util.Uint160

	// PollInterval between chain height checks, DefaultPollInterval if zero.
	PollInterval time.Duration
}

// Syncer replays registry notifications from the chain into the Store.
type Syncer struct {
	log      *zap.Logger
	chain    Chain
	store    *Store
	contract util.Uint160
	interval time.Duration
}

// NewSyncer constructs Syncer from the given parameters.
func NewSyncer(prm SyncerPrm) *Syncer {
	s := &Syncer{
		log:      prm.Logger,
		chain:    prm.Chain,
		store:    prm.Store,
		contract: prm.Contract,
		interval: prm.PollInterval,
	}

	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}

	return s
}

// SyncOnce applies all blocks persisted by the chain but not yet applied to
// the store. It returns the number of applied blocks.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	from, err := s.store.Height(ctx)
	if err != nil {
		return 0, err
	}

	count, err := s.chain.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}

	var applied int
	for index := from; index < count; index++ {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		events, err := s.blockEvents(index)
		if err != nil {
			return applied, fmt.Errorf("block %d: %w", index, err)
		}

		ok, err := s.store.ApplyBlock(ctx, index, events)
		if err != nil {
			return applied, err
		}

		if ok {
			applied++
			if len(events) != 0 {
				s.log.Debug("registry events applied",
					zap.Uint32("block", index), zap.Int("events", len(events)))
			}
		}
	}

	return applied, nil
}

func (s *Syncer) blockEvents(index uint32) ([]registry.Event, error) {
	b, err := s.chain.GetBlockByIndex(index)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}

	trig := trigger.Application

	var res []registry.Event
	for _, tx := range b.Transactions {
		log, err := s.chain.GetApplicationLog(tx.Hash(), &trig)
		if err != nil {
			return nil, fmt.Errorf("get application log of %s: %w", tx.Hash().StringLE(), err)
		}

		events, err := registry.EventsFromApplicationLog(log, s.contract)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.Hash().StringLE(), err)
		}

		res = append(res, events...)
	}

	return res, nil
}

// Run synchronizes the store with the chain until the context is done. Errors
// of a single synchronization round are logged and the round is retried
// after poll interval. ErrHeightGap stops the loop.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info("starting registry indexer",
		zap.Stringer("contract", s.contract), zap.Duration("poll interval", s.interval))

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		n, err := s.SyncOnce(ctx)
		switch {
		case errors.Is(err, ErrHeightGap):
			return err
		case err != nil && ctx.Err() == nil:
			s.log.Warn("registry sync round failed", zap.Error(err))
		case n != 0:
			h, _ := s.store.Height(ctx)
			s.log.Info("registry index synchronized", zap.Int("blocks", n), zap.Uint32("height", h))
		}

		select {
		case <-ctx.Done():
			s.log.Info("stopping registry indexer")
			return nil
		case <-t.C:
		}
	}
}
