package indexer

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "index", "registry.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func given(from, to util.Uint160, amount int64) *registry.ReputationGivenEvent {
	return &registry.ReputationGivenEvent{From: from, To: to, Amount: big.NewInt(amount)}
}

func TestStore_ApplyBlock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, b, c := util.Uint160{0xa}, util.Uint160{0xb}, util.Uint160{0xc}

	h, err := s.Height(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, h)

	ok, err := s.ApplyBlock(ctx, 0, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ApplyBlock(ctx, 1, []registry.Event{
		&registry.RegisteredEvent{Account: a, MetadataURI: "ipfs://a"},
		&registry.RegisteredEvent{Account: b, MetadataURI: "ipfs://b"},
		given(b, a, 40),
	})
	require.NoError(t, err)
	require.True(t, ok)

	p, err := s.Profile(ctx, a)
	require.NoError(t, err)
	require.Equal(t, Profile{Account: a, Registered: true, MetadataURI: "ipfs://a", Reputation: 40}, p)

	t.Run("replay is skipped", func(t *testing.T) {
		ok, err := s.ApplyBlock(ctx, 1, []registry.Event{given(b, a, 40)})
		require.NoError(t, err)
		require.False(t, ok)

		g, err := s.Given(ctx, b, a)
		require.NoError(t, err)
		require.EqualValues(t, 40, g)
	})

	t.Run("gap", func(t *testing.T) {
		_, err := s.ApplyBlock(ctx, 5, nil)
		require.ErrorIs(t, err, ErrHeightGap)
	})

	t.Run("invalid event rolls back the block", func(t *testing.T) {
		_, err := s.ApplyBlock(ctx, 2, []registry.Event{
			given(b, a, 10),
			given(b, a, 1000),
		})
		require.Error(t, err)

		g, err := s.Given(ctx, b, a)
		require.NoError(t, err)
		require.EqualValues(t, 40, g)

		h, err := s.Height(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, h)
	})

	ok, err = s.ApplyBlock(ctx, 2, []registry.Event{
		&registry.MetadataUpdatedEvent{Account: a, MetadataURI: "ipfs://a2"},
		given(a, c, 5),
		given(b, a, 60),
	})
	require.NoError(t, err)
	require.True(t, ok)

	p, err = s.Profile(ctx, a)
	require.NoError(t, err)
	require.Equal(t, Profile{Account: a, Registered: true, MetadataURI: "ipfs://a2", Reputation: 100}, p)

	p, err = s.Profile(ctx, c)
	require.NoError(t, err)
	require.Equal(t, Profile{Account: c, Reputation: 5}, p)

	p, err = s.Profile(ctx, util.Uint160{0xd})
	require.NoError(t, err)
	require.Equal(t, Profile{Account: util.Uint160{0xd}}, p)

	h, err = s.Height(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, h)

	require.NoError(t, s.CheckConsistency(ctx))
}

func TestStore_Leaderboard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	accs := []util.Uint160{{1}, {2}, {3}, {4}}
	events := []registry.Event{
		&registry.RegisteredEvent{Account: accs[0], MetadataURI: "0"},
		&registry.RegisteredEvent{Account: accs[1], MetadataURI: "1"},
		given(accs[0], accs[2], 30),
		given(accs[1], accs[2], 30),
		given(accs[0], accs[3], 60),
		given(accs[1], accs[0], 10),
	}

	_, err := s.ApplyBlock(ctx, 0, events)
	require.NoError(t, err)

	top, err := s.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	// accs[2] and accs[3] have equal reputation, ordered by address
	first, second := accs[2], accs[3]
	if address.Uint160ToString(first) > address.Uint160ToString(second) {
		first, second = second, first
	}
	require.Equal(t, first, top[0].Account)
	require.Equal(t, second, top[1].Account)
	require.EqualValues(t, 60, top[0].Reputation)
	require.EqualValues(t, 60, top[1].Reputation)
	require.Equal(t, Profile{Account: accs[0], Registered: true, MetadataURI: "0", Reputation: 10}, top[2])

	all, err := s.Leaderboard(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.EqualValues(t, 0, all[3].Reputation)

	for _, limit := range []int{0, -1} {
		_, err = s.Leaderboard(ctx, limit)
		require.ErrorIs(t, err, ErrInvalidLimit, limit)
	}
}

func TestStore_CheckConsistency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, b := util.Uint160{0xa}, util.Uint160{0xb}
	_, err := s.ApplyBlock(ctx, 0, []registry.Event{
		&registry.RegisteredEvent{Account: a, MetadataURI: "a"},
		given(a, b, 50),
	})
	require.NoError(t, err)
	require.NoError(t, s.CheckConsistency(ctx))

	_, err = s.db.ExecContext(ctx, "UPDATE profiles SET reputation = 49 WHERE account = ?",
		address.Uint160ToString(b))
	require.NoError(t, err)
	require.ErrorIs(t, s.CheckConsistency(ctx), ErrInconsistent)

	_, err = s.db.ExecContext(ctx, "UPDATE profiles SET reputation = 150 WHERE account = ?",
		address.Uint160ToString(b))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "UPDATE transfers SET given = 150")
	require.NoError(t, err)
	require.ErrorIs(t, s.CheckConsistency(ctx), ErrInconsistent)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Path: filepath.Join(t.TempDir(), "registry.db")}

	s, err := Open(ctx, cfg)
	require.NoError(t, err)

	a := util.Uint160{0xa}
	_, err = s.ApplyBlock(ctx, 0, []registry.Event{
		&registry.RegisteredEvent{Account: a, MetadataURI: "a"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	h, err := s.Height(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, h)

	p, err := s.Profile(ctx, a)
	require.NoError(t, err)
	require.True(t, p.Registered)
}
