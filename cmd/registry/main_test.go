package main

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/idrep-contract/indexer"
	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

func TestParseAccount(t *testing.T) {
	h := util.Uint160{1, 2, 3}

	for _, s := range []string{
		address.Uint160ToString(h),
		h.StringLE(),
		"0x" + h.StringLE(),
	} {
		res, err := parseAccount(s)
		require.NoError(t, err, s)
		require.Equal(t, h, res)
	}

	_, err := parseAccount("not an account")
	require.Error(t, err)
}

func TestCheckResult(t *testing.T) {
	require.Error(t, checkResult(nil, context.DeadlineExceeded))
	require.NoError(t, checkResult(&state.AppExecResult{Execution: state.Execution{VMState: vmstate.Halt}}, nil))

	err := checkResult(&state.AppExecResult{Execution: state.Execution{
		VMState:        vmstate.Fault,
		FaultException: "at instruction 120 (THROW): transfer cap exceeded",
	}}, nil)
	require.ErrorIs(t, err, registry.ErrTransferCapExceeded)

	require.Error(t, checkResult(&state.AppExecResult{Execution: state.Execution{VMState: vmstate.Fault}}, nil))
}

func writeConfig(t *testing.T, dbPath string) string {
	p := filepath.Join(t.TempDir(), "config.yml")
	data := fmt.Sprintf("indexer:\n  path: %s\n  wal_mode: true\nlogger:\n  level: warn\n", dbPath)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	app := newApp()

	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = &buf

	err := app.Run(append([]string{"registry"}, args...))
	return buf.String(), err
}

func TestLeaderboardAndCheck(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	st, err := indexer.Open(ctx, indexer.Config{Path: dbPath, WALMode: true})
	require.NoError(t, err)

	a, b, c := util.Uint160{0xa}, util.Uint160{0xb}, util.Uint160{0xc}

	_, err = st.ApplyBlock(ctx, 0, []registry.Event{
		&registry.RegisteredEvent{Account: a, MetadataURI: "ipfs://a"},
		&registry.RegisteredEvent{Account: b, MetadataURI: "ipfs://b"},
		&registry.ReputationGivenEvent{From: a, To: b, Amount: big.NewInt(40)},
		&registry.ReputationGivenEvent{From: b, To: c, Amount: big.NewInt(5)},
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cfgPath := writeConfig(t, dbPath)

	out, err := run(t, "--config", cfgPath, "leaderboard", "--limit", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "1\t"+address.Uint160ToString(b)+"\t40\tipfs://b", lines[0])
	require.Equal(t, "2\t"+address.Uint160ToString(c)+"\t5\t", lines[1])

	for _, limit := range []string{"0", "-1"} {
		_, err = run(t, "--config", cfgPath, "leaderboard", "--limit", limit)
		require.ErrorIs(t, err, errInvalidLimit, limit)
	}

	out, err = run(t, "--config", cfgPath, "check")
	require.NoError(t, err)
	require.Contains(t, out, "index is consistent at height 1")
}

func TestMissingArgs(t *testing.T) {
	for _, cmd := range []string{"profile", "given", "register", "update-metadata", "give"} {
		_, err := run(t, cmd)
		require.ErrorIs(t, err, errMissingArgs, cmd)
	}

	_, err := run(t, "dump")
	require.Error(t, err)
}
