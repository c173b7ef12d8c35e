package tests

import (
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"path"
	"strings"
	"testing"

	"github.com/nspcc-dev/idrep-contract/common"
	"github.com/nspcc-dev/idrep-contract/contracts/registry/registryconst"
	"github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

const registryPath = "../contracts/registry"

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}

// accountsFromIterator decodes all script hashes returned by the accounts
// iterator.
func accountsFromIterator(t *testing.T, iter *storage.Iterator) []util.Uint160 {
	var res []util.Uint160
	for iter.Next() {
		bs, err := iter.Value().TryBytes()
		require.NoError(t, err)

		u, err := util.Uint160DecodeBytesBE(bs)
		require.NoError(t, err)

		res = append(res, u)
	}
	return res
}

func deployRegistryContract(t *testing.T, e *neotest.Executor) util.Uint160 {
	c := neotest.CompileFile(t, e.CommitteeHash, registryPath,
		path.Join(registryPath, "config.yml"))

	e.DeployContract(t, c, nil)
	return c.Hash
}

func newRegistryInvoker(t *testing.T) *neotest.ContractInvoker {
	e := newExecutor(t)
	h := deployRegistryContract(t, e)
	return e.CommitteeInvoker(h)
}

type profile struct {
	registered  bool
	metadataURI string
	reputation  int64
}

func getProfile(t *testing.T, c *neotest.ContractInvoker, acc util.Uint160) profile {
	s, err := c.TestInvoke(t, "getProfile", acc)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	items, ok := s.Pop().Value().([]stackitem.Item)
	require.True(t, ok)
	require.Len(t, items, 3)

	var p profile

	p.registered, err = items[0].TryBool()
	require.NoError(t, err)

	uri, err := items[1].TryBytes()
	require.NoError(t, err)
	p.metadataURI = string(uri)

	rep, err := items[2].TryInteger()
	require.NoError(t, err)
	p.reputation = rep.Int64()

	return p
}

func getGiven(t *testing.T, c *neotest.ContractInvoker, from, to util.Uint160) int64 {
	s, err := c.TestInvoke(t, "given", from, to)
	require.NoError(t, err)

	v, err := s.Pop().Item().TryInteger()
	require.NoError(t, err)
	return v.Int64()
}

func TestRegistry_GetProfileUnknown(t *testing.T) {
	c := newRegistryInvoker(t)

	acc := c.NewAccount(t).ScriptHash()
	require.Equal(t, profile{}, getProfile(t, c, acc))
	require.Equal(t, profile{}, getProfile(t, c, acc))
	require.EqualValues(t, 0, getGiven(t, c, acc, c.NewAccount(t).ScriptHash()))
}

func TestRegistry_Register(t *testing.T) {
	c := newRegistryInvoker(t)

	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)
	const uri = "ipfs://a"

	t.Run("witness check", func(t *testing.T) {
		cOther := c.WithSigners(c.NewAccount(t))
		cOther.InvokeFail(t, common.ErrOwnerWitnessFailed, "register", acc.ScriptHash(), uri)
	})

	t.Run("invalid account", func(t *testing.T) {
		cAcc.InvokeFail(t, registryconst.ErrInvalidAccount, "register", acc.ScriptHash().BytesBE()[1:], uri)
	})

	h := cAcc.Invoke(t, stackitem.Null{}, "register", acc.ScriptHash(), uri)
	aer := cAcc.CheckHalt(t, h)
	require.Equal(t, 1, len(aer.Events))
	require.Equal(t, registryconst.RegisteredEvent, aer.Events[0].Name)
	require.Equal(t, stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(acc.ScriptHash().BytesBE()),
		stackitem.NewByteArray([]byte(uri)),
	}), aer.Events[0].Item)

	require.Equal(t, profile{registered: true, metadataURI: uri}, getProfile(t, c, acc.ScriptHash()))

	t.Run("already registered", func(t *testing.T) {
		cAcc.InvokeFail(t, registryconst.ErrAlreadyRegistered, "register", acc.ScriptHash(), "ipfs://b")
		require.Equal(t, profile{registered: true, metadataURI: uri}, getProfile(t, c, acc.ScriptHash()))
	})

	t.Run("longest metadata", func(t *testing.T) {
		acc := c.NewAccount(t)
		long := strings.Repeat("x", registryconst.MaxMetadataURILength)
		c.WithSigners(acc).Invoke(t, stackitem.Null{}, "register", acc.ScriptHash(), long)
		require.Equal(t, long, getProfile(t, c, acc.ScriptHash()).metadataURI)
	})

	t.Run("too long metadata", func(t *testing.T) {
		acc := c.NewAccount(t)
		long := strings.Repeat("x", registryconst.MaxMetadataURILength+1)
		c.WithSigners(acc).InvokeFail(t, registryconst.ErrMetadataTooLong, "register", acc.ScriptHash(), long)
		require.Equal(t, profile{}, getProfile(t, c, acc.ScriptHash()))
	})

	t.Run("non-UTF-8 metadata", func(t *testing.T) {
		acc := c.NewAccount(t)
		c.WithSigners(acc).InvokeFail(t, "type mismatch", "register", acc.ScriptHash(), []byte{0xff, 0xfe, 0xfd})
		require.Equal(t, profile{}, getProfile(t, c, acc.ScriptHash()))
	})

	t.Run("empty metadata", func(t *testing.T) {
		acc := c.NewAccount(t)
		c.WithSigners(acc).Invoke(t, stackitem.Null{}, "register", acc.ScriptHash(), "")
		require.Equal(t, profile{registered: true}, getProfile(t, c, acc.ScriptHash()))
	})
}

func TestRegistry_UpdateMetadata(t *testing.T) {
	c := newRegistryInvoker(t)

	acc, giver := c.NewAccount(t), c.NewAccount(t)
	cAcc, cGiver := c.WithSigners(acc), c.WithSigners(giver)

	cAcc.InvokeFail(t, registryconst.ErrNotRegistered, "updateMetadata", acc.ScriptHash(), "ipfs://a")

	cAcc.Invoke(t, stackitem.Null{}, "register", acc.ScriptHash(), "ipfs://a")
	cGiver.Invoke(t, stackitem.Null{}, "register", giver.ScriptHash(), "ipfs://giver")
	cGiver.Invoke(t, stackitem.Null{}, "giveReputation", giver.ScriptHash(), acc.ScriptHash(), int64(15))

	c.WithSigners(giver).InvokeFail(t, common.ErrOwnerWitnessFailed, "updateMetadata", acc.ScriptHash(), "ipfs://evil")

	h := cAcc.Invoke(t, stackitem.Null{}, "updateMetadata", acc.ScriptHash(), "ipfs://b")
	aer := cAcc.CheckHalt(t, h)
	require.Equal(t, 1, len(aer.Events))
	require.Equal(t, registryconst.MetadataUpdatedEvent, aer.Events[0].Name)
	require.Equal(t, stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(acc.ScriptHash().BytesBE()),
		stackitem.NewByteArray([]byte("ipfs://b")),
	}), aer.Events[0].Item)

	require.Equal(t, profile{registered: true, metadataURI: "ipfs://b", reputation: 15},
		getProfile(t, c, acc.ScriptHash()))

	long := strings.Repeat("y", registryconst.MaxMetadataURILength+1)
	cAcc.InvokeFail(t, registryconst.ErrMetadataTooLong, "updateMetadata", acc.ScriptHash(), long)
	require.Equal(t, "ipfs://b", getProfile(t, c, acc.ScriptHash()).metadataURI)

	long = long[1:]
	cAcc.Invoke(t, stackitem.Null{}, "updateMetadata", acc.ScriptHash(), long)
	require.Equal(t, profile{registered: true, metadataURI: long, reputation: 15},
		getProfile(t, c, acc.ScriptHash()))
}

func TestRegistry_GiveReputation(t *testing.T) {
	c := newRegistryInvoker(t)

	a, b, cc := c.NewAccount(t), c.NewAccount(t), c.NewAccount(t)
	ha, hb, hc := a.ScriptHash(), b.ScriptHash(), cc.ScriptHash()
	cA, cB, cC := c.WithSigners(a), c.WithSigners(b), c.WithSigners(cc)

	cA.Invoke(t, stackitem.Null{}, "register", ha, "ipfs://a")
	require.Equal(t, profile{registered: true, metadataURI: "ipfs://a"}, getProfile(t, c, ha))

	t.Run("unregistered giver", func(t *testing.T) {
		cB.InvokeFail(t, registryconst.ErrNotRegistered, "giveReputation", hb, ha, int64(40))
	})

	cB.Invoke(t, stackitem.Null{}, "register", hb, "ipfs://b")
	cC.Invoke(t, stackitem.Null{}, "register", hc, "ipfs://c")

	h := cB.Invoke(t, stackitem.Null{}, "giveReputation", hb, ha, int64(40))
	aer := cB.CheckHalt(t, h)
	require.Equal(t, 1, len(aer.Events))
	require.Equal(t, registryconst.ReputationGivenEvent, aer.Events[0].Name)
	require.Equal(t, stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(hb.BytesBE()),
		stackitem.NewByteArray(ha.BytesBE()),
		stackitem.NewBigInteger(big.NewInt(40)),
	}), aer.Events[0].Item)

	require.EqualValues(t, 40, getProfile(t, c, ha).reputation)
	require.EqualValues(t, 40, getGiven(t, c, hb, ha))

	cB.InvokeFail(t, registryconst.ErrTransferCapExceeded, "giveReputation", hb, ha, int64(70))
	require.EqualValues(t, 40, getProfile(t, c, ha).reputation)
	require.EqualValues(t, 40, getGiven(t, c, hb, ha))

	cC.Invoke(t, stackitem.Null{}, "giveReputation", hc, ha, int64(60))
	require.EqualValues(t, 100, getProfile(t, c, ha).reputation)
	require.EqualValues(t, 60, getGiven(t, c, hc, ha))

	t.Run("exact cap", func(t *testing.T) {
		cB.Invoke(t, stackitem.Null{}, "giveReputation", hb, ha, int64(60))
		require.EqualValues(t, 100, getGiven(t, c, hb, ha))
		cB.InvokeFail(t, registryconst.ErrTransferCapExceeded, "giveReputation", hb, ha, int64(1))
		require.EqualValues(t, 160, getProfile(t, c, ha).reputation)
	})

	t.Run("invalid amount", func(t *testing.T) {
		for _, amount := range []int64{0, -1, 101, 1 << 40} {
			cC.InvokeFail(t, registryconst.ErrInvalidAmount, "giveReputation", hc, hb, amount)
		}
		require.EqualValues(t, 0, getGiven(t, c, hc, hb))
	})

	t.Run("self reputation", func(t *testing.T) {
		for _, amount := range []int64{1, 50, 100} {
			cA.InvokeFail(t, registryconst.ErrSelfReputation, "giveReputation", ha, ha, amount)
		}
		require.EqualValues(t, 160, getProfile(t, c, ha).reputation)
		require.EqualValues(t, 0, getGiven(t, c, ha, ha))
	})

	t.Run("invalid amount is checked before self reputation", func(t *testing.T) {
		cA.InvokeFail(t, registryconst.ErrInvalidAmount, "giveReputation", ha, ha, int64(0))
	})

	t.Run("witness check", func(t *testing.T) {
		cC.InvokeFail(t, common.ErrOwnerWitnessFailed, "giveReputation", hb, hc, int64(10))
	})

	t.Run("invalid recipient", func(t *testing.T) {
		cC.InvokeFail(t, registryconst.ErrInvalidAccount, "giveReputation", hc, []byte{1, 2, 3}, int64(10))
	})
}

func TestRegistry_UnregisteredRecipient(t *testing.T) {
	c := newRegistryInvoker(t)

	giver, recipient := c.NewAccount(t), c.NewAccount(t)
	hg, hr := giver.ScriptHash(), recipient.ScriptHash()

	cGiver := c.WithSigners(giver)
	cGiver.Invoke(t, stackitem.Null{}, "register", hg, "ipfs://giver")
	cGiver.Invoke(t, stackitem.Null{}, "giveReputation", hg, hr, int64(25))

	require.Equal(t, profile{reputation: 25}, getProfile(t, c, hr))

	t.Run("unregistered recipient can't give", func(t *testing.T) {
		c.WithSigners(recipient).InvokeFail(t, registryconst.ErrNotRegistered, "giveReputation", hr, hg, int64(1))
	})

	c.WithSigners(recipient).Invoke(t, stackitem.Null{}, "register", hr, "ipfs://recipient")
	require.Equal(t, profile{registered: true, metadataURI: "ipfs://recipient", reputation: 25},
		getProfile(t, c, hr))
}

func TestRegistry_Accounts(t *testing.T) {
	c := newRegistryInvoker(t)

	a, b := c.NewAccount(t), c.NewAccount(t)
	unregistered := c.NewAccount(t).ScriptHash()

	c.WithSigners(a).Invoke(t, stackitem.Null{}, "register", a.ScriptHash(), "ipfs://a")
	c.WithSigners(b).Invoke(t, stackitem.Null{}, "register", b.ScriptHash(), "ipfs://b")
	c.WithSigners(b).Invoke(t, stackitem.Null{}, "giveReputation", b.ScriptHash(), unregistered, int64(3))

	s, err := c.TestInvoke(t, "accounts")
	require.NoError(t, err)

	actual := accountsFromIterator(t, s.Pop().Interop().Value().(*storage.Iterator))

	require.ElementsMatch(t, []util.Uint160{a.ScriptHash(), b.ScriptHash(), unregistered}, actual)
}

func TestRegistry_Update(t *testing.T) {
	e := newExecutor(t)

	ctr := neotest.CompileFile(t, e.CommitteeHash, registryPath,
		path.Join(registryPath, "config.yml"))
	e.DeployContract(t, ctr, nil)

	c := e.CommitteeInvoker(ctr.Hash)

	rawNEF, err := ctr.NEF.Bytes()
	require.NoError(t, err)
	rawManifest, err := json.Marshal(ctr.Manifest)
	require.NoError(t, err)

	acc := c.NewAccount(t)
	c.WithSigners(acc).InvokeFail(t, common.ErrUpdateAccessDenied, "update", rawNEF, rawManifest, nil)

	// the same version is deployed
	c.InvokeFail(t, common.ErrAlreadyUpdated, "update", rawNEF, rawManifest, nil)

	c.Invoke(t, stackitem.Make(common.Version), "version")
}

// registryModel is a reference in-memory implementation of the registry
// state transitions.
type registryModel struct {
	profiles map[util.Uint160]profile
	given    map[[2]util.Uint160]int64
}

func (m *registryModel) register(acc util.Uint160, uri string) string {
	p := m.profiles[acc]
	if p.registered {
		return registryconst.ErrAlreadyRegistered
	}

	p.registered = true
	p.metadataURI = uri
	m.profiles[acc] = p
	return ""
}

func (m *registryModel) updateMetadata(acc util.Uint160, uri string) string {
	p := m.profiles[acc]
	if !p.registered {
		return registryconst.ErrNotRegistered
	}

	p.metadataURI = uri
	m.profiles[acc] = p
	return ""
}

func (m *registryModel) giveReputation(from, to util.Uint160, amount int64) string {
	switch {
	case amount < registryconst.MinAmount || amount > registryconst.MaxAmount:
		return registryconst.ErrInvalidAmount
	case from.Equals(to):
		return registryconst.ErrSelfReputation
	case !m.profiles[from].registered:
		return registryconst.ErrNotRegistered
	}

	pair := [2]util.Uint160{from, to}
	if m.given[pair]+amount > registryconst.MaxPerPair {
		return registryconst.ErrTransferCapExceeded
	}

	m.given[pair] += amount

	p := m.profiles[to]
	p.reputation += amount
	m.profiles[to] = p
	return ""
}

func TestRegistry_RandomOperations(t *testing.T) {
	c := newRegistryInvoker(t)

	const (
		accountsNum = 5
		opsNum      = 200
	)

	signers := make([]neotest.Signer, accountsNum)
	accs := make([]util.Uint160, accountsNum)
	for i := range signers {
		signers[i] = c.NewAccount(t)
		accs[i] = signers[i].ScriptHash()
	}

	m := &registryModel{
		profiles: make(map[util.Uint160]profile),
		given:    make(map[[2]util.Uint160]int64),
	}

	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < opsNum; i++ {
		from := rnd.Intn(accountsNum)
		cFrom := c.WithSigners(signers[from])

		var (
			method   string
			args     []any
			expected string
		)

		switch rnd.Intn(4) {
		case 0:
			uri := fmt.Sprintf("ipfs://%d", rnd.Int())
			method, args = "register", []any{accs[from], uri}
			expected = m.register(accs[from], uri)
		case 1:
			uri := fmt.Sprintf("ipfs://%d", rnd.Int())
			method, args = "updateMetadata", []any{accs[from], uri}

			repBefore := m.profiles[accs[from]].reputation
			expected = m.updateMetadata(accs[from], uri)
			require.Equal(t, repBefore, m.profiles[accs[from]].reputation)
		default:
			to := rnd.Intn(accountsNum)
			amount := int64(rnd.Intn(120)) - 5
			method, args = "giveReputation", []any{accs[from], accs[to], amount}
			expected = m.giveReputation(accs[from], accs[to], amount)
		}

		if expected == "" {
			cFrom.Invoke(t, stackitem.Null{}, method, args...)
		} else {
			cFrom.InvokeFail(t, expected, method, args...)
		}
	}

	for i := range accs {
		var sum int64
		for j := range accs {
			given := getGiven(t, c, accs[j], accs[i])
			require.Equal(t, m.given[[2]util.Uint160{accs[j], accs[i]}], given)
			require.LessOrEqual(t, given, int64(registryconst.MaxPerPair))
			sum += given
		}

		p := getProfile(t, c, accs[i])
		require.Equal(t, m.profiles[accs[i]], p)
		require.Equal(t, sum, p.reputation)
	}
}
