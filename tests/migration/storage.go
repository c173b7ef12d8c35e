package migration

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/idrep-contract/tests/dump"
	"github.com/nspcc-dev/neo-go/pkg/config"
	"github.com/nspcc-dev/neo-go/pkg/core"
	"github.com/nspcc-dev/neo-go/pkg/core/dao"
	"github.com/nspcc-dev/neo-go/pkg/core/native"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

// Contract provides part of Neo blockchain services related to the Registry
// contract being tested. Initial state of the contract is initialized from the
// dump of the blockchain in which it has already been deployed. After preparing
// the test shell of the blockchain from the input data, the contract can be
// updated using the appropriate methods. Contract also provides data access
// interfaces that can be used to ensure that profiles and reputation counters
// are migrated correctly.
//
// Contract instances must be constructed using NewContract.
type Contract struct {
	id int32

	exec *neotest.Executor

	invoker *neotest.ContractInvoker

	bNEF      []byte
	jManifest []byte
}

// ContractOptions groups various options of NewContract.
type ContractOptions struct {
	// Path to the directory containing source code of the tested contract.
	// Defaults to the current directory, so tests placed next to the contract
	// source don't need to set it.
	SourceCodeDir string
}

// NewContract constructs Contract from the Registry dump provided by
// dump.Reader. The dumped contract state and storage items are put into the
// test blockchain before it is started. Profiles and transfer records of the
// dump can be accessed via dump.Reader to compare them with the contract API
// results.
//
// New version of the contract executable is compiled from
// ContractOptions.SourceCodeDir.
func NewContract(tb testing.TB, d *dump.Reader, opts ContractOptions) *Contract {
	lowLevelStore := storage.NewMemoryStore()
	cachedStore := storage.NewMemCachedStore(lowLevelStore)
	_dao := dao.NewSimple(lowLevelStore, false, true)

	nativeContracts := native.NewContracts(config.ProtocolConfiguration{})

	err := nativeContracts.Management.InitializeCache(_dao)
	require.NoError(tb, err)

	st := d.ContractState()
	st.UpdateCounter = 0 // contract could be dumped as already updated

	err = native.PutContractState(_dao, &st)
	require.NoError(tb, err)

	d.IterateStorage(func(key, value []byte) {
		storageKey := make([]byte, 5+len(key))
		storageKey[0] = byte(_dao.Version.StoragePrefix)
		binary.LittleEndian.PutUint32(storageKey[1:], uint32(st.ID))
		copy(storageKey[5:], key)

		cachedStore.Put(storageKey, value)
	})

	_, err = _dao.PersistSync()
	require.NoError(tb, err)

	_, err = cachedStore.PersistSync()
	require.NoError(tb, err)

	useDefaultConfig := func(*config.Blockchain) {}
	var blockChain *core.Blockchain

	{ // FIXME: hack area, track neo-go#2926
		// contracts embedded in the blockchain the moment before are not visible unless
		// the blockchain is run twice. Close is overridden to keep the storage.
		var run bool
		blockChain, _ = chain.NewSingleWithCustomConfigAndStore(tb, useDefaultConfig, nopCloseStore{lowLevelStore}, run)
		go blockChain.Run()
		blockChain.Close()
	}

	blockChain, committee := chain.NewSingleWithCustomConfigAndStore(tb, useDefaultConfig, lowLevelStore, true)

	exec := neotest.NewExecutor(tb, blockChain, committee, committee)

	if opts.SourceCodeDir == "" {
		opts.SourceCodeDir = "."
	}

	ctr := neotest.CompileFile(tb, exec.CommitteeHash, opts.SourceCodeDir, filepath.Join(opts.SourceCodeDir, "config.yml"))

	bNEF, err := ctr.NEF.Bytes()
	require.NoError(tb, err)

	jManifest, err := json.Marshal(ctr.Manifest)
	require.NoError(tb, err)

	return &Contract{
		id:        st.ID,
		exec:      exec,
		invoker:   exec.NewInvoker(st.Hash, committee),
		bNEF:      bNEF,
		jManifest: jManifest,
	}
}

func (x *Contract) checkUpdate(tb testing.TB, faultException string, args ...interface{}) {
	const updateMethod = "update"

	if faultException != "" {
		x.invoker.InvokeFail(tb, faultException, updateMethod, x.bNEF, x.jManifest, args)
		return
	}

	var noResult stackitem.Null
	x.invoker.Invoke(tb, noResult, updateMethod, x.bNEF, x.jManifest, args)
}

// CheckUpdateSuccess tests that contract update with given arguments succeeds.
// Contract executable (NEF and manifest) is compiled from source code (see
// NewContract for details).
func (x *Contract) CheckUpdateSuccess(tb testing.TB, args ...interface{}) {
	x.checkUpdate(tb, "", args...)
}

// CheckUpdateFail tests that contract update with given arguments fails with exact fault
// exception.
//
// See also CheckUpdateSuccess.
func (x *Contract) CheckUpdateFail(tb testing.TB, faultException string, args ...interface{}) {
	x.checkUpdate(tb, faultException, args...)
}

func makeTestInvoke(tb testing.TB, inv *neotest.ContractInvoker, method string, args ...interface{}) stackitem.Item {
	vmStack, err := inv.TestInvoke(tb, method, args...)
	require.NoError(tb, err, "method '%s'", method)

	// FIXME: temp hack
	res, err := unwrap.Item(&result.Invoke{
		State: vmstate.Halt.String(),
		Stack: vmStack.ToArray(),
	}, nil)
	require.NoError(tb, err)

	return res
}

// Call tests that calling the contract method with optional arguments succeeds
// and result contains single value. The resulting value is returned as
// stackitem.Item.
//
// Note that Call doesn't change the chain state, so only read (aka safe)
// methods should be used.
func (x *Contract) Call(tb testing.TB, method string, args ...interface{}) stackitem.Item {
	return makeTestInvoke(tb, x.invoker, method, args...)
}

// NewAccount returns new signer of the funded account which can be used with
// Invoke.
func (x *Contract) NewAccount(tb testing.TB) neotest.SingleSigner {
	return x.exec.NewAccount(tb)
}

// Invoke tests that invocation of the contract method signed by the given
// account succeeds and returns expected result.
func (x *Contract) Invoke(tb testing.TB, signer neotest.Signer, result any, method string, args ...interface{}) util.Uint256 {
	return x.invoker.WithSigners(signer).Invoke(tb, result, method, args...)
}

// GetStorageItem returns value stored in the tested contract by key.
func (x *Contract) GetStorageItem(key []byte) []byte {
	return x.exec.Chain.GetStorageItem(x.id, key)
}
