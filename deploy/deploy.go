package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"
)

// Blockchain groups services provided by particular Neo blockchain network
// that are required for Registry contract deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions to the
	// blockchain.
	actor.RPCActor

	// GetApplicationLog returns execution result of the transaction. It's used
	// to await transactions sent to the blockchain.
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns error with 'Unknown contract'
	// substring if requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// CommonDeployPrm groups common deployment parameters of the smart contract.
type CommonDeployPrm struct {
	NEF      nef.File
	Manifest manifest.Manifest
}

// RegistryContractPrm groups deployment parameters of the Registry contract.
type RegistryContractPrm struct {
	Common CommonDeployPrm
}

// Prm groups all parameters of the Registry deployment procedure.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Particular Neo blockchain instance the contract is deployed to.
	Blockchain Blockchain

	// Local process account used for transaction signing (must be unlocked).
	// Contract address depends on it.
	LocalAccount *wallet.Account

	// Committee multi-sig account used to update the contract (must be
	// unlocked). Optional: without it an outdated contract is reported as an
	// error.
	CommitteeAccount *wallet.Account

	RegistryContract RegistryContractPrm
}

// Deploy synchronizes Registry contract with the Neo network represented by
// given Prm.Blockchain: the contract is deployed if it's missing and updated
// if its executable or manifest differ from the ones in Prm.RegistryContract.
// Deploy returns the contract address.
//
// Address is a function of the local account, NEF checksum and contract name,
// so repeated Deploy calls with the same parameters refer to the same contract.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	localActor, err := newActor(prm.Blockchain, prm.LocalAccount)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	syncPrm := syncContractPrm{
		logger:        prm.Logger,
		sender:        prm.LocalAccount.ScriptHash(),
		localNEF:      prm.RegistryContract.Common.NEF,
		localManifest: prm.RegistryContract.Common.Manifest,
		getState:      prm.Blockchain.GetContractStateByHash,
		deploy: func(n *nef.File, m *manifest.Manifest) error {
			return await(localActor.Wait(management.New(localActor).Deploy(n, m, nil)))
		},
	}

	if prm.CommitteeAccount != nil {
		committeeActor, err := newActor(prm.Blockchain, prm.CommitteeAccount)
		if err != nil {
			return util.Uint160{}, fmt.Errorf("init transaction sender from committee account: %w", err)
		}

		syncPrm.update = func(addr util.Uint160, rawNEF, rawManifest []byte) error {
			return await(committeeActor.Wait(registry.New(committeeActor, addr).Update(rawNEF, rawManifest, nil)))
		}
	}

	prm.Logger.Info("synchronizing Registry contract with the chain...")

	addr, err := syncContract(ctx, syncPrm)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("sync Registry contract with the chain: %w", err)
	}

	prm.Logger.Info("Registry contract successfully synchronized", zap.Stringer("address", addr))

	return addr, nil
}

func newActor(b Blockchain, acc *wallet.Account) (*actor.Actor, error) {
	return actor.NewTuned(b, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account: acc.ScriptHash(),
			Scopes:  transaction.CalledByEntry,
		},
		Account: acc,
	}}, actor.Options{
		CheckerModifier: runtimeTransactionModifier(func() uint32 {
			h, err := b.GetBlockCount()
			if err != nil {
				return 0
			}
			return h
		}),
	})
}

func await(res *state.AppExecResult, err error) error {
	if err != nil {
		return err
	}

	if res.VMState != vmstate.Halt {
		if err = registry.FaultError(res.FaultException); err != nil {
			return fmt.Errorf("transaction failed: %w", err)
		}
		return fmt.Errorf("transaction failed with %s state", res.VMState)
	}

	return nil
}

type syncContractPrm struct {
	logger *zap.Logger

	// deploying transaction sender
	sender util.Uint160

	localNEF      nef.File
	localManifest manifest.Manifest

	getState func(util.Uint160) (*state.Contract, error)

	deploy func(*nef.File, *manifest.Manifest) error
	// nil if update is not possible
	update func(addr util.Uint160, rawNEF, rawManifest []byte) error
}

var errMissingUpdater = errors.New("contract is outdated, but committee account for update is not provided")

// syncContract deploys the contract if it's missing on the chain or updates it
// if it differs from the local one. Returns contract address.
func syncContract(ctx context.Context, prm syncContractPrm) (util.Uint160, error) {
	addr := state.CreateContractHash(prm.sender, prm.localNEF.Checksum, prm.localManifest.Name)
	l := prm.logger.With(zap.Stringer("address", addr))

	if err := ctx.Err(); err != nil {
		return addr, err
	}

	st, err := prm.getState(addr)
	if err != nil {
		if !isErrContractNotFound(err) {
			return addr, fmt.Errorf("get contract state: %w", err)
		}

		l.Info("contract is missing on the chain, deploying...")

		err = prm.deploy(&prm.localNEF, &prm.localManifest)
		if err != nil {
			return addr, fmt.Errorf("deploy contract: %w", err)
		}

		l.Info("contract successfully deployed")

		return addr, nil
	}

	rawManifest, err := json.Marshal(prm.localManifest)
	if err != nil {
		return addr, fmt.Errorf("encode local manifest: %w", err)
	}

	upToDate, err := isUpToDate(st, prm.localNEF, rawManifest)
	if err != nil {
		return addr, err
	}

	if upToDate {
		l.Debug("contract is already up-to-date")
		return addr, nil
	}

	if prm.update == nil {
		return addr, errMissingUpdater
	}

	rawNEF, err := prm.localNEF.Bytes()
	if err != nil {
		return addr, fmt.Errorf("encode local NEF: %w", err)
	}

	l.Info("contract differs from the local one, updating...")

	err = prm.update(addr, rawNEF, rawManifest)
	if err != nil {
		return addr, fmt.Errorf("update contract: %w", err)
	}

	l.Info("contract successfully updated")

	return addr, nil
}

func isUpToDate(st *state.Contract, localNEF nef.File, localManifest []byte) (bool, error) {
	if st.NEF.Checksum != localNEF.Checksum || !bytes.Equal(st.NEF.Script, localNEF.Script) {
		return false, nil
	}

	onChainManifest, err := json.Marshal(st.Manifest)
	if err != nil {
		return false, fmt.Errorf("encode on-chain manifest: %w", err)
	}

	return bytes.Equal(onChainManifest, localManifest), nil
}

func isErrContractNotFound(err error) bool {
	return strings.Contains(err.Error(), "Unknown contract")
}

// returns actor.TransactionCheckerModifier which checks that invocation
// finished with 'HALT' state and, if so, sets transaction's nonce and
// ValidUntilBlock to 100*N and 100*(N+1) correspondingly, where
// 100*N <= current height < 100*(N+1). Repeated Deploy runs within the same
// span produce the same transactions.
func runtimeTransactionModifier(getBlockchainHeight func() uint32) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, tx *transaction.Transaction) error {
		err := actor.DefaultCheckerModifier(r, tx)
		if err != nil {
			return err
		}

		curHeight := getBlockchainHeight()
		const span = 100
		n := curHeight / span

		tx.Nonce = n * span

		if math.MaxUint32-span > tx.Nonce {
			tx.ValidUntilBlock = tx.Nonce + span
		} else {
			tx.ValidUntilBlock = math.MaxUint32
		}

		return nil
	}
}
