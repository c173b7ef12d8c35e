package main

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// wrapper over Neo RPC client providing blockchain services needed for the
// storage dump.
type remoteBlockchain struct {
	rpc *rpcclient.Client

	currentBlock uint32
}

func newRemoteBlockChain(rpc *rpcclient.Client) (*remoteBlockchain, error) {
	nLatestBlock, err := rpc.GetBlockCount()
	if err != nil {
		return nil, fmt.Errorf("get number of the latest block: %w", err)
	}

	return &remoteBlockchain{
		rpc:          rpc,
		currentBlock: nLatestBlock,
	}, nil
}

func (x *remoteBlockchain) getContractState(h util.Uint160) (state.Contract, error) {
	st, err := x.rpc.GetContractStateByHash(h)
	if err != nil {
		return state.Contract{}, fmt.Errorf("get state of the contract '%s': %w", h.StringLE(), err)
	}

	return *st, nil
}

// iterateContractStorage iterates over all storage items of the Neo smart
// contract referenced by given address at the state of the penult block and
// passes them into f. iterateContractStorage breaks on any f's error and
// returns it.
func (x *remoteBlockchain) iterateContractStorage(contract util.Uint160, f func(key, value []byte) error) error {
	stateRoot, err := x.rpc.GetStateRootByHeight(x.currentBlock - 1)
	if err != nil {
		return fmt.Errorf("get state root at penult block #%d: %w", x.currentBlock-1, err)
	}

	var start []byte

	for {
		res, err := x.rpc.FindStates(stateRoot.Root, contract, nil, start, nil)
		if err != nil {
			return fmt.Errorf("get historical storage items of the contract at state root '%s': %w", stateRoot.Root, err)
		}

		for i := range res.Results {
			err = f(res.Results[i].Key, res.Results[i].Value)
			if err != nil {
				return err
			}
		}

		if !res.Truncated || len(res.Results) == 0 {
			return nil
		}

		start = res.Results[len(res.Results)-1].Key
	}
}
