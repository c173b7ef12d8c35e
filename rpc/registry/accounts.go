package registry

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// DefaultIteratorBatch is the number of accounts fetched per one iterator
// traversal request.
const DefaultIteratorBatch = 100

// ListAccounts returns all accounts having a profile in the contract. It
// uses RPC session to traverse the whole iterator in batches and terminates
// the session at the end.
func (c *ContractReader) ListAccounts() ([]util.Uint160, error) {
	sessionID, iter, err := c.Accounts()
	if err != nil {
		return nil, fmt.Errorf("call accounts: %w", err)
	}
	defer func() {
		_ = c.invoker.TerminateSession(sessionID)
	}()

	var res []util.Uint160
	for {
		items, err := c.invoker.TraverseIterator(sessionID, &iter, DefaultIteratorBatch)
		if err != nil {
			return nil, fmt.Errorf("traverse accounts iterator: %w", err)
		}

		accs, err := AccountsFromItems(items)
		if err != nil {
			return nil, err
		}

		res = append(res, accs...)

		if len(items) < DefaultIteratorBatch {
			return res, nil
		}
	}
}

// AccountsFromItems decodes account script hashes from the items returned by
// `accounts` iterator.
func AccountsFromItems(items []stackitem.Item) ([]util.Uint160, error) {
	res := make([]util.Uint160, 0, len(items))
	for i := range items {
		u, err := itemToUint160(items[i])
		if err != nil {
			return nil, fmt.Errorf("account #%d: %w", i, err)
		}
		res = append(res, u)
	}
	return res, nil
}
