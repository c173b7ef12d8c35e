package registry

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/idrep-contract/contracts/registry/registryconst"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
)

// Event is one of *RegisteredEvent, *MetadataUpdatedEvent and
// *ReputationGivenEvent.
type Event any

// EventsFromApplicationLog retrieves all Registry events emitted by the
// contract with the given hash in successful executions of the provided
// [result.ApplicationLog]. Events are returned in the order of their emission.
// Notifications with other names or from other contracts are skipped.
func EventsFromApplicationLog(log *result.ApplicationLog, contract util.Uint160) ([]Event, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []Event
	for i, ex := range log.Executions {
		if ex.VMState != vmstate.Halt {
			continue
		}

		for j, e := range ex.Events {
			if !e.ScriptHash.Equals(contract) {
				continue
			}

			var (
				ev  Event
				err error
			)

			switch e.Name {
			case registryconst.RegisteredEvent:
				v := new(RegisteredEvent)
				err = v.FromStackItem(e.Item)
				ev = v
			case registryconst.MetadataUpdatedEvent:
				v := new(MetadataUpdatedEvent)
				err = v.FromStackItem(e.Item)
				ev = v
			case registryconst.ReputationGivenEvent:
				v := new(ReputationGivenEvent)
				err = v.FromStackItem(e.Item)
				ev = v
			default:
				continue
			}

			if err != nil {
				return nil, fmt.Errorf("failed to deserialize %s event (execution #%d, event #%d): %w", e.Name, i, j, err)
			}

			res = append(res, ev)
		}
	}

	return res, nil
}
