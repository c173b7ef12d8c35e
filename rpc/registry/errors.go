package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/idrep-contract/common"
	"github.com/nspcc-dev/idrep-contract/contracts/registry/registryconst"
)

// Errors corresponding to Registry contract exceptions.
var (
	ErrAlreadyRegistered   = errors.New(registryconst.ErrAlreadyRegistered)
	ErrNotRegistered       = errors.New(registryconst.ErrNotRegistered)
	ErrSelfReputation      = errors.New(registryconst.ErrSelfReputation)
	ErrInvalidAmount       = errors.New(registryconst.ErrInvalidAmount)
	ErrTransferCapExceeded = errors.New(registryconst.ErrTransferCapExceeded)
	ErrInvalidAccount      = errors.New(registryconst.ErrInvalidAccount)
	ErrMetadataTooLong     = errors.New(registryconst.ErrMetadataTooLong)
	ErrWitness             = errors.New(common.ErrOwnerWitnessFailed)
	ErrUpdateAccessDenied  = errors.New(common.ErrUpdateAccessDenied)
)

var knownFaults = []error{
	ErrAlreadyRegistered,
	ErrNotRegistered,
	ErrSelfReputation,
	ErrInvalidAmount,
	ErrTransferCapExceeded,
	ErrInvalidAccount,
	ErrMetadataTooLong,
	ErrWitness,
	ErrUpdateAccessDenied,
}

// FaultError converts VM fault exception of the contract invocation into
// error. The result wraps one of the package errors if exception corresponds
// to a known contract failure, so it can be checked with [errors.Is]. Empty
// exception gives nil.
func FaultError(exception string) error {
	if exception == "" {
		return nil
	}

	for _, e := range knownFaults {
		if strings.Contains(exception, e.Error()) {
			return fmt.Errorf("%w: %s", e, exception)
		}
	}

	return errors.New(exception)
}
