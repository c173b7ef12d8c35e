package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
)

var errMissingState = errors.New("contract state is not set")

// Creator collects the Registry contract state and storage and saves them as
// a dump.
//
// Only profile and transfer records are kept, other storage items are skipped
// and counted (see Skipped).
type Creator struct {
	dir string
	id  ID

	state *state.Contract

	items   [][2]string
	skipped int
}

// NewCreator returns Creator which dumps the contract into given directory. The
// dump is identified by specified ID. NewCreator fails if dump with provided ID
// already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	for _, p := range []string{id.path(dir, stateFileSuffix), id.path(dir, storageFileSuffix)} {
		_, err := os.Stat(p)
		if err == nil {
			return nil, fmt.Errorf("dump file '%s' already exists: %w", p, os.ErrExist)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("check dump file '%s': %w", p, err)
		}
	}

	return &Creator{dir: dir, id: id}, nil
}

// SetContract sets state of the dumped Registry contract.
func (x *Creator) SetContract(st state.Contract) {
	x.state = &st
}

// Write adds storage item to the dump. Items which are not profile or
// transfer records are skipped. Write implements the callback of storage
// iteration, so it never fails.
func (x *Creator) Write(key, value []byte) error {
	if !isRegistryKey(key) {
		x.skipped++
		return nil
	}

	x.items = append(x.items, [2]string{
		_encoding.EncodeToString(key),
		_encoding.EncodeToString(value),
	})

	return nil
}

// Items returns number of storage items written into the dump.
func (x *Creator) Items() int {
	return len(x.items)
}

// Skipped returns number of storage items skipped by Write.
func (x *Creator) Skipped() int {
	return x.skipped
}

// Flush saves the collected dump to the file system. Contract state must be
// set via SetContract.
func (x *Creator) Flush() error {
	if x.state == nil {
		return errMissingState
	}

	fState, err := createFile(x.id.path(x.dir, stateFileSuffix))
	if err != nil {
		return err
	}
	defer fState.Close()

	jEnc := json.NewEncoder(fState)
	jEnc.SetIndent("", " ")

	err = jEnc.Encode(x.state)
	if err != nil {
		return fmt.Errorf("encode contract state to JSON: %w", err)
	}

	fStorage, err := createFile(x.id.path(x.dir, storageFileSuffix))
	if err != nil {
		return err
	}
	defer fStorage.Close()

	w := csv.NewWriter(fStorage)
	for i := range x.items {
		if err = w.Write(x.items[i][:]); err != nil {
			return fmt.Errorf("write storage item as CSV data: %w", err)
		}
	}

	w.Flush()

	if err = w.Error(); err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return fStorage.Sync()
}

func createFile(p string) (*os.File, error) {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("create dump file: %w", err)
	}
	return f, nil
}
