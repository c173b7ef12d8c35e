/*
Package contracts provides access to the compiled Registry contract.

The contract is compiled by neo-go into the 'contract.nef' executable and
'manifest.json' manifest files placed next to its source code, see
'contracts/registry' directory.
*/
package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
)

const (
	// RegistryDir is a default location of the compiled Registry contract
	// relative to the repository root.
	RegistryDir = "contracts/registry"

	nefName      = "contract.nef"
	manifestName = "manifest.json"
)

// Contract groups information about compiled Neo contract.
type Contract struct {
	NEF      nef.File
	Manifest manifest.Manifest
}

var (
	errInvalidNEF      = errors.New("invalid NEF")
	errInvalidManifest = errors.New("invalid manifest")
)

// GetRegistry reads compiled Registry contract from the given directory of the
// local file system.
func GetRegistry(dir string) (Contract, error) {
	c, err := read(os.DirFS(dir))
	if err != nil {
		return c, fmt.Errorf("read contract from %s: %w", dir, err)
	}

	return c, nil
}

// read reads contract files from the root of the given fs.FS.
func read(_fs fs.FS) (Contract, error) {
	var c Contract

	fNEF, err := _fs.Open(nefName)
	if err != nil {
		return c, fmt.Errorf("open NEF: %w", err)
	}
	defer fNEF.Close()

	fManifest, err := _fs.Open(manifestName)
	if err != nil {
		return c, fmt.Errorf("open manifest: %w", err)
	}
	defer fManifest.Close()

	bReader := io.NewBinReaderFromIO(fNEF)
	c.NEF.DecodeBinary(bReader)
	if bReader.Err != nil {
		return c, fmt.Errorf("%w: %w", errInvalidNEF, bReader.Err)
	}

	err = json.NewDecoder(fManifest).Decode(&c.Manifest)
	if err != nil {
		return c, fmt.Errorf("%w: %w", errInvalidManifest, err)
	}

	return c, nil
}
