package dump

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ContractName is the name of the Registry contract in dumps.
const ContractName = "registry"

// ID is a unique identifier of the dump.
type ID struct {
	// Label of the dump source (e.g. testnet, mainnet). May contain hyphens.
	Label string
	// Blockchain height at which the state was pulled.
	Block uint32
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(uint64(x.Block), 10)
}

const (
	sep = "-"

	stateFileSuffix   = ContractName + ".json"
	storageFileSuffix = "storage.csv"
)

func (x ID) path(dir, suffix string) string {
	return filepath.Join(dir, x.String()+sep+suffix)
}

// idFromStateFile decodes ID from the name of the contract state file. The
// second result is false if the name doesn't belong to the state file.
func idFromStateFile(name string) (ID, bool, error) {
	var id ID

	prefix, ok := strings.CutSuffix(name, sep+stateFileSuffix)
	if !ok {
		return id, false, nil
	}

	i := strings.LastIndex(prefix, sep)
	if i <= 0 {
		return id, true, fmt.Errorf("expected '<label>%s<block>' prefix in '%s'", sep, name)
	}

	n, err := strconv.ParseUint(prefix[i+1:], 10, 32)
	if err != nil {
		return id, true, fmt.Errorf("decode block number from '%s': %w", name, err)
	}

	id.Label = prefix[:i]
	id.Block = uint32(n)

	return id, true, nil
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// Storage layout of the Registry contract.
const (
	profilePrefix  = 'p'
	transferPrefix = 't'

	profileKeyLen  = 1 + util.Uint160Size
	transferKeyLen = 1 + 2*util.Uint160Size
)

// isRegistryKey checks whether key is a profile or a transfer record key.
func isRegistryKey(key []byte) bool {
	switch len(key) {
	case profileKeyLen:
		return key[0] == profilePrefix
	case transferKeyLen:
		return key[0] == transferPrefix
	default:
		return false
	}
}
