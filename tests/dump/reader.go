package dump

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// IterateDumps reads all dumps stored in the specified directory and passes
// ID and Reader of each dump into f. Dumps are passed in the order of their
// file names. Missing directory means no dumps.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read dump directory: %w", err)
	}

	for i := range entries {
		if entries[i].IsDir() {
			continue
		}

		id, ok, err := idFromStateFile(entries[i].Name())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		r, err := ReadDump(dir, id)
		if err != nil {
			return err
		}

		f(id, r)
	}

	return nil
}

type kv struct{ k, v []byte }

// Reader provides access to the Registry contract dump.
type Reader struct {
	state state.Contract
	items []kv
}

// ReadDump reads the dump with the given ID from the directory.
func ReadDump(dir string, id ID) (*Reader, error) {
	var r Reader

	data, err := os.ReadFile(id.path(dir, stateFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("read dump %s: %w", id, err)
	}

	err = json.Unmarshal(data, &r.state)
	if err != nil {
		return nil, fmt.Errorf("decode contract state of dump %s: %w", id, err)
	}

	f, err := os.Open(id.path(dir, storageFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("open storage of dump %s: %w", id, err)
	}
	defer f.Close()

	err = r.readStorage(f)
	if err != nil {
		return nil, fmt.Errorf("read storage of dump %s: %w", id, err)
	}

	return &r, nil
}

func (x *Reader) readStorage(src io.Reader) error {
	_csv := csv.NewReader(src)
	_csv.FieldsPerRecord = 2

	for {
		rec, err := _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		var item kv

		item.k, err = _encoding.DecodeString(rec[0])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		if !isRegistryKey(item.k) {
			return fmt.Errorf("unexpected storage item key %x", item.k)
		}

		item.v, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.items = append(x.items, item)
	}
}

// ContractState returns state of the dumped Registry contract.
func (x *Reader) ContractState() state.Contract {
	return x.state
}

// IterateStorage passes all dumped storage items into f in the order they
// were dumped.
func (x *Reader) IterateStorage(f func(key, value []byte)) {
	for i := range x.items {
		f(x.items[i].k, x.items[i].v)
	}
}

// Accounts returns accounts having a profile in the dump sorted by script
// hash.
func (x *Reader) Accounts() []util.Uint160 {
	var res []util.Uint160

	for i := range x.items {
		if x.items[i].k[0] == profilePrefix {
			res = append(res, decodeUint160(x.items[i].k[1:]))
		}
	}

	sort.Slice(res, func(i, j int) bool { return bytes.Compare(res[i][:], res[j][:]) < 0 })

	return res
}

// Transfer identifies reputation given by one account to another.
type Transfer struct {
	From, To util.Uint160
}

// Transfers returns pairs of accounts having transfer records in the dump.
func (x *Reader) Transfers() []Transfer {
	var res []Transfer

	for i := range x.items {
		if k := x.items[i].k; k[0] == transferPrefix {
			res = append(res, Transfer{
				From: decodeUint160(k[1 : 1+util.Uint160Size]),
				To:   decodeUint160(k[1+util.Uint160Size:]),
			})
		}
	}

	return res
}

// decodes key part of checked length.
func decodeUint160(b []byte) util.Uint160 {
	u, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		panic(err)
	}
	return u
}
