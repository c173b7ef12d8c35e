package registry

import (
	"github.com/nspcc-dev/idrep-contract/common"
	"github.com/nspcc-dev/idrep-contract/contracts/registry/registryconst"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// Profile is a registry record of the account.
type Profile struct {
	// Set by Register, never reset.
	Registered bool
	// Opaque pointer to the off-chain profile data.
	MetadataURI string
	// Sum of all points received by the account.
	Reputation int
}

const (
	profilePrefix  = 'p'
	transferPrefix = 't'
)

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		args := data.([]any)
		version := args[len(args)-1].(int)

		common.CheckVersion(version)

		return
	}

	runtime.Log("registry contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(nefFile, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic(common.ErrUpdateAccessDenied)
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("registry contract updated")
}

// Register method creates a profile of the account with the given metadata
// URI. It can be invoked only by the account owner and only once: metadata of
// a registered account is changed with UpdateMetadata.
//
// Reputation received by the account before registration is kept. Metadata
// URI must be a valid UTF-8 string of at most registryconst.MaxMetadataURILength
// bytes.
//
// It produces Registered notification.
func Register(account interop.Hash160, metadataURI string) {
	checkAccount(account)
	common.CheckOwnerWitness(account)
	checkMetadataURI(metadataURI)

	ctx := storage.GetContext()

	p := getProfile(ctx, account)
	if p.Registered {
		panic(registryconst.ErrAlreadyRegistered)
	}

	p.Registered = true
	p.MetadataURI = metadataURI
	putProfile(ctx, account, p)

	runtime.Notify(registryconst.RegisteredEvent, account, metadataURI)
}

// UpdateMetadata method overwrites metadata URI of the registered account. It
// can be invoked only by the account owner. Registration flag and reputation
// are not changed. Metadata URI limits are the same as for Register.
//
// It produces MetadataUpdated notification.
func UpdateMetadata(account interop.Hash160, metadataURI string) {
	checkAccount(account)
	common.CheckOwnerWitness(account)
	checkMetadataURI(metadataURI)

	ctx := storage.GetContext()

	p := getProfile(ctx, account)
	if !p.Registered {
		panic(registryconst.ErrNotRegistered)
	}

	p.MetadataURI = metadataURI
	putProfile(ctx, account, p)

	runtime.Notify(registryconst.MetadataUpdatedEvent, account, metadataURI)
}

// GiveReputation method transfers amount of reputation points from the
// registered account to another account. It can be invoked only by the giver.
//
// Amount must be in [registryconst.MinAmount, registryconst.MaxAmount] range,
// self reputation is forbidden and the total amount given by one account to
// another can not exceed registryconst.MaxPerPair. Recipient does not have to
// be registered: received points are kept in its profile.
//
// It produces ReputationGiven notification.
func GiveReputation(from, to interop.Hash160, amount int) {
	checkAccount(from)
	checkAccount(to)
	common.CheckOwnerWitness(from)

	if amount < registryconst.MinAmount || amount > registryconst.MaxAmount {
		panic(registryconst.ErrInvalidAmount)
	}

	if from.Equals(to) {
		panic(registryconst.ErrSelfReputation)
	}

	ctx := storage.GetContext()

	if !getProfile(ctx, from).Registered {
		panic(registryconst.ErrNotRegistered)
	}

	key := transferKey(from, to)

	given := getGiven(ctx, key)
	if given+amount > registryconst.MaxPerPair {
		panic(registryconst.ErrTransferCapExceeded)
	}

	recipient := getProfile(ctx, to)
	recipient.Reputation += amount

	storage.Put(ctx, key, given+amount)
	putProfile(ctx, to, recipient)

	runtime.Notify(registryconst.ReputationGivenEvent, from, to, amount)
}

// GetProfile method returns profile of the account. Accounts without profile
// get zero Profile structure.
func GetProfile(account interop.Hash160) Profile {
	ctx := storage.GetReadOnlyContext()
	return getProfile(ctx, account)
}

// Given method returns total amount of reputation points the giver has
// transferred to the recipient.
func Given(from, to interop.Hash160) int {
	ctx := storage.GetReadOnlyContext()
	return getGiven(ctx, transferKey(from, to))
}

// Accounts method returns iterator over all accounts having a profile: both
// registered ones and those which only received reputation.
func Accounts() iterator.Iterator {
	ctx := storage.GetReadOnlyContext()
	return storage.Find(ctx, []byte{profilePrefix}, storage.KeysOnly|storage.RemovePrefix)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func checkAccount(account interop.Hash160) {
	if len(account) != interop.Hash160Len {
		panic(registryconst.ErrInvalidAccount)
	}
}

// checkMetadataURI panics if the URI does not fit into the notification.
func checkMetadataURI(uri string) {
	if len(uri) > registryconst.MaxMetadataURILength {
		panic(registryconst.ErrMetadataTooLong)
	}
}

// getProfile is the only reader of profile records: it returns the stored
// profile or the zero one if nothing has been written for the account yet.
func getProfile(ctx storage.Context, account interop.Hash160) Profile {
	data := storage.Get(ctx, profileKey(account))
	if data != nil {
		return std.Deserialize(data.([]byte)).(Profile)
	}

	return Profile{
		Registered:  false,
		MetadataURI: "",
		Reputation:  0,
	}
}

func putProfile(ctx storage.Context, account interop.Hash160, p Profile) {
	common.SetSerialized(ctx, profileKey(account), p)
}

func getGiven(ctx storage.Context, key []byte) int {
	data := storage.Get(ctx, key)
	if data != nil {
		return data.(int)
	}

	return 0
}

func profileKey(account interop.Hash160) []byte {
	return append([]byte{profilePrefix}, account...)
}

func transferKey(from, to interop.Hash160) []byte {
	return append(append([]byte{transferPrefix}, from...), to...)
}
