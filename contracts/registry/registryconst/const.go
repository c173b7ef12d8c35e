// Package registryconst provides constants of the Identity Registry contract
// shared by the contract itself and its off-chain clients.
package registryconst

const (
	// MaxPerPair is the maximum cumulative amount of reputation points a single
	// giver may ever grant a single recipient.
	MaxPerPair = 100

	// MinAmount and MaxAmount bound the amount of a single GiveReputation call.
	MinAmount = 1
	MaxAmount = 100

	// MaxMetadataURILength is the maximum length of the metadata URI in bytes.
	// The URI is carried by Registered and MetadataUpdated notifications which
	// NeoVM limits to 1024 bytes of serialized data, the rest of the limit is
	// left for the account and the encoding overhead.
	MaxMetadataURILength = 900
)

// Names of the contract notifications.
const (
	RegisteredEvent      = "Registered"
	MetadataUpdatedEvent = "MetadataUpdated"
	ReputationGivenEvent = "ReputationGiven"
)

// Exception messages thrown by the contract methods.
const (
	// ErrAlreadyRegistered is thrown by Register for an already registered
	// account. Metadata of registered accounts is changed by UpdateMetadata.
	ErrAlreadyRegistered = "already registered"
	// ErrNotRegistered is thrown when the acting account has no active profile.
	ErrNotRegistered = "not registered"
	// ErrSelfReputation is thrown when an account tries to give reputation
	// to itself.
	ErrSelfReputation = "self reputation is not allowed"
	// ErrInvalidAmount is thrown when the reputation amount is out of
	// [MinAmount, MaxAmount] range.
	ErrInvalidAmount = "invalid amount"
	// ErrTransferCapExceeded is thrown when the total amount given by one
	// account to another would exceed MaxPerPair.
	ErrTransferCapExceeded = "transfer cap exceeded"
	// ErrInvalidAccount is thrown for account arguments which are not
	// 20-byte script hashes.
	ErrInvalidAccount = "invalid account"
	// ErrMetadataTooLong is thrown for metadata URIs longer than
	// MaxMetadataURILength.
	ErrMetadataTooLong = "metadata URI is too long"
)
