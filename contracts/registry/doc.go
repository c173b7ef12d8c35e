/*
Package registry implements Identity Registry contract.

Any account may register a profile carrying an opaque metadata URI (e.g. a
content-addressed document with profile data stored off-chain). Registered
accounts may give bounded reputation points to other accounts: every single
call transfers from 1 to 100 points and the total amount one account gives to
another is capped at 100 points, so many different givers are required to
gain a high reputation.

Reputation is not an asset: it can't be transferred further or withdrawn, it
is a simple accumulator of the points received.

# Metadata URI limits

Metadata URI is passed into Registered and MetadataUpdated notifications.
NeoVM limits serialized notification to 1024 bytes and checks notification
parameters against the manifest types. So the URI must be at most
registryconst.MaxMetadataURILength (900) bytes, longer URIs are rejected with
registryconst.ErrMetadataTooLong, and it must be valid UTF-8: other byte
strings fail notification type check and the invocation faults.

# Contract notifications

Registered notification. This notification is produced when an account
registers its profile.

	Registered
	  - name: account
	    type: Hash160
	  - name: metadataURI
	    type: String

MetadataUpdated notification. This notification is produced when registered
account changes metadata URI of its profile.

	MetadataUpdated
	  - name: account
	    type: Hash160
	  - name: metadataURI
	    type: String

ReputationGiven notification. This notification is produced when one account
gives reputation points to another one.

	ReputationGiven
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

Notifications are emitted in the order of successful invocations, so the
contract state can be fully reconstructed by replaying them.
*/
package registry

/*
Contract storage model.

Current conventions:
 <account>: 20-byte script hash of the account
 <from>: 20-byte script hash of the reputation giver
 <to>: 20-byte script hash of the reputation recipient

# Summary
Key-value storage format:
 - 'p<account>' -> std.Serialize(Profile)
   profile of the account, written by the first registration or by the first
   received reputation, never deleted
 - 't<from><to>' -> int
   total amount of reputation points given by <from> to <to>

# Invariants
Reputation of any account equals the sum of 't<from><account>' values over all
givers. None of 't' values exceeds registryconst.MaxPerPair.
*/
