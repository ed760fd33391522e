/*
Package registry implements the state transitions of the audit registry.

The registry maps an account to the ordered list of content hashes the
account has submitted, and remembers the account which constructed it (the
owner). Lists are append-only: nothing is ever removed or reordered, and
duplicate hashes are kept.

Functions of this package never write. Mutating operations read the current
state through a Reader and return the Change to be applied by the caller
together with the notification to be emitted once the change is committed.
Package ledger applies changes to a neo-go storage backend, the registry
contract applies the same layout on-chain.

# Storage model

	'o' -> owner account (20 bytes, big-endian)
	's' + account (20 bytes, big-endian) -> serialized Array of ByteString hashes

Values are encoded with the neo-go binary stack item serialization, so the
layout is identical to the storage of the deployed contract.
*/
package registry
