/*
Package registry implements Audit Registry contract.

Any account can submit content hashes (e.g. hashes of contracts sent for an
audit) under its own identity. Submissions of each account form an
append-only list readable by anyone. The account that deployed the contract
is stored as its owner; the owner has no special privileges.

# Contract notifications

ContractSubmitted notification. This notification is produced on every
successful submission.

	name: ContractSubmitted
	  - name: submitter
	    type: Hash160
	  - name: contractHash
	    type: Hash256
*/
package registry

/*
Contract storage model.

# Summary
Key-value storage format:
  - 'o' -> interop.Hash160
    account that deployed the contract
  - 's' + interop.Hash160 -> std.Serialize([]interop.Hash256)
    hashes submitted by the account in submission order

Storage layout is shared with the off-chain registry implementation.
*/
