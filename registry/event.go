package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// ContractSubmittedEvent is the name of the notification emitted on Submit.
const ContractSubmittedEvent = "ContractSubmitted"

// ContractSubmitted is the notification emitted for every submitted hash.
type ContractSubmitted struct {
	Submitter    AccountID
	ContractHash Hash
}

// ToStackItem returns notification body in the form the registry contract
// emits it: Array of submitter and contract hash.
func (e ContractSubmitted) ToStackItem() stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(e.Submitter.BytesBE()),
		stackitem.NewByteArray(e.ContractHash.BytesBE()),
	})
}

// FromStackItem decodes notification body produced by ToStackItem or
// emitted by the registry contract.
func (e *ContractSubmitted) FromStackItem(item stackitem.Item) error {
	if item == nil {
		return errors.New("nil item")
	}

	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 2 {
		return errors.New("wrong number of structure elements")
	}

	b, err := arr[0].TryBytes()
	if err != nil {
		return fmt.Errorf("field Submitter: %w", err)
	}
	e.Submitter, err = util.Uint160DecodeBytesBE(b)
	if err != nil {
		return fmt.Errorf("field Submitter: %w", err)
	}

	b, err = arr[1].TryBytes()
	if err != nil {
		return fmt.Errorf("field ContractHash: %w", err)
	}
	e.ContractHash, err = util.Uint256DecodeBytesBE(b)
	if err != nil {
		return fmt.Errorf("field ContractHash: %w", err)
	}

	return nil
}

// HashFromSubmissionID converts identifier of the off-chain submission record
// into the hash registered on-chain: the first 32 bytes of its canonical
// string form.
func HashFromSubmissionID(id uuid.UUID) Hash {
	var h Hash
	copy(h[:], id.String())
	return h
}
