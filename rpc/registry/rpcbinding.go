// Package registry contains RPC wrappers for Audit Registry contract.
package registry

import (
	"errors"
	"fmt"
	"math/big"

	auditregistry "github.com/nspcc-dev/audit-registry/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// ContractSubmittedEvent represents "ContractSubmitted" event emitted by the contract.
type ContractSubmittedEvent struct {
	Submitter    util.Uint160
	ContractHash util.Uint256
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// GetOwner invokes `getOwner` method of contract.
func (c *ContractReader) GetOwner() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "getOwner"))
}

// GetSubmissions invokes `getSubmissions` method of contract.
func (c *ContractReader) GetSubmissions(account util.Uint160) ([]util.Uint256, error) {
	return func(item stackitem.Item, err error) ([]util.Uint256, error) {
		if err != nil {
			return nil, err
		}
		arr, ok := item.Value().([]stackitem.Item)
		if !ok {
			return nil, errors.New("not an array")
		}
		res := make([]util.Uint256, len(arr))
		for i := range arr {
			b, err := arr[i].TryBytes()
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			res[i], err = util.Uint256DecodeBytesBE(b)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
		return res, nil
	}(unwrap.Item(c.invoker.Call(c.hash, "getSubmissions", account)))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// SubmitContract creates a transaction invoking `submitContract` method of the contract.
// This transaction is signed and immediately sent to the network.
// The values returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) SubmitContract(submitter util.Uint160, contractHash util.Uint256) (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "submitContract", submitter, contractHash)
}

// SubmitContractTransaction creates a transaction invoking `submitContract` method of the contract.
// This transaction is signed, but not sent to the network, instead it's
// returned to the caller.
func (c *Contract) SubmitContractTransaction(submitter util.Uint160, contractHash util.Uint256) (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "submitContract", submitter, contractHash)
}

// SubmitContractUnsigned creates a transaction invoking `submitContract` method of the contract.
// This transaction is not signed, it's simply returned to the caller.
// Any fields of it that do not affect fees can be changed (ValidUntilBlock,
// Nonce), fee values (NetworkFee, SystemFee) can be increased as well.
func (c *Contract) SubmitContractUnsigned(submitter util.Uint160, contractHash util.Uint256) (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "submitContract", nil, submitter, contractHash)
}

// ContractSubmittedEventsFromApplicationLog retrieves a set of all emitted events
// with "ContractSubmitted" name from the provided [result.ApplicationLog].
func ContractSubmittedEventsFromApplicationLog(log *result.ApplicationLog) ([]*ContractSubmittedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*ContractSubmittedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != "ContractSubmitted" {
				continue
			}
			event := new(ContractSubmittedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize ContractSubmittedEvent from stackitem (execution #%d, event #%d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to ContractSubmittedEvent or
// returns an error if it's not possible to do to so.
func (e *ContractSubmittedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}

	var ev auditregistry.ContractSubmitted

	err := ev.FromStackItem(item)
	if err != nil {
		return err
	}

	e.Submitter = ev.Submitter
	e.ContractHash = ev.ContractHash

	return nil
}
