package registry

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

type (
	// AccountID identifies a calling principal.
	AccountID = util.Uint160

	// Hash is an opaque content identifier. The registry never interprets it.
	Hash = util.Uint256
)

const (
	ownerKey          = 'o'
	submissionsPrefix = 's'
)

var (
	// ErrAlreadyConstructed is returned by Construct if the owner is already set.
	ErrAlreadyConstructed = errors.New("registry is already constructed")
	// ErrNotConstructed is returned by Owner before Construct has been applied.
	ErrNotConstructed = errors.New("registry is not constructed")
	// ErrZeroOwner is returned by Construct for the zero account.
	ErrZeroOwner = errors.New("zero owner account")
)

// Reader provides read access to the registry storage. Get must return an
// error matching storage.ErrKeyNotFound for missing keys. All neo-go
// storage.Store implementations satisfy it.
type Reader interface {
	Get(key []byte) ([]byte, error)
}

// Change is a single storage write produced by a mutating operation.
type Change struct {
	Key   []byte
	Value []byte
}

// OwnerKey returns storage key of the registry owner.
func OwnerKey() []byte {
	return []byte{ownerKey}
}

// SubmissionsPrefix returns common prefix of all submission list keys.
func SubmissionsPrefix() []byte {
	return []byte{submissionsPrefix}
}

// SubmissionsKey returns storage key of the submission list of the given
// account.
func SubmissionsKey(account AccountID) []byte {
	return append([]byte{submissionsPrefix}, account.BytesBE()...)
}

// ParseSubmissionsKey returns account of the submission list stored under the
// given key. The second value is false for any other key.
func ParseSubmissionsKey(key []byte) (AccountID, bool) {
	if len(key) != 1+util.Uint160Size || key[0] != submissionsPrefix {
		return AccountID{}, false
	}

	acc, err := util.Uint160DecodeBytesBE(key[1:])
	return acc, err == nil
}

// Construct returns the change initializing the registry with the given
// owner. The registry can be constructed only once.
func Construct(st Reader, owner AccountID) (Change, error) {
	if owner.Equals(util.Uint160{}) {
		return Change{}, ErrZeroOwner
	}

	_, err := st.Get(OwnerKey())
	switch {
	case err == nil:
		return Change{}, ErrAlreadyConstructed
	case !errors.Is(err, storage.ErrKeyNotFound):
		return Change{}, fmt.Errorf("read owner: %w", err)
	}

	return Change{Key: OwnerKey(), Value: owner.BytesBE()}, nil
}

// Owner returns the account which constructed the registry.
func Owner(st Reader) (AccountID, error) {
	raw, err := st.Get(OwnerKey())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return AccountID{}, ErrNotConstructed
		}
		return AccountID{}, fmt.Errorf("read owner: %w", err)
	}

	owner, err := util.Uint160DecodeBytesBE(raw)
	if err != nil {
		return AccountID{}, fmt.Errorf("decode owner: %w", err)
	}

	return owner, nil
}

// Submit appends h to the submission list of the caller. It returns the
// change storing the resulting list and the notification to be emitted after
// the change is committed. Duplicates are not filtered. Submit fails with
// ErrNotConstructed until Construct has been applied.
func Submit(st Reader, caller AccountID, h Hash) (Change, ContractSubmitted, error) {
	_, err := Owner(st)
	if err != nil {
		return Change{}, ContractSubmitted{}, err
	}

	list, err := Submissions(st, caller)
	if err != nil {
		return Change{}, ContractSubmitted{}, err
	}

	list = append(list, h)

	value, err := encodeList(list)
	if err != nil {
		return Change{}, ContractSubmitted{}, fmt.Errorf("encode submissions: %w", err)
	}

	return Change{Key: SubmissionsKey(caller), Value: value},
		ContractSubmitted{Submitter: caller, ContractHash: h}, nil
}

// Submissions returns hashes submitted by the given account in submission
// order. Accounts without submissions have an empty list.
func Submissions(st Reader, account AccountID) ([]Hash, error) {
	raw, err := st.Get(SubmissionsKey(account))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return []Hash{}, nil
		}
		return nil, fmt.Errorf("read submissions of %s: %w", account.StringLE(), err)
	}

	list, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode submissions of %s: %w", account.StringLE(), err)
	}

	return list, nil
}

func encodeList(list []Hash) ([]byte, error) {
	items := make([]stackitem.Item, len(list))
	for i := range list {
		items[i] = stackitem.NewByteArray(list[i].BytesBE())
	}

	return stackitem.Serialize(stackitem.NewArray(items))
}

func decodeList(raw []byte) ([]Hash, error) {
	item, err := stackitem.Deserialize(raw)
	if err != nil {
		return nil, err
	}

	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return nil, fmt.Errorf("unexpected stack item %s", item.Type())
	}

	res := make([]Hash, len(arr))
	for i := range arr {
		b, err := arr[i].TryBytes()
		if err != nil {
			return nil, fmt.Errorf("item #%d: %w", i, err)
		}

		res[i], err = util.Uint256DecodeBytesBE(b)
		if err != nil {
			return nil, fmt.Errorf("item #%d: %w", i, err)
		}
	}

	return res, nil
}
