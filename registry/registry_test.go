package registry

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

var (
	alice   = util.Uint160{0xa1}
	bob     = util.Uint160{0xb0}
	charlie = util.Uint160{0xc4}
)

func filledHash(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func newStore() *storage.MemCachedStore {
	return storage.NewMemCachedStore(storage.NewMemoryStore())
}

func apply(st *storage.MemCachedStore, c Change) {
	st.Put(c.Key, c.Value)
}

func constructed(t *testing.T, owner AccountID) *storage.MemCachedStore {
	st := newStore()
	c, err := Construct(st, owner)
	require.NoError(t, err)
	apply(st, c)
	return st
}

func submit(t *testing.T, st *storage.MemCachedStore, caller AccountID, h Hash) ContractSubmitted {
	c, ev, err := Submit(st, caller, h)
	require.NoError(t, err)
	apply(st, c)
	return ev
}

type failingReader struct{ err error }

func (x failingReader) Get([]byte) ([]byte, error) { return nil, x.err }

func TestConstruct(t *testing.T) {
	st := constructed(t, alice)

	owner, err := Owner(st)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	list, err := Submissions(st, alice)
	require.NoError(t, err)
	require.Empty(t, list)

	t.Run("twice", func(t *testing.T) {
		_, err := Construct(st, bob)
		require.ErrorIs(t, err, ErrAlreadyConstructed)

		owner, err := Owner(st)
		require.NoError(t, err)
		require.Equal(t, alice, owner)
	})

	t.Run("zero owner", func(t *testing.T) {
		_, err := Construct(newStore(), util.Uint160{})
		require.ErrorIs(t, err, ErrZeroOwner)
	})

	t.Run("storage failure", func(t *testing.T) {
		errIO := errors.New("i/o")
		_, err := Construct(failingReader{errIO}, alice)
		require.ErrorIs(t, err, errIO)
	})
}

func TestOwner_NotConstructed(t *testing.T) {
	_, err := Owner(newStore())
	require.ErrorIs(t, err, ErrNotConstructed)
}

func TestSubmit(t *testing.T) {
	st := constructed(t, alice)

	ev := submit(t, st, bob, filledHash(0x01))
	require.Equal(t, ContractSubmitted{Submitter: bob, ContractHash: filledHash(0x01)}, ev)

	list, err := Submissions(st, bob)
	require.NoError(t, err)
	require.Equal(t, []Hash{filledHash(0x01)}, list)

	list, err = Submissions(st, alice)
	require.NoError(t, err)
	require.Empty(t, list)

	submit(t, st, bob, filledHash(0x02))

	list, err = Submissions(st, bob)
	require.NoError(t, err)
	require.Equal(t, []Hash{filledHash(0x01), filledHash(0x02)}, list)

	t.Run("other account", func(t *testing.T) {
		submit(t, st, charlie, filledHash(0x11))
		submit(t, st, charlie, filledHash(0x22))

		list, err := Submissions(st, charlie)
		require.NoError(t, err)
		require.Equal(t, []Hash{filledHash(0x11), filledHash(0x22)}, list)

		list, err = Submissions(st, bob)
		require.NoError(t, err)
		require.Equal(t, []Hash{filledHash(0x01), filledHash(0x02)}, list)

		list, err = Submissions(st, alice)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("duplicates", func(t *testing.T) {
		st := constructed(t, alice)
		submit(t, st, bob, filledHash(0x33))
		submit(t, st, bob, filledHash(0x33))

		list, err := Submissions(st, bob)
		require.NoError(t, err)
		require.Equal(t, []Hash{filledHash(0x33), filledHash(0x33)}, list)
	})

	t.Run("order", func(t *testing.T) {
		st := constructed(t, alice)

		var expected []Hash
		for i := 0; i < 50; i++ {
			h := filledHash(byte(50 - i))
			submit(t, st, bob, h)
			expected = append(expected, h)
		}

		list, err := Submissions(st, bob)
		require.NoError(t, err)
		require.Equal(t, expected, list)
	})
}

func TestSubmit_NotConstructed(t *testing.T) {
	st := newStore()

	_, _, err := Submit(st, bob, filledHash(0x01))
	require.ErrorIs(t, err, ErrNotConstructed)

	list, err := Submissions(st, bob)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSubmit_DoesNotWrite(t *testing.T) {
	st := constructed(t, alice)

	_, _, err := Submit(st, bob, filledHash(0x01))
	require.NoError(t, err)

	list, err := Submissions(st, bob)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSubmit_StorageFailure(t *testing.T) {
	errIO := errors.New("i/o")

	_, _, err := Submit(failingReader{errIO}, bob, filledHash(0x01))
	require.ErrorIs(t, err, errIO)

	_, err = Submissions(failingReader{errIO}, bob)
	require.ErrorIs(t, err, errIO)
}

func TestSubmissions_Corrupted(t *testing.T) {
	st := constructed(t, alice)
	st.Put(SubmissionsKey(bob), []byte("not a stack item"))

	_, err := Submissions(st, bob)
	require.Error(t, err)

	_, _, err = Submit(st, bob, filledHash(0x01))
	require.Error(t, err)
}

func TestSubmissionsKey(t *testing.T) {
	require.NotEqual(t, SubmissionsKey(alice), SubmissionsKey(bob))
	require.Len(t, SubmissionsKey(alice), 1+util.Uint160Size)
	require.NotEqual(t, OwnerKey(), SubmissionsKey(alice)[:1])
}

func TestContractSubmitted_StackItem(t *testing.T) {
	ev := ContractSubmitted{Submitter: bob, ContractHash: filledHash(0x42)}

	var res ContractSubmitted
	require.NoError(t, res.FromStackItem(ev.ToStackItem()))
	require.Equal(t, ev, res)

	require.Error(t, res.FromStackItem(nil))
}

func TestHashFromSubmissionID(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

	h := HashFromSubmissionID(id)
	require.Equal(t, []byte(id.String())[:32], h.BytesBE())
	require.NotEqual(t, h, HashFromSubmissionID(uuid.New()))
}

func TestParseAccount(t *testing.T) {
	acc := util.Uint160{1, 2, 3, 4, 5}

	res, err := ParseAccount(AccountString(acc))
	require.NoError(t, err)
	require.Equal(t, acc, res)

	res, err = ParseAccount(acc.StringLE())
	require.NoError(t, err)
	require.Equal(t, acc, res)

	res, err = ParseAccount("0x" + acc.StringLE())
	require.NoError(t, err)
	require.Equal(t, acc, res)

	for _, s := range []string{"", "NotAnAddress", "0102"} {
		_, err = ParseAccount(s)
		require.Error(t, err, s)
	}
}

func TestParseHash(t *testing.T) {
	h := Hash{0xaa, 0xbb}

	res, err := ParseHash(h.StringBE())
	require.NoError(t, err)
	require.Equal(t, h, res)

	res, err = ParseHash("0x" + h.StringBE())
	require.NoError(t, err)
	require.Equal(t, h, res)

	_, err = ParseHash("abc")
	require.Error(t, err)
}

func TestParseSubmissionsKey(t *testing.T) {
	acc, ok := ParseSubmissionsKey(SubmissionsKey(bob))
	require.True(t, ok)
	require.Equal(t, bob, acc)

	for _, key := range [][]byte{
		OwnerKey(),
		SubmissionsKey(bob)[:10],
		append(SubmissionsKey(bob), 0),
		append([]byte{'x'}, bob.BytesBE()...),
	} {
		_, ok = ParseSubmissionsKey(key)
		require.False(t, ok)
	}
}
