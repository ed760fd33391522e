package deploy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nspcc-dev/audit-registry/contracts"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSpanTransactionModifier(t *testing.T) {
	t.Run("invalid invocation result state", func(t *testing.T) {
		var res result.Invoke
		res.State = "FAULT" // any non-HALT

		err := spanTransactionModifier(func() uint32 { return 0 })(&res, new(transaction.Transaction))
		require.Error(t, err)
	})

	var validRes result.Invoke
	validRes.State = "HALT"

	for _, tc := range []struct {
		curHeight     uint32
		expectedNonce uint32
		expectedVUB   uint32
	}{
		{curHeight: 0, expectedNonce: 0, expectedVUB: 100},
		{curHeight: 1, expectedNonce: 0, expectedVUB: 100},
		{curHeight: 99, expectedNonce: 0, expectedVUB: 100},
		{curHeight: 100, expectedNonce: 100, expectedVUB: 200},
		{curHeight: 199, expectedNonce: 100, expectedVUB: 200},
		{curHeight: 200, expectedNonce: 200, expectedVUB: 300},
		{curHeight: math.MaxUint32 - 50, expectedNonce: 100 * (math.MaxUint32 / 100), expectedVUB: math.MaxUint32},
	} {
		m := spanTransactionModifier(func() uint32 { return tc.curHeight })

		var tx transaction.Transaction

		err := m(&validRes, &tx)
		require.NoError(t, err, tc)
		require.EqualValues(t, tc.expectedNonce, tx.Nonce, tc)
		require.EqualValues(t, tc.expectedVUB, tx.ValidUntilBlock, tc)
	}
}

// testBlockchain serves contract states only. Any attempt to send a
// transaction panics on the nil RPCActor.
type testBlockchain struct {
	actor.RPCActor

	requested []util.Uint160
	err       error
}

func (x *testBlockchain) GetContractStateByHash(h util.Uint160) (*state.Contract, error) {
	x.requested = append(x.requested, h)
	if x.err != nil {
		return nil, x.err
	}
	return &state.Contract{}, nil
}

func testPrm(t *testing.T, bc Blockchain) Prm {
	acc, err := wallet.NewAccount()
	require.NoError(t, err)

	return Prm{
		Logger:       zaptest.NewLogger(t),
		Blockchain:   bc,
		LocalAccount: acc,
		Contract: contracts.Contract{
			NEF:      nef.File{Checksum: 42},
			Manifest: manifest.Manifest{Name: "AuditRegistry"},
		},
	}
}

func TestDeploy(t *testing.T) {
	t.Run("already deployed", func(t *testing.T) {
		bc := new(testBlockchain)
		prm := testPrm(t, bc)

		addr, err := Deploy(context.Background(), prm)
		require.NoError(t, err)

		expected := state.CreateContractHash(prm.LocalAccount.ScriptHash(), 42, "AuditRegistry")
		require.Equal(t, expected, addr)
		require.Equal(t, []util.Uint160{expected}, bc.requested)
	})

	t.Run("state failure", func(t *testing.T) {
		bc := &testBlockchain{err: errors.New("connection refused")}

		_, err := Deploy(context.Background(), testPrm(t, bc))
		require.ErrorIs(t, err, bc.err)
	})

	t.Run("nil account", func(t *testing.T) {
		bc := new(testBlockchain)
		prm := testPrm(t, bc)
		prm.LocalAccount = nil

		_, err := Deploy(context.Background(), prm)
		require.ErrorIs(t, err, errNilAccount)
		require.Empty(t, bc.requested)
	})
}

func TestIsErrContractNotFound(t *testing.T) {
	require.False(t, isErrContractNotFound(nil))
	require.False(t, isErrContractNotFound(errors.New("connection refused")))
	require.True(t, isErrContractNotFound(errors.New("Invalid params: Unknown contract")))
}

type testSender struct {
	sent  *contracts.Contract
	txErr error
}

func (x *testSender) Deploy(nefFile *nef.File, manif *manifest.Manifest, _ any) (util.Uint256, uint32, error) {
	if x.txErr != nil {
		return util.Uint256{}, 0, x.txErr
	}
	x.sent = &contracts.Contract{NEF: *nefFile, Manifest: *manif}
	return util.Uint256{0xaa}, 100, nil
}

type testWaiter struct {
	vub    uint32
	hashes []util.Uint256
	res    *state.AppExecResult
	err    error
}

func (x *testWaiter) WaitAny(_ context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error) {
	x.vub = vub
	x.hashes = hashes
	return x.res, x.err
}

func TestDeployAndWait(t *testing.T) {
	ctr := contracts.Contract{
		NEF:      nef.File{Checksum: 42},
		Manifest: manifest.Manifest{Name: "AuditRegistry"},
	}
	log := zaptest.NewLogger(t)

	t.Run("success", func(t *testing.T) {
		s := new(testSender)
		w := &testWaiter{res: &state.AppExecResult{Execution: state.Execution{VMState: vmstate.Halt}}}

		require.NoError(t, deployAndWait(context.Background(), log, s, w, ctr))
		require.Equal(t, &ctr, s.sent)
		require.EqualValues(t, 100, w.vub)
		require.Equal(t, []util.Uint256{{0xaa}}, w.hashes)
	})

	t.Run("fault", func(t *testing.T) {
		w := &testWaiter{res: &state.AppExecResult{Execution: state.Execution{
			VMState:        vmstate.Fault,
			FaultException: "at instruction 0 (ABORT)",
		}}}

		err := deployAndWait(context.Background(), log, new(testSender), w, ctr)
		require.ErrorContains(t, err, "at instruction 0 (ABORT)")
	})

	t.Run("send failure", func(t *testing.T) {
		s := &testSender{txErr: errors.New("insufficient funds")}
		w := new(testWaiter)

		err := deployAndWait(context.Background(), log, s, w, ctr)
		require.ErrorIs(t, err, s.txErr)
		require.Empty(t, w.hashes)
	})

	t.Run("wait failure", func(t *testing.T) {
		w := &testWaiter{err: context.DeadlineExceeded}

		err := deployAndWait(context.Background(), log, new(testSender), w, ctr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
