package tests

import (
	"testing"

	"github.com/nspcc-dev/audit-registry/common"
	"github.com/nspcc-dev/audit-registry/contracts"
	rpcregistry "github.com/nspcc-dev/audit-registry/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func newRegistryInvoker(t *testing.T) (*neotest.Executor, *neotest.ContractInvoker) {
	e := newExecutor(t)
	h := DeployRegistryContract(t, e)
	return e, e.CommitteeInvoker(h)
}

func submittedEvents(t testing.TB, e *neotest.Executor, tx util.Uint256) []*rpcregistry.ContractSubmittedEvent {
	aer := e.GetTxExecResult(t, tx)

	evs, err := rpcregistry.ContractSubmittedEventsFromApplicationLog(&result.ApplicationLog{
		Container:  tx,
		Executions: []state.Execution{aer.Execution},
	})
	require.NoError(t, err)

	return evs
}

func TestRegistry_Deploy(t *testing.T) {
	e, c := newRegistryInvoker(t)

	s, err := c.TestInvoke(t, "getOwner")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	b, err := s.Pop().Item().TryBytes()
	require.NoError(t, err)
	require.Equal(t, e.Validator.ScriptHash().BytesBE(), b)

	require.Empty(t, testInvokeSubmissions(t, c, e.Validator.ScriptHash()))
	require.Empty(t, testInvokeSubmissions(t, c, util.Uint160{}))
}

func TestRegistry_SubmitContract(t *testing.T) {
	e, c := newRegistryInvoker(t)

	owner := e.Validator.ScriptHash()
	bob := e.NewAccount(t)
	bobInv := c.WithSigners(bob)

	tx := bobInv.Invoke(t, stackitem.Null{}, "submitContract", bob.ScriptHash(), filledHash(0x01))
	require.Equal(t, []*rpcregistry.ContractSubmittedEvent{
		{Submitter: bob.ScriptHash(), ContractHash: filledHash(0x01)},
	}, submittedEvents(t, e, tx))

	require.Equal(t, []util.Uint256{filledHash(0x01)}, testInvokeSubmissions(t, c, bob.ScriptHash()))
	require.Empty(t, testInvokeSubmissions(t, c, owner))

	bobInv.Invoke(t, stackitem.Null{}, "submitContract", bob.ScriptHash(), filledHash(0x02))
	require.Equal(t, []util.Uint256{filledHash(0x01), filledHash(0x02)},
		testInvokeSubmissions(t, c, bob.ScriptHash()))

	t.Run("other account", func(t *testing.T) {
		charlie := e.NewAccount(t)
		charlieInv := c.WithSigners(charlie)

		charlieInv.Invoke(t, stackitem.Null{}, "submitContract", charlie.ScriptHash(), filledHash(0x11))
		charlieInv.Invoke(t, stackitem.Null{}, "submitContract", charlie.ScriptHash(), filledHash(0x22))

		require.Equal(t, []util.Uint256{filledHash(0x11), filledHash(0x22)},
			testInvokeSubmissions(t, c, charlie.ScriptHash()))
		require.Equal(t, []util.Uint256{filledHash(0x01), filledHash(0x02)},
			testInvokeSubmissions(t, c, bob.ScriptHash()))
		require.Empty(t, testInvokeSubmissions(t, c, owner))
	})

	t.Run("duplicates", func(t *testing.T) {
		acc := e.NewAccount(t)
		inv := c.WithSigners(acc)

		inv.Invoke(t, stackitem.Null{}, "submitContract", acc.ScriptHash(), filledHash(0x33))
		inv.Invoke(t, stackitem.Null{}, "submitContract", acc.ScriptHash(), filledHash(0x33))

		require.Equal(t, []util.Uint256{filledHash(0x33), filledHash(0x33)},
			testInvokeSubmissions(t, c, acc.ScriptHash()))
	})

	t.Run("multiple submissions per block", func(t *testing.T) {
		acc := e.NewAccount(t)
		inv := c.WithSigners(acc)

		tx1 := inv.PrepareInvoke(t, "submitContract", acc.ScriptHash(), filledHash(0x44))
		tx2 := inv.PrepareInvoke(t, "submitContract", acc.ScriptHash(), filledHash(0x55))
		e.AddNewBlock(t, tx1, tx2)
		e.CheckHalt(t, tx1.Hash(), stackitem.Null{})
		e.CheckHalt(t, tx2.Hash(), stackitem.Null{})

		require.Len(t, submittedEvents(t, e, tx1.Hash()), 1)
		require.Len(t, submittedEvents(t, e, tx2.Hash()), 1)

		require.Equal(t, []util.Uint256{filledHash(0x44), filledHash(0x55)},
			testInvokeSubmissions(t, c, acc.ScriptHash()))
	})

	t.Run("owner is not special", func(t *testing.T) {
		c.Invoke(t, stackitem.Null{}, "submitContract", owner, filledHash(0x66))
		require.Equal(t, []util.Uint256{filledHash(0x66)}, testInvokeSubmissions(t, c, owner))
	})
}

func TestRegistry_SubmitContractFail(t *testing.T) {
	e, c := newRegistryInvoker(t)

	alice := e.NewAccount(t)
	bob := e.NewAccount(t)
	bobInv := c.WithSigners(bob)

	bobInv.InvokeFail(t, common.ErrWitnessFailed, "submitContract", alice.ScriptHash(), filledHash(0x01))
	bobInv.InvokeFail(t, "invalid contract hash", "submitContract", bob.ScriptHash(), []byte{1, 2, 3})
	bobInv.InvokeFail(t, "invalid submitter", "submitContract", []byte{1, 2, 3}, filledHash(0x01))

	require.Empty(t, testInvokeSubmissions(t, c, alice.ScriptHash()))
	require.Empty(t, testInvokeSubmissions(t, c, bob.ScriptHash()))
}

func TestRegistry_ReadsDoNotNotify(t *testing.T) {
	e, c := newRegistryInvoker(t)

	bob := e.NewAccount(t)
	c.WithSigners(bob).Invoke(t, stackitem.Null{}, "submitContract", bob.ScriptHash(), filledHash(0x01))

	tx1 := c.PrepareInvoke(t, "getSubmissions", bob.ScriptHash())
	tx2 := c.PrepareInvoke(t, "getOwner")
	e.AddNewBlock(t, tx1, tx2)

	for _, tx := range []util.Uint256{tx1.Hash(), tx2.Hash()} {
		aer := e.CheckHalt(t, tx)
		require.Empty(t, aer.Events)
	}
}

func TestRegistry_Version(t *testing.T) {
	_, c := newRegistryInvoker(t)
	c.Invoke(t, common.Version, "version")
}

func TestRegistry_Manifest(t *testing.T) {
	ctr, err := compileContract(RegistryPath)
	require.NoError(t, err)

	m := ctr.Manifest
	require.Equal(t, "AuditRegistry", m.Name)

	for _, name := range []string{"getSubmissions", "getOwner", "version"} {
		md := m.ABI.GetMethod(name, -1)
		require.NotNil(t, md, name)
		require.True(t, md.Safe, name)
	}

	md := m.ABI.GetMethod("submitContract", 2)
	require.NotNil(t, md)
	require.False(t, md.Safe)

	ev := m.ABI.GetEvent("ContractSubmitted")
	require.NotNil(t, ev)
	require.Len(t, ev.Parameters, 2)
}

func TestRegistry_CompiledArtifacts(t *testing.T) {
	e := newExecutor(t)

	ctr, err := compileContract(RegistryPath)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, writeContract(dir, ctr))

	res, err := contracts.Read(dir)
	require.NoError(t, err)
	require.Equal(t, ctr.NEF.Checksum, res.NEF.Checksum)
	require.Equal(t, ctr.Manifest.Name, res.Manifest.Name)

	nc := &neotest.Contract{
		Hash:     state.CreateContractHash(e.CommitteeHash, res.NEF.Checksum, res.Manifest.Name),
		NEF:      &res.NEF,
		Manifest: &res.Manifest,
	}
	e.DeployContract(t, nc, nil)

	c := e.CommitteeInvoker(nc.Hash)
	c.Invoke(t, stackitem.Null{}, "submitContract", e.CommitteeHash, filledHash(0x01))
	require.Equal(t, []util.Uint256{filledHash(0x01)}, testInvokeSubmissions(t, c, e.CommitteeHash))
}
