package tests

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}

func filledHash(b byte) util.Uint256 {
	var h util.Uint256
	for i := range h {
		h[i] = b
	}
	return h
}

// testInvokeSubmissions calls 'getSubmissions' method without transaction and
// decodes resulting hash list.
func testInvokeSubmissions(t testing.TB, inv *neotest.ContractInvoker, account util.Uint160) []util.Uint256 {
	s, err := inv.TestInvoke(t, "getSubmissions", account)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	arr, ok := s.Pop().Item().Value().([]stackitem.Item)
	require.True(t, ok)

	res := make([]util.Uint256, len(arr))
	for i := range arr {
		b, err := arr[i].TryBytes()
		require.NoError(t, err)

		res[i], err = util.Uint256DecodeBytesBE(b)
		require.NoError(t, err)
	}

	return res
}
