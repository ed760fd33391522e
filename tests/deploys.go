package tests

import (
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// RegistryPath is a path to the registry contract sources relative to the
// tests directory.
const RegistryPath = "../contracts/registry"

// DeployRegistryContract compiles and deploys registry contract. The
// deployment transaction is sent by e.Validator which becomes the owner.
func DeployRegistryContract(t testing.TB, e *neotest.Executor) util.Uint160 {
	c := neotest.CompileFile(t, e.CommitteeHash, RegistryPath, path.Join(RegistryPath, "config.yml"))
	e.DeployContract(t, c, nil)
	return c.Hash
}
