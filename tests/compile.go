package tests

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"

	"github.com/nspcc-dev/audit-registry/contracts"
	"github.com/nspcc-dev/neo-go/cli/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/compiler"
	"github.com/nspcc-dev/neo-go/pkg/config"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
)

var compiled = map[string]contracts.Contract{}

// compileContract compiles contract sources from the given directory along
// with its config.yml. Results are cached per directory.
func compileContract(ctrPath string) (contracts.Contract, error) {
	if c, ok := compiled[ctrPath]; ok {
		return c, nil
	}

	// nef.NewFile() cares about version a lot.
	config.Version = "0.90.0-test"

	avm, di, err := compiler.CompileWithDebugInfo(ctrPath, nil)
	if err != nil {
		return contracts.Contract{}, err
	}

	ne, err := nef.NewFile(avm)
	if err != nil {
		return contracts.Contract{}, err
	}

	conf, err := smartcontract.ParseContractConfig(path.Join(ctrPath, "config.yml"))
	if err != nil {
		return contracts.Contract{}, err
	}

	o := &compiler.Options{}
	o.Name = conf.Name
	o.ContractEvents = conf.Events
	o.ContractSupportedStandards = conf.SupportedStandards
	o.Permissions = make([]manifest.Permission, len(conf.Permissions))
	for i := range conf.Permissions {
		o.Permissions[i] = manifest.Permission(conf.Permissions[i])
	}
	o.SafeMethods = conf.SafeMethods
	m, err := compiler.CreateManifest(di, o)
	if err != nil {
		return contracts.Contract{}, err
	}

	c := contracts.Contract{NEF: *ne, Manifest: *m}
	compiled[ctrPath] = c
	return c, nil
}

// writeContract saves compiled contract into the directory in the layout
// read by contracts.Read.
func writeContract(dir string, c contracts.Contract) error {
	b, err := c.NEF.Bytes()
	if err != nil {
		return err
	}

	err = os.WriteFile(filepath.Join(dir, "contract.nef"), b, 0o600)
	if err != nil {
		return err
	}

	b, err = json.Marshal(c.Manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "manifest.json"), b, 0o600)
}
