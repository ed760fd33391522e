package registry

import (
	"github.com/nspcc-dev/audit-registry/common"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

const (
	ownerKey          = "o"
	submissionsPrefix = "s"
)

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	ctx := storage.GetContext()

	owner := runtime.GetScriptContainer().Sender
	storage.Put(ctx, ownerKey, owner)

	runtime.Log("registry contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by committee.
func Update(script []byte, manifest []byte, data any) {
	if !common.HasUpdateAccess() {
		panic("only committee can update contract")
	}

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, common.AppendVersion(data))
	runtime.Log("registry contract updated")
}

// SubmitContract method appends contractHash to the list of hashes submitted
// by the submitter. Transaction must be witnessed by the submitter, no other
// permissions are checked. Duplicates are kept.
//
// SubmitContract produces ContractSubmitted notification.
func SubmitContract(submitter interop.Hash160, contractHash interop.Hash256) {
	common.CheckLength(submitter, interop.Hash160Len, "invalid submitter")
	common.CheckLength(contractHash, interop.Hash256Len, "invalid contract hash")
	common.CheckWitness(submitter)

	ctx := storage.GetContext()
	key := submissionsKey(submitter)

	list := common.GetHashList(ctx, key)
	list = append(list, contractHash)
	common.SetSerialized(ctx, key, list)

	runtime.Notify("ContractSubmitted", submitter, contractHash)
}

// GetSubmissions method returns hashes submitted by the account in
// submission order. Unknown accounts have empty list.
func GetSubmissions(account interop.Hash160) []interop.Hash256 {
	common.CheckLength(account, interop.Hash160Len, "invalid account")

	ctx := storage.GetReadOnlyContext()
	return common.GetHashList(ctx, submissionsKey(account))
}

// GetOwner method returns account which deployed the contract.
func GetOwner() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, ownerKey).(interop.Hash160)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func submissionsKey(account interop.Hash160) []byte {
	return append([]byte(submissionsPrefix), account...)
}
