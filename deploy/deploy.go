// Package deploy deploys Audit Registry contract to a Neo network.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nspcc-dev/audit-registry/contracts"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"
)

// Blockchain groups services provided by particular Neo blockchain network
// that are required for the registry deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions to the
	// blockchain.
	actor.RPCActor

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns error with 'Unknown contract'
	// substring if requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// Prm groups parameters of the registry deployment procedure.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Particular Neo blockchain instance to deploy the registry to.
	Blockchain Blockchain

	// Account sending the deployment transaction (must be unlocked). It
	// becomes the owner of the registry.
	LocalAccount *wallet.Account

	// Compiled registry contract.
	Contract contracts.Contract
}

// Deploy deploys registry contract to the blockchain on behalf of
// Prm.LocalAccount and returns its address. Deploy does nothing if the
// contract is already deployed by the same account.
//
// Deploy waits for the deployment transaction to be accepted and aborts only
// by context or when the transaction fails.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if prm.LocalAccount == nil {
		return util.Uint160{}, errNilAccount
	}

	sender := prm.LocalAccount.ScriptHash()
	addr := state.CreateContractHash(sender, prm.Contract.NEF.Checksum, prm.Contract.Manifest.Name)

	log = log.With(zap.String("contract", prm.Contract.Manifest.Name), zap.Stringer("address", addr))

	_, err := prm.Blockchain.GetContractStateByHash(addr)
	if err == nil {
		log.Info("contract is already deployed, skip")
		return addr, nil
	} else if !isErrContractNotFound(err) {
		return util.Uint160{}, fmt.Errorf("get state of the contract %s: %w", addr.StringLE(), err)
	}

	act, err := actor.NewTuned(prm.Blockchain, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account: sender,
			Scopes:  transaction.CalledByEntry,
		},
		Account: prm.LocalAccount,
	}}, actor.Options{
		CheckerModifier: spanTransactionModifier(func() uint32 {
			h, err := prm.Blockchain.GetBlockCount()
			if err != nil {
				log.Warn("failed to get blockchain height", zap.Error(err))
				return 0
			}
			return h
		}),
	})
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	err = deployAndWait(ctx, log, management.New(act), act, prm.Contract)
	if err != nil {
		return util.Uint160{}, err
	}

	return addr, nil
}

// deploySender sends contract deployment transactions. Implemented by
// [management.Contract].
type deploySender interface {
	Deploy(nefFile *nef.File, manif *manifest.Manifest, data any) (util.Uint256, uint32, error)
}

// txWaiter awaits transaction acceptance. Implemented by [actor.Actor].
type txWaiter interface {
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
}

// deployAndWait sends deployment transaction and waits for it to be accepted
// with HALT state.
func deployAndWait(ctx context.Context, log *zap.Logger, s deploySender, w txWaiter, c contracts.Contract) error {
	txHash, vub, err := s.Deploy(&c.NEF, &c.Manifest, nil)
	if err != nil {
		return fmt.Errorf("send deployment transaction: %w", err)
	}

	log.Info("deployment transaction sent, waiting...",
		zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	aer, err := w.WaitAny(ctx, vub, txHash)
	if err != nil {
		return fmt.Errorf("wait for deployment transaction %s: %w", txHash.StringLE(), err)
	}

	if aer.VMState != vmstate.Halt {
		return fmt.Errorf("deployment transaction %s failed: %s", txHash.StringLE(), aer.FaultException)
	}

	log.Info("contract successfully deployed", zap.Stringer("tx", txHash))

	return nil
}

func isErrContractNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Unknown contract")
}

// returns actor.TransactionCheckerModifier which checks that invocation
// finished with 'HALT' state and, if so, sets transaction's nonce and
// ValidUntilBlock to 100*N and 100*(N+1) correspondingly, where
// 100*N <= current height < 100*(N+1). Repeated deployments within the span
// produce the same transaction, so the network rejects duplicates.
func spanTransactionModifier(getBlockchainHeight func() uint32) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, tx *transaction.Transaction) error {
		err := actor.DefaultCheckerModifier(r, tx)
		if err != nil {
			return err
		}

		curHeight := getBlockchainHeight()
		const span = 100
		n := curHeight / span

		tx.Nonce = n * span

		if math.MaxUint32-span > tx.Nonce {
			tx.ValidUntilBlock = tx.Nonce + span
		} else {
			tx.ValidUntilBlock = math.MaxUint32
		}

		return nil
	}
}

var errNilAccount = errors.New("nil local account")
