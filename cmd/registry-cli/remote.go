package main

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/audit-registry/contracts"
	"github.com/nspcc-dev/audit-registry/deploy"
	"github.com/nspcc-dev/audit-registry/ledger"
	"github.com/nspcc-dev/audit-registry/registry"
	rpcregistry "github.com/nspcc-dev/audit-registry/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var flagRPC = &cli.StringFlag{
	Name:  "rpc",
	Usage: "Neo RPC endpoint, overrides configuration",
}

var flagContract = &cli.StringFlag{
	Name:  "contract",
	Usage: "Registry contract address, overrides configuration",
}

var flagWallet = &cli.StringFlag{
	Name:    "wallet",
	Aliases: []string{"w"},
	Usage:   "Path to NEP-6 wallet, overrides configuration",
}

var flagAddress = &cli.StringFlag{
	Name:  "address",
	Usage: "Wallet account to sign with, default one if omitted",
}

var flagPassword = &cli.StringFlag{
	Name:    "password",
	Usage:   "Password of the wallet account",
	EnvVars: []string{"REGISTRY_WALLET_PASSWORD"},
}

var flagContractDir = &cli.StringFlag{
	Name:     "contract-dir",
	Usage:    "Directory with compiled contract.nef and manifest.json",
	Required: true,
}

var flagMirror = &cli.BoolFlag{
	Name:  "mirror",
	Usage: "Record received notifications in the local registry",
}

func (e *env) rpcEndpoint(c *cli.Context) string {
	if s := c.String(flagRPC.Name); s != "" {
		return s
	}
	return e.cfg.RPC.Endpoint
}

func (e *env) contractAddress(c *cli.Context) (util.Uint160, error) {
	s := c.String(flagContract.Name)
	if s == "" {
		s = e.cfg.RPC.Contract
	}
	if s == "" {
		return util.Uint160{}, errors.New("registry contract address is not set")
	}

	return registry.ParseAccount(s)
}

// withBlockchain connects to the Neo RPC server for the duration of f limited
// by the configured timeout.
func (e *env) withBlockchain(c *cli.Context, f func(b *remoteBlockchain) error) error {
	ctx, cancel := contextWithTimeout(c, e.cfg.RPC.Timeout)
	defer cancel()

	b, err := newRemoteBlockchain(ctx, e.rpcEndpoint(c), e.cfg.RPC.Timeout)
	if err != nil {
		return err
	}
	defer b.close()

	return f(b)
}

func (e *env) openAccount(c *cli.Context) (*wallet.Account, error) {
	path := c.String(flagWallet.Name)
	if path == "" {
		path = e.cfg.RPC.Wallet
	}
	if path == "" {
		return nil, errors.New("wallet is not set")
	}

	w, err := wallet.NewWalletFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	var acc *wallet.Account
	if s := c.String(flagAddress.Name); s != "" {
		h, err := address.StringToUint160(s)
		if err != nil {
			return nil, fmt.Errorf("invalid account address: %w", err)
		}
		acc = w.GetAccount(h)
		if acc == nil {
			return nil, fmt.Errorf("account %s is missing in the wallet", s)
		}
	} else {
		acc = w.GetAccount(w.GetChangeAddress())
		if acc == nil {
			return nil, errors.New("wallet has no default account")
		}
	}

	err = acc.Decrypt(c.String(flagPassword.Name), w.Scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt account %s: %w", acc.Address, err)
	}

	return acc, nil
}

func remoteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Work with the registry contract deployed to Neo network",
		Flags: []cli.Flag{flagRPC, flagContract},
		Subcommands: []*cli.Command{
			{
				Name:  "owner",
				Usage: "Print registry contract owner",
				Action: func(c *cli.Context) error {
					h, err := e.contractAddress(c)
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						owner, err := rpcregistry.NewReader(invoker.New(b.rpc, nil), h).GetOwner()
						if err != nil {
							return fmt.Errorf("get owner: %w", err)
						}
						fmt.Fprintln(c.App.Writer, registry.AccountString(owner))
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "Print hashes submitted by the account, oldest first",
				Flags: []cli.Flag{flagAccount, flagFormat},
				Action: func(c *cli.Context) error {
					h, err := e.contractAddress(c)
					if err != nil {
						return err
					}

					acc, err := registry.ParseAccount(c.String(flagAccount.Name))
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						list, err := rpcregistry.NewReader(invoker.New(b.rpc, nil), h).GetSubmissions(acc)
						if err != nil {
							return fmt.Errorf("get submissions: %w", err)
						}
						return printHashes(c, list)
					})
				},
			},
			{
				Name:  "submit",
				Usage: "Submit contract hash on behalf of the wallet account and wait for acceptance",
				Flags: []cli.Flag{flagHash, flagSubmissionID, flagWallet, flagAddress, flagPassword},
				Action: func(c *cli.Context) error {
					h, err := e.contractAddress(c)
					if err != nil {
						return err
					}

					contractHash, err := hashFromFlags(c)
					if err != nil {
						return err
					}

					acc, err := e.openAccount(c)
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						return e.remoteSubmit(c, b.rpc, h, acc, contractHash)
					})
				},
			},
			{
				Name:  "deploy",
				Usage: "Deploy registry contract, the wallet account becomes the owner",
				Flags: []cli.Flag{flagContractDir, flagWallet, flagAddress, flagPassword},
				Action: func(c *cli.Context) error {
					ctr, err := contracts.Read(c.String(flagContractDir.Name))
					if err != nil {
						return err
					}

					acc, err := e.openAccount(c)
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						ctx, cancel := contextWithTimeout(c, e.cfg.RPC.Timeout)
						defer cancel()

						h, err := deploy.Deploy(ctx, deploy.Prm{
							Logger:       e.log,
							Blockchain:   b.rpc,
							LocalAccount: acc,
							Contract:     ctr,
						})
						if err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, registry.AccountString(h))
						return nil
					})
				},
			},
			{
				Name:  "import",
				Usage: "Copy registry contract state into the empty local registry",
				Action: func(c *cli.Context) error {
					h, err := e.contractAddress(c)
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						return e.withLedger(func(l *ledger.Ledger) error {
							return l.Import(func(f func(key, value []byte) error) error {
								return b.iterateContractStorage(h, f)
							})
						})
					})
				},
			},
			{
				Name:  "version",
				Usage: "Print registry contract version",
				Action: func(c *cli.Context) error {
					h, err := e.contractAddress(c)
					if err != nil {
						return err
					}

					return e.withBlockchain(c, func(b *remoteBlockchain) error {
						v, err := rpcregistry.NewReader(invoker.New(b.rpc, nil), h).Version()
						if err != nil {
							return fmt.Errorf("get version: %w", err)
						}
						fmt.Fprintln(c.App.Writer, v)
						return nil
					})
				},
			},
		},
	}
}

func (e *env) remoteSubmit(c *cli.Context, rpc *rpcclient.Client, contract util.Uint160, acc *wallet.Account, h registry.Hash) error {
	act, err := actor.NewSimple(rpc, acc)
	if err != nil {
		return fmt.Errorf("init actor: %w", err)
	}

	txHash, vub, err := rpcregistry.New(act, contract).SubmitContract(acc.ScriptHash(), h)
	if err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}

	e.log.Info("transaction sent, waiting...", zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	ctx, cancel := contextWithTimeout(c, e.cfg.RPC.Timeout)
	defer cancel()

	aer, err := act.WaitAny(ctx, vub, txHash)
	if err != nil {
		return fmt.Errorf("wait for transaction %s: %w", txHash.StringLE(), err)
	}

	if aer.VMState != vmstate.Halt {
		return fmt.Errorf("transaction %s failed: %s", txHash.StringLE(), aer.FaultException)
	}

	evs, err := rpcregistry.ContractSubmittedEventsFromApplicationLog(&result.ApplicationLog{
		Container:  aer.Container,
		Executions: []state.Execution{aer.Execution},
	})
	if err != nil {
		return err
	}

	for _, ev := range evs {
		fmt.Fprintf(c.App.Writer, "%s %s %s\n", registry.ContractSubmittedEvent,
			registry.AccountString(ev.Submitter), ev.ContractHash.StringBE())
	}

	return nil
}

func watchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print ContractSubmitted notifications of the registry contract as they arrive",
		Flags: []cli.Flag{flagRPC, flagContract, flagMirror},
		Action: func(c *cli.Context) error {
			h, err := e.contractAddress(c)
			if err != nil {
				return err
			}

			endpoint, err := wsEndpoint(e.rpcEndpoint(c))
			if err != nil {
				return err
			}

			ws, err := rpcclient.NewWS(c.Context, endpoint, rpcclient.WSOptions{
				Options: rpcclient.Options{
					DialTimeout:    e.cfg.RPC.Timeout,
					RequestTimeout: e.cfg.RPC.Timeout,
				},
			})
			if err != nil {
				return fmt.Errorf("WS RPC client dial: %w", err)
			}
			defer ws.Close()

			if err = ws.Init(); err != nil {
				return fmt.Errorf("WS RPC client init: %w", err)
			}

			handle := func(tx util.Uint256, ev *rpcregistry.ContractSubmittedEvent) {
				fmt.Fprintf(c.App.Writer, "%s %s %s %s\n", tx.StringLE(), registry.ContractSubmittedEvent,
					registry.AccountString(ev.Submitter), ev.ContractHash.StringBE())
			}

			if !c.Bool(flagMirror.Name) {
				return watch(c, e.log, ws, h, handle)
			}

			return e.withLedger(func(l *ledger.Ledger) error {
				return watch(c, e.log, ws, h, func(tx util.Uint256, ev *rpcregistry.ContractSubmittedEvent) {
					handle(tx, ev)
					if _, err := l.Submit(ev.Submitter, ev.ContractHash); err != nil {
						e.log.Error("failed to mirror notification", zap.Stringer("tx", tx), zap.Error(err))
					}
				})
			})
		},
	}
}

func watch(c *cli.Context, log *zap.Logger, sub rpcregistry.NotificationSubscriber, contract util.Uint160,
	handler func(util.Uint256, *rpcregistry.ContractSubmittedEvent)) error {
	err := rpcregistry.Watch(c.Context, rpcregistry.WatchPrm{
		Logger:     log,
		Subscriber: sub,
		Contract:   contract,
		Handler:    handler,
	})
	if err != nil && c.Context.Err() != nil {
		// interrupted
		return nil
	}
	return err
}
