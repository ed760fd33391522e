package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/audit-registry/httpapi"
	"github.com/nspcc-dev/audit-registry/ledger"
	"github.com/nspcc-dev/audit-registry/registry"
	"github.com/urfave/cli/v2"
)

var flagAccount = &cli.StringFlag{
	Name:     "account",
	Aliases:  []string{"a"},
	Usage:    "Account: Neo address or LE hex script hash",
	Required: true,
}

var flagHash = &cli.StringFlag{
	Name:  "hash",
	Usage: "Contract hash: 64-char BE hex",
}

var flagSubmissionID = &cli.StringFlag{
	Name:  "submission-id",
	Usage: "UUID of the off-chain submission record, used instead of --hash",
}

var flagFormat = &cli.StringFlag{
	Name:  "format",
	Usage: "Hash output format: hex or base58",
	Value: "hex",
}

var flagFrom = &cli.Uint64Flag{
	Name:  "from",
	Usage: "Sequence number of the first notification",
}

var flagLimit = &cli.IntFlag{
	Name:  "limit",
	Usage: "Max number of notifications, 0 for all",
}

var flagListen = &cli.StringFlag{
	Name:  "listen",
	Usage: "HTTP listen address, overrides configuration",
}

func initCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Construct local registry with the given owner",
		Flags: []cli.Flag{flagAccount},
		Action: func(c *cli.Context) error {
			acc, err := registry.ParseAccount(c.String(flagAccount.Name))
			if err != nil {
				return err
			}

			return e.withLedger(func(l *ledger.Ledger) error {
				if err := l.Construct(acc); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "registry owner: %s\n", registry.AccountString(acc))
				return nil
			})
		},
	}
}

func submitCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit contract hash on behalf of the account",
		Flags: []cli.Flag{flagAccount, flagHash, flagSubmissionID},
		Action: func(c *cli.Context) error {
			acc, err := registry.ParseAccount(c.String(flagAccount.Name))
			if err != nil {
				return err
			}

			h, err := hashFromFlags(c)
			if err != nil {
				return err
			}

			return e.withLedger(func(l *ledger.Ledger) error {
				ev, err := l.Submit(acc, h)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s %s %s\n", registry.ContractSubmittedEvent,
					registry.AccountString(ev.Submitter), ev.ContractHash.StringBE())
				return nil
			})
		},
	}
}

func hashFromFlags(c *cli.Context) (registry.Hash, error) {
	s, id := c.String(flagHash.Name), c.String(flagSubmissionID.Name)

	switch {
	case s != "" && id != "":
		return registry.Hash{}, errors.New("--hash and --submission-id are mutually exclusive")
	case s != "":
		return registry.ParseHash(s)
	case id != "":
		u, err := uuid.Parse(id)
		if err != nil {
			return registry.Hash{}, fmt.Errorf("invalid submission ID: %w", err)
		}
		return registry.HashFromSubmissionID(u), nil
	default:
		return registry.Hash{}, errors.New("either --hash or --submission-id is required")
	}
}

func formatHash(h registry.Hash, format string) (string, error) {
	switch format {
	case "hex":
		return h.StringBE(), nil
	case "base58":
		return base58.Encode(h.BytesBE()), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

func printHashes(c *cli.Context, list []registry.Hash) error {
	format := c.String(flagFormat.Name)
	for i := range list {
		s, err := formatHash(list[i], format)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, s)
	}
	return nil
}

func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print hashes submitted by the account, oldest first",
		Flags: []cli.Flag{flagAccount, flagFormat},
		Action: func(c *cli.Context) error {
			acc, err := registry.ParseAccount(c.String(flagAccount.Name))
			if err != nil {
				return err
			}

			return e.withLedger(func(l *ledger.Ledger) error {
				list, err := l.Submissions(acc)
				if err != nil {
					return err
				}
				return printHashes(c, list)
			})
		},
	}
}

func ownerCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "owner",
		Usage: "Print registry owner",
		Action: func(c *cli.Context) error {
			return e.withLedger(func(l *ledger.Ledger) error {
				owner, err := l.Owner()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, registry.AccountString(owner))
				return nil
			})
		},
	}
}

func eventsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Print journaled ContractSubmitted notifications as JSON lines",
		Flags: []cli.Flag{flagFrom, flagLimit},
		Action: func(c *cli.Context) error {
			return e.withLedger(func(l *ledger.Ledger) error {
				recs, err := l.Events(c.Uint64(flagFrom.Name), c.Int(flagLimit.Name))
				if err != nil {
					return err
				}

				enc := json.NewEncoder(c.App.Writer)
				for i := range recs {
					err = enc.Encode(httpapi.Event{
						Seq:          recs[i].Seq,
						Submitter:    registry.AccountString(recs[i].Event.Submitter),
						ContractHash: recs[i].Event.ContractHash.StringBE(),
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve read-only HTTP queries over the local registry",
		Flags: []cli.Flag{flagListen},
		Action: func(c *cli.Context) error {
			listen := e.cfg.HTTP.Listen
			if s := c.String(flagListen.Name); s != "" {
				listen = s
			}

			return e.withLedger(func(l *ledger.Ledger) error {
				return httpapi.Serve(c.Context, httpapi.NewHandler(l, e.log), httpapi.ServerPrm{
					Logger:            e.log,
					Listen:            listen,
					ReadHeaderTimeout: e.cfg.HTTP.ReadHeaderTimeout,
					ShutdownTimeout:   e.cfg.HTTP.ShutdownTimeout,
				})
			})
		},
	}
}
