package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nspcc-dev/audit-registry/config"
	"github.com/nspcc-dev/audit-registry/ledger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to YAML configuration file, defaults are used if omitted",
}

var flagDebug = &cli.BoolFlag{
	Name:  "debug",
	Usage: "Enable debug logging",
}

// env is shared by all commands. It is filled before any command runs.
type env struct {
	cfg config.Config
	log *zap.Logger
}

func newApp() *cli.App {
	e := new(env)

	return &cli.App{
		Name:  "registry-cli",
		Usage: "Audit Registry: record and query submitted contract hashes",
		Flags: []cli.Flag{
			flagConfig,
			flagDebug,
		},
		Before: e.init,
		After: func(*cli.Context) error {
			if e.log != nil {
				_ = e.log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			initCmd(e),
			submitCmd(e),
			listCmd(e),
			ownerCmd(e),
			eventsCmd(e),
			serveCmd(e),
			remoteCmd(e),
			watchCmd(e),
			configCmd(e),
		},
	}
}

func (e *env) init(c *cli.Context) error {
	var err error

	if path := c.String(flagConfig.Name); path != "" {
		e.cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	} else {
		e.cfg = config.Default()
	}

	e.log, err = e.cfg.Logger.Build(c.Bool(flagDebug.Name))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	return nil
}

func configCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print effective configuration in YAML",
		Action: func(c *cli.Context) error {
			b, err := e.cfg.Marshal()
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			_, err = c.App.Writer.Write(b)
			return err
		},
	}
}

// openLedger opens local ledger storage. Caller must close it.
func (e *env) openLedger() (*ledger.Ledger, error) {
	return ledger.Open(e.cfg.Storage, ledger.WithLogger(e.log))
}

// withLedger opens local ledger for the duration of f.
func (e *env) withLedger(f func(l *ledger.Ledger) error) error {
	l, err := e.openLedger()
	if err != nil {
		return err
	}

	err = f(l)

	if cErr := l.Close(); cErr != nil {
		e.log.Warn("failed to close ledger storage", zap.Error(cErr))
	}

	return err
}

// contextWithTimeout limits command context by d. Non-positive d means no
// limit.
func contextWithTimeout(c *cli.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Context)
	}
	return context.WithTimeout(c.Context, d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
