// Command ledgerbook is a terminal client for the personal income and
// expense ledger. It talks to the remote API or, with DATA_BACKEND=offline,
// to a local demo data source.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"ledgerbook/internal/cli"
	"ledgerbook/internal/log"
)

var registry = NewCommandRegistry()

func init() {
	registerCommands(registry)
}

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		if len(args) > 1 {
			if c, ok := registry.Get(args[1]); ok {
				c.PrintUsage(stdout)
				return nil
			}
		}
		registry.PrintHelp(stdout)
		return nil
	}

	cmd, ok := registry.Get(args[0])
	if !ok {
		registry.PrintHelp(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg.LogLevel, stderr)

	a, err := newApp(ctx, cfg, logger, cmd.Name, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("cleanup failed", log.FieldError, err.Error())
		}
	}()

	if !cmd.Public {
		if err := a.restore(ctx); err != nil {
			return err
		}
	}
	logger.Debug("running command", "command", cmd.Name, log.FieldBackend, cfg.DataBackend)
	return cmd.Run(ctx, a, args[1:])
}
