package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantmind-br/gman/internal/cmd"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/logging"
	"github.com/quantmind-br/gman/internal/ui"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return core.ExitGeneral
	}

	ui.InitColors(cfg.Logging.Color)

	// Initialize logger
	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: cfg.Paths.LogFile,
		NoColor: cfg.Logging.Color == "never",
		Console: stderr,
	})

	// Execute root command
	rootCmd := cmd.NewRootCmd(cfg, log, version)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// commands print their own failures; cobra's usage errors are not printed yet
		var exitErr *cmd.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		log.Debug().Err(err).Msg("command failed")
		return cmd.ExitCode(err)
	}
	return core.ExitSuccess
}
