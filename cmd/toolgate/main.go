// Package main is the entry point for the toolgate CLI.
//
// toolgate hosts a fixed set of file and database tools behind one
// dispatcher. Every invocation, whether it arrives over MCP (`toolgate serve`)
// or from the command line (`toolgate call`), is validated, run under a time
// budget and answered with the same JSON envelope.
//
// Startup sequence:
//
// 1. Initialize logging (stderr, or toolgate.log with DEBUG set)
// 2. Load configuration and apply command-line overrides
// 3. Prepare the files root and register the tools
// 4. Run the selected command
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"toolgate/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	appLogger := logging.NewAppLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(appLogger, os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errToolFailed) {
			appLogger.Error("Command failed", "error", err)
			cmd.PrintErrln("Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
