// Command forge is the entrypoint binary: cmd.Execute dispatches to the
// serve, worker, and migrate subcommands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmd "github.com/llmstxt-forge/forge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(cmd.Execute(ctx))
}
