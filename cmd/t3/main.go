// Command t3 loads Metrc collections through the T3 API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classvsoftware/t3api-utils/internal/cli"
)

// Version is injected at build time via -ldflags.
var Version = "v0.1.0-dev"

func main() {
	cli.Version = Version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
