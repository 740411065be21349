// File: cmd/xviol/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/plattops/xviol/cmd"
	"github.com/plattops/xviol/internal/observability"
)

// osExit is a variable so tests can intercept the exit path.
var osExit = os.Exit

func main() {
	// Ctrl+C and SIGTERM cancel the context; every API call and file write
	// downstream honors the cancellation.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// An operator initiated interrupt is a clean shutdown.
			osExit(0)
		}
		osExit(1)
	}
}
