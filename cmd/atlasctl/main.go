// File: cmd/atlasctl/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/miniatlas/atlasctl/cmd"
	"github.com/miniatlas/atlasctl/internal/observability"
)

func main() {
	// Ctrl+C stops watching or aborts the in-flight command; the backend
	// session itself keeps running unless explicitly stopped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
