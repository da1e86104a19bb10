package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"notegraph/backend/pkg/logger"
)

func main() {
	// Cancel in-flight work (extraction jobs, store writes) on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
