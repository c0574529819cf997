package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tradelens/internal/bootstrap"
	"tradelens/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	container := bootstrap.NewContainer(version)
	container.MustInit()

	if err := container.Start(); err != nil {
		container.Log.Errorw("Startup failed", "error", err)
		container.Shutdown()
		os.Exit(1)
	}

	waitForShutdown(container.Context, container.Log)
	container.Shutdown()
}

// waitForShutdown blocks until SIGINT/SIGTERM or until a component
// cancels the application context
func waitForShutdown(ctx context.Context, log *logger.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Warn("Application context cancelled, shutting down")
	}
}
