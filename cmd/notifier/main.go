package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CristianMorenoC/prueba-tecnica/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := infrastructure.BootstrapNotifier(ctx)
	if err != nil {
		slog.Error("notifier bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		slog.Error("notifier stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("notifier stopped")
}
