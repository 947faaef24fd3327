package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NasaVasa/shopalerts/internal/app"
	"github.com/NasaVasa/shopalerts/internal/config"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred shutdown always completes
// before os.Exit.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize shopalerts:", err)
		return 1
	}
	defer application.Shutdown()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shopalerts stopped with error:", err)
		return 1
	}
	return 0
}
