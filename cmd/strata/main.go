// cmd/strata/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/semmidev/strata/internal/app"
	"github.com/semmidev/strata/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	testMode := flag.Bool("test", false, "run one cycle with both backup types now, then exit")
	driveAuth := flag.String("gdrive-auth", "", "serve the Google Drive consent flow on this address, then exit on signal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *testMode {
		cfg.App.TestMode = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *driveAuth != "" {
		return app.AuthorizeDrive(ctx, cfg, *driveAuth)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return application.Run(ctx)
}
