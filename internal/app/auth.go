package app

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/strata/internal/adapter/storage"
	"github.com/semmidev/strata/internal/config"
	"github.com/semmidev/strata/internal/infrastructure/logger"
)

// AuthorizeDrive serves the Google Drive consent flow on addr until ctx is
// cancelled. The client secret comes from the first gdrive target that
// names one.
func AuthorizeDrive(ctx context.Context, cfg *config.Config, addr string) error {
	var secret string
	for _, target := range cfg.UploadTargets {
		if target.Type == "gdrive" && target.ClientSecretFile != "" {
			secret = target.ClientSecretFile
			break
		}
	}
	if secret == "" {
		return fmt.Errorf("no gdrive upload target with client_secret_file configured")
	}

	log, err := logger.New(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	auth, err := storage.NewDriveAuth(secret, log)
	if err != nil {
		return err
	}
	auth.Start(addr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return auth.Shutdown(shutdownCtx)
}
