package storage

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/strata/internal/config"
)

type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(ctx context.Context, cfg *config.UploadTarget) (*GDriveStorage, error) {
	auth, err := driveCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	metadata := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}

	_, err = g.service.Files.Create(metadata).
		Media(file).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

// driveCredentials prefers a user refresh token over a service account.
func driveCredentials(ctx context.Context, cfg *config.UploadTarget) (option.ClientOption, error) {
	if cfg.ClientSecretFile == "" || cfg.RefreshToken == "" {
		return option.WithCredentialsFile(cfg.CredentialsFile), nil
	}

	oauthCfg, err := loadDriveOAuth(cfg.ClientSecretFile)
	if err != nil {
		return nil, err
	}
	// Token refreshes outlive the startup context.
	ts := oauthCfg.TokenSource(context.WithoutCancel(ctx), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return option.WithTokenSource(ts), nil
}
