package domain

import "context"

// Storage receives a copy of every archive produced.
type Storage interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
}
