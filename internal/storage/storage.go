// Package storage provides scratch file storage for intermediate audio and
// optional publication of a finished output directory to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for scratch files and output publication.
type Storage interface {
	// TempDir returns the directory scratch files are created in.
	TempDir() string

	// ReserveTemp creates an empty scratch file and returns its path.
	// The pattern follows os.CreateTemp: a "*" is replaced by a random string.
	ReserveTemp(ctx context.Context, pattern string) (path string, err error)

	// CleanupTemp removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads data under key and returns its public URL.
	// Returns ErrS3NotConfigured if no remote store is configured.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
