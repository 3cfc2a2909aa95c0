package storage

import (
	"context"
	"io"
)

// Storage archives uploaded file bytes. Scan metadata never depends on it;
// archive failures degrade to log lines.
type Storage interface {
	Upload(ctx context.Context, key string, data io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
