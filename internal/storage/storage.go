package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/narratage/narratage/internal/config"
	"github.com/rs/zerolog"
)

// MediaStore abstracts storage for generated media blobs.
// Keys are "audio/{filename}" or "images/{filename}".
type MediaStore interface {
	// Save stores a generated blob with its content type.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the blob exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the blob.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the blob.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a blob exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates a MediaStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, mediaDir string, log zerolog.Logger) (MediaStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(mediaDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil
	}

	// Tiered mode: local primary + S3 backup
	return NewTieredStore(s3store, NewLocalStore(mediaDir), log), nil
}
