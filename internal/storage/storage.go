package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/config"
)

// ArtifactStore abstracts where finished videos are published.
type ArtifactStore interface {
	// Save publishes the file at srcPath under key and takes ownership of
	// srcPath: it is moved or removed once stored.
	Save(ctx context.Context, key, srcPath, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned download URL.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the stored file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a file exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// New creates an ArtifactStore based on config. Returns the store and
// optional background services that the caller must Start/Stop.
// Returns an error if S3 is configured but unreachable.
func New(cfg config.S3Config, dir string, log zerolog.Logger) (ArtifactStore, []BackgroundService, error) {
	if !cfg.Enabled() {
		return NewLocalStore(dir), nil, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil, nil
	}

	// Tiered mode: local primary + background S3 backup
	uploader := NewAsyncUploader(s3store, 32, log)
	return NewTieredStore(s3store, NewLocalStore(dir), uploader, log), []BackgroundService{uploader}, nil
}
