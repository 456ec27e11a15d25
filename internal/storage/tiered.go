package storage

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// backup is the S3 side of a TieredStore.
type backup interface {
	URL(ctx context.Context, key string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) bool
}

// TieredStore combines local disk (source of truth) with S3 (backup/durability).
// Write path: save locally first, then queue the S3 upload in the background.
// Read path: local first, S3 fallback.
type TieredStore struct {
	s3       backup
	local    *LocalStore
	uploader Enqueuer
	log      zerolog.Logger
}

// Enqueuer schedules a background upload of a local file.
type Enqueuer interface {
	Enqueue(key, path, contentType string)
}

// NewTieredStore creates a tiered local-primary + S3-backup store.
func NewTieredStore(s3 backup, local *LocalStore, uploader Enqueuer, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		s3:       s3,
		local:    local,
		uploader: uploader,
		log:      log.With().Str("component", "tiered-store").Logger(),
	}
}

// Save writes to local disk (fatal on failure), then queues the S3 backup.
func (s *TieredStore) Save(ctx context.Context, key, srcPath, ct string) error {
	if err := s.local.Save(ctx, key, srcPath, ct); err != nil {
		return err
	}
	s.uploader.Enqueue(key, s.local.LocalPath(key), ct)
	return nil
}

func (s *TieredStore) LocalPath(key string) string {
	return s.local.LocalPath(key)
}

// URL prefers a presigned URL so large downloads bypass this server; the
// caller falls back to LocalPath when it is empty.
func (s *TieredStore) URL(ctx context.Context, key string) (string, error) {
	if !s.s3.Exists(ctx, key) {
		return "", nil
	}
	return s.s3.URL(ctx, key)
}

func (s *TieredStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if f, err := os.Open(s.local.LocalPath(key)); err == nil {
		return f, nil
	}
	return s.s3.Open(ctx, key)
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	if s.local.Exists(ctx, key) {
		return true
	}
	return s.s3.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }
