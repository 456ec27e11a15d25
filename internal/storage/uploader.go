package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AsyncUploader copies published videos to S3 without blocking task
// completion. Files are already stored locally before being enqueued here.
type AsyncUploader struct {
	s3       *S3Store
	ch       chan uploadJob
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type uploadJob struct {
	key         string
	path        string
	contentType string
}

// NewAsyncUploader creates an async S3 uploader with the given buffer size.
func NewAsyncUploader(s3 *S3Store, bufferSize int, log zerolog.Logger) *AsyncUploader {
	return &AsyncUploader{
		s3:  s3,
		ch:  make(chan uploadJob, bufferSize),
		log: log.With().Str("component", "async-uploader").Logger(),
	}
}

// Enqueue adds an S3 upload job. Non-blocking: drops with a warning if full
// or stopped, since the file stays available locally.
func (u *AsyncUploader) Enqueue(key, path, contentType string) {
	if u.stopped.Load() || path == "" {
		return
	}
	select {
	case u.ch <- uploadJob{key: key, path: path, contentType: contentType}:
	default:
		u.log.Warn().Str("key", key).Msg("async upload queue full, skipping (file kept locally)")
	}
}

// Start launches the upload worker.
func (u *AsyncUploader) Start() {
	u.wg.Add(1)
	go u.worker()
	u.log.Info().Int("buffer", cap(u.ch)).Msg("async uploader started")
}

// Stop drains queued uploads and waits for the worker to exit.
func (u *AsyncUploader) Stop() {
	u.stopped.Store(true)
	u.stopOnce.Do(func() { close(u.ch) })
	u.wg.Wait()
}

func (u *AsyncUploader) worker() {
	defer u.wg.Done()
	for job := range u.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		if err := u.s3.upload(ctx, job.key, job.path, job.contentType); err != nil {
			u.log.Error().Err(err).Str("key", job.key).Msg("async S3 upload failed (file kept locally)")
		} else {
			u.log.Debug().Str("key", job.key).Msg("video backed up to S3")
		}
		cancel()
	}
}
