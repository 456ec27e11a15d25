// Package ingest turns script files dropped into a hot folder into
// generation tasks.
package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/api"
	"github.com/snarg/subforge/internal/pipeline"
)

const (
	scriptExt     = ".txt"
	submittedExt  = ".submitted"
	debounceDelay = 500 * time.Millisecond
)

// Submitter starts generation tasks.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
}

// WatcherOptions configures a FileWatcher.
type WatcherOptions struct {
	Dir       string
	Submitter Submitter
	// Defaults is the request template; its Text is replaced by each script.
	Defaults pipeline.Request
	Log      zerolog.Logger
}

// FileWatcher monitors a directory tree for *.txt scripts and submits each
// one as a task. A submitted script is renamed to <name>.txt.submitted so it
// is never picked up twice.
type FileWatcher struct {
	opts WatcherOptions
	log  zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	inFlight       sync.Map

	filesSubmitted atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "backfilling", "watching", "stopped"
}

// NewFileWatcher creates a watcher. Call Start to begin.
func NewFileWatcher(opts WatcherOptions) *FileWatcher {
	fw := &FileWatcher{
		opts:           opts,
		log:            opts.Log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		done:           make(chan struct{}),
	}
	fw.status.Store("starting")
	return fw
}

// Start adds the directory tree to fsnotify, begins watching and submits
// scripts already present in the background.
func (fw *FileWatcher) Start() error {
	if err := os.MkdirAll(fw.opts.Dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w

	dirCount := 0
	err = filepath.WalkDir(fw.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fw.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if d.IsDir() {
			if addErr := w.Add(path); addErr != nil {
				fw.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		w.Close()
		return err
	}

	fw.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", fw.opts.Dir).
		Msg("file watcher initialized")

	fw.ctx, fw.cancel = context.WithCancel(context.Background())
	go fw.watchLoop()
	go fw.backfill()
	return nil
}

// Stop closes the fsnotify watcher and drops pending debounced files.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	if fw.cancel != nil {
		fw.cancel()
	}
	if fw.watcher != nil {
		fw.watcher.Close()
		<-fw.done
	}

	fw.debounceMu.Lock()
	for path, t := range fw.debounceTimers {
		t.Stop()
		delete(fw.debounceTimers, path)
	}
	fw.debounceMu.Unlock()

	fw.log.Info().
		Int64("files_submitted", fw.filesSubmitted.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher status for the health endpoint.
func (fw *FileWatcher) Status() *api.WatcherStatusData {
	s, _ := fw.status.Load().(string)
	return &api.WatcherStatusData{
		Status:         s,
		WatchDir:       fw.opts.Dir,
		FilesSubmitted: fw.filesSubmitted.Load(),
		FilesSkipped:   fw.filesSkipped.Load(),
	}
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := fw.watcher.Add(event.Name); err != nil {
					fw.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				} else {
					fw.log.Debug().Str("path", event.Name).Msg("watching new directory")
				}
				continue
			}

			if !isScript(event.Name) {
				continue
			}
			fw.scheduleProcess(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func isScript(path string) bool {
	return strings.EqualFold(filepath.Ext(path), scriptExt)
}

// scheduleProcess debounces a script so it is read once fully written.
func (fw *FileWatcher) scheduleProcess(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(debounceDelay)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.processScript(path)
	})
}

// processScript submits the script at path and marks it as submitted.
func (fw *FileWatcher) processScript(path string) {
	if fw.ctx.Err() != nil {
		return
	}
	if _, busy := fw.inFlight.LoadOrStore(path, struct{}{}); busy {
		return
	}
	defer fw.inFlight.Delete(path)

	data, err := os.ReadFile(path)
	if err != nil {
		// Already renamed by an earlier event.
		if !os.IsNotExist(err) {
			fw.log.Warn().Err(err).Str("path", path).Msg("failed to read script")
		}
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		fw.filesSkipped.Add(1)
		fw.log.Debug().Str("path", path).Msg("empty script skipped")
		return
	}

	req := fw.opts.Defaults
	req.Text = text
	id, err := fw.opts.Submitter.Submit(fw.ctx, req)
	if err != nil {
		fw.filesSkipped.Add(1)
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to submit script")
		return
	}
	fw.filesSubmitted.Add(1)

	if err := os.Rename(path, path+submittedExt); err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to mark script submitted")
	}
	fw.log.Info().Str("path", path).Str("task_id", id).Msg("script submitted")
}

// backfill submits scripts that were already waiting when the watcher
// started, oldest first.
func (fw *FileWatcher) backfill() {
	fw.status.Store("backfilling")

	type fileEntry struct {
		path    string
		modTime time.Time
	}
	var files []fileEntry
	_ = filepath.WalkDir(fw.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isScript(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: path, modTime: info.ModTime()})
		return nil
	})
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if fw.ctx.Err() != nil {
			return
		}
		fw.processScript(f.path)
	}

	fw.status.CompareAndSwap("backfilling", "watching")
	if len(files) > 0 {
		fw.log.Info().Int("files", len(files)).Msg("backfill complete")
	}
}
