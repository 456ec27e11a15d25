// Package pipeline turns a script into a narrated, captioned video: one scene
// per sentence, rendered on a shared worker pool and joined at the end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/imagegen"
	"github.com/snarg/subforge/internal/notify"
	"github.com/snarg/subforge/internal/render"
	"github.com/snarg/subforge/internal/speech"
	"github.com/snarg/subforge/internal/storage"
	"github.com/snarg/subforge/internal/tasks"
)

var (
	// ErrEmptyText is returned by Submit for a blank script.
	ErrEmptyText = errors.New("text is empty")
	// ErrShuttingDown is returned by Submit once Shutdown has started.
	ErrShuttingDown = errors.New("pipeline is shutting down")
)

// Request is one video generation job.
type Request struct {
	Text          string `json:"text"`
	Voice         string `json:"voice,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	BGM           string `json:"bgm,omitempty"`
	SubtitleStyle string `json:"subtitle_style,omitempty"`
	FontName      string `json:"font_name,omitempty"`
	ImageAPIKey   string `json:"-"`
	ImageModel    string `json:"-"`
}

// Narrator produces scene narration and timing hints.
type Narrator interface {
	Narrate(ctx context.Context, text, voice, audioPath string) (*speech.Narration, error)
}

// ImageGenerator produces a scene background.
type ImageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request, out string) error
}

// Media renders and joins clips.
type Media interface {
	MergeScene(ctx context.Context, s render.Scene, out string) error
	Concat(ctx context.Context, scenes []string, out string) error
	MixBackground(ctx context.Context, video, music, out string, volume float64) error
}

// Studio is the canvas-specific tooling for one task.
type Studio struct {
	Media  Media
	Images ImageGenerator
}

// Options configures a Manager.
type Options struct {
	Store     tasks.Store
	Artifacts storage.ArtifactStore
	Notifier  notify.Publisher // nil publishes nothing
	Narrator  Narrator
	Studio    func(caption.Canvas) Studio

	AssetsDir string
	OutputDir string
	BGMDir    string

	Canvas       caption.Canvas // used when a request names no resolution
	Voice        string
	CaptionStyle string
	CaptionFont  string
	CaptionLead  time.Duration

	Workers   int
	QueueSize int
	Stagger   time.Duration // delay between scene submissions of one task

	Log zerolog.Logger
}

// Manager owns running tasks and the scene pool.
type Manager struct {
	opts Options
	pool *ScenePool
	log  zerolog.Logger

	mu       sync.Mutex
	running  map[string]context.CancelFunc
	closing  bool
	tasks    sync.WaitGroup

	newTaskID func() string
}

// NewManager creates a Manager and starts its scene workers.
func NewManager(opts Options) *Manager {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 16
	}
	m := &Manager{
		opts:      opts,
		log:       opts.Log,
		running:   make(map[string]context.CancelFunc),
		newTaskID: func() string { return uuid.NewString()[:8] },
	}
	m.pool = NewScenePool(PoolOptions{
		Workers:   opts.Workers,
		QueueSize: opts.QueueSize,
		Process:   m.renderScene,
		Log:       opts.Log.With().Str("component", "scenes").Logger(),
	})
	m.pool.Start()
	return m
}

// Submit records a pending task and starts it in the background.
func (m *Manager) Submit(ctx context.Context, req Request) (string, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return "", ErrEmptyText
	}

	id := m.newTaskID()
	if err := m.opts.Store.Create(ctx, tasks.New(id)); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		m.update(ctx, id, func(t *tasks.Task) {
			t.Status = tasks.StatusError
			t.Error = ErrShuttingDown.Error()
		})
		return "", ErrShuttingDown
	}
	runCtx, cancel := context.WithCancel(context.Background())
	m.running[id] = cancel
	m.tasks.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.tasks.Done()
		defer m.finish(id)
		m.run(runCtx, m.prepare(id, req))
	}()

	m.log.Info().Str("task_id", id).Int("runes", len([]rune(req.Text))).Msg("task submitted")
	return id, nil
}

// Abort stops a task and marks it failed. Finished tasks are left as they
// are.
func (m *Manager) Abort(ctx context.Context, id string) error {
	m.mu.Lock()
	cancel, ok := m.running[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}

	_, err := m.opts.Store.Update(ctx, id, func(t *tasks.Task) {
		if t.Status.Terminal() {
			return
		}
		t.Status = tasks.StatusError
		t.Error = "aborted"
		t.LastUpdate = time.Now().UTC()
	})
	if err != nil {
		return err
	}
	if t, err := m.opts.Store.Get(ctx, id); err == nil {
		m.opts.Notifier.Publish(id, t)
	}
	m.log.Info().Str("task_id", id).Bool("was_running", ok).Msg("task aborted")
	return nil
}

// Running returns the number of tasks in progress.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// QueuedScenes returns the number of scenes waiting for a worker.
func (m *Manager) QueuedScenes() int { return m.pool.Stats().Pending }

// Stats returns scene queue statistics.
func (m *Manager) Stats() QueueStats { return m.pool.Stats() }

// Shutdown cancels every running task, waits for them to record their final
// state and stops the scene workers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		m.pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) finish(id string) {
	m.mu.Lock()
	if cancel, ok := m.running[id]; ok {
		cancel()
		delete(m.running, id)
	}
	m.mu.Unlock()
}

// update applies fn unless the task already finished, then publishes the new
// state. Status writes outlive cancellation so aborts are recorded.
func (m *Manager) update(ctx context.Context, id string, fn func(*tasks.Task)) {
	t, err := m.opts.Store.Update(context.WithoutCancel(ctx), id, func(t *tasks.Task) {
		if t.Status.Terminal() {
			return
		}
		fn(t)
		t.LastUpdate = time.Now().UTC()
	})
	if err != nil {
		m.log.Warn().Err(err).Str("task_id", id).Msg("task state update failed")
		return
	}
	m.opts.Notifier.Publish(id, t)
}
