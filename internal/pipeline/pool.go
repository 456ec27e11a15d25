package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/metrics"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("scene pool stopped")

// SceneJob is one scene queued for rendering.
type SceneJob struct {
	Index int // 0-based position in the script
	Text  string

	run    *taskRun
	ctx    context.Context
	result chan<- SceneResult
}

// SceneResult reports a finished scene. Clip is the rendered scene file.
type SceneResult struct {
	Index int
	Clip  string
	Err   error
}

// SceneFunc renders one scene and returns the clip path.
type SceneFunc func(ctx context.Context, job SceneJob) (string, error)

// QueueStats reports the current state of the scene queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// PoolOptions configures the scene worker pool.
type PoolOptions struct {
	Workers   int
	QueueSize int
	Process   SceneFunc
	Log       zerolog.Logger
}

// ScenePool renders scenes of all running tasks on a fixed set of workers.
type ScenePool struct {
	jobs chan SceneJob
	opts PoolOptions
	log  zerolog.Logger
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	completed atomic.Int64
	failed    atomic.Int64
}

// NewScenePool creates a pool. Call Start to launch the workers.
func NewScenePool(opts PoolOptions) *ScenePool {
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	return &ScenePool{
		jobs: make(chan SceneJob, opts.QueueSize),
		opts: opts,
		log:  opts.Log,
	}
}

// Start launches the worker goroutines.
func (p *ScenePool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("scene worker pool started")
}

// Stop rejects new jobs, lets workers drain the queue and waits for them.
func (p *ScenePool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("scene worker pool stopped")
}

// Submit queues a job, blocking while the queue is full.
func (p *ScenePool) Submit(ctx context.Context, job SceneJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if job.ctx == nil {
		job.ctx = ctx
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current queue statistics.
func (p *ScenePool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (p *ScenePool) Workers() int { return p.opts.Workers }

func (p *ScenePool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for job := range p.jobs {
		res := SceneResult{Index: job.Index}
		if err := job.ctx.Err(); err != nil {
			res.Err = err
		} else {
			start := time.Now()
			res.Clip, res.Err = p.opts.Process(job.ctx, job)
			metrics.SceneDuration.Observe(time.Since(start).Seconds())
		}

		if res.Err != nil {
			p.failed.Add(1)
			metrics.ScenesTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(res.Err).Int("scene", job.Index+1).Msg("scene failed")
		} else {
			p.completed.Add(1)
			metrics.ScenesTotal.WithLabelValues("completed").Inc()
		}
		if job.result != nil {
			job.result <- res
		}
	}
}
