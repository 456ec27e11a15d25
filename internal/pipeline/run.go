package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/imagegen"
	"github.com/snarg/subforge/internal/metrics"
	"github.com/snarg/subforge/internal/render"
	"github.com/snarg/subforge/internal/tasks"
)

// systemScene is the status line for task-wide steps.
const systemScene = "0"

// taskRun is the resolved state of one task shared by its scenes.
type taskRun struct {
	id        string
	req       Request
	canvas    caption.Canvas
	studio    Studio
	assetsDir string
	scenesDir string
	log       zerolog.Logger

	total int
	done  atomic.Int32
}

func (m *Manager) prepare(id string, req Request) *taskRun {
	if req.Voice == "" {
		req.Voice = m.opts.Voice
	}
	if req.SubtitleStyle == "" {
		req.SubtitleStyle = m.opts.CaptionStyle
	}
	if req.FontName == "" {
		req.FontName = m.opts.CaptionFont
	}
	canvas := ResolveCanvas(req.Resolution, m.opts.Canvas)
	return &taskRun{
		id:        id,
		req:       req,
		canvas:    canvas,
		studio:    m.opts.Studio(canvas),
		assetsDir: m.opts.AssetsDir,
		scenesDir: filepath.Join(m.opts.AssetsDir, "scenes"),
		log:       m.log.With().Str("task_id", id).Logger(),
	}
}

func (m *Manager) run(ctx context.Context, tr *taskRun) {
	defer m.cleanup(tr)

	err := m.produce(ctx, tr)
	if err == nil {
		metrics.TasksTotal.WithLabelValues("completed").Inc()
		tr.log.Info().Int("scenes", tr.total).Msg("task completed")
		return
	}

	outcome, msg := "error", err.Error()
	if ctx.Err() != nil {
		outcome, msg = "aborted", "aborted"
	}
	metrics.TasksTotal.WithLabelValues(outcome).Inc()
	tr.log.Error().Err(err).Msg("task failed")
	m.update(ctx, tr.id, func(t *tasks.Task) {
		t.Status = tasks.StatusError
		t.Progress = 0
		t.Error = msg
	})
}

func (m *Manager) step(ctx context.Context, tr *taskRun, progress int, step string) {
	m.update(ctx, tr.id, func(t *tasks.Task) {
		t.Status = tasks.StatusRunning
		t.Progress = max(t.Progress, progress)
		t.SetScene(systemScene, tasks.SceneStatus{Step: step})
	})
}

func (m *Manager) produce(ctx context.Context, tr *taskRun) error {
	m.update(ctx, tr.id, func(t *tasks.Task) {
		t.Status = tasks.StatusRunning
		t.Progress = 2
		t.SetScene(systemScene, tasks.SceneStatus{Text: "system", Step: "warming up"})
	})

	for _, dir := range []string{tr.assetsDir, tr.scenesDir, m.opts.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	m.step(ctx, tr, 5, "engine ready")

	sentences := SplitScenes(tr.req.Text)
	tr.total = len(sentences)
	m.step(ctx, tr, 10, "rendering scenes")

	clips, err := m.renderScenes(ctx, tr, sentences)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return errors.New("no scene could be rendered")
	}

	m.step(ctx, tr, 85, "joining scenes")
	temp := filepath.Join(m.opts.OutputDir, "temp_"+tr.id+".mp4")
	final := filepath.Join(m.opts.OutputDir, VideoKey(tr.id))
	if err := tr.studio.Media.Concat(ctx, clips, temp); err != nil {
		return fmt.Errorf("concat: %w", err)
	}

	if tr.req.BGM != "" && tr.req.BGM != NoMusic {
		m.step(ctx, tr, 95, "mixing music")
		music := filepath.Join(m.opts.BGMDir, tr.req.BGM+".mp3")
		if err := tr.studio.Media.MixBackground(ctx, temp, music, final, musicVolume); err != nil {
			return fmt.Errorf("mix music: %w", err)
		}
	} else if err := os.Rename(temp, final); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	if err := m.opts.Artifacts.Save(ctx, VideoKey(tr.id), final, "video/mp4"); err != nil {
		return fmt.Errorf("publish video: %w", err)
	}

	m.update(ctx, tr.id, func(t *tasks.Task) {
		t.Status = tasks.StatusCompleted
		t.Progress = 100
		t.VideoKey = VideoKey(tr.id)
		t.SetScene(systemScene, tasks.SceneStatus{Step: "all done", Done: true})
	})
	return nil
}

// VideoKey is the artifact key of a task's final video.
func VideoKey(taskID string) string { return "video_" + taskID + ".mp4" }

// renderScenes feeds every sentence to the pool, staggered, and returns the
// clips that rendered, in script order.
func (m *Manager) renderScenes(ctx context.Context, tr *taskRun, sentences []string) ([]string, error) {
	results := make(chan SceneResult, len(sentences))
	submitted := 0
	for i, s := range sentences {
		if i > 0 && m.opts.Stagger > 0 {
			if err := sleep(ctx, m.opts.Stagger); err != nil {
				break
			}
		}
		job := SceneJob{Index: i, Text: s, run: tr, ctx: ctx, result: results}
		if err := m.pool.Submit(ctx, job); err != nil {
			tr.log.Warn().Err(err).Int("scene", i+1).Msg("scene not queued")
			break
		}
		submitted++
	}

	clips := make([]string, len(sentences))
	for range submitted {
		r := <-results
		if r.Err == nil {
			clips[r.Index] = r.Clip
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valid := clips[:0]
	for _, c := range clips {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

// renderScene is the pool's SceneFunc: narrate, paint, caption, merge.
func (m *Manager) renderScene(ctx context.Context, job SceneJob) (string, error) {
	tr := job.run
	scene := strconv.Itoa(job.Index + 1)
	setStep := func(step string) {
		m.update(ctx, tr.id, func(t *tasks.Task) {
			t.SetScene(scene, tasks.SceneStatus{Text: job.Text, Step: step})
		})
	}
	base := fmt.Sprintf("%s_%d", tr.id, job.Index)

	clip, err := func() (string, error) {
		setStep("synthesizing narration")
		audio := filepath.Join(tr.assetsDir, "audio_"+base+".mp3")
		narration, err := m.opts.Narrator.Narrate(ctx, job.Text, tr.req.Voice, audio)
		if err != nil {
			return "", fmt.Errorf("narrate: %w", err)
		}

		setStep("painting background")
		bg := filepath.Join(tr.assetsDir, "bg_"+base+".jpg")
		err = tr.studio.Images.Generate(ctx, imagegen.Request{
			Prompt: job.Text,
			Canvas: tr.canvas,
			APIKey: tr.req.ImageAPIKey,
			Model:  tr.req.ImageModel,
		}, bg)
		if err != nil {
			return "", fmt.Errorf("background: %w", err)
		}

		setStep("laying out captions")
		captions, err := m.writeCaptions(tr, job.Text, narration.Hints, narration.Duration,
			filepath.Join(tr.assetsDir, "anim_"+base+".ass"))
		if err != nil {
			return "", err
		}

		setStep("rendering scene")
		out := filepath.Join(tr.scenesDir, "scene_"+base+".mp4")
		err = tr.studio.Media.MergeScene(ctx, render.Scene{
			Background: bg,
			Audio:      narration.AudioPath,
			Captions:   captions,
			Duration:   narration.Duration,
		}, out)
		if err != nil {
			return "", fmt.Errorf("merge scene: %w", err)
		}
		return out, nil
	}()

	if err != nil {
		msg := err.Error()
		if len([]rune(msg)) > 40 {
			msg = string([]rune(msg)[:40])
		}
		m.update(ctx, tr.id, func(t *tasks.Task) {
			t.SetScene(scene, tasks.SceneStatus{Step: "failed: " + msg})
		})
		return "", err
	}

	n := int(tr.done.Add(1))
	pct := 5 + 80*n/max(1, tr.total)
	m.update(ctx, tr.id, func(t *tasks.Task) {
		t.Progress = max(t.Progress, pct)
		t.SetScene(scene, tasks.SceneStatus{Step: "done", Done: true})
	})
	return clip, nil
}

// writeCaptions compiles the caption track for a scene. It returns "" when
// the text has nothing to caption.
func (m *Manager) writeCaptions(tr *taskRun, text string, hints []caption.Hint, duration float64, path string) (string, error) {
	lead := m.opts.CaptionLead
	doc := caption.Compile(caption.Request{
		Text:       text,
		Hints:      hints,
		Duration:   duration,
		Canvas:     tr.canvas,
		StyleID:    tr.req.SubtitleStyle,
		FontName:   tr.req.FontName,
		LeadOffset: &lead,
	})
	metrics.ObserveDocument(doc)
	if doc == nil {
		tr.log.Debug().Str("text", text).Msg("nothing to caption")
		return "", nil
	}
	if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
		return "", fmt.Errorf("write captions: %w", err)
	}
	return path, nil
}

// cleanup removes every intermediate file carrying the task id.
func (m *Manager) cleanup(tr *taskRun) {
	patterns := []string{
		filepath.Join(tr.assetsDir, "*"+tr.id+"*"),
		filepath.Join(tr.scenesDir, "*"+tr.id+"*"),
		filepath.Join(m.opts.OutputDir, "temp_"+tr.id+".mp4*"),
	}
	removed := 0
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		for _, f := range matches {
			if err := os.RemoveAll(f); err != nil {
				tr.log.Warn().Err(err).Str("path", f).Msg("cleanup failed")
				continue
			}
			removed++
		}
	}
	tr.log.Debug().Int("removed", removed).Msg("task files cleaned up")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
