// Package render builds and runs the ffmpeg jobs that turn scene assets into
// video.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/snarg/subforge/internal/caption"
)

const (
	maxZoom      = 1.2
	zoomPerFrame = 0.0005
	fadeOut      = 2 * time.Second
)

// Options configures a Renderer.
type Options struct {
	FFmpegPath string
	Canvas     caption.Canvas
	FPS        int
	Log        zerolog.Logger
}

// Renderer runs ffmpeg jobs for one output resolution.
type Renderer struct {
	bin    string
	canvas caption.Canvas
	fps    int
	log    zerolog.Logger
}

// New creates a Renderer. Missing options fall back to ffmpeg on PATH, the
// default canvas and 25 fps.
func New(opts Options) *Renderer {
	r := &Renderer{bin: opts.FFmpegPath, canvas: opts.Canvas, fps: opts.FPS, log: opts.Log}
	if r.bin == "" {
		r.bin = "ffmpeg"
	}
	if r.canvas.Width <= 0 || r.canvas.Height <= 0 {
		r.canvas = caption.DefaultCanvas
	}
	if r.fps <= 0 {
		r.fps = 25
	}
	return r
}

// Canvas returns the output resolution.
func (r *Renderer) Canvas() caption.Canvas { return r.canvas }

// WithCanvas returns a copy of r rendering at c.
func (r *Renderer) WithCanvas(c caption.Canvas) *Renderer {
	cp := *r
	if c.Width > 0 && c.Height > 0 {
		cp.canvas = c
	}
	return &cp
}

// Scene describes the inputs of one scene clip.
type Scene struct {
	Background string
	Audio      string
	Captions   string // .ass path; empty renders without captions
	Duration   float64
}

// MergeScene renders a scene clip: the background slowly zooms in, captions
// are burned in and the narration is muxed over it.
func (r *Renderer) MergeScene(ctx context.Context, s Scene, out string) error {
	return r.run(ctx, r.sceneStream(s, out))
}

func (r *Renderer) sceneStream(s Scene, out string) *ffmpeg.Stream {
	frames := max(1, int(s.Duration*float64(r.fps)))
	// Linear ramp of zoomPerFrame per frame, reaching at most maxZoom on the
	// last frame.
	step := zoomPerFrame
	if 1+step*float64(frames) > maxZoom {
		step = (maxZoom - 1) / float64(frames)
	}
	zoom := strings.TrimRight(strconv.FormatFloat(step, 'f', 8, 64), "0")

	bg := ffmpeg.Input(s.Background, ffmpeg.KwArgs{"loop": 1})
	v := bg.Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": r.canvas.Width, "h": -1}).
		Filter("zoompan", ffmpeg.Args{}, ffmpeg.KwArgs{
			"z":   "1+" + zoom + "*on",
			"d":   frames,
			"s":   r.canvas.String(),
			"fps": r.fps,
		}).
		Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"})
	if s.Captions != "" {
		v = v.Filter("ass", ffmpeg.Args{filepath.ToSlash(s.Captions)})
	}
	audio := ffmpeg.Input(s.Audio).Audio()

	return ffmpeg.Output([]*ffmpeg.Stream{v, audio}, out, ffmpeg.KwArgs{
		"c:v":     "libx264",
		"preset":  "ultrafast",
		"b:v":     "4000k",
		"pix_fmt": "yuv420p",
		"c:a":     "aac",
		"b:a":     "192k",
		"t":       fmt.Sprintf("%.2f", s.Duration),
	}).OverWriteOutput().GlobalArgs("-loglevel", "error")
}

// Concat joins scene clips with the concat demuxer, copying streams.
func (r *Renderer) Concat(ctx context.Context, scenes []string, out string) error {
	if len(scenes) == 0 {
		return fmt.Errorf("concat: no scenes")
	}
	list, err := writeConcatList(scenes, out)
	if err != nil {
		return err
	}
	defer os.Remove(list)
	return r.run(ctx, concatStream(list, out))
}

func concatStream(list, out string) *ffmpeg.Stream {
	return ffmpeg.Input(list, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(out, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().GlobalArgs("-loglevel", "error")
}

func writeConcatList(scenes []string, out string) (string, error) {
	var b strings.Builder
	for _, s := range scenes {
		abs, err := filepath.Abs(s)
		if err != nil {
			return "", fmt.Errorf("concat: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	list := out + ".txt"
	if err := os.WriteFile(list, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	return list, nil
}

// MixBackground mixes looping background music under the narration. The
// music ducks while the narration is loud and fades out over the last two
// seconds. A missing music file moves video to out unchanged.
func (r *Renderer) MixBackground(ctx context.Context, video, music, out string, volume float64) error {
	if _, err := os.Stat(music); err != nil {
		r.log.Warn().Str("bgm", music).Msg("background music not found, skipping mix")
		if video == out {
			return nil
		}
		return os.Rename(video, out)
	}

	dur, err := r.ProbeDuration(video)
	if err != nil {
		r.log.Warn().Err(err).Str("video", video).Msg("probe failed, fading from start")
	}
	return r.exec(ctx, mixArgs(video, music, out, volume, max(0, dur-fadeOut.Seconds()))...)
}

func mixArgs(video, music, out string, volume, fadeStart float64) []string {
	graph := fmt.Sprintf("[1:a]volume=%g[music];"+
		"[0:a]asplit[vocal][trigger];"+
		"[music][trigger]sidechaincompress=threshold=0.1:ratio=20:attack=100:release=800,"+
		"afade=t=out:st=%.2f:d=%g[ducked];"+
		"[vocal][ducked]amix=inputs=2:duration=first[outa]",
		volume, fadeStart, fadeOut.Seconds())
	return []string{
		"-y", "-loglevel", "error",
		"-i", video,
		"-stream_loop", "-1", "-i", music,
		"-filter_complex", graph,
		"-map", "0:v", "-map", "[outa]",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-shortest", out,
	}
}

// PadSilence appends trailing silence to an audio file and re-encodes it
// as mp3.
func (r *Renderer) PadSilence(ctx context.Context, in, out string, pad time.Duration) error {
	s := ffmpeg.Input(in).Audio().
		Filter("apad", ffmpeg.Args{}, ffmpeg.KwArgs{"pad_dur": pad.Seconds()}).
		Output(out, ffmpeg.KwArgs{"c:a": "libmp3lame", "b:a": "192k"}).
		OverWriteOutput().GlobalArgs("-loglevel", "error")
	return r.run(ctx, s)
}

// Silence renders a silent mp3 of the given length.
func (r *Renderer) Silence(ctx context.Context, out string, d time.Duration) error {
	s := ffmpeg.Input("anullsrc=r=24000:cl=mono", ffmpeg.KwArgs{"f": "lavfi", "t": fmt.Sprintf("%.2f", d.Seconds())}).
		Output(out, ffmpeg.KwArgs{"c:a": "libmp3lame", "b:a": "64k"}).
		OverWriteOutput().GlobalArgs("-loglevel", "error")
	return r.run(ctx, s)
}

// SolidBackground renders a single-frame image of one colour (0xRRGGBB)
// with a vignette and light grain.
func (r *Renderer) SolidBackground(ctx context.Context, out, colour string) error {
	src := fmt.Sprintf("color=c=%s:s=%s:d=1", colour, r.canvas)
	return r.run(ctx, stillStream(src, out, "PI/3", 8))
}

// GradientBackground renders a single-frame vertical gradient between two
// colours.
func (r *Renderer) GradientBackground(ctx context.Context, out, top, bottom string) error {
	src := fmt.Sprintf("gradients=s=%s:c0=%s:c1=%s:x0=0:x1=0:y0=0:y1=%d:d=1",
		r.canvas, top, bottom, r.canvas.Height)
	return r.run(ctx, stillStream(src, out, "PI/4", 5))
}

func stillStream(src, out, angle string, noise int) *ffmpeg.Stream {
	return ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi"}).
		Filter("vignette", ffmpeg.Args{}, ffmpeg.KwArgs{"angle": angle}).
		Filter("noise", ffmpeg.Args{}, ffmpeg.KwArgs{"alls": noise, "allf": "t+u"}).
		Output(out, ffmpeg.KwArgs{"vframes": 1}).
		OverWriteOutput().GlobalArgs("-loglevel", "error")
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the container duration of a media file in seconds.
func (r *Renderer) ProbeDuration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out string) (float64, error) {
	var pr probeResult
	if err := json.Unmarshal([]byte(out), &pr); err != nil {
		return 0, fmt.Errorf("decode probe output: %w", err)
	}
	d, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", pr.Format.Duration, err)
	}
	return d, nil
}

func (r *Renderer) run(ctx context.Context, s *ffmpeg.Stream) error {
	return r.exec(ctx, s.GetArgs()...)
}

// exec runs ffmpeg with args, killing it when ctx is cancelled.
func (r *Renderer) exec(ctx context.Context, args ...string) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	r.log.Debug().Strs("args", args).Dur("elapsed", time.Since(start)).Msg("ffmpeg finished")
	return nil
}
