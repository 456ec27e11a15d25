package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/transcribe"
)

type fakeTTS struct{ err error }

func (f fakeTTS) Synthesize(ctx context.Context, text, voice, out string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("mp3"), 0644)
}

type fakeMedia struct {
	duration float64
	probeErr error
	silence  time.Duration
}

func (f *fakeMedia) PadSilence(ctx context.Context, in, out string, pad time.Duration) error {
	return os.Rename(in, out)
}

func (f *fakeMedia) ProbeDuration(path string) (float64, error) { return f.duration, f.probeErr }

func (f *fakeMedia) Silence(ctx context.Context, out string, d time.Duration) error {
	f.silence = d
	return os.WriteFile(out, nil, 0644)
}

type fakeSTT struct {
	words []transcribe.Word
	err   error
	opts  transcribe.Options
}

func (f *fakeSTT) Transcribe(ctx context.Context, path string, opts transcribe.Options) (*transcribe.Response, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Response{Words: f.words}, nil
}
func (f *fakeSTT) Name() string  { return "fake" }
func (f *fakeSTT) Model() string { return "fake-1" }

func TestNarrate(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "audio.mp3")

	t.Run("recognized", func(t *testing.T) {
		stt := &fakeSTT{words: []transcribe.Word{{Word: "你", Start: 0.4, End: 0.7}, {Word: "好", Start: 0.7, End: 1.1}}}
		n := NewNarrator(NarratorOptions{
			Synthesizer: fakeTTS{},
			Transcriber: stt,
			Media:       &fakeMedia{duration: 1.6},
			Language:    "zh",
			Log:         zerolog.Nop(),
		})
		got, err := n.Narrate(context.Background(), "你好", "zh-CN-YunxiNeural", audio)
		if err != nil {
			t.Fatalf("Narrate: %v", err)
		}
		if got.Duration != 1.6 {
			t.Errorf("Duration = %v, want 1.6", got.Duration)
		}
		if got.Simulated || len(got.Hints) != 2 || got.Hints[0].Onset != 0.4 {
			t.Errorf("Hints = %+v simulated=%v", got.Hints, got.Simulated)
		}
		if stt.opts.Prompt != "你好" || stt.opts.Language != "zh" {
			t.Errorf("opts = %+v", stt.opts)
		}
	})

	t.Run("recognition_fails", func(t *testing.T) {
		n := NewNarrator(NarratorOptions{
			Synthesizer: fakeTTS{},
			Transcriber: &fakeSTT{err: errors.New("down")},
			Media:       &fakeMedia{duration: 2},
			Log:         zerolog.Nop(),
		})
		got, err := n.Narrate(context.Background(), "你好", "v", audio)
		if err != nil {
			t.Fatalf("Narrate: %v", err)
		}
		if !got.Simulated || len(got.Hints) != 2 || got.Hints[1].Onset != 1.0 {
			t.Errorf("Hints = %+v simulated=%v", got.Hints, got.Simulated)
		}
	})

	t.Run("no_transcriber_probe_fails", func(t *testing.T) {
		n := NewNarrator(NarratorOptions{
			Synthesizer: fakeTTS{},
			Media:       &fakeMedia{probeErr: errors.New("no ffprobe")},
			Log:         zerolog.Nop(),
		})
		got, err := n.Narrate(context.Background(), "好", "v", audio)
		if err != nil {
			t.Fatalf("Narrate: %v", err)
		}
		if got.Duration != fallbackDuration {
			t.Errorf("Duration = %v, want %v", got.Duration, fallbackDuration)
		}
		if !got.Simulated {
			t.Error("expected simulated hints")
		}
	})

	t.Run("synthesis_fails", func(t *testing.T) {
		media := &fakeMedia{}
		n := NewNarrator(NarratorOptions{
			Synthesizer: fakeTTS{err: errors.New("offline")},
			Media:       media,
			Log:         zerolog.Nop(),
		})
		got, err := n.Narrate(context.Background(), "今天天气很好", "v", audio)
		if err != nil {
			t.Fatalf("Narrate: %v", err)
		}
		if got.Duration != 1.5 {
			t.Errorf("Duration = %v, want 1.5", got.Duration)
		}
		if media.silence != 1500*time.Millisecond {
			t.Errorf("silence = %v, want 1.5s", media.silence)
		}
		if len(got.Hints) != 6 {
			t.Errorf("len(Hints) = %d, want 6", len(got.Hints))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n := NewNarrator(NarratorOptions{
			Synthesizer: fakeTTS{err: context.Canceled},
			Media:       &fakeMedia{},
			Log:         zerolog.Nop(),
		})
		if _, err := n.Narrate(ctx, "好", "v", audio); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestEstimateDuration(t *testing.T) {
	if d := estimateDuration("好"); d != 1.5 {
		t.Errorf("estimateDuration(short) = %v, want 1.5", d)
	}
	if d := estimateDuration("一二三四五六七八九十"); d != 2.5 {
		t.Errorf("estimateDuration(10 runes) = %v, want 2.5", d)
	}
}

func TestEdgeTTSFailure(t *testing.T) {
	e := NewEdgeTTS("false", &fakeMedia{}, zerolog.Nop())
	if err := e.Synthesize(context.Background(), "好", "v", filepath.Join(t.TempDir(), "a.mp3")); err == nil {
		t.Error("expected error when edge-tts exits non-zero")
	}
}
