package speech

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/transcribe"
)

// fallbackDuration is used when the audio length cannot be probed.
const fallbackDuration = 3.0

// Media is the subset of the renderer the narrator needs.
type Media interface {
	Padder
	ProbeDuration(path string) (float64, error)
	Silence(ctx context.Context, out string, d time.Duration) error
}

// Narration is the audio for one scene plus its caption timing.
type Narration struct {
	AudioPath string
	Hints     []caption.Hint
	Duration  float64 // seconds
	Simulated bool    // hints were estimated, not recognized
}

// NarratorOptions configures a Narrator.
type NarratorOptions struct {
	Synthesizer Synthesizer
	Transcriber transcribe.Provider // nil disables recognition
	Media       Media
	Language    string
	Log         zerolog.Logger
}

// Narrator produces narration audio and timing hints for scenes.
type Narrator struct {
	tts   Synthesizer
	stt   transcribe.Provider
	media Media
	lang  string
	log   zerolog.Logger

	sttMu sync.Mutex // one recognition request at a time
}

// NewNarrator creates a Narrator.
func NewNarrator(opts NarratorOptions) *Narrator {
	return &Narrator{
		tts:   opts.Synthesizer,
		stt:   opts.Transcriber,
		media: opts.Media,
		lang:  opts.Language,
		log:   opts.Log,
	}
}

// Narrate synthesizes text to audioPath and derives timing hints. A failed
// synthesis falls back to silence of an estimated length so the scene can
// still be rendered; failed or empty recognition falls back to simulated
// word timings.
func (n *Narrator) Narrate(ctx context.Context, text, voice, audioPath string) (*Narration, error) {
	out := &Narration{AudioPath: audioPath}

	if err := n.tts.Synthesize(ctx, text, voice, audioPath); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n.log.Warn().Err(err).Msg("speech synthesis failed, using silent narration")
		d := estimateDuration(text)
		if err := n.media.Silence(ctx, audioPath, time.Duration(d*float64(time.Second))); err != nil {
			return nil, err
		}
		out.Duration = d
		out.Hints = transcribe.Hints(transcribe.SimulateWords(text, d))
		out.Simulated = true
		return out, nil
	}

	out.Duration = n.probe(audioPath)

	words, err := n.recognize(ctx, text, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n.log.Warn().Err(err).Msg("recognition failed, estimating word timings")
	}
	if len(words) == 0 {
		words = transcribe.SimulateWords(text, out.Duration)
		out.Simulated = true
	}
	out.Hints = transcribe.Hints(words)
	return out, nil
}

func (n *Narrator) recognize(ctx context.Context, text, audioPath string) ([]transcribe.Word, error) {
	if n.stt == nil {
		return nil, nil
	}
	n.sttMu.Lock()
	defer n.sttMu.Unlock()

	resp, err := n.stt.Transcribe(ctx, audioPath, transcribe.Options{
		Language: n.lang,
		Prompt:   text,
		BeamSize: 1,
	})
	if err != nil {
		return nil, err
	}
	return resp.Words, nil
}

func (n *Narrator) probe(path string) float64 {
	d, err := n.media.ProbeDuration(path)
	if err != nil || d <= 0 {
		n.log.Warn().Err(err).Str("path", path).Msg("could not probe narration length")
		return fallbackDuration
	}
	return d
}

// estimateDuration guesses a speaking time of a quarter second per
// character, never shorter than 1.5 s.
func estimateDuration(text string) float64 {
	return max(1.5, float64(utf8.RuneCountInString(text))*0.25)
}
