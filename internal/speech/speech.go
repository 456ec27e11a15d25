// Package speech synthesizes scene narration and aligns it with the script.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Voice is a selectable narration voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Voices lists the narration voices offered to clients.
var Voices = []Voice{
	{ID: "zh-CN-XiaoxiaoNeural", Name: "晓晓 (女声)", Lang: "zh"},
	{ID: "zh-CN-YunxiNeural", Name: "云溪 (男声)", Lang: "zh"},
	{ID: "zh-CN-XiaoyiNeural", Name: "小艺 (女声)", Lang: "zh"},
	{ID: "zh-CN-YunjianNeural", Name: "云健 (男声)", Lang: "zh"},
	{ID: "zh-CN-XiaochenNeural", Name: "晓晨 (女声)", Lang: "zh"},
	{ID: "zh-CN-XiaohanNeural", Name: "晓涵 (女声)", Lang: "zh"},
}

// Synthesizer turns text into an mp3 file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// Padder appends trailing silence to an audio file.
type Padder interface {
	PadSilence(ctx context.Context, in, out string, pad time.Duration) error
}

// trailingPad keeps the last syllable from being clipped at scene cuts.
const trailingPad = 300 * time.Millisecond

// EdgeTTS runs the edge-tts command line client.
type EdgeTTS struct {
	bin string
	pad Padder
	log zerolog.Logger
}

// NewEdgeTTS creates an EdgeTTS synthesizer. bin defaults to "edge-tts".
func NewEdgeTTS(bin string, pad Padder, log zerolog.Logger) *EdgeTTS {
	if bin == "" {
		bin = "edge-tts"
	}
	return &EdgeTTS{bin: bin, pad: pad, log: log}
}

// Synthesize writes the spoken text to outPath, padded with silence.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, voice, outPath string) error {
	tmp := outPath + ".tmp.mp3"
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, e.bin, "--voice", voice, "--text", text, "--write-media", tmp)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("edge-tts: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("edge-tts produced no audio: %w", err)
	}

	if err := e.pad.PadSilence(ctx, tmp, outPath, trailingPad); err != nil {
		return fmt.Errorf("pad audio: %w", err)
	}
	e.log.Debug().Str("voice", voice).Str("path", outPath).Msg("speech synthesized")
	return nil
}
