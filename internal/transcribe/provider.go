package transcribe

import "context"

// Provider is the interface for speech-to-text backends used to align
// narration audio with its script.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Response, error)
	Name() string  // "whisper"
	Model() string // model identifier for logs
}

// Options are per-request options. Zero-value fields are omitted from the
// request.
type Options struct {
	Language    string
	Prompt      string // the narration script, used to bias recognition
	Temperature float64
	BeamSize    int
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Words    []Word  // nil if provider doesn't support word timestamps
}

// Word is a timestamped word from any STT provider.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}
