// Package caption compiles scene narration into a laid-out, animated ASS
// caption track.
//
// The compiler is a pure function of its Request: it holds no state between
// calls and is safe to run concurrently, one call per scene. Stages hand new
// values forward (Token, TimedToken, PlacedToken) and never mutate their
// inputs.
package caption

import "time"

// Request is everything needed to caption one scene.
type Request struct {
	Text     string
	Hints    []Hint
	Duration float64 // seconds; negative values are treated as zero
	Canvas   Canvas
	StyleID  string
	FontName string

	// LeadOffset overrides DefaultLeadOffset when non-nil.
	LeadOffset *time.Duration
}

// Compile runs the full caption pipeline. It returns nil when the text holds
// nothing displayable; callers should skip caption output in that case.
func Compile(req Request) *Document {
	tokens := Tokenize(req.Text)
	if len(tokens) == 0 {
		return nil
	}

	c := req.Canvas
	if c.Width <= 0 || c.Height <= 0 {
		c = DefaultCanvas
	}
	font := req.FontName
	if font == "" {
		font = DefaultFont
	}
	lead := DefaultLeadOffset
	if req.LeadOffset != nil {
		lead = max(0, *req.LeadOffset)
	}
	duration := max(0, req.Duration)

	preset := LookupPreset(req.StyleID)
	timed := AllocateTiming(tokens, req.Hints, duration)
	lines := Layout(timed, c)

	base, active := newStyles(preset, font, NewMetrics(c).FontSize)
	return &Document{
		Canvas: c,
		Base:   base,
		Active: active,
		Cues:   EmitCues(Flatten(lines), preset, duration, lead),
	}
}
