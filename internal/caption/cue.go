package caption

import (
	"math"
	"time"
)

// Layer selects the style a cue is drawn with.
type Layer int

const (
	LayerBase   Layer = iota // dim, static
	LayerActive              // highlighted, animated
)

func (l Layer) String() string {
	if l == LayerActive {
		return "active"
	}
	return "base"
}

// DefaultLeadOffset shifts every cue earlier so highlighting anticipates the
// spoken onset.
const DefaultLeadOffset = 200 * time.Millisecond

// minEffectWindow is the shortest window an animation is scheduled over.
const minEffectWindow = 50 * time.Millisecond

// Phase is one interpolation step of a transform, relative to the cue start.
// Scale is a percentage; Opacity is 1 for opaque and 0 for transparent.
type Phase struct {
	Start   time.Duration
	End     time.Duration
	Scale   float64
	Opacity float64
}

// Transform animates an active cue. Every transform starts from 100% scale
// and full opacity.
type Transform struct {
	Effect Effect
	Phases []Phase
}

// Cue is one timed instruction for one token in one layer.
type Cue struct {
	Index     int // token position in reading order
	Layer     Layer
	Start     time.Duration
	End       time.Duration
	X, Y      float64
	Text      string
	Transform *Transform
}

// EffectiveTime converts a raw token time in seconds to a cue time: shifted
// earlier by lead, truncated to whole milliseconds, clamped to [0, limit].
func EffectiveTime(raw float64, lead, limit time.Duration) time.Duration {
	ms := math.Max(0, raw*1000-float64(lead.Milliseconds()))
	d := time.Duration(ms) * time.Millisecond
	return min(d, limit)
}

// SceneLength converts a scene duration in seconds to whole milliseconds.
func SceneLength(seconds float64) time.Duration {
	return time.Duration(math.Max(0, seconds)*1000) * time.Millisecond
}

// EmitCues turns placed tokens into cues. Punctuation gets one base cue over
// the whole scene; every other token gets a base/active/base partition of
// [0, scene length].
func EmitCues(tokens []PlacedToken, p Preset, duration float64, lead time.Duration) []Cue {
	total := SceneLength(duration)
	cues := make([]Cue, 0, len(tokens)*3)
	for i, t := range tokens {
		base := Cue{Index: i, Layer: LayerBase, X: t.X, Y: t.Y, Text: t.Text}
		if t.Category == Punctuation {
			base.Start, base.End = 0, total
			cues = append(cues, base)
			continue
		}

		start := EffectiveTime(t.Start, lead, total)
		end := max(start, EffectiveTime(t.End, lead, total))

		if start > 0 {
			before := base
			before.Start, before.End = 0, start
			cues = append(cues, before)
		}

		active := base
		active.Layer = LayerActive
		active.Start, active.End = start, end
		active.Transform = compileEffect(p.Effect, end-start)
		cues = append(cues, active)

		if end < total {
			after := base
			after.Start, after.End = end, total
			cues = append(cues, after)
		}
	}
	return cues
}

func compileEffect(e Effect, window time.Duration) *Transform {
	win := max(minEffectWindow, window).Milliseconds()
	switch e {
	case EffectZoomPop:
		p1 := time.Duration(min(150, int64(float64(win)*0.4))) * time.Millisecond
		p2 := time.Duration(min(300, int64(float64(win)*0.8))) * time.Millisecond
		return &Transform{Effect: e, Phases: []Phase{
			{Start: 0, End: p1, Scale: 130, Opacity: 1},
			{Start: p1, End: p2, Scale: 100, Opacity: 1},
		}}
	case EffectExplode:
		return &Transform{Effect: e, Phases: []Phase{
			{Start: 0, End: time.Duration(win) * time.Millisecond, Scale: 250, Opacity: 0},
		}}
	default:
		// karaoke_wipe and none rely on the active style colour alone.
		return nil
	}
}
