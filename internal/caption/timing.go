package caption

// Hint is a speech-recognition word onset. Only the first hint of a scene is
// trusted; the rest are too jittery to drive per-token timing.
type Hint struct {
	Onset float64 `json:"onset"` // seconds
	Text  string  `json:"text,omitempty"`
}

// TimedToken is a token with its speaking window in seconds.
type TimedToken struct {
	Token
	Start float64
	End   float64
}

// Duration returns End - Start.
func (t TimedToken) Duration() float64 { return t.End - t.Start }

const (
	minTimeSpan      = 0.1
	fallbackTokenDur = 0.1
)

// Anchor returns the onset every scene's timing starts from.
func Anchor(hints []Hint) float64 {
	if len(hints) == 0 {
		return 0
	}
	return max(0, hints[0].Onset)
}

// AllocateTiming redistributes [anchor, duration] across tokens in proportion
// to their weights. Times are clamped into [0, duration].
func AllocateTiming(tokens []Token, hints []Hint, duration float64) []TimedToken {
	duration = max(0, duration)
	anchor := Anchor(hints)
	span := max(minTimeSpan, duration-anchor)

	var total float64
	for _, t := range tokens {
		total += t.Weight()
	}

	out := make([]TimedToken, 0, len(tokens))
	cur := anchor
	for _, t := range tokens {
		d := fallbackTokenDur
		if total > 0 {
			d = t.Weight() / total * span
		}
		out = append(out, TimedToken{
			Token: t,
			Start: clamp(cur, 0, duration),
			End:   clamp(cur+d, 0, duration),
		})
		cur += d
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
