package caption

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Canvas is the video frame in pixels.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultCanvas is used whenever a resolution cannot be parsed.
var DefaultCanvas = Canvas{Width: 1080, Height: 1920}

// ParseCanvas parses "WIDTHxHEIGHT". Malformed or non-positive input yields
// DefaultCanvas.
func ParseCanvas(s string) Canvas {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return DefaultCanvas
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return DefaultCanvas
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return DefaultCanvas
	}
	return Canvas{Width: width, Height: height}
}

func (c Canvas) String() string { return fmt.Sprintf("%dx%d", c.Width, c.Height) }

// Portrait reports whether the frame is taller than it is wide.
func (c Canvas) Portrait() bool { return c.Width < c.Height }

// Metrics are the pixel measurements derived from a canvas. Values are
// truncated to whole pixels the way the style sheet expects them.
type Metrics struct {
	FontSize     int
	Tracking     int // default gap between neighbours, negative
	PunctGap     int // gap when either neighbour is punctuation
	MaxLineWidth int
	LineHeight   int
	CenterY      int
}

// NewMetrics derives layout metrics for c. Portrait captions use a smaller
// font relative to frame height.
func NewMetrics(c Canvas) Metrics {
	h := float64(c.Height)
	m := Metrics{}
	if c.Portrait() {
		m.FontSize = int(h * 0.055)
		m.CenterY = int(h * 0.72)
	} else {
		m.FontSize = int(h * 0.08)
		m.CenterY = int(h * 0.82)
	}
	fs := float64(m.FontSize)
	m.Tracking = -int(fs * 0.12)
	m.PunctGap = int(fs * 0.05)
	m.MaxLineWidth = int(float64(c.Width) * 0.85)
	m.LineHeight = int(fs * 1.5)
	return m
}

// TokenWidth is the estimated rendered width of t.
func (m Metrics) TokenWidth(t Token) float64 {
	fs := float64(m.FontSize)
	switch t.Category {
	case Ideograph:
		return float64(int(fs * 0.9))
	case Punctuation:
		return float64(int(fs * 0.4))
	default:
		return float64(utf8.RuneCountInString(t.Text)) * fs * 0.5
	}
}

// Gap is the spacing between two neighbouring tokens.
func (m Metrics) Gap(left, right Token) float64 {
	if left.Category == Punctuation || right.Category == Punctuation {
		return float64(m.PunctGap)
	}
	return float64(m.Tracking)
}

// PlacedToken is a timed token with its on-screen center.
type PlacedToken struct {
	TimedToken
	Width float64
	X     float64
	Y     float64
	Row   int
}

// Line is one visual row of tokens.
type Line struct {
	Row    int
	Width  float64 // including inter-token gaps
	Tokens []PlacedToken
}

// Layout wraps tokens greedily into lines no wider than the metrics allow and
// centers every line on the canvas.
func Layout(tokens []TimedToken, c Canvas) []Line {
	m := NewMetrics(c)
	lines := wrap(tokens, m)

	n := len(lines)
	for i := range lines {
		ln := &lines[i]
		ln.Row = i
		y := float64(m.CenterY) + (float64(i)-float64(n-1)/2)*float64(m.LineHeight)
		x := (float64(c.Width) - ln.Width) / 2
		for j := range ln.Tokens {
			pt := &ln.Tokens[j]
			pt.Row = i
			pt.X = x + pt.Width/2
			pt.Y = y
			x += pt.Width
			if j < len(ln.Tokens)-1 {
				x += m.Gap(pt.Token, ln.Tokens[j+1].Token)
			}
		}
	}
	return lines
}

func wrap(tokens []TimedToken, m Metrics) []Line {
	var (
		lines []Line
		cur   Line
	)
	limit := float64(m.MaxLineWidth)
	for _, t := range tokens {
		w := m.TokenWidth(t.Token)
		if len(cur.Tokens) > 0 {
			last := cur.Tokens[len(cur.Tokens)-1]
			next := cur.Width + m.Gap(last.Token, t.Token) + w
			if next > limit {
				lines = append(lines, cur)
				cur = Line{}
			} else {
				cur.Width = next
				cur.Tokens = append(cur.Tokens, PlacedToken{TimedToken: t, Width: w})
				continue
			}
		}
		cur.Width = w
		cur.Tokens = append(cur.Tokens, PlacedToken{TimedToken: t, Width: w})
	}
	if len(cur.Tokens) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

// Flatten returns every placed token in reading order.
func Flatten(lines []Line) []PlacedToken {
	var out []PlacedToken
	for _, ln := range lines {
		out = append(out, ln.Tokens...)
	}
	return out
}
