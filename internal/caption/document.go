package caption

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Style is one entry of the [V4+ Styles] section.
type Style struct {
	Name        string
	Font        string
	Size        int
	Colour      string
	Outline     string
	Shadow      string
	Border      int
	ShadowDepth int
}

// Document is a complete caption track for one scene.
type Document struct {
	Canvas Canvas
	Base   Style
	Active Style
	Cues   []Cue
}

// ContentType is the media type documents are served with.
const ContentType = "text/x-ssa; charset=utf-8"

const styleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
	"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
	"Alignment, MarginL, MarginR, MarginV, Encoding"

const eventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

func newStyles(p Preset, font string, size int) (base, active Style) {
	base = Style{
		Name: "Base", Font: font, Size: size,
		Colour: p.Base, Outline: p.Outline, Shadow: p.Shadow,
		Border: 3, ShadowDepth: 2,
	}
	active = Style{
		Name: "Active", Font: font, Size: size,
		Colour: p.Active, Outline: p.Outline, Shadow: p.Shadow,
		Border: 4, ShadowDepth: 3,
	}
	return base, active
}

// WriteTo serializes the document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nScaledBorderAndShadow: yes\n\n",
		d.Canvas.Width, d.Canvas.Height)

	b.WriteString("[V4+ Styles]\n")
	b.WriteString(styleFormat)
	b.WriteByte('\n')
	writeStyle(&b, d.Base)
	writeStyle(&b, d.Active)

	b.WriteString("\n[Events]\n")
	b.WriteString(eventFormat)
	b.WriteByte('\n')
	for _, c := range d.Cues {
		d.writeCue(&b, c)
	}
	return b.WriteTo(w)
}

// String returns the serialized document.
func (d *Document) String() string {
	var sb strings.Builder
	d.WriteTo(&sb)
	return sb.String()
}

func writeStyle(b *bytes.Buffer, s Style) {
	// Bold, centre-middle alignment (5), no margins, default encoding.
	fmt.Fprintf(b, "Style: %s,%s,%d,%s,%s,%s,%s,1,0,0,0,100,100,0,0,1,%d,%d,5,0,0,0,1\n",
		s.Name, s.Font, s.Size, s.Colour, s.Colour, s.Outline, s.Shadow, s.Border, s.ShadowDepth)
}

func (d *Document) writeCue(b *bytes.Buffer, c Cue) {
	layer, style := 0, d.Base.Name
	if c.Layer == LayerActive {
		layer, style = 1, d.Active.Name
	}
	fmt.Fprintf(b, "Dialogue: %d,%s,%s,%s,,0,0,0,,{\\pos(%.1f,%.1f)%s}%s\n",
		layer, FormatTimestamp(c.Start), FormatTimestamp(c.End), style,
		c.X, c.Y, formatTransform(c.Transform), c.Text)
}

// formatTransform renders a transform as \t(...) override tags.
func formatTransform(t *Transform) string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range t.Phases {
		scale := strconv.FormatFloat(p.Scale, 'f', -1, 64)
		fmt.Fprintf(&sb, "\\t(%d,%d,\\fscx%s\\fscy%s", p.Start.Milliseconds(), p.End.Milliseconds(), scale, scale)
		if p.Opacity < 1 {
			fmt.Fprintf(&sb, "\\alpha&H%02X&", alphaByte(p.Opacity))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// alphaByte maps opacity to ASS alpha, where 0xFF is fully transparent.
func alphaByte(opacity float64) int {
	return int(math.Round((1 - clamp(opacity, 0, 1)) * 255))
}
