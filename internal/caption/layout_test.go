package caption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanvas(t *testing.T) {
	tests := []struct {
		in   string
		want Canvas
	}{
		{"1080x1920", Canvas{1080, 1920}},
		{"1920x1080", Canvas{1920, 1080}},
		{" 720x1280 ", Canvas{720, 1280}},
		{"", DefaultCanvas},
		{"1080", DefaultCanvas},
		{"axb", DefaultCanvas},
		{"0x1920", DefaultCanvas},
		{"1080x-5", DefaultCanvas},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCanvas(tt.in))
		})
	}
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(Canvas{1080, 1920})
	assert.Equal(t, Metrics{
		FontSize:     105,
		Tracking:     -12,
		PunctGap:     5,
		MaxLineWidth: 918,
		LineHeight:   157,
		CenterY:      1382,
	}, m)

	land := NewMetrics(Canvas{1920, 1080})
	assert.Equal(t, 86, land.FontSize)
	assert.Equal(t, 885, land.CenterY)
	assert.Equal(t, 1632, land.MaxLineWidth)
}

func TestTokenWidth(t *testing.T) {
	m := NewMetrics(Canvas{1080, 1920})
	assert.Equal(t, 94.0, m.TokenWidth(Token{"你", Ideograph}))
	assert.Equal(t, 42.0, m.TokenWidth(Token{"，", Punctuation}))
	assert.Equal(t, 157.5, m.TokenWidth(Token{"abc", LatinRun}))
}

func TestLayout_SingleLine(t *testing.T) {
	c := Canvas{1080, 1920}
	lines := Layout(AllocateTiming(Tokenize("你好，世界。"), nil, 3), c)
	require.Len(t, lines, 1)

	ln := lines[0]
	assert.Equal(t, 451.0, ln.Width)
	require.Len(t, ln.Tokens, 6)

	wantX := []float64{361.5, 443.5, 516.5, 589.5, 671.5, 744.5}
	for i, pt := range ln.Tokens {
		assert.InDelta(t, wantX[i], pt.X, 1e-9, "token %d (%s)", i, pt.Text)
		assert.Equal(t, 1382.0, pt.Y)
		assert.Equal(t, 0, pt.Row)
	}
}

func TestLayout_WidthNeverExceeded(t *testing.T) {
	texts := []string{
		strings.Repeat("这是一个很长的句子，", 8),
		"Supercalifragilistic expialidocious words keep wrapping around the frame again and again.",
		strings.Repeat("混合English文本！", 6),
	}
	canvases := []Canvas{{1080, 1920}, {1920, 1080}, {720, 1280}, {300, 600}}

	for _, text := range texts {
		for _, c := range canvases {
			m := NewMetrics(c)
			lines := Layout(AllocateTiming(Tokenize(text), nil, 10), c)
			for _, ln := range lines {
				var width float64
				for j, pt := range ln.Tokens {
					width += pt.Width
					if j > 0 {
						width += m.Gap(ln.Tokens[j-1].Token, pt.Token)
					}
				}
				assert.InDelta(t, width, ln.Width, 1e-9)
				if len(ln.Tokens) > 1 {
					assert.LessOrEqual(t, ln.Width, float64(m.MaxLineWidth), "canvas %s text %q", c, text)
				}
			}
		}
	}
}

func TestLayout_OversizedTokenOwnLine(t *testing.T) {
	c := Canvas{100, 1920}
	lines := Layout(AllocateTiming(Tokenize("OK 你"), nil, 2), c)
	require.Len(t, lines, 2)
	assert.Equal(t, "OK", lines[0].Tokens[0].Text)
	assert.Len(t, lines[0].Tokens, 1)
	assert.Equal(t, 105.0, lines[0].Width)
	assert.Len(t, lines[1].Tokens, 1)
}

func TestLayout_RowsCenteredVertically(t *testing.T) {
	c := Canvas{1080, 1920}
	m := NewMetrics(c)
	lines := Layout(AllocateTiming(Tokenize(strings.Repeat("字", 30)), nil, 5), c)
	require.Len(t, lines, 3)

	assert.Equal(t, float64(m.CenterY-m.LineHeight), lines[0].Tokens[0].Y)
	assert.Equal(t, float64(m.CenterY), lines[1].Tokens[0].Y)
	assert.Equal(t, float64(m.CenterY+m.LineHeight), lines[2].Tokens[0].Y)

	flat := Flatten(lines)
	assert.Len(t, flat, 30)
	for i := 1; i < len(flat); i++ {
		assert.GreaterOrEqual(t, flat[i].Row, flat[i-1].Row)
	}
}
