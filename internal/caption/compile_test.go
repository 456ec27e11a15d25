package caption

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "😀🎉", "@#$%^&*"} {
		assert.Nil(t, Compile(Request{Text: text, Duration: 3}), "text %q", text)
	}
}

func TestCompile_Document(t *testing.T) {
	doc := Compile(Request{Text: "你好，世界。", Duration: 3, Canvas: DefaultCanvas, StyleID: "classic_yellow"})
	require.NotNil(t, doc)
	out := doc.String()

	assert.True(t, strings.HasPrefix(out, "[Script Info]\n"))
	assert.Contains(t, out, "PlayResX: 1080\nPlayResY: 1920\n")
	assert.Contains(t, out, "Style: Base,PingFang SC,105,&H00FFFFFF,&H00FFFFFF,&H00151515,&H80000000,1,0,0,0,100,100,0,0,1,3,2,5,0,0,0,1\n")
	assert.Contains(t, out, "Style: Active,PingFang SC,105,&H0000FFFF,&H0000FFFF,&H00151515,&H80000000,1,0,0,0,100,100,0,0,1,4,3,5,0,0,0,1\n")
	assert.Contains(t, out,
		`Dialogue: 1,0:00:00.00,0:00:00.48,Active,,0,0,0,,{\pos(361.5,1382.0)\t(0,150,\fscx130\fscy130)\t(150,300,\fscx100\fscy100)}你`+"\n")
	assert.Contains(t, out, `Dialogue: 0,0:00:00.48,0:00:03.00,Base,,0,0,0,,{\pos(361.5,1382.0)}你`+"\n")
	assert.Contains(t, out, `Dialogue: 0,0:00:00.00,0:00:03.00,Base,,0,0,0,,{\pos(516.5,1382.0)}，`+"\n")

	// Section order.
	i := strings.Index(out, "[V4+ Styles]")
	j := strings.Index(out, "[Events]")
	assert.True(t, i > 0 && j > i)
}

func TestCompile_Defaults(t *testing.T) {
	doc := Compile(Request{Text: "你好", Duration: 2, StyleID: "missing"})
	require.NotNil(t, doc)
	assert.Equal(t, DefaultCanvas, doc.Canvas)
	assert.Equal(t, DefaultFont, doc.Base.Font)
	assert.Equal(t, LookupPreset(DefaultPresetID).Active, doc.Active.Colour)
}

func TestCompile_LeadOffsetOverride(t *testing.T) {
	zero := time.Duration(0)
	doc := Compile(Request{Text: "好", Hints: []Hint{{Onset: 0.5}}, Duration: 1, LeadOffset: &zero})
	require.NotNil(t, doc)
	require.Len(t, doc.Cues, 2)
	assert.Equal(t, ms(500), doc.Cues[0].End)

	neg := -time.Second
	doc = Compile(Request{Text: "好", Hints: []Hint{{Onset: 0.5}}, Duration: 1, LeadOffset: &neg})
	require.NotNil(t, doc)
	assert.Equal(t, ms(500), doc.Cues[0].End, "negative lead is treated as zero")
}

func TestCompile_ExplodeAlpha(t *testing.T) {
	doc := Compile(Request{Text: "炸", Duration: 1, StyleID: "explode_shock"})
	require.NotNil(t, doc)
	assert.Contains(t, doc.String(), `\t(0,800,\fscx250\fscy250\alpha&HFF&)`)
	assert.Contains(t, doc.String(), "&H000000FF")
}

func TestCompile_Landscape(t *testing.T) {
	doc := Compile(Request{Text: "Hello world", Duration: 2, Canvas: ParseCanvas("1920x1080"), StyleID: "modern_white"})
	require.NotNil(t, doc)
	assert.Equal(t, 86, doc.Base.Size)
	for _, c := range doc.Cues {
		assert.Nil(t, c.Transform)
		assert.Equal(t, 885.0, c.Y)
	}
}

func TestDocumentWriteTo(t *testing.T) {
	doc := Compile(Request{Text: "你好", Duration: 1})
	require.NotNil(t, doc)

	var sb strings.Builder
	n, err := doc.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)
	assert.Equal(t, doc.String(), sb.String())
}
