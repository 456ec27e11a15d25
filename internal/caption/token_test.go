package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Token
	}{
		{
			name: "ideographs_and_fullwidth_punctuation",
			in:   "你好，世界。",
			want: []Token{
				{"你", Ideograph}, {"好", Ideograph}, {"，", Punctuation},
				{"世", Ideograph}, {"界", Ideograph}, {"。", Punctuation},
			},
		},
		{
			name: "latin_runs_split_on_space",
			in:   "AI don't stop-motion 2024",
			want: []Token{
				{"AI", LatinRun}, {"don't", LatinRun}, {"stop-motion", LatinRun}, {"2024", LatinRun},
			},
		},
		{
			name: "mixed_scripts",
			in:   "用GPT写作！",
			want: []Token{
				{"用", Ideograph}, {"GPT", LatinRun}, {"写", Ideograph}, {"作", Ideograph}, {"！", Punctuation},
			},
		},
		{
			name: "halfwidth_punctuation",
			in:   "Hi, there.",
			want: []Token{
				{"Hi", LatinRun}, {",", Punctuation}, {"there", LatinRun}, {".", Punctuation},
			},
		},
		{
			name: "ascii_quote_joins_latin_run",
			in:   `"OK"`,
			want: []Token{{`"OK"`, LatinRun}},
		},
		{
			name: "curly_quotes_are_punctuation",
			in:   "“好”",
			want: []Token{{"“", Punctuation}, {"好", Ideograph}, {"”", Punctuation}},
		},
		{
			name: "unmatched_characters_dropped",
			in:   "😀 @#¥ ～",
			want: nil,
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTokenWeight(t *testing.T) {
	assert.Equal(t, 1.0, Token{"你", Ideograph}.Weight())
	assert.Equal(t, 0.2, Token{"。", Punctuation}.Weight())
	assert.Equal(t, 0.5, Token{"a", LatinRun}.Weight(), "short runs floor at 0.5")
	assert.InDelta(t, 2.0, Token{"hello", LatinRun}.Weight(), 1e-9)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "ideograph", Ideograph.String())
	assert.Equal(t, "latin-run", LatinRun.String())
	assert.Equal(t, "punctuation", Punctuation.String())
}
