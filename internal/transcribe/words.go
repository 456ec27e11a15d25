package transcribe

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/snarg/subforge/internal/caption"
)

var simulatedWordRe = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]|[a-zA-Z0-9\-']+`)

// SimulateWords spreads duration over the words of text in proportion to
// their character count. It stands in for recognition when none is available.
func SimulateWords(text string, duration float64) []Word {
	matches := simulatedWordRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	total := 0
	for _, m := range matches {
		total += utf8.RuneCountInString(m)
	}

	words := make([]Word, 0, len(matches))
	cur := 0.0
	for _, m := range matches {
		d := float64(utf8.RuneCountInString(m)) / float64(total) * duration
		words = append(words, Word{Word: m, Start: cur, End: cur + d})
		cur += d
	}
	return words
}

// Hints converts recognized words to caption timing hints, dropping words
// that are blank after trimming.
func Hints(words []Word) []caption.Hint {
	var hints []caption.Hint
	for _, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		hints = append(hints, caption.Hint{Onset: w.Start, Text: text})
	}
	return hints
}
