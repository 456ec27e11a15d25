package pipeline

import (
	"regexp"
	"strings"
)

var (
	sentenceRe   = regexp.MustCompile(`[^。！？；\n\r]+[。！？；\n\r]*[”"’']?`)
	meaningfulRe = regexp.MustCompile(`[\x{4e00}-\x{9fa5}a-zA-Z0-9]`)
)

// SplitScenes breaks a script into one scene per sentence. Sentences with no
// ideograph or ASCII alphanumeric are dropped; if nothing survives the whole
// trimmed script becomes a single scene.
func SplitScenes(text string) []string {
	var scenes []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if !meaningfulRe.MatchString(s) {
			continue
		}
		scenes = append(scenes, strings.TrimSpace(s))
	}
	if len(scenes) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return scenes
}
