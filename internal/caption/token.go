package caption

import "unicode/utf8"

// Category classifies a display token.
type Category int

const (
	Ideograph Category = iota
	LatinRun
	Punctuation
)

func (c Category) String() string {
	switch c {
	case Ideograph:
		return "ideograph"
	case LatinRun:
		return "latin-run"
	case Punctuation:
		return "punctuation"
	default:
		return "unknown"
	}
}

// Token is one atomic display unit in reading order.
type Token struct {
	Text     string
	Category Category
}

// Weight drives the token's share of the speaking time.
func (t Token) Weight() float64 {
	switch t.Category {
	case Ideograph:
		return 1.0
	case Punctuation:
		return 0.2
	default:
		return max(0.5, float64(utf8.RuneCountInString(t.Text))*0.4)
	}
}

// Tokenize splits text into ideographs, latin runs and punctuation marks.
// Characters outside those classes are dropped. The ASCII double quote is a
// latin-run character, so it never forms a punctuation token on its own.
func Tokenize(text string) []Token {
	var tokens []Token
	runStart := -1

	flush := func(end int) {
		if runStart >= 0 {
			tokens = append(tokens, Token{Text: text[runStart:end], Category: LatinRun})
			runStart = -1
		}
	}

	for i, r := range text {
		switch {
		case isLatin(r):
			if runStart < 0 {
				runStart = i
			}
		case isIdeograph(r):
			flush(i)
			tokens = append(tokens, Token{Text: string(r), Category: Ideograph})
		case isPunctuation(r):
			flush(i)
			tokens = append(tokens, Token{Text: string(r), Category: Punctuation})
		default:
			flush(i)
		}
	}
	flush(len(text))
	return tokens
}

func isIdeograph(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FA5
}

func isLatin(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '\'', r == '"':
		return true
	}
	return false
}

func isPunctuation(r rune) bool {
	switch r {
	case '，', '。', '！', '？', '；', '：', '“', '”',
		',', '.', '!', '?', ';', ':':
		return true
	}
	return false
}
