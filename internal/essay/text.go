package essay

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Words splits text into lowercase words. Any rune that is not a letter or
// digit separates words; apostrophes are dropped so "don't" reads as "dont".
func Words(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))

	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
		default:
			flush()
		}
	}
	flush()
	return out
}

// Tokens is the word set of text.
func Tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(text) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets share nothing and score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// sentenceLengths returns the word count of every non-empty sentence.
// Sentences end at '.', '!', '?' or a line break.
func sentenceLengths(text string) []int {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '\n', '…':
			return true
		}
		return false
	})
	lengths := make([]int, 0, len(parts))
	for _, p := range parts {
		if n := len(Words(p)); n > 0 {
			lengths = append(lengths, n)
		}
	}
	return lengths
}

func avgWordLength(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	return float64(total) / float64(len(words))
}

// countPhrases counts phrase occurrences on word boundaries. Phrases must
// already be in normalized form (lowercase, single spaces, no apostrophes).
func countPhrases(words []string, phrases []string) int {
	joined := " " + strings.Join(words, " ") + " "
	total := 0
	for _, p := range phrases {
		total += strings.Count(joined, " "+p+" ")
	}
	return total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
