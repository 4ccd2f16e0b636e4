package essay

// Target plateaus for the complexity bands. Inside a plateau a metric
// scores 1; it ramps up linearly below and decays linearly above.
const (
	richnessLow, richnessHigh, richnessFalloff = 0.4, 0.6, 0.8
	sentenceLow, sentenceHigh, sentenceFalloff = 12.0, 24.0, 36.0
	wordLow, wordHigh, wordFalloff             = 4.5, 6.5, 5.0

	shortEssayWords = 50
	longEssayWords  = 2000
	longEssayDecay  = 8000.0
	lengthFloor     = 0.5
)

type complexity struct {
	richness    float64
	avgSentence float64
	avgWord     float64
	score       float64
}

func measureComplexity(words []string, sentences []int) complexity {
	if len(words) == 0 {
		return complexity{}
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	cx := complexity{
		richness: float64(len(unique)) / float64(len(words)),
		avgWord:  avgWordLength(words),
	}
	if len(sentences) > 0 {
		total := 0
		for _, n := range sentences {
			total += n
		}
		cx.avgSentence = float64(total) / float64(len(sentences))
	}

	raw := 0.4*band(cx.richness, richnessLow, richnessHigh, richnessFalloff) +
		0.3*band(cx.avgSentence, sentenceLow, sentenceHigh, sentenceFalloff) +
		0.3*band(cx.avgWord, wordLow, wordHigh, wordFalloff)
	cx.score = clamp01(raw * lengthFactor(len(words)))
	return cx
}

func band(v, low, high, falloff float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v < low:
		return v / low
	case v <= high:
		return 1
	default:
		return clamp01(1 - (v-high)/falloff)
	}
}

// lengthFactor penalizes essays that are extremely short or extremely long.
func lengthFactor(words int) float64 {
	switch {
	case words < shortEssayWords:
		return lengthFloor + (1-lengthFloor)*float64(words)/shortEssayWords
	case words > longEssayWords:
		f := 1 - float64(words-longEssayWords)/longEssayDecay
		if f < lengthFloor {
			return lengthFloor
		}
		return f
	}
	return 1
}
