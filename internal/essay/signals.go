package essay

import (
	"math"
	"unicode/utf8"
)

// Signal names reported in EssayAnalysis.AISignals.
const (
	SignalFormalTransitions = "formal_transitions"
	SignalImpersonalVoice   = "impersonal_voice"
	SignalUniformSentences  = "uniform_sentences"
	SignalGenericFiller     = "generic_filler"
)

var transitionPhrases = []string{
	"furthermore", "moreover", "additionally", "consequently", "nevertheless",
	"nonetheless", "therefore", "thus", "hence", "ultimately", "overall",
	"in conclusion", "in summary", "to summarize", "in addition",
	"on the other hand", "it is important to note", "firstly", "secondly", "lastly",
}

var fillerPhrases = []string{
	"in todays world", "in todays fast paced world", "plays a crucial role",
	"plays a vital role", "plays an important role", "it is worth noting",
	"a wide range of", "in this essay", "delve into", "in the realm of",
	"a testament to", "it goes without saying", "at the end of the day",
	"when it comes to", "serves as a reminder", "in the modern era",
}

var firstPerson = map[string]struct{}{
	"i": {}, "me": {}, "my": {}, "mine": {}, "myself": {},
	"we": {}, "us": {}, "our": {}, "ours": {}, "ourselves": {},
	"im": {}, "ive": {},
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "his": {}, "how": {}, "its": {},
	"may": {}, "who": {}, "did": {}, "get": {}, "him": {}, "she": {}, "too": {},
	"use": {}, "that": {}, "this": {}, "with": {}, "from": {}, "they": {},
	"them": {}, "their": {}, "there": {}, "these": {}, "those": {}, "were": {},
	"been": {}, "being": {}, "which": {}, "what": {}, "when": {}, "where": {},
	"while": {}, "would": {}, "could": {}, "should": {}, "will": {}, "into": {},
	"than": {}, "then": {}, "also": {}, "just": {}, "more": {}, "most": {},
	"some": {}, "such": {}, "only": {}, "very": {}, "about": {}, "because": {},
	"each": {}, "other": {}, "does": {}, "your": {},
}

const (
	minWordsForVoice      = 30
	personalRatioFloor    = 0.01
	transitionDensity     = 0.3
	minTransitions        = 2
	uniformSentenceCV     = 0.25
	minSentencesForCV     = 3
	fillerThreshold       = 2
	signalWeight          = 0.25
	repetitionFloor       = 0.05
	repetitionCeiling     = 0.30
	minNonTrivialWordRune = 3
)

// aiLikelihood scores templated, machine-like writing. Each triggered
// indicator adds signalWeight.
func aiLikelihood(words []string, sentences []int) (float64, []string) {
	var signals []string

	if n := len(sentences); n > 0 {
		count := countPhrases(words, transitionPhrases)
		if count >= minTransitions && float64(count)/float64(n) >= transitionDensity {
			signals = append(signals, SignalFormalTransitions)
		}
	}

	if len(words) >= minWordsForVoice {
		personal := 0
		for _, w := range words {
			if _, ok := firstPerson[w]; ok {
				personal++
			}
		}
		if float64(personal)/float64(len(words)) < personalRatioFloor {
			signals = append(signals, SignalImpersonalVoice)
		}
	}

	if len(sentences) >= minSentencesForCV && variationCoefficient(sentences) < uniformSentenceCV {
		signals = append(signals, SignalUniformSentences)
	}

	if countPhrases(words, fillerPhrases) >= fillerThreshold {
		signals = append(signals, SignalGenericFiller)
	}

	return clamp01(float64(len(signals)) * signalWeight), signals
}

func variationCoefficient(lengths []int) float64 {
	if len(lengths) == 0 {
		return 0
	}
	mean := 0.0
	for _, l := range lengths {
		mean += float64(l)
	}
	mean /= float64(len(lengths))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, l := range lengths {
		d := float64(l) - mean
		variance += d * d
	}
	variance /= float64(len(lengths))
	return math.Sqrt(variance) / mean
}

// repetition maps the share of the most frequent non-trivial word onto [0,1].
func repetition(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int)
	top := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) < minNonTrivialWordRune {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		counts[w]++
		if counts[w] > top {
			top = counts[w]
		}
	}
	ratio := float64(top) / float64(len(words))
	return clamp01((ratio - repetitionFloor) / (repetitionCeiling - repetitionFloor))
}
