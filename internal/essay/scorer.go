// Package essay scores free-text answers with explainable text heuristics.
// Scoring is pure: the same essay, point value and competitor snapshot
// always produce the same analysis.
package essay

import (
	"math"
	"strings"

	"contest-grading-service/internal/domain"
)

// Component weights on the 0..100 scale.
const (
	originalityWeight = 40.0
	complexityWeight  = 30.0
	aiWeight          = 20.0
	repetitionWeight  = 10.0
)

// Score computes the composite essay score. competitors are other users'
// answers to the same question and are only read.
func Score(text string, maxPoints int, competitors []string) domain.EssayAnalysis {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.EssayAnalysis{}
	}
	if maxPoints < 0 {
		maxPoints = 0
	}

	words := Words(text)
	sentences := sentenceLengths(text)

	originality := Originality(text, competitors)
	cx := measureComplexity(words, sentences)
	ai, signals := aiLikelihood(words, sentences)
	rep := repetition(words)

	score100 := originality*originalityWeight +
		cx.score*complexityWeight +
		(aiWeight - ai*aiWeight) +
		(repetitionWeight - rep*repetitionWeight)
	score100 = math.Max(0, math.Min(100, score100))

	score := int(math.Round(score100 / 100 * float64(maxPoints)))
	if score > maxPoints {
		score = maxPoints
	}
	if score < 0 {
		score = 0
	}

	return domain.EssayAnalysis{
		Score:             score,
		Score100:          score100,
		Originality:       originality,
		Complexity:        cx.score,
		Richness:          cx.richness,
		AvgSentenceLength: cx.avgSentence,
		AvgWordLength:     cx.avgWord,
		AILikelihood:      ai,
		AISignals:         signals,
		Repetition:        rep,
		WordCount:         len(words),
	}
}

// Originality is 1 minus the highest Jaccard similarity to any competitor.
func Originality(text string, competitors []string) float64 {
	own := Tokens(text)
	highest := 0.0
	for _, other := range competitors {
		if sim := Jaccard(own, Tokens(other)); sim > highest {
			highest = sim
		}
	}
	return 1 - highest
}
