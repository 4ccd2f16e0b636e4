package essay

import (
	"reflect"
	"strings"
	"testing"
)

const personalEssay = "I remember my first science fair. My hands shook while I explained the volcano to three judges, " +
	"and honestly I thought the whole thing would flop in front of everyone! Wow."

const templatedEssay = `Furthermore, technology plays a crucial role in society. Moreover, education plays a vital role in society.
In conclusion, it is worth noting that progress matters.`

func TestWordsNormalizesCaseAndPunctuation(t *testing.T) {
	got := Words("Hello, World! Don't  stop—now.")
	want := []string{"hello", "world", "dont", "stop", "now"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestJaccardProperties(t *testing.T) {
	a := Tokens("the quick brown fox")
	b := Tokens("the lazy brown dog")
	empty := Tokens("")

	if Jaccard(a, b) != Jaccard(b, a) {
		t.Fatalf("jaccard not symmetric: %v vs %v", Jaccard(a, b), Jaccard(b, a))
	}
	if got := Jaccard(a, a); got != 1.0 {
		t.Fatalf("expected self similarity 1.0, got %v", got)
	}
	if got := Jaccard(a, empty); got != 0 {
		t.Fatalf("expected 0 against empty set, got %v", got)
	}
	// {the, brown} shared out of {the, quick, brown, fox, lazy, dog}
	if got := Jaccard(a, b); got != 2.0/6.0 {
		t.Fatalf("expected 1/3, got %v", got)
	}
}

func TestScoreEmptyEssay(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		got := Score(text, 10, []string{"something else"})
		if got.Score != 0 || got.WordCount != 0 || got.Score100 != 0 {
			t.Fatalf("expected zero analysis for %q, got %+v", text, got)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	essays := []string{
		"word",
		personalEssay,
		templatedEssay,
		strings.Repeat("repeat ", 400),
		strings.Repeat("A considerably elaborate sentence demonstrating vocabulary. ", 80),
	}
	competitors := []string{personalEssay, "unrelated text entirely"}
	for _, e := range essays {
		for _, p := range []int{0, 1, 5, 10, 100} {
			got := Score(e, p, competitors)
			if got.Score < 0 || got.Score > p {
				t.Fatalf("score %d out of [0,%d] for %.20q", got.Score, p, e)
			}
			if got.Score100 < 0 || got.Score100 > 100 {
				t.Fatalf("score100 %v out of range", got.Score100)
			}
		}
	}
}

func TestScoreOriginalityWithoutCompetitors(t *testing.T) {
	for _, e := range []string{"a", personalEssay, templatedEssay} {
		if got := Score(e, 10, nil).Originality; got != 1.0 {
			t.Fatalf("expected originality 1.0, got %v", got)
		}
	}
}

func TestScoreCopiedEssayHasNoOriginality(t *testing.T) {
	got := Score(personalEssay, 10, []string{strings.ToUpper(personalEssay)})
	if got.Originality != 0 {
		t.Fatalf("expected originality 0 for a copy, got %v", got.Originality)
	}
	original := Score(personalEssay, 10, nil)
	if got.Score >= original.Score {
		t.Fatalf("copied essay should score lower: copy=%d original=%d", got.Score, original.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	competitors := []string{templatedEssay, "another answer about volcanoes"}
	first := Score(personalEssay, 20, competitors)
	second := Score(personalEssay, 20, competitors)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical analyses, got %+v and %+v", first, second)
	}
}

func TestAILikelihoodFlagsTemplatedText(t *testing.T) {
	got := Score(templatedEssay, 10, nil)
	if got.AILikelihood < 0.5 {
		t.Fatalf("expected high ai likelihood, got %v (%v)", got.AILikelihood, got.AISignals)
	}
	for _, want := range []string{SignalFormalTransitions, SignalGenericFiller} {
		found := false
		for _, s := range got.AISignals {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected signal %s in %v", want, got.AISignals)
		}
	}

	personal := Score(personalEssay, 10, nil)
	if personal.AILikelihood != 0 {
		t.Fatalf("expected no ai signals for personal essay, got %v", personal.AISignals)
	}
}

func TestRepetitionPenalty(t *testing.T) {
	if got := repetition(Words("volcano volcano volcano volcano volcano")); got != 1 {
		t.Fatalf("expected full repetition, got %v", got)
	}
	if got := repetition(Words(personalEssay)); got != 0 {
		t.Fatalf("expected no repetition for varied text, got %v", got)
	}
}

func TestBandIsMonotonicAroundPlateau(t *testing.T) {
	points := []float64{0.1, 0.2, 0.39, 0.4, 0.5, 0.6}
	for i := 1; i < len(points); i++ {
		if band(points[i], 0.4, 0.6, 0.8) < band(points[i-1], 0.4, 0.6, 0.8) {
			t.Fatalf("band decreased below plateau at %v", points[i])
		}
	}
	above := []float64{0.6, 0.7, 0.9, 1.0, 2.0}
	for i := 1; i < len(above); i++ {
		if band(above[i], 0.4, 0.6, 0.8) > band(above[i-1], 0.4, 0.6, 0.8) {
			t.Fatalf("band increased above plateau at %v", above[i])
		}
	}
}

func TestComplexityIsBounded(t *testing.T) {
	for _, e := range []string{"x", personalEssay, strings.Repeat("supercalifragilistic ", 3000)} {
		cx := measureComplexity(Words(e), sentenceLengths(e))
		if cx.score < 0 || cx.score > 1 {
			t.Fatalf("complexity %v out of range", cx.score)
		}
	}
}
