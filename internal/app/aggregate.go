package app

import (
	"math"
	"time"

	"contest-grading-service/internal/domain"
)

// Aggregate sums graded submissions into a fresh, visible, active Result.
func Aggregate(subs []domain.Submission, maxScore int, now time.Time) domain.Result {
	visible := true
	result := domain.Result{
		MaxScore:    maxScore,
		CompletedAt: now,
		Status:      domain.ResultActive,
		Visible:     &visible,
	}
	return Recalculate(result, subs)
}

// Recalculate re-derives the total and percentage from the submissions.
func Recalculate(result domain.Result, subs []domain.Submission) domain.Result {
	total := 0
	for _, s := range subs {
		total += s.Score
	}
	result.TotalScore = total
	result.Percentage = Percentage(total, result.MaxScore)
	return result
}

// Percentage is total/max*100 rounded to two decimals, clamped to [0,100];
// 0 when maxScore is not positive.
func Percentage(total, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	pct := math.Round(float64(total)/float64(maxScore)*100*100) / 100
	return math.Max(0, math.Min(100, pct))
}
