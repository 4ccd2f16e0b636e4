package app

import (
	"fmt"
	"sort"

	"contest-grading-service/internal/domain"
)

// Rank filters results to the publicly viewable ones and orders them by
// score (desc), then completion time (earlier first), then user ID.
func Rank(results []domain.Result) []domain.LeaderboardEntry {
	public := make([]domain.Result, 0, len(results))
	for _, r := range results {
		if publiclyVisible(r) {
			public = append(public, r)
		}
	}

	sort.SliceStable(public, func(i, j int) bool {
		if public[i].TotalScore != public[j].TotalScore {
			return public[i].TotalScore > public[j].TotalScore
		}
		if !public[i].CompletedAt.Equal(public[j].CompletedAt) {
			return public[i].CompletedAt.Before(public[j].CompletedAt)
		}
		return public[i].UserID < public[j].UserID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(public))
	for i, r := range public {
		rank := i + 1
		position, medal := positionLabel(rank)
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        rank,
			Position:    position,
			Medal:       medal,
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Score:       r.TotalScore,
			MaxScore:    r.MaxScore,
			Percentage:  r.Percentage,
			CompletedAt: r.CompletedAt,
		})
	}
	return entries
}

// publiclyVisible keeps the historical filter as-is:
// (status == checked && visible == true) || visible != false.
// A nil Visible has never been hidden and counts as visible.
func publiclyVisible(r domain.Result) bool {
	visibleTrue := r.Visible != nil && *r.Visible
	notFalse := r.Visible == nil || *r.Visible
	return (r.Status == domain.ResultChecked && visibleTrue) || notFalse
}

func positionLabel(rank int) (string, string) {
	switch rank {
	case 1:
		return "1st Place", "gold"
	case 2:
		return "2nd Place", "silver"
	case 3:
		return "3rd Place", "bronze"
	}
	return fmt.Sprintf("%dth Place", rank), ""
}
