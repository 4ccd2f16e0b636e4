package app

import (
	"fmt"
	"time"

	"contest-grading-service/internal/domain"
)

// Gate enforces one completed attempt per contest per calendar month.
type Gate struct {
	loc *time.Location
}

// NewGate evaluates calendar months in loc; nil means UTC.
func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc}
}

// Decision tells the caller whether to create fresh records or replace prior ones.
type Decision struct {
	Replace       bool
	PriorResultID string
	PriorVersion  int64
}

// Evaluate applies the rules in order: a result completed this month is
// final; otherwise the contest must be submittable and inside its window.
func (g *Gate) Evaluate(existing *domain.Result, contest domain.Contest, now time.Time) (Decision, error) {
	if existing != nil && g.sameMonth(existing.CompletedAt, now) {
		score := existing.TotalScore
		next := g.NextAvailable(now)
		return Decision{}, &domain.PolicyError{
			Reason:            domain.ReasonMonthlyLimit,
			Message:           fmt.Sprintf("contest already completed this month; next attempt available %s", next.Format("2006-01-02")),
			CanResubmit:       false,
			ExistingScore:     &score,
			NextAvailableDate: &next,
		}
	}

	if !contest.Status.Submittable() {
		return Decision{}, &domain.PolicyError{
			Reason:  domain.ReasonContestNotActive,
			Message: "contest not active",
		}
	}
	if !contest.InWindow(now) {
		return Decision{}, &domain.PolicyError{
			Reason:  domain.ReasonWindowClosed,
			Message: "window closed",
		}
	}

	if existing == nil {
		return Decision{}, nil
	}
	return Decision{
		Replace:       true,
		PriorResultID: existing.ID,
		PriorVersion:  existing.Version,
	}, nil
}

// NextAvailable is midnight on the first day of the month after now.
func (g *Gate) NextAvailable(now time.Time) time.Time {
	local := now.In(g.loc)
	return time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, g.loc)
}

func (g *Gate) sameMonth(a, b time.Time) bool {
	a, b = a.In(g.loc), b.In(g.loc)
	return a.Year() == b.Year() && a.Month() == b.Month()
}
