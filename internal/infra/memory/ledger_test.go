package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contest-grading-service/internal/domain"
)

func TestLedgerReplaceAttempt(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()

	first := attempt("r1", "s1", 4)
	if err := ledger.ReplaceAttempt(ctx, first); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := ledger.ReplaceAttempt(ctx, attempt("r-dup", "s-dup", 1)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate insert, got %v", err)
	}

	second := attempt("r2", "s2", 9)
	second.Replace = true
	second.PriorVersion = 1
	if err := ledger.ReplaceAttempt(ctx, second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	result, err := ledger.FindResult(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("find result: %v", err)
	}
	if result.ID != "r2" || result.TotalScore != 9 {
		t.Fatalf("expected replaced result, got %+v", result)
	}
	if _, err := ledger.GetResult(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected prior result deleted, got %v", err)
	}
	subs, _ := ledger.ListSubmissions(ctx, "u1", "c1")
	if len(subs) != 1 || subs[0].ID != "s2" {
		t.Fatalf("expected only new submission, got %+v", subs)
	}
}

func TestLedgerReplaceRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	_ = ledger.ReplaceAttempt(ctx, attempt("r1", "s1", 4))

	stale := attempt("r2", "s2", 9)
	stale.Replace = true
	stale.PriorVersion = 7
	if err := ledger.ReplaceAttempt(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLedgerUpdateResultCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	_ = ledger.ReplaceAttempt(ctx, attempt("r1", "s1", 4))

	result, _ := ledger.GetResult(ctx, "r1")
	result.Status = domain.ResultChecked
	if err := ledger.UpdateResult(ctx, result); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := ledger.UpdateResult(ctx, result); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}
	stored, _ := ledger.GetResult(ctx, "r1")
	if stored.Version != 2 || stored.Status != domain.ResultChecked {
		t.Fatalf("expected version 2 checked, got %+v", stored)
	}
}

func TestLedgerCompetingAnswersExcludesUser(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	_ = ledger.ReplaceAttempt(ctx, attempt("r1", "s1", 4))
	other := attempt("r2", "s2", 3)
	other.Result.UserID = "u2"
	other.Submissions[0].UserID = "u2"
	other.Submissions[0].AnswerText = "theirs"
	_ = ledger.ReplaceAttempt(ctx, other)

	answers, err := ledger.CompetingAnswers(ctx, "c1", "q1", "u1")
	if err != nil {
		t.Fatalf("competing answers: %v", err)
	}
	if len(answers) != 1 || answers[0] != "theirs" {
		t.Fatalf("expected only u2's answer, got %v", answers)
	}
}

func attempt(resultID, submissionID string, score int) domain.Attempt {
	visible := true
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	return domain.Attempt{
		Result: domain.Result{
			ID: resultID, UserID: "u1", ContestID: "c1", TotalScore: score, MaxScore: 10,
			CompletedAt: now, Status: domain.ResultActive, Visible: &visible, Version: 1,
		},
		Submissions: []domain.Submission{
			{ID: submissionID, UserID: "u1", ContestID: "c1", QuestionID: "q1", AnswerText: "mine", Score: score, CreatedAt: now},
		},
	}
}
