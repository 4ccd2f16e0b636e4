package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"contest-grading-service/internal/app"
	"contest-grading-service/internal/domain"
	"contest-grading-service/internal/infra/memory"
)

func TestSubmitObjectiveEndToEnd(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	out, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"A"}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Score != 5 || out.MaxScore != 10 || out.Percentage != 50 {
		t.Fatalf("expected 5/10 at 50%%, got %+v", out)
	}
	if out.Replaced {
		t.Fatalf("first attempt should not replace")
	}
}

func TestSubmitMonthlyGate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service, ledger := newTestService(now)

	if _, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"B"}`)); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"B","q2":"B"}`))
	var pe *domain.PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if pe.CanResubmit || pe.Reason != domain.ReasonMonthlyLimit {
		t.Fatalf("unexpected policy error %+v", pe)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); !pe.NextAvailableDate.Equal(want) {
		t.Fatalf("expected next available %v, got %v", want, pe.NextAvailableDate)
	}
	if *pe.ExistingScore != 10 {
		t.Fatalf("expected existing score 10, got %d", *pe.ExistingScore)
	}

	result, _ := ledger.FindResult(ctx, "u1", "objective-1")
	if result.TotalScore != 10 {
		t.Fatalf("expected original result untouched, got %+v", result)
	}
}

func TestSubmitReplacesAcrossMonthBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	service, ledger := newTestService(now)
	service.WithClock(func() time.Time { return now })

	first, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"B"}`))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	now = time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)
	second, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"C"}`))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !second.Replaced || second.Score != 5 {
		t.Fatalf("expected replacement scoring 5, got %+v", second)
	}

	results, _ := ledger.ListResults(ctx, "objective-1")
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
	if results[0].ID == first.ResultID || results[0].ID != second.ResultID {
		t.Fatalf("expected the new result to replace the old one, got %+v", results[0])
	}
	subs, _ := ledger.ListSubmissions(ctx, "u1", "objective-1")
	total := 0
	for _, s := range subs {
		total += s.Score
	}
	if len(subs) != 2 || total != results[0].TotalScore {
		t.Fatalf("expected 2 submissions summing to result total, got %+v", subs)
	}
}

func TestSubmitRejectsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC))

	_, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A"}`))
	var pe *domain.PolicyError
	if !errors.As(err, &pe) || pe.Reason != domain.ReasonWindowClosed {
		t.Fatalf("expected window closed, got %v", err)
	}

	if _, err := service.Submit(ctx, alice(), "missing", answers(`{"q1":"A"}`)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitEssayUsesOtherUsersAsCompetitors(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	text := "Volcanoes form where tectonic plates pull apart or collide, letting magma rise."

	if _, err := service.Submit(ctx, alice(), "essay-1", domain.SubmitPayload{Essay: &text}); err != nil {
		t.Fatalf("alice essay: %v", err)
	}
	if _, err := service.Submit(ctx, bob(), "essay-1", domain.SubmitPayload{Answers: json.RawMessage(`{"essay":"` + text + `"}`)}); err != nil {
		t.Fatalf("bob essay: %v", err)
	}

	aliceSubs, _ := ledger.ListSubmissions(ctx, "u1", "essay-1")
	bobSubs, _ := ledger.ListSubmissions(ctx, "u2", "essay-1")
	if aliceSubs[0].Analysis.Originality != 1 {
		t.Fatalf("first essay should be fully original, got %v", aliceSubs[0].Analysis.Originality)
	}
	if bobSubs[0].Analysis.Originality != 0 {
		t.Fatalf("copied essay should have no originality, got %v", bobSubs[0].Analysis.Originality)
	}
	if bobSubs[0].Score >= aliceSubs[0].Score {
		t.Fatalf("copy should score lower: bob=%d alice=%d", bobSubs[0].Score, aliceSubs[0].Score)
	}

	if _, err := service.Submit(ctx, domain.Submitter{UserID: "u3"}, "essay-1", domain.SubmitPayload{}); err == nil {
		t.Fatalf("expected empty essay to be rejected")
	}
}

func TestResultDetailVisibility(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	text := "A short reflection on tides and the moon."
	_, _ = service.Submit(ctx, alice(), "essay-1", domain.SubmitPayload{Essay: &text})

	detail, err := service.ResultDetail(ctx, domain.Viewer{UserID: "u1", Role: domain.RoleCompetitor}, "essay-1", "u1")
	if err != nil {
		t.Fatalf("owner detail: %v", err)
	}
	if len(detail.Submissions) != 1 || detail.Submissions[0].Analysis == nil {
		t.Fatalf("expected analysis in owner detail, got %+v", detail)
	}

	if _, err := service.ResultDetail(ctx, domain.Viewer{UserID: "u2", Role: domain.RoleCompetitor}, "essay-1", "u1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for other competitor, got %v", err)
	}
	if _, err := service.ResultDetail(ctx, domain.Viewer{UserID: "g1", Role: domain.RoleGrader}, "essay-1", "u1"); err != nil {
		t.Fatalf("grader detail: %v", err)
	}
}

func TestRegradeRecalculatesResult(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	_, _ = service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"A"}`))

	subs, _ := ledger.ListSubmissions(ctx, "u1", "objective-1")
	var wrong domain.Submission
	for _, s := range subs {
		if s.QuestionID == "q2" {
			wrong = s
		}
	}
	grader := domain.Viewer{UserID: "g1", Role: domain.RoleGrader}
	flag := true

	if _, err := service.Regrade(ctx, domain.Viewer{UserID: "u1", Role: domain.RoleCompetitor}, wrong.ID, domain.RegradeInput{Score: 5}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for competitor, got %v", err)
	}
	var ve *domain.ValidationError
	if _, err := service.Regrade(ctx, grader, wrong.ID, domain.RegradeInput{Score: 6}); !errors.As(err, &ve) {
		t.Fatalf("expected validation error above points, got %v", err)
	}

	result, err := service.Regrade(ctx, grader, wrong.ID, domain.RegradeInput{Score: 3, Comment: "partial credit", FlagAI: &flag})
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if result.TotalScore != 8 || result.Percentage != 80 || result.Status != domain.ResultChecked {
		t.Fatalf("expected checked 8/10, got %+v", result)
	}

	stored, _ := ledger.GetSubmission(ctx, wrong.ID)
	if stored.Score != 3 || stored.GraderID != "g1" || stored.AIFlaggedBy != "g1" || stored.AIFlaggedAt == nil {
		t.Fatalf("expected grader fields stored, got %+v", stored)
	}
	persisted, _ := ledger.FindResult(ctx, "u1", "objective-1")
	if persisted.TotalScore != 8 || persisted.Version != result.Version {
		t.Fatalf("expected persisted recalculation, got %+v", persisted)
	}
}

func TestLeaderboardAndReview(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	service, _ := newTestService(now)
	service.WithClock(func() time.Time { return now })

	_, _ = service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"A"}`))
	now = now.Add(time.Hour)
	_, _ = service.Submit(ctx, bob(), "objective-1", answers(`{"q1":"A","q2":"B"}`))
	now = now.Add(time.Hour)
	_, _ = service.Submit(ctx, domain.Submitter{UserID: "u3", DisplayName: "Cara"}, "objective-1", answers(`{"q1":"A","q2":"A"}`))

	updates, cancel, err := service.Subscribe(ctx, "objective-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	lb := <-updates
	names := []string{lb.Entries[0].DisplayName, lb.Entries[1].DisplayName, lb.Entries[2].DisplayName}
	if names[0] != "Bob" || names[1] != "Alice" || names[2] != "Cara" {
		t.Fatalf("expected Bob, Alice, Cara; got %v", names)
	}

	hidden := false
	bobResult, err := service.ResultDetail(ctx, domain.Viewer{UserID: "g1", Role: domain.RoleOwner}, "objective-1", "u2")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if _, err := service.ReviewResult(ctx, domain.Viewer{UserID: "g1", Role: domain.RoleOwner}, bobResult.Result.ID, domain.ReviewInput{Visible: &hidden}); err != nil {
		t.Fatalf("review: %v", err)
	}

	update := <-updates
	if len(update.Entries) != 2 || update.Entries[0].DisplayName != "Alice" {
		t.Fatalf("expected Bob hidden from leaderboard, got %+v", update.Entries)
	}
}

func TestConcurrentSubmitsKeepOneResult(t *testing.T) {
	ctx := context.Background()
	service, ledger := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Submit(ctx, alice(), "objective-1", answers(`{"q1":"A","q2":"B"}`))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		var pe *domain.PolicyError
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &pe):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted attempt, got %d", accepted)
	}
	results, _ := ledger.ListResults(ctx, "objective-1")
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
}

func newTestService(now time.Time) (*app.GradingService, *memory.Ledger) {
	catalog := memory.NewContestCatalog(memory.NewStaticContestLoader(map[string]domain.Contest{
		"objective-1": {
			ID:        "objective-1",
			Type:      domain.ContestObjective,
			Status:    domain.ContestActive,
			StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
			Questions: []domain.Question{
				{ID: "q1", Type: domain.QuestionObjective, Points: 5, CorrectOption: "A", Order: 1},
				{ID: "q2", Type: domain.QuestionObjective, Points: 5, CorrectOption: "B", Order: 2},
			},
		},
		"essay-1": {
			ID:          "essay-1",
			Type:        domain.ContestEssay,
			Status:      domain.ContestPublished,
			StartTime:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndTime:     time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
			TotalPoints: 20,
			Questions: []domain.Question{
				{ID: "e1", Type: domain.QuestionEssay, Points: 20, Order: 1},
			},
		},
	}), 5*time.Minute)
	ledger := memory.NewLedger()
	service := app.NewGradingService(catalog, catalog, ledger, memory.NewKeyedLocker(), app.Config{
		Location: time.UTC,
		Guard:    app.GuardConfig{MaxConsecutiveFailures: 3, CoolDown: time.Second},
	})
	return service.WithClock(func() time.Time { return now }), ledger
}

func alice() domain.Submitter { return domain.Submitter{UserID: "u1", DisplayName: "Alice"} }
func bob() domain.Submitter   { return domain.Submitter{UserID: "u2", DisplayName: "Bob"} }

func answers(raw string) domain.SubmitPayload {
	return domain.SubmitPayload{Answers: json.RawMessage(raw)}
}

func TestStorageCoolDownFollowsServiceClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	loader := &flakyLoader{}
	catalog := memory.NewContestCatalog(loader, time.Minute)
	service := app.NewGradingService(catalog, catalog, memory.NewLedger(), memory.NewKeyedLocker(), app.Config{
		Location: time.UTC,
		Guard:    app.GuardConfig{MaxConsecutiveFailures: 2, CoolDown: 30 * time.Second},
	}).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if _, err := service.Leaderboard(ctx, "c1"); !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Fatalf("call %d: expected storage unavailable, got %v", i, err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected loader skipped while cooling down, got %d calls", loader.calls)
	}

	now = now.Add(time.Minute)
	_, _ = service.Leaderboard(ctx, "c1")
	if loader.calls != 3 {
		t.Fatalf("expected loader retried after cool-down, got %d calls", loader.calls)
	}
}

type flakyLoader struct {
	calls int
}

func (l *flakyLoader) LoadContest(context.Context, string) (domain.Contest, error) {
	l.calls++
	return domain.Contest{}, domain.Unavailable(errors.New("connection refused"))
}
