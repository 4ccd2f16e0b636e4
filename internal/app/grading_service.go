package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"contest-grading-service/internal/domain"
	"github.com/google/uuid"
)

const defaultLockTimeout = 5 * time.Second

// Config tunes a GradingService. Zero values fall back to defaults.
type Config struct {
	Location    *time.Location
	LockTimeout time.Duration
	Guard       GuardConfig
}

// GradingService contains the submission, grading and ranking use cases.
type GradingService struct {
	contests    ContestWindow
	questions   QuestionProvider
	ledger      Ledger
	locker      Locker
	router      *Router
	gate        *Gate
	guard       *StorageGuard
	hub         *LeaderboardHub
	lockTimeout time.Duration
	now         func() time.Time
}

func NewGradingService(contests ContestWindow, questions QuestionProvider, ledger Ledger, locker Locker, cfg Config) *GradingService {
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &GradingService{
		contests:    contests,
		questions:   questions,
		ledger:      ledger,
		locker:      locker,
		router:      NewRouter(),
		gate:        NewGate(cfg.Location),
		guard:       NewStorageGuard(cfg.Guard),
		hub:         NewLeaderboardHub(),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// WithClock is test-only for deterministic timestamps and cool-downs.
func (s *GradingService) WithClock(now func() time.Time) *GradingService {
	s.now = now
	s.guard.now = now
	return s
}

// Submit grades one attempt and persists it, replacing a prior-month attempt.
func (s *GradingService) Submit(ctx context.Context, who domain.Submitter, contestID string, payload domain.SubmitPayload) (domain.SubmitOutcome, error) {
	if strings.TrimSpace(who.UserID) == "" {
		return domain.SubmitOutcome{}, domain.Invalid("user id is required")
	}
	if payload.TimeSpent < 0 {
		return domain.SubmitOutcome{}, domain.Invalid("timeSpent must not be negative")
	}

	unlock, err := s.lock(ctx, who.UserID, contestID)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	defer unlock()

	contest, err := guarded(ctx, s.guard, func(ctx context.Context) (domain.Contest, error) {
		return s.contests.Contest(ctx, contestID)
	})
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	questions, err := guarded(ctx, s.guard, func(ctx context.Context) ([]domain.Question, error) {
		return s.questions.QuestionsByContest(ctx, contestID)
	})
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	existing, err := s.findResult(ctx, who.UserID, contestID)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}

	now := s.now()
	decision, err := s.gate.Evaluate(existing, contest, now)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}

	competitors := func(questionID string) ([]string, error) {
		return guarded(ctx, s.guard, func(ctx context.Context) ([]string, error) {
			return s.ledger.CompetingAnswers(ctx, contestID, questionID, who.UserID)
		})
	}
	subs, err := s.router.Score(contest, questions, payload, competitors)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}
	for i := range subs {
		subs[i].ID = uuid.NewString()
		subs[i].UserID = who.UserID
		subs[i].ContestID = contestID
		subs[i].CreatedAt = now
	}

	result := Aggregate(subs, contest.MaxScore(), now)
	result.ID = uuid.NewString()
	result.UserID = who.UserID
	result.DisplayName = who.DisplayName
	result.ContestID = contestID
	result.TimeSpent = payload.TimeSpent
	result.Version = 1

	attempt := domain.Attempt{
		Result:       result,
		Submissions:  subs,
		Replace:      decision.Replace,
		PriorVersion: decision.PriorVersion,
	}
	if err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.ledger.ReplaceAttempt(ctx, attempt)
	}); err != nil {
		return domain.SubmitOutcome{}, fault("replace attempt", err)
	}
	if decision.Replace {
		log.Printf("replaced result %s for user %s in contest %s", decision.PriorResultID, who.UserID, contestID)
	}

	s.publish(ctx, contestID)
	return domain.SubmitOutcome{
		ResultID:   result.ID,
		Score:      result.TotalScore,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage,
		Replaced:   decision.Replace,
	}, nil
}

// ResultDetail returns a result with its per-question analysis. Only the
// competitor and graders may read it.
func (s *GradingService) ResultDetail(ctx context.Context, viewer domain.Viewer, contestID, userID string) (domain.ResultDetail, error) {
	if viewer.UserID != userID && !viewer.Role.CanGrade() {
		return domain.ResultDetail{}, domain.ErrForbidden
	}
	result, err := guarded(ctx, s.guard, func(ctx context.Context) (domain.Result, error) {
		return s.ledger.FindResult(ctx, userID, contestID)
	})
	if err != nil {
		return domain.ResultDetail{}, err
	}
	subs, err := guarded(ctx, s.guard, func(ctx context.Context) ([]domain.Submission, error) {
		return s.ledger.ListSubmissions(ctx, userID, contestID)
	})
	if err != nil {
		return domain.ResultDetail{}, err
	}
	return domain.ResultDetail{Result: result, Submissions: subs}, nil
}

// Leaderboard ranks the publicly visible results of a contest.
func (s *GradingService) Leaderboard(ctx context.Context, contestID string) (domain.Leaderboard, error) {
	if _, err := guarded(ctx, s.guard, func(ctx context.Context) (domain.Contest, error) {
		return s.contests.Contest(ctx, contestID)
	}); err != nil {
		return domain.Leaderboard{}, err
	}
	return s.leaderboard(ctx, contestID)
}

// Subscribe returns a channel that receives leaderboard updates for a contest.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GradingService) Subscribe(ctx context.Context, contestID string) (<-chan domain.Leaderboard, func(), error) {
	// Register before reading so a submit landing in between is not lost.
	ch, cancel := s.hub.Subscribe(contestID)
	lb, err := s.Leaderboard(ctx, contestID)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	s.hub.Seed(ch, lb)
	return ch, cancel, nil
}

// Regrade applies a human grader's score to one submission and recalculates
// the owning result, which becomes checked.
func (s *GradingService) Regrade(ctx context.Context, grader domain.Viewer, submissionID string, in domain.RegradeInput) (domain.Result, error) {
	if !grader.Role.CanGrade() {
		return domain.Result{}, domain.ErrForbidden
	}
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return domain.Result{}, err
	}

	unlock, err := s.lock(ctx, sub.UserID, sub.ContestID)
	if err != nil {
		return domain.Result{}, err
	}
	defer unlock()

	// re-read under the lock: a resubmission may have replaced it
	if sub, err = s.getSubmission(ctx, submissionID); err != nil {
		return domain.Result{}, err
	}
	questions, err := guarded(ctx, s.guard, func(ctx context.Context) ([]domain.Question, error) {
		return s.questions.QuestionsByContest(ctx, sub.ContestID)
	})
	if err != nil {
		return domain.Result{}, err
	}
	points := -1
	for _, q := range questions {
		if q.ID == sub.QuestionID {
			points = q.Points
			break
		}
	}
	if points < 0 {
		return domain.Result{}, domain.NotFound("question", sub.QuestionID)
	}
	if in.Score < 0 || in.Score > points {
		return domain.Result{}, &domain.ValidationError{
			Message: "score must be between 0 and the question's points",
			Fields:  []string{"score"},
		}
	}

	now := s.now()
	sub.Score = in.Score
	sub.IsCorrect = in.Score == points
	sub.GraderID = grader.UserID
	sub.GradedAt = now
	sub.Comment = in.Comment
	if in.FlagAI != nil {
		if *in.FlagAI {
			sub.AIFlaggedBy = grader.UserID
			sub.AIFlaggedAt = &now
		} else {
			sub.AIFlaggedBy = ""
			sub.AIFlaggedAt = nil
		}
	}

	result, err := guarded(ctx, s.guard, func(ctx context.Context) (domain.Result, error) {
		return s.ledger.FindResult(ctx, sub.UserID, sub.ContestID)
	})
	if err != nil {
		return domain.Result{}, err
	}
	subs, err := guarded(ctx, s.guard, func(ctx context.Context) ([]domain.Submission, error) {
		return s.ledger.ListSubmissions(ctx, sub.UserID, sub.ContestID)
	})
	if err != nil {
		return domain.Result{}, err
	}
	for i := range subs {
		if subs[i].ID == sub.ID {
			subs[i] = sub
		}
	}

	updated := Recalculate(result, subs)
	updated.Status = domain.ResultChecked
	if err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.ledger.ApplyGrade(ctx, sub, updated)
	}); err != nil {
		return domain.Result{}, fault("apply grade", err)
	}
	updated.Version++

	s.publish(ctx, sub.ContestID)
	return updated, nil
}

// ReviewResult changes a result's moderation status and public visibility.
func (s *GradingService) ReviewResult(ctx context.Context, grader domain.Viewer, resultID string, in domain.ReviewInput) (domain.Result, error) {
	if !grader.Role.CanGrade() {
		return domain.Result{}, domain.ErrForbidden
	}
	result, err := s.getResult(ctx, resultID)
	if err != nil {
		return domain.Result{}, err
	}

	unlock, err := s.lock(ctx, result.UserID, result.ContestID)
	if err != nil {
		return domain.Result{}, err
	}
	defer unlock()

	if result, err = s.getResult(ctx, resultID); err != nil {
		return domain.Result{}, err
	}
	if in.Status != nil {
		result.Status = *in.Status
	}
	if in.Visible != nil {
		visible := *in.Visible
		result.Visible = &visible
	}
	if err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.ledger.UpdateResult(ctx, result)
	}); err != nil {
		return domain.Result{}, fault("update result", err)
	}
	result.Version++

	s.publish(ctx, result.ContestID)
	return result, nil
}

// lock serializes work on one (user, contest) pair. Losing the wait means a
// concurrent attempt holds the pair; the caller may retry.
func (s *GradingService) lock(ctx context.Context, userID, contestID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, domain.PairKey(userID, contestID))
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return unlock, nil
}

// fault passes classified errors through and marks anything else internal.
func fault(op string, err error) error {
	var (
		policy     *domain.PolicyError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &policy), errors.As(err, &validation),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &domain.InternalError{Op: op, Err: err}
}

func (s *GradingService) findResult(ctx context.Context, userID, contestID string) (*domain.Result, error) {
	result, err := guarded(ctx, s.guard, func(ctx context.Context) (domain.Result, error) {
		return s.ledger.FindResult(ctx, userID, contestID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GradingService) getSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return guarded(ctx, s.guard, func(ctx context.Context) (domain.Submission, error) {
		return s.ledger.GetSubmission(ctx, id)
	})
}

func (s *GradingService) getResult(ctx context.Context, id string) (domain.Result, error) {
	return guarded(ctx, s.guard, func(ctx context.Context) (domain.Result, error) {
		return s.ledger.GetResult(ctx, id)
	})
}

func (s *GradingService) leaderboard(ctx context.Context, contestID string) (domain.Leaderboard, error) {
	results, err := guarded(ctx, s.guard, func(ctx context.Context) ([]domain.Result, error) {
		return s.ledger.ListResults(ctx, contestID)
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		ContestID: contestID,
		Entries:   Rank(results),
		UpdatedAt: s.now(),
	}, nil
}

// publish pushes a fresh leaderboard to live subscribers; failures only log.
func (s *GradingService) publish(ctx context.Context, contestID string) {
	if s.hub.Subscribers(contestID) == 0 {
		return
	}
	lb, err := s.leaderboard(ctx, contestID)
	if err != nil {
		log.Printf("leaderboard refresh for contest %s failed: %v", contestID, err)
		return
	}
	s.hub.Publish(lb)
}
