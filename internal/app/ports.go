package app

import (
	"context"

	"contest-grading-service/internal/domain"
)

// ContestWindow exposes a contest's lifecycle status and time bounds.
type ContestWindow interface {
	Contest(ctx context.Context, contestID string) (domain.Contest, error)
}

// QuestionProvider exposes a contest's question set.
type QuestionProvider interface {
	QuestionsByContest(ctx context.Context, contestID string) ([]domain.Question, error)
}

// Ledger persists graded submissions and results (in-memory, Postgres, etc).
// Implementations report connectivity failures wrapped with domain.Unavailable.
type Ledger interface {
	FindResult(ctx context.Context, userID, contestID string) (domain.Result, error)
	GetResult(ctx context.Context, resultID string) (domain.Result, error)
	ListResults(ctx context.Context, contestID string) ([]domain.Result, error)
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error)
	ListSubmissions(ctx context.Context, userID, contestID string) ([]domain.Submission, error)
	// CompetingAnswers returns other users' answers to a question.
	CompetingAnswers(ctx context.Context, contestID, questionID, excludeUserID string) ([]string, error)
	// ReplaceAttempt deletes any prior records for the pair, then writes the
	// new ones, atomically. It returns domain.ErrConflict when the prior
	// result changed or a concurrent attempt already inserted one.
	ReplaceAttempt(ctx context.Context, attempt domain.Attempt) error
	// ApplyGrade stores a re-graded submission together with its recalculated
	// result; result.Version is the version the caller read.
	ApplyGrade(ctx context.Context, submission domain.Submission, result domain.Result) error
	// UpdateResult compare-and-swaps on result.Version.
	UpdateResult(ctx context.Context, result domain.Result) error
}

// Locker serializes work per key. The returned unlock func is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
