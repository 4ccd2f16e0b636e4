package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contest-grading-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id"`
	DisplayName string    `bun:"display_name"`
	ContestID   string    `bun:"contest_id"`
	TotalScore  int       `bun:"total_score"`
	MaxScore    int       `bun:"max_score"`
	Percentage  float64   `bun:"percentage"`
	CompletedAt time.Time `bun:"completed_at"`
	TimeSpent   int       `bun:"time_spent"`
	Visible     *bool     `bun:"visible"`
	Status      string    `bun:"status"`
	Version     int64     `bun:"version"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID           string                `bun:"id,pk"`
	UserID       string                `bun:"user_id"`
	ContestID    string                `bun:"contest_id"`
	QuestionID   string                `bun:"question_id"`
	QuestionType string                `bun:"question_type"`
	AnswerText   string                `bun:"answer_text"`
	Score        int                   `bun:"score"`
	IsCorrect    bool                  `bun:"is_correct"`
	GraderID     string                `bun:"grader_id"`
	GradedAt     time.Time             `bun:"graded_at,nullzero"`
	Comment      string                `bun:"comment"`
	AILikelihood float64               `bun:"ai_likelihood"`
	AIFlaggedBy  string                `bun:"ai_flagged_by"`
	AIFlaggedAt  *time.Time            `bun:"ai_flagged_at"`
	Analysis     *domain.EssayAnalysis `bun:"analysis,type:jsonb"`
	CreatedAt    time.Time             `bun:"created_at"`
}

// resultColumns are rewritten by a grade or review; identity columns never change.
var resultColumns = []string{"total_score", "max_score", "percentage", "visible", "status", "version"}

// Ledger persists results and submissions through bun.
type Ledger struct {
	db *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) FindResult(ctx context.Context, userID, contestID string) (domain.Result, error) {
	var row resultRow
	err := l.db.NewSelect().Model(&row).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.NotFound("result", domain.PairKey(userID, contestID))
	}
	if err != nil {
		return domain.Result{}, storeError("find result", err)
	}
	return row.toDomain(), nil
}

func (l *Ledger) GetResult(ctx context.Context, resultID string) (domain.Result, error) {
	var row resultRow
	err := l.db.NewSelect().Model(&row).Where("id = ?", resultID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.NotFound("result", resultID)
	}
	if err != nil {
		return domain.Result{}, storeError("get result", err)
	}
	return row.toDomain(), nil
}

func (l *Ledger) ListResults(ctx context.Context, contestID string) ([]domain.Result, error) {
	var rows []resultRow
	if err := l.db.NewSelect().Model(&rows).Where("contest_id = ?", contestID).Order("id").Scan(ctx); err != nil {
		return nil, storeError("list results", err)
	}
	out := make([]domain.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (l *Ledger) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	var row submissionRow
	err := l.db.NewSelect().Model(&row).Where("id = ?", submissionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.NotFound("submission", submissionID)
	}
	if err != nil {
		return domain.Submission{}, storeError("get submission", err)
	}
	return row.toDomain(), nil
}

func (l *Ledger) ListSubmissions(ctx context.Context, userID, contestID string) ([]domain.Submission, error) {
	var rows []submissionRow
	err := l.db.NewSelect().Model(&rows).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Order("question_id").
		Scan(ctx)
	if err != nil {
		return nil, storeError("list submissions", err)
	}
	out := make([]domain.Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (l *Ledger) CompetingAnswers(ctx context.Context, contestID, questionID, excludeUserID string) ([]string, error) {
	var answers []string
	err := l.db.NewSelect().Model((*submissionRow)(nil)).
		Column("answer_text").
		Where("contest_id = ? AND question_id = ? AND user_id <> ?", contestID, questionID, excludeUserID).
		Order("id").
		Scan(ctx, &answers)
	if err != nil {
		return nil, storeError("competing answers", err)
	}
	return answers, nil
}

func (l *Ledger) ReplaceAttempt(ctx context.Context, attempt domain.Attempt) error {
	r := attempt.Result
	return l.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if attempt.Replace {
			res, err := tx.NewDelete().Model((*resultRow)(nil)).
				Where("user_id = ? AND contest_id = ? AND version = ?", r.UserID, r.ContestID, attempt.PriorVersion).
				Exec(ctx)
			if err != nil {
				return storeError("delete prior result", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return domain.ErrConflict
			}
		}
		if _, err := tx.NewDelete().Model((*submissionRow)(nil)).
			Where("user_id = ? AND contest_id = ?", r.UserID, r.ContestID).
			Exec(ctx); err != nil {
			return storeError("delete prior submissions", err)
		}

		row := newResultRow(r)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return storeError("insert result", err)
		}
		if len(attempt.Submissions) == 0 {
			return nil
		}
		rows := make([]submissionRow, 0, len(attempt.Submissions))
		for _, s := range attempt.Submissions {
			rows = append(rows, newSubmissionRow(s))
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return storeError("insert submissions", err)
		}
		return nil
	})
}

func (l *Ledger) ApplyGrade(ctx context.Context, submission domain.Submission, result domain.Result) error {
	return l.inTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		row := newSubmissionRow(submission)
		res, err := tx.NewUpdate().Model(&row).
			Column("score", "is_correct", "grader_id", "graded_at", "comment", "ai_flagged_by", "ai_flagged_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return storeError("update submission", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("submission", submission.ID)
		}
		return compareAndSwap(ctx, tx, result)
	})
}

func (l *Ledger) UpdateResult(ctx context.Context, result domain.Result) error {
	return compareAndSwap(ctx, l.db, result)
}

// inTx runs fn in a transaction. Errors from fn pass through untouched; only
// begin and commit failures are classified here.
func (l *Ledger) inTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin tx", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit tx", err)
	}
	return nil
}

// compareAndSwap writes result only while the stored version still equals
// result.Version, bumping it by one.
func compareAndSwap(ctx context.Context, db bun.IDB, result domain.Result) error {
	row := newResultRow(result)
	row.Version = result.Version + 1
	res, err := db.NewUpdate().Model(&row).
		Column(resultColumns...).
		Where("id = ? AND version = ?", result.ID, result.Version).
		Exec(ctx)
	if err != nil {
		return storeError("update result", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := db.NewSelect().Model((*resultRow)(nil)).Where("id = ?", result.ID).Exists(ctx)
	if err != nil {
		return storeError("check result", err)
	}
	if !exists {
		return domain.NotFound("result", result.ID)
	}
	return domain.ErrConflict
}

// storeError maps driver failures: constraint violations mean a concurrent
// attempt won, other server errors are faults, the rest is unavailability.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		if pgErr.IntegrityViolation() {
			return domain.ErrConflict
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, domain.Unavailable(err))
}

func newResultRow(r domain.Result) resultRow {
	return resultRow{
		ID:          r.ID,
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		ContestID:   r.ContestID,
		TotalScore:  r.TotalScore,
		MaxScore:    r.MaxScore,
		Percentage:  r.Percentage,
		CompletedAt: r.CompletedAt,
		TimeSpent:   r.TimeSpent,
		Visible:     r.Visible,
		Status:      string(r.Status),
		Version:     r.Version,
	}
}

func (row resultRow) toDomain() domain.Result {
	return domain.Result{
		ID:          row.ID,
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		ContestID:   row.ContestID,
		TotalScore:  row.TotalScore,
		MaxScore:    row.MaxScore,
		Percentage:  row.Percentage,
		CompletedAt: row.CompletedAt,
		TimeSpent:   row.TimeSpent,
		Visible:     row.Visible,
		Status:      domain.ResultStatus(row.Status),
		Version:     row.Version,
	}
}

func newSubmissionRow(s domain.Submission) submissionRow {
	return submissionRow{
		ID:           s.ID,
		UserID:       s.UserID,
		ContestID:    s.ContestID,
		QuestionID:   s.QuestionID,
		QuestionType: string(s.QuestionType),
		AnswerText:   s.AnswerText,
		Score:        s.Score,
		IsCorrect:    s.IsCorrect,
		GraderID:     s.GraderID,
		GradedAt:     s.GradedAt,
		Comment:      s.Comment,
		AILikelihood: s.AILikelihood,
		AIFlaggedBy:  s.AIFlaggedBy,
		AIFlaggedAt:  s.AIFlaggedAt,
		Analysis:     s.Analysis,
		CreatedAt:    s.CreatedAt,
	}
}

func (row submissionRow) toDomain() domain.Submission {
	return domain.Submission{
		ID:           row.ID,
		UserID:       row.UserID,
		ContestID:    row.ContestID,
		QuestionID:   row.QuestionID,
		QuestionType: domain.QuestionType(row.QuestionType),
		AnswerText:   row.AnswerText,
		Score:        row.Score,
		IsCorrect:    row.IsCorrect,
		GraderID:     row.GraderID,
		GradedAt:     row.GradedAt,
		Comment:      row.Comment,
		AILikelihood: row.AILikelihood,
		AIFlaggedBy:  row.AIFlaggedBy,
		AIFlaggedAt:  row.AIFlaggedAt,
		Analysis:     row.Analysis,
		CreatedAt:    row.CreatedAt,
	}
}
