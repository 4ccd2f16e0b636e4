package postgres

import (
	"context"
	"errors"
	"fmt"

	"contest-grading-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContestLoader loads contests and their questions from Postgres.
type ContestLoader struct {
	pool *pgxpool.Pool
}

func NewContestLoader(pool *pgxpool.Pool) *ContestLoader {
	return &ContestLoader{pool: pool}
}

func (l *ContestLoader) LoadContest(ctx context.Context, contestID string) (domain.Contest, error) {
	var (
		contest              domain.Contest
		contestType, status string
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, type, status, start_time, end_time, total_points
		FROM contests WHERE id=$1`, contestID,
	).Scan(&contest.ID, &contest.Title, &contestType, &status, &contest.StartTime, &contest.EndTime, &contest.TotalPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.NotFound("contest", contestID)
	}
	if err != nil {
		return domain.Contest{}, loadError("load contest", err)
	}
	if contest.Type, err = domain.ParseContestType(contestType); err != nil {
		return domain.Contest{}, fmt.Errorf("contest %s: %w", contestID, err)
	}
	contest.Status = domain.ContestStatus(status)

	rows, err := l.pool.Query(ctx, `
		SELECT id, contest_id, type, points, correct_option, sort_order, prompt
		FROM questions WHERE contest_id=$1
		ORDER BY sort_order, id`, contestID)
	if err != nil {
		return domain.Contest{}, loadError("load questions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q            domain.Question
			questionType string
		)
		if err := rows.Scan(&q.ID, &q.ContestID, &questionType, &q.Points, &q.CorrectOption, &q.Order, &q.Prompt); err != nil {
			return domain.Contest{}, loadError("scan question", err)
		}
		if q.Type, err = domain.ParseQuestionType(questionType); err != nil {
			return domain.Contest{}, fmt.Errorf("question %s: %w", q.ID, err)
		}
		contest.Questions = append(contest.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Contest{}, loadError("load questions", err)
	}
	return contest, nil
}

// loadError keeps server-side SQL errors as faults and treats everything
// else (dial, timeout, closed pool) as the store being unavailable.
func loadError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, domain.Unavailable(err))
}
