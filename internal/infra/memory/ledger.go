package memory

import (
	"context"
	"sort"
	"sync"

	"contest-grading-service/internal/domain"
)

// Ledger is an in-memory implementation of app.Ledger. Records are keyed by
// their generated IDs, with an index from (user, contest) to the result.
type Ledger struct {
	mu          sync.RWMutex
	results     map[string]domain.Result
	submissions map[string]domain.Submission
	byPair      map[string]string
}

func NewLedger() *Ledger {
	return &Ledger{
		results:     make(map[string]domain.Result),
		submissions: make(map[string]domain.Submission),
		byPair:      make(map[string]string),
	}
}

func (l *Ledger) FindResult(_ context.Context, userID, contestID string) (domain.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byPair[domain.PairKey(userID, contestID)]
	if !ok {
		return domain.Result{}, domain.NotFound("result", domain.PairKey(userID, contestID))
	}
	return cloneResult(l.results[id]), nil
}

func (l *Ledger) GetResult(_ context.Context, resultID string) (domain.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result, ok := l.results[resultID]
	if !ok {
		return domain.Result{}, domain.NotFound("result", resultID)
	}
	return cloneResult(result), nil
}

func (l *Ledger) ListResults(_ context.Context, contestID string) ([]domain.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range l.results {
		if r.ContestID == contestID {
			out = append(out, cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) GetSubmission(_ context.Context, submissionID string) (domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sub, ok := l.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.NotFound("submission", submissionID)
	}
	return sub, nil
}

func (l *Ledger) ListSubmissions(_ context.Context, userID, contestID string) ([]domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pairSubmissionsLocked(userID, contestID), nil
}

func (l *Ledger) CompetingAnswers(_ context.Context, contestID, questionID, excludeUserID string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var subs []domain.Submission
	for _, s := range l.submissions {
		if s.ContestID == contestID && s.QuestionID == questionID && s.UserID != excludeUserID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	answers := make([]string, 0, len(subs))
	for _, s := range subs {
		answers = append(answers, s.AnswerText)
	}
	return answers, nil
}

func (l *Ledger) ReplaceAttempt(_ context.Context, attempt domain.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := attempt.Result
	pair := domain.PairKey(r.UserID, r.ContestID)
	priorID, exists := l.byPair[pair]
	switch {
	case attempt.Replace && (!exists || l.results[priorID].Version != attempt.PriorVersion):
		return domain.ErrConflict
	case !attempt.Replace && exists:
		return domain.ErrConflict
	}

	// delete strictly before create
	if exists {
		delete(l.results, priorID)
		delete(l.byPair, pair)
	}
	for _, s := range l.pairSubmissionsLocked(r.UserID, r.ContestID) {
		delete(l.submissions, s.ID)
	}

	for _, s := range attempt.Submissions {
		l.submissions[s.ID] = s
	}
	l.results[r.ID] = cloneResult(r)
	l.byPair[pair] = r.ID
	return nil
}

func (l *Ledger) ApplyGrade(_ context.Context, submission domain.Submission, result domain.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.submissions[submission.ID]; !ok {
		return domain.NotFound("submission", submission.ID)
	}
	if err := l.casLocked(result); err != nil {
		return err
	}
	l.submissions[submission.ID] = submission
	return nil
}

func (l *Ledger) UpdateResult(_ context.Context, result domain.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.casLocked(result)
}

func (l *Ledger) casLocked(result domain.Result) error {
	current, ok := l.results[result.ID]
	if !ok {
		return domain.NotFound("result", result.ID)
	}
	if current.Version != result.Version {
		return domain.ErrConflict
	}
	result.Version++
	l.results[result.ID] = cloneResult(result)
	return nil
}

func (l *Ledger) pairSubmissionsLocked(userID, contestID string) []domain.Submission {
	out := make([]domain.Submission, 0)
	for _, s := range l.submissions {
		if s.UserID == userID && s.ContestID == contestID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

func cloneResult(r domain.Result) domain.Result {
	if r.Visible != nil {
		v := *r.Visible
		r.Visible = &v
	}
	return r
}
