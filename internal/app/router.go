package app

import (
	"sort"
	"strings"

	"contest-grading-service/internal/domain"
	"contest-grading-service/internal/essay"
)

// CompetitorSource returns other users' answers to an essay question.
type CompetitorSource func(questionID string) ([]string, error)

// scoreFunc grades one answer to one question. The returned draft has no
// identity fields; the caller stamps user, contest and IDs.
type scoreFunc func(q domain.Question, answer string, competitors CompetitorSource) (domain.Submission, error)

// Router dispatches answers to the scorer for each question type.
type Router struct {
	scorers map[domain.QuestionType]scoreFunc
}

func NewRouter() *Router {
	return &Router{
		scorers: map[domain.QuestionType]scoreFunc{
			domain.QuestionObjective: scoreObjective,
			domain.QuestionEssay:     scoreEssay,
		},
	}
}

// Score grades a payload for a contest and returns in-memory submission drafts.
func (r *Router) Score(contest domain.Contest, questions []domain.Question, payload domain.SubmitPayload, competitors CompetitorSource) ([]domain.Submission, error) {
	questions = domain.SortQuestions(questions)

	switch contest.Type {
	case domain.ContestObjective:
		return r.scoreObjectiveContest(questions, payload)
	case domain.ContestEssay:
		return r.scoreEssayContest(contest, questions, payload, competitors)
	case domain.ContestMixed:
		return r.scoreMixedContest(questions, payload, competitors)
	}
	return nil, domain.Invalid("unknown contest type %q", contest.Type)
}

func (r *Router) scoreObjectiveContest(questions []domain.Question, payload domain.SubmitPayload) ([]domain.Submission, error) {
	answers, err := decodeAnswerMap(payload.Answers)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, domain.Invalid("answers must not be empty")
	}

	score := r.scorers[domain.QuestionObjective]
	subs := make([]domain.Submission, 0, len(answers))
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		sub, err := score(q, answer, nil)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (r *Router) scoreEssayContest(contest domain.Contest, questions []domain.Question, payload domain.SubmitPayload, competitors CompetitorSource) ([]domain.Submission, error) {
	text := resolveEssayText(payload)
	if text == "" {
		return nil, domain.Invalid("essay text is required")
	}

	for _, q := range questions {
		if q.Type != domain.QuestionEssay {
			continue
		}
		sub, err := r.scorers[domain.QuestionEssay](q, text, competitors)
		if err != nil {
			return nil, err
		}
		return []domain.Submission{sub}, nil
	}
	return nil, domain.NotFound("essay question", contest.ID)
}

func (r *Router) scoreMixedContest(questions []domain.Question, payload domain.SubmitPayload, competitors CompetitorSource) ([]domain.Submission, error) {
	answers, err := decodeAnswerMap(payload.Answers)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, q := range questions {
		if _, ok := answers[q.ID]; !ok {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, domain.MissingFields("answers for questions", missing)
	}

	subs := make([]domain.Submission, 0, len(questions))
	for _, q := range questions {
		score, ok := r.scorers[q.Type]
		if !ok {
			return nil, domain.Invalid("unsupported question type %q", q.Type)
		}
		sub, err := score(q, answers[q.ID], competitors)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func scoreObjective(q domain.Question, answer string, _ CompetitorSource) (domain.Submission, error) {
	sub := domain.Submission{
		QuestionID:   q.ID,
		QuestionType: domain.QuestionObjective,
		AnswerText:   answer,
	}
	if q.CorrectOption != "" && answer == q.CorrectOption {
		sub.Score = q.Points
		sub.IsCorrect = true
	}
	return sub, nil
}

func scoreEssay(q domain.Question, answer string, competitors CompetitorSource) (domain.Submission, error) {
	text := strings.TrimSpace(answer)
	var others []string
	if competitors != nil && text != "" {
		var err error
		if others, err = competitors(q.ID); err != nil {
			return domain.Submission{}, err
		}
	}

	analysis := essay.Score(text, q.Points, others)
	return domain.Submission{
		QuestionID:   q.ID,
		QuestionType: domain.QuestionEssay,
		AnswerText:   text,
		Score:        analysis.Score,
		IsCorrect:    analysis.Score > 0,
		AILikelihood: analysis.AILikelihood,
		Analysis:     &analysis,
	}, nil
}
