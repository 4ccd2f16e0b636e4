package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// QuestionType is the closed set of question kinds a contest can hold.
type QuestionType string

const (
	QuestionObjective QuestionType = "objective"
	QuestionEssay     QuestionType = "essay"
)

// ParseQuestionType rejects anything outside the known variants.
func ParseQuestionType(raw string) (QuestionType, error) {
	switch QuestionType(raw) {
	case QuestionObjective, QuestionEssay:
		return QuestionType(raw), nil
	}
	return "", Invalid("unknown question type %q", raw)
}

// ContestType declares how a contest's answers are routed to scorers.
type ContestType string

const (
	ContestObjective ContestType = "objective"
	ContestEssay     ContestType = "essay"
	ContestMixed     ContestType = "mixed"
)

func ParseContestType(raw string) (ContestType, error) {
	switch ContestType(raw) {
	case ContestObjective, ContestEssay, ContestMixed:
		return ContestType(raw), nil
	}
	return "", Invalid("unknown contest type %q", raw)
}

// ContestStatus is the lifecycle state of a contest.
type ContestStatus string

const (
	ContestDraft     ContestStatus = "draft"
	ContestPublished ContestStatus = "published"
	ContestActive    ContestStatus = "active"
	ContestClosed    ContestStatus = "closed"
	ContestArchived  ContestStatus = "archived"
)

// Submittable reports whether the contest accepts attempts at all.
func (s ContestStatus) Submittable() bool {
	return s == ContestActive || s == ContestPublished
}

// ResultStatus tracks moderation of a contest result.
type ResultStatus string

const (
	ResultActive      ResultStatus = "active"
	ResultBlocked     ResultStatus = "blocked"
	ResultPending     ResultStatus = "pending"
	ResultUnderReview ResultStatus = "under-review"
	ResultChecked     ResultStatus = "checked"
)

func ParseResultStatus(raw string) (ResultStatus, error) {
	switch ResultStatus(raw) {
	case ResultActive, ResultBlocked, ResultPending, ResultUnderReview, ResultChecked:
		return ResultStatus(raw), nil
	}
	return "", Invalid("unknown result status %q", raw)
}

// Role is the caller's role as asserted by the upstream gateway.
type Role string

const (
	RoleCompetitor Role = "competitor"
	RoleGrader     Role = "grader"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
)

// CanGrade reports whether the role may re-grade and see any competitor's analysis.
func (r Role) CanGrade() bool {
	return r == RoleGrader || r == RoleOwner || r == RoleAdmin
}

// Question is read-only once its contest is live.
type Question struct {
	ID            string       `json:"id"`
	ContestID     string       `json:"contestId"`
	Type          QuestionType `json:"type"`
	Points        int          `json:"points"`
	CorrectOption string       `json:"correctOption,omitempty"`
	Order         int          `json:"order"`
	Prompt        string       `json:"prompt,omitempty"`
}

// Contest carries the lifecycle window and question set of a contest.
type Contest struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Type        ContestType   `json:"type"`
	Status      ContestStatus `json:"status"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	TotalPoints int           `json:"totalPoints"`
	Questions   []Question    `json:"questions"`
}

// MaxScore is the declared total, or the sum of question points when none is declared.
func (c Contest) MaxScore() int {
	if c.TotalPoints > 0 {
		return c.TotalPoints
	}
	total := 0
	for _, q := range c.Questions {
		total += q.Points
	}
	return total
}

// InWindow reports whether now falls inside [StartTime, EndTime].
func (c Contest) InWindow(now time.Time) bool {
	return !now.Before(c.StartTime) && !now.After(c.EndTime)
}

// SortQuestions returns a copy ordered by Order, then ID.
func SortQuestions(questions []Question) []Question {
	sorted := make([]Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// EssayAnalysis is the explainable breakdown behind an essay score.
type EssayAnalysis struct {
	Score             int      `json:"score"`
	Score100          float64  `json:"score100"`
	Originality       float64  `json:"originality"`
	Complexity        float64  `json:"complexity"`
	Richness          float64  `json:"richness"`
	AvgSentenceLength float64  `json:"avgSentenceLength"`
	AvgWordLength     float64  `json:"avgWordLength"`
	AILikelihood      float64  `json:"aiLikelihood"`
	AISignals         []string `json:"aiSignals,omitempty"`
	Repetition        float64  `json:"repetition"`
	WordCount         int      `json:"wordCount"`
}

// Submission is one graded answer per (user, contest, question).
type Submission struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	ContestID    string         `json:"contestId"`
	QuestionID   string         `json:"questionId"`
	QuestionType QuestionType   `json:"questionType"`
	AnswerText   string         `json:"answerText"`
	Score        int            `json:"score"`
	IsCorrect    bool           `json:"isCorrect"`
	GraderID     string         `json:"graderId,omitempty"`
	GradedAt     time.Time      `json:"gradedAt"`
	Comment      string         `json:"comment,omitempty"`
	AILikelihood float64        `json:"aiLikelihood"`
	AIFlaggedBy  string         `json:"aiFlaggedBy,omitempty"`
	AIFlaggedAt  *time.Time     `json:"aiFlaggedAt,omitempty"`
	Analysis     *EssayAnalysis `json:"analysis,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Result is the single aggregate per (user, contest).
type Result struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	DisplayName string       `json:"displayName"`
	ContestID   string       `json:"contestId"`
	TotalScore  int          `json:"totalScore"`
	MaxScore    int          `json:"maxScore"`
	Percentage  float64      `json:"percentage"`
	CompletedAt time.Time    `json:"completedAt"`
	TimeSpent   int          `json:"timeSpent"`
	Visible     *bool        `json:"visible,omitempty"` // nil: never explicitly hidden
	Status      ResultStatus `json:"status"`
	Version     int64        `json:"version"`
}

// Attempt is what the ledger persists for one accepted submission.
// When Replace is set, the prior Result at PriorVersion and every prior
// Submission for the pair are removed before the new records are written.
type Attempt struct {
	Result       Result
	Submissions  []Submission
	Replace      bool
	PriorVersion int64
}

// SubmitPayload is the raw request body. Essay text may arrive under any
// of several aliased fields.
type SubmitPayload struct {
	Essay     *string         `json:"essay,omitempty"`
	Content   *string         `json:"content,omitempty"`
	Answer    *string         `json:"answer,omitempty"`
	Answers   json.RawMessage `json:"answers,omitempty"`
	TimeSpent int             `json:"timeSpent,omitempty"`
}

// Submitter identifies who is submitting.
type Submitter struct {
	UserID      string
	DisplayName string
}

// Viewer identifies who is reading or moderating.
type Viewer struct {
	UserID string
	Role   Role
}

// SubmitOutcome is returned to the competitor after grading.
type SubmitOutcome struct {
	ResultID   string  `json:"resultId"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Replaced   bool    `json:"replaced"`
}

// RegradeInput is a human grader's override for one submission.
type RegradeInput struct {
	Score   int
	Comment string
	FlagAI  *bool
}

// ReviewInput moderates a result's status and public visibility.
type ReviewInput struct {
	Status  *ResultStatus
	Visible *bool
}

// ResultDetail is the owner/grader view, analysis included.
type ResultDetail struct {
	Result      Result       `json:"result"`
	Submissions []Submission `json:"submissions"`
}

// LeaderboardEntry is the public view of a result: no analysis detail.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	Position    string    `json:"position"`
	Medal       string    `json:"medal,omitempty"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"maxScore"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completedAt"`
}

// Leaderboard captures the ordered scoreboard for a contest.
type Leaderboard struct {
	ContestID string             `json:"contestId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// PairKey identifies the (user, contest) pair that owns a Result.
func PairKey(userID, contestID string) string {
	return fmt.Sprintf("%s/%s", contestID, userID)
}
