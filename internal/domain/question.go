package domain

import "time"

// Mastery bounds. A question's mastery score is clamped to this range
// after every review.
const (
	MasteryMin = 0.0
	MasteryMax = 5.0
)

// Question is a single interview question owned by one user.
// ReviewCount, MasteryScore and NextReviewAt are the scheduling fields:
// they change only through review events.
type Question struct {
	ID           string
	OwnerID      string
	QuestionText string
	AnswerBody   string
	Difficulty   int
	Source       string
	IsFlagged    bool
	ContentHash  string // set for imported questions, used for dedup
	Tags         []Tag
	CreatedAt    time.Time
	UpdatedAt    time.Time

	ReviewCount  int
	MasteryScore float64
	NextReviewAt time.Time
}

// Due reports whether the question is eligible for review at the given
// time. A zero NextReviewAt counts as due.
func (q *Question) Due(now time.Time) bool {
	return q.NextReviewAt.IsZero() || !q.NextReviewAt.After(now)
}

// TagNames returns the names of the question's tags in stored order.
func (q *Question) TagNames() []string {
	names := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Tag is a user-scoped label. Names are stored trimmed and lowercased,
// unique per owner.
type Tag struct {
	ID      string
	OwnerID string
	Name    string
}

// QuestionPatch carries a partial update. Nil fields are left
// unchanged; a non-nil Tags replaces the whole tag set.
type QuestionPatch struct {
	QuestionText *string
	AnswerBody   *string
	Difficulty   *int
	Source       *string
	IsFlagged    *bool
	Tags         []string
}

// QuestionFilter narrows a listing. All set filters are ANDed together.
type QuestionFilter struct {
	Search  string // case-insensitive substring over question and answer text
	Tag     string // exact tag name match (normalized)
	Flagged *bool
	DueOnly bool
	Now     time.Time // reference time for DueOnly
}

// DashboardStats is the per-user summary for the weak-spots view.
type DashboardStats struct {
	TotalQuestions int       `json:"total_questions"`
	DueNow         int       `json:"due_now"`
	AvgMastery     float64   `json:"avg_mastery"`
	TotalReviews   int       `json:"total_reviews"`
	WeakestTags    []WeakTag `json:"weakest_tags"`
}

// WeakTag is one entry in the weakest-tags ranking: a tag plus the
// average mastery and count of the owner's questions carrying it.
type WeakTag struct {
	Name          string  `json:"name"`
	AvgMastery    float64 `json:"avg_mastery"`
	QuestionCount int     `json:"question_count"`
}
