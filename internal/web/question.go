package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/conorfennell/qbank/internal/domain"
	"github.com/conorfennell/qbank/internal/scheduler"
)

type questionCreate struct {
	QuestionText string   `json:"question_text" validate:"required,min=3"`
	AnswerBody   string   `json:"answer_body"`
	Difficulty   *int     `json:"difficulty" validate:"omitnil,min=1,max=5"`
	Source       string   `json:"source"`
	Tags         []string `json:"tags"`
}

type questionUpdate struct {
	QuestionText *string  `json:"question_text" validate:"omitnil,min=3"`
	AnswerBody   *string  `json:"answer_body"`
	Difficulty   *int     `json:"difficulty" validate:"omitnil,min=1,max=5"`
	Source       *string  `json:"source"`
	IsFlagged    *bool    `json:"is_flagged"`
	Tags         []string `json:"tags"`
}

type questionOut struct {
	ID           string    `json:"id"`
	QuestionText string    `json:"question_text"`
	AnswerBody   string    `json:"answer_body"`
	Difficulty   int       `json:"difficulty"`
	Source       string    `json:"source"`
	IsFlagged    bool      `json:"is_flagged"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ReviewCount  int       `json:"review_count"`
	MasteryScore float64   `json:"mastery_score"`
	NextReviewAt time.Time `json:"next_review_at"`
}

func toQuestionOut(q *domain.Question) questionOut {
	tags := q.TagNames()
	if tags == nil {
		tags = []string{}
	}
	return questionOut{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		AnswerBody:   q.AnswerBody,
		Difficulty:   q.Difficulty,
		Source:       q.Source,
		IsFlagged:    q.IsFlagged,
		Tags:         tags,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
		ReviewCount:  q.ReviewCount,
		MasteryScore: q.MasteryScore,
		NextReviewAt: q.NextReviewAt,
	}
}

func (s *Server) handleCreateQuestion(c echo.Context) error {
	var payload questionCreate
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}

	difficulty := 3
	if payload.Difficulty != nil {
		difficulty = *payload.Difficulty
	}

	q := &domain.Question{
		OwnerID:      ownerID(c),
		QuestionText: payload.QuestionText,
		AnswerBody:   payload.AnswerBody,
		Difficulty:   difficulty,
		Source:       payload.Source,
	}
	if err := s.db.InsertQuestion(c.Request().Context(), q, payload.Tags); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toQuestionOut(q))
}

func (s *Server) handleListQuestions(c echo.Context) error {
	filter := domain.QuestionFilter{
		Search: c.QueryParam("search"),
		Tag:    c.QueryParam("tag"),
		Now:    time.Now().UTC(),
	}
	if raw := c.QueryParam("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid flagged value")
		}
		filter.Flagged = &flagged
	}
	if raw := c.QueryParam("due_only"); raw != "" {
		dueOnly, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid due_only value")
		}
		filter.DueOnly = dueOnly
	}

	questions, err := s.db.ListQuestions(c.Request().Context(), ownerID(c), filter)
	if err != nil {
		return mapError(err)
	}

	out := make([]questionOut, 0, len(questions))
	for i := range questions {
		out = append(out, toQuestionOut(&questions[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	q, err := s.db.FindQuestionByID(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if q == nil {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}
	return c.JSON(http.StatusOK, toQuestionOut(q))
}

func (s *Server) handleUpdateQuestion(c echo.Context) error {
	var payload questionUpdate
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}

	ctx := c.Request().Context()
	q, err := s.db.FindQuestionByID(ctx, ownerID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if q == nil {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}

	patch := domain.QuestionPatch{
		QuestionText: payload.QuestionText,
		AnswerBody:   payload.AnswerBody,
		Difficulty:   payload.Difficulty,
		Source:       payload.Source,
		IsFlagged:    payload.IsFlagged,
		Tags:         payload.Tags,
	}
	if err := s.db.UpdateQuestion(ctx, q, patch); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toQuestionOut(q))
}

func (s *Server) handleDeleteQuestion(c echo.Context) error {
	if err := s.db.DeleteQuestion(c.Request().Context(), ownerID(c), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

type reviewIn struct {
	Rating string `json:"rating"`
}

type reviewOut struct {
	Status       string    `json:"status"`
	NextReviewAt time.Time `json:"next_review_at"`
	MasteryScore float64   `json:"mastery_score"`
}

func (s *Server) handleReviewQuestion(c echo.Context) error {
	var payload reviewIn
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// Validate the rating before anything is read or written so a bad
	// rating can never leave a partial review behind.
	rating, err := scheduler.ParseRating(payload.Rating)
	if err != nil {
		return mapError(err)
	}

	now := time.Now().UTC()
	q, err := s.db.ApplyReview(c.Request().Context(), ownerID(c), c.Param("id"), func(q *domain.Question) error {
		return scheduler.Apply(q, rating, now)
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, reviewOut{
		Status:       "ok",
		NextReviewAt: q.NextReviewAt,
		MasteryScore: q.MasteryScore,
	})
}
