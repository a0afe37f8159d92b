package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/qbank/internal/domain"
)

const questionColumns = `id, owner_id, question_text, answer_body, difficulty, source,
	is_flagged, content_hash, created_at, updated_at, review_count, mastery_score, next_review_at`

// InsertQuestion persists a new question with its tags. Missing id and
// timestamps are filled in; next_review_at defaults to the creation
// time so the question is immediately due.
func (db *DB) InsertQuestion(ctx context.Context, q *domain.Question, tagNames []string) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt
	if q.NextReviewAt.IsZero() {
		q.NextReviewAt = q.CreatedAt
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO questions (`+questionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			q.ID, q.OwnerID, q.QuestionText, q.AnswerBody, q.Difficulty, q.Source,
			q.IsFlagged, nullString(q.ContentHash), q.CreatedAt, q.UpdatedAt,
			q.ReviewCount, q.MasteryScore, q.NextReviewAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
		}

		tags, err := setQuestionTags(ctx, tx, q.OwnerID, q.ID, tagNames)
		if err != nil {
			return err
		}
		q.Tags = tags
		return nil
	})
}

// FindQuestionByID retrieves one of the owner's questions with tags
// hydrated, or nil when it does not exist for that owner.
func (db *DB) FindQuestionByID(ctx context.Context, ownerID, id string) (*domain.Question, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE owner_id = ? AND id = ?
	`, ownerID, id)

	q, err := scanQuestion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Question not found
		}
		return nil, fmt.Errorf("failed to find question %s: %w", id, err)
	}

	if q.Tags, err = tagsForQuestion(ctx, db.conn, q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

// HasQuestionWithContentHash reports whether the owner already has a
// question carrying the given import content hash.
func (db *DB) HasQuestionWithContentHash(ctx context.Context, ownerID, hash string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM questions WHERE owner_id = ? AND content_hash = ?
	`, ownerID, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check content hash: %w", err)
	}
	return n > 0, nil
}

// UpdateQuestion applies a partial update to the question and persists
// it. Only fields set in the patch change; updated_at is bumped either
// way. A non-nil patch.Tags replaces the tag set.
func (db *DB) UpdateQuestion(ctx context.Context, q *domain.Question, patch domain.QuestionPatch) error {
	if patch.QuestionText != nil {
		q.QuestionText = *patch.QuestionText
	}
	if patch.AnswerBody != nil {
		q.AnswerBody = *patch.AnswerBody
	}
	if patch.Difficulty != nil {
		q.Difficulty = *patch.Difficulty
	}
	if patch.Source != nil {
		q.Source = *patch.Source
	}
	if patch.IsFlagged != nil {
		q.IsFlagged = *patch.IsFlagged
	}
	q.UpdatedAt = time.Now().UTC()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE questions
			SET question_text = ?, answer_body = ?, difficulty = ?, source = ?,
			    is_flagged = ?, updated_at = ?
			WHERE owner_id = ? AND id = ?
		`,
			q.QuestionText, q.AnswerBody, q.Difficulty, q.Source,
			q.IsFlagged, q.UpdatedAt, q.OwnerID, q.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update question %s: %w", q.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		if patch.Tags != nil {
			tags, err := setQuestionTags(ctx, tx, q.OwnerID, q.ID, patch.Tags)
			if err != nil {
				return err
			}
			q.Tags = tags
		}
		return nil
	})
}

// DeleteQuestion removes one of the owner's questions. Tag associations
// go with it (ON DELETE CASCADE); tag rows stay.
func (db *DB) DeleteQuestion(ctx context.Context, ownerID, id string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM questions WHERE owner_id = ? AND id = ?
	`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete question %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQuestions returns the owner's questions, newest update first.
// Search, tag and flagged filters are ANDed in SQL; the due-only filter
// runs as a final in-memory pass and keeps the ordering.
func (db *DB) ListQuestions(ctx context.Context, ownerID string, filter domain.QuestionFilter) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE owner_id = ?`
	args := []any{ownerID}

	if filter.Flagged != nil {
		query += ` AND is_flagged = ?`
		args = append(args, *filter.Flagged)
	}
	if s := strings.ToLower(strings.TrimSpace(filter.Search)); s != "" {
		query += ` AND (LOWER(question_text) LIKE ? OR LOWER(answer_body) LIKE ?)`
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		query += ` AND id IN (
			SELECT qt.question_id FROM question_tags qt
			JOIN tags t ON t.id = qt.tag_id
			WHERE t.owner_id = ? AND t.name = ?
		)`
		args = append(args, ownerID, tag)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}

	for i := range questions {
		if questions[i].Tags, err = tagsForQuestion(ctx, db.conn, questions[i].ID); err != nil {
			return nil, err
		}
	}

	if filter.DueOnly {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		due := questions[:0]
		for _, q := range questions {
			if q.Due(now) {
				due = append(due, q)
			}
		}
		questions = due
	}
	return questions, nil
}

// ApplyReview loads one of the owner's questions, lets apply mutate its
// scheduling state, and persists review_count, mastery_score,
// next_review_at and updated_at as one atomic write. An error from
// apply rolls everything back, leaving the row untouched. Returns
// ErrNotFound when the question does not exist for the owner.
func (db *DB) ApplyReview(ctx context.Context, ownerID, id string, apply func(q *domain.Question) error) (*domain.Question, error) {
	var out *domain.Question
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+questionColumns+` FROM questions WHERE owner_id = ? AND id = ?
		`, ownerID, id)
		q, err := scanQuestion(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load question %s for review: %w", id, err)
		}

		if err := apply(q); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE questions
			SET review_count = ?, mastery_score = ?, next_review_at = ?, updated_at = ?
			WHERE owner_id = ? AND id = ?
		`, q.ReviewCount, q.MasteryScore, q.NextReviewAt, q.UpdatedAt, ownerID, id)
		if err != nil {
			return fmt.Errorf("failed to persist review for question %s: %w", id, err)
		}

		if q.Tags, err = tagsForQuestion(ctx, tx, q.ID); err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var (
		q           domain.Question
		contentHash sql.NullString
	)
	err := row.Scan(
		&q.ID, &q.OwnerID, &q.QuestionText, &q.AnswerBody, &q.Difficulty, &q.Source,
		&q.IsFlagged, &contentHash, &q.CreatedAt, &q.UpdatedAt,
		&q.ReviewCount, &q.MasteryScore, &q.NextReviewAt,
	)
	if err != nil {
		return nil, err
	}
	q.ContentHash = contentHash.String
	return &q, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
