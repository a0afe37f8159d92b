package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/qbank/internal/domain"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NormalizeTagNames trims, lowercases and deduplicates tag names,
// dropping empties. Order of first occurrence is preserved.
func NormalizeTagNames(names []string) []string {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		cleaned = append(cleaned, n)
	}
	return cleaned
}

// getOrCreateTags resolves names to tag rows for the owner, creating
// the ones that do not exist yet. A concurrent insert of the same name
// loses the UNIQUE(owner_id, name) race and falls back to re-reading
// the winner's row, so both callers end up with the same tag id.
func getOrCreateTags(ctx context.Context, q querier, ownerID string, names []string) ([]domain.Tag, error) {
	cleaned := NormalizeTagNames(names)
	if len(cleaned) == 0 {
		return nil, nil
	}

	tags := make([]domain.Tag, 0, len(cleaned))
	for _, name := range cleaned {
		tag, err := findTag(ctx, q, ownerID, name)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			candidate := domain.Tag{ID: uuid.NewString(), OwnerID: ownerID, Name: name}
			_, err := q.ExecContext(ctx, `
				INSERT INTO tags (id, owner_id, name) VALUES (?, ?, ?)
			`, candidate.ID, candidate.OwnerID, candidate.Name)
			switch {
			case isUniqueViolation(err, "tags."):
				// Lost the race; use the existing row.
				if tag, err = findTag(ctx, q, ownerID, name); err != nil {
					return nil, err
				}
				if tag == nil {
					return nil, fmt.Errorf("tag %q vanished after unique conflict", name)
				}
			case err != nil:
				return nil, fmt.Errorf("failed to insert tag %q: %w", name, err)
			default:
				tag = &candidate
			}
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func findTag(ctx context.Context, q querier, ownerID, name string) (*domain.Tag, error) {
	var t domain.Tag
	row := q.QueryRowContext(ctx, `
		SELECT id, owner_id, name FROM tags WHERE owner_id = ? AND name = ?
	`, ownerID, name)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Tag not found
		}
		return nil, fmt.Errorf("failed to find tag %q: %w", name, err)
	}
	return &t, nil
}

// setQuestionTags replaces the question's tag associations with the
// given names, creating tags as needed. Tag rows themselves are never
// deleted here; orphan tags are allowed to remain.
func setQuestionTags(ctx context.Context, q querier, ownerID, questionID string, names []string) ([]domain.Tag, error) {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM question_tags WHERE question_id = ?
	`, questionID); err != nil {
		return nil, fmt.Errorf("failed to clear tags for question %s: %w", questionID, err)
	}

	tags, err := getOrCreateTags(ctx, q, ownerID, names)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO question_tags (question_id, tag_id) VALUES (?, ?)
		`, questionID, t.ID); err != nil {
			return nil, fmt.Errorf("failed to attach tag %q to question %s: %w", t.Name, questionID, err)
		}
	}
	return tags, nil
}

// tagsForQuestion loads the question's tags ordered by name.
func tagsForQuestion(ctx context.Context, q querier, questionID string) ([]domain.Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.owner_id, t.name
		FROM tags t
		JOIN question_tags qt ON qt.tag_id = t.id
		WHERE qt.question_id = ?
		ORDER BY t.name
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for question %s: %w", questionID, err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
