package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/qbank/internal/domain"
)

// DashboardStats aggregates the owner's question set at the given
// time. A user with no questions gets all-zero stats and an empty
// weakest-tags list, never an error.
func (db *DB) DashboardStats(ctx context.Context, ownerID string, now time.Time) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{WeakestTags: []domain.WeakTag{}}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(id),
		       COALESCE(SUM(next_review_at <= ?), 0),
		       COALESCE(AVG(mastery_score), 0),
		       COALESCE(SUM(review_count), 0)
		FROM questions WHERE owner_id = ?
	`, now, ownerID).Scan(&stats.TotalQuestions, &stats.DueNow, &stats.AvgMastery, &stats.TotalReviews)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate question stats: %w", err)
	}

	// Weakest tags: lowest average mastery first, then the tags with
	// more questions attached, then name for a stable order. Tags with
	// no questions never appear.
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.name, AVG(q.mastery_score), COUNT(q.id)
		FROM tags t
		JOIN question_tags qt ON qt.tag_id = t.id
		JOIN questions q ON q.id = qt.question_id
		WHERE t.owner_id = ? AND q.owner_id = ?
		GROUP BY t.id, t.name
		ORDER BY AVG(q.mastery_score) ASC, COUNT(q.id) DESC, t.name ASC
		LIMIT 5
	`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate weakest tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wt domain.WeakTag
		if err := rows.Scan(&wt.Name, &wt.AvgMastery, &wt.QuestionCount); err != nil {
			return nil, fmt.Errorf("failed to scan weak tag row: %w", err)
		}
		stats.WeakestTags = append(stats.WeakestTags, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weak tag rows: %w", err)
	}
	return stats, nil
}
