package storage

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/qbank/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.InsertUser(context.Background(), u))
	return u
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	createTestUser(t, db, "alice@example.com")

	dup := &domain.User{ID: uuid.NewString(), Email: "alice@example.com", PasswordHash: "y", CreatedAt: time.Now().UTC()}
	err := db.InsertUser(context.Background(), dup)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestInsertAndFindQuestion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	q := &domain.Question{
		OwnerID:      user.ID,
		QuestionText: "What is a slice?",
		AnswerBody:   "A view over an array.",
		Difficulty:   2,
	}
	require.NoError(t, db.InsertQuestion(ctx, q, []string{" Go ", "go", "Basics"}))
	require.NotEmpty(t, q.ID)

	got, err := db.FindQuestionByID(ctx, user.ID, q.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "What is a slice?", got.QuestionText)
	assert.Equal(t, 2, got.Difficulty)
	assert.Equal(t, 0, got.ReviewCount)
	assert.Equal(t, 0.0, got.MasteryScore)
	// Tag names are normalized and deduplicated; "Go" and "go" collapse.
	assert.Equal(t, []string{"basics", "go"}, got.TagNames())
	// A new question is due immediately.
	assert.False(t, got.NextReviewAt.After(got.CreatedAt))
}

func TestFindQuestionScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	q := &domain.Question{OwnerID: alice.ID, QuestionText: "Alice's question"}
	require.NoError(t, db.InsertQuestion(ctx, q, nil))

	got, err := db.FindQuestionByID(ctx, bob.ID, q.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "another user's question must be invisible")

	assert.ErrorIs(t, db.DeleteQuestion(ctx, bob.ID, q.ID), ErrNotFound)
}

func TestTagsSharedWithinOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	q1 := &domain.Question{OwnerID: user.ID, QuestionText: "First question"}
	q2 := &domain.Question{OwnerID: user.ID, QuestionText: "Second question"}
	require.NoError(t, db.InsertQuestion(ctx, q1, []string{"algorithms"}))
	require.NoError(t, db.InsertQuestion(ctx, q2, []string{"Algorithms"}))

	require.Len(t, q1.Tags, 1)
	require.Len(t, q2.Tags, 1)
	assert.Equal(t, q1.Tags[0].ID, q2.Tags[0].ID, "same (owner, name) must resolve to one tag row")
}

func TestUpdateQuestionPartial(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	q := &domain.Question{OwnerID: user.ID, QuestionText: "Original text", AnswerBody: "Original answer", Difficulty: 3}
	require.NoError(t, db.InsertQuestion(ctx, q, []string{"old"}))

	newText := "Updated text"
	flagged := true
	patch := domain.QuestionPatch{
		QuestionText: &newText,
		IsFlagged:    &flagged,
		Tags:         []string{"new"},
	}
	require.NoError(t, db.UpdateQuestion(ctx, q, patch))

	got, err := db.FindQuestionByID(ctx, user.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated text", got.QuestionText)
	assert.Equal(t, "Original answer", got.AnswerBody, "unset patch fields must not change")
	assert.Equal(t, 3, got.Difficulty)
	assert.True(t, got.IsFlagged)
	assert.Equal(t, []string{"new"}, got.TagNames())
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestDeleteQuestionKeepsTags(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	q := &domain.Question{OwnerID: user.ID, QuestionText: "Doomed question"}
	require.NoError(t, db.InsertQuestion(ctx, q, []string{"keeper"}))
	require.NoError(t, db.DeleteQuestion(ctx, user.ID, q.ID))

	got, err := db.FindQuestionByID(ctx, user.ID, q.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The tag row survives as an orphan and is reused on next use.
	q2 := &domain.Question{OwnerID: user.ID, QuestionText: "Another question"}
	require.NoError(t, db.InsertQuestion(ctx, q2, []string{"keeper"}))
	tag, err := findTag(ctx, db.conn, user.ID, "keeper")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, tag.ID, q2.Tags[0].ID)
}

func TestListQuestionsFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")
	flagged := true

	insert := func(text, answer string, isFlagged bool, tags []string) *domain.Question {
		q := &domain.Question{OwnerID: user.ID, QuestionText: text, AnswerBody: answer, IsFlagged: isFlagged}
		require.NoError(t, db.InsertQuestion(ctx, q, tags))
		return q
	}
	insert("Explain goroutine scheduling", "The runtime multiplexes them.", false, []string{"go"})
	insert("What is a B-tree?", "A balanced search tree.", true, []string{"databases"})
	insert("Describe TCP handshake", "SYN, SYN-ACK, ACK.", false, []string{"networking"})

	t.Run("search is case-insensitive over question and answer", func(t *testing.T) {
		got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{Search: "GOROUTINE"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Explain goroutine scheduling", got[0].QuestionText)

		got, err = db.ListQuestions(ctx, user.ID, domain.QuestionFilter{Search: "syn-ack"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Describe TCP handshake", got[0].QuestionText)
	})

	t.Run("tag filter matches normalized name", func(t *testing.T) {
		got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{Tag: " Databases "})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "What is a B-tree?", got[0].QuestionText)
	})

	t.Run("flagged filter", func(t *testing.T) {
		got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{Flagged: &flagged})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "What is a B-tree?", got[0].QuestionText)
	})

	t.Run("filters are conjunctive", func(t *testing.T) {
		got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{Search: "tree", Tag: "go"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		bob := createTestUser(t, db, "bob@example.com")
		got, err := db.ListQuestions(ctx, bob.ID, domain.QuestionFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListQuestionsOrderedByUpdatedAtDesc(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"oldest", "middle", "newest"} {
		q := &domain.Question{OwnerID: user.ID, QuestionText: text + " question", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, db.InsertQuestion(ctx, q, nil))
	}

	got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "newest question", got[0].QuestionText)
	assert.Equal(t, "oldest question", got[2].QuestionText)
}

func TestListQuestionsDueOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(text string, next time.Time) {
		q := &domain.Question{OwnerID: user.ID, QuestionText: text, CreatedAt: now.Add(-24 * time.Hour), NextReviewAt: next}
		require.NoError(t, db.InsertQuestion(ctx, q, nil))
	}
	mk("past due", now.Add(-time.Hour))
	mk("due exactly now", now)
	mk("due later", now.Add(time.Hour))

	got, err := db.ListQuestions(ctx, user.ID, domain.QuestionFilter{DueOnly: true, Now: now})
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, q := range got {
		names = append(names, q.QuestionText)
	}
	// The boundary is inclusive: a question due exactly now is due.
	assert.ElementsMatch(t, []string{"past due", "due exactly now"}, names)
}

func TestApplyReviewPersistsAtomically(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	q := &domain.Question{OwnerID: user.ID, QuestionText: "Review me", CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, db.InsertQuestion(ctx, q, nil))

	t.Run("sequential reviews accumulate", func(t *testing.T) {
		for i := 1; i <= 2; i++ {
			got, err := db.ApplyReview(ctx, user.ID, q.ID, func(q *domain.Question) error {
				q.ReviewCount++
				q.MasteryScore += 0.3
				q.NextReviewAt = now.Add(7 * 24 * time.Hour)
				q.UpdatedAt = now
				return nil
			})
			require.NoError(t, err)
			// Each call must see the previous call's committed state.
			assert.Equal(t, i, got.ReviewCount)
			assert.InDelta(t, 0.3*float64(i), got.MasteryScore, 1e-9)
		}
	})

	t.Run("apply error rolls back everything", func(t *testing.T) {
		before, err := db.FindQuestionByID(ctx, user.ID, q.ID)
		require.NoError(t, err)

		_, err = db.ApplyReview(ctx, user.ID, q.ID, func(q *domain.Question) error {
			q.ReviewCount = 999
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		after, err := db.FindQuestionByID(ctx, user.ID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, before.ReviewCount, after.ReviewCount)
		assert.Equal(t, before.MasteryScore, after.MasteryScore)
		assert.True(t, before.NextReviewAt.Equal(after.NextReviewAt))
		assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := db.ApplyReview(ctx, user.ID, "no-such-id", func(q *domain.Question) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDashboardStatsEmptyUser(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "alice@example.com")

	stats, err := db.DashboardStats(context.Background(), user.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQuestions)
	assert.Equal(t, 0, stats.DueNow)
	assert.Equal(t, 0.0, stats.AvgMastery)
	assert.Equal(t, 0, stats.TotalReviews)
	assert.Empty(t, stats.WeakestTags)
}

func TestDashboardStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(text string, mastery float64, reviews int, next time.Time, tags []string) {
		q := &domain.Question{
			OwnerID:      user.ID,
			QuestionText: text,
			MasteryScore: mastery,
			ReviewCount:  reviews,
			CreatedAt:    now.Add(-48 * time.Hour),
			NextReviewAt: next,
		}
		require.NoError(t, db.InsertQuestion(ctx, q, tags))
	}

	later := now.Add(time.Hour)
	mk("q1", 1.0, 2, now, []string{"sql", "trees"})
	mk("q2", 1.0, 1, later, []string{"sql"})
	mk("q3", 4.0, 5, later, []string{"go"})

	// Another user's data must not leak into the aggregation.
	bob := createTestUser(t, db, "bob@example.com")
	bq := &domain.Question{OwnerID: bob.ID, QuestionText: "bob's question", MasteryScore: 0.1, ReviewCount: 9}
	require.NoError(t, db.InsertQuestion(ctx, bq, []string{"sql"}))

	stats, err := db.DashboardStats(ctx, user.ID, now)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalQuestions)
	assert.Equal(t, 1, stats.DueNow, "only q1 is due at the inclusive boundary")
	assert.InDelta(t, 2.0, stats.AvgMastery, 1e-9)
	assert.Equal(t, 8, stats.TotalReviews)

	// sql (avg 1.0, 2 questions) outranks trees (avg 1.0, 1 question)
	// on the count tiebreak; go (avg 4.0) comes last.
	require.Len(t, stats.WeakestTags, 3)
	assert.Equal(t, domain.WeakTag{Name: "sql", AvgMastery: 1.0, QuestionCount: 2}, stats.WeakestTags[0])
	assert.Equal(t, domain.WeakTag{Name: "trees", AvgMastery: 1.0, QuestionCount: 1}, stats.WeakestTags[1])
	assert.Equal(t, "go", stats.WeakestTags[2].Name)
}

func TestDashboardStatsTopFiveOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice@example.com")

	tags := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, tag := range tags {
		q := &domain.Question{OwnerID: user.ID, QuestionText: "question " + tag, MasteryScore: float64(i)}
		require.NoError(t, db.InsertQuestion(ctx, q, []string{tag}))
	}

	stats, err := db.DashboardStats(ctx, user.ID, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, stats.WeakestTags, 5)
	assert.Equal(t, "a", stats.WeakestTags[0].Name)
	assert.Equal(t, "e", stats.WeakestTags[4].Name)
}

// blindFirstTagLookup delegates to the real connection but makes the
// first tag lookup come back empty, so the caller behaves as if
// another writer created the tag between its lookup and its insert.
type blindFirstTagLookup struct {
	inner   querier
	blinded bool
}

func (b *blindFirstTagLookup) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.inner.ExecContext(ctx, query, args...)
}

func (b *blindFirstTagLookup) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.inner.QueryContext(ctx, query, args...)
}

func (b *blindFirstTagLookup) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if !b.blinded && strings.Contains(query, "FROM tags") {
		b.blinded = true
		return b.inner.QueryRowContext(ctx, query+" AND 1 = 0", args...)
	}
	return b.inner.QueryRowContext(ctx, query, args...)
}

func TestGetOrCreateTagsRecoversFromLostInsertRace(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "alice@example.com")
	ctx := context.Background()

	winner := domain.Tag{ID: uuid.NewString(), OwnerID: user.ID, Name: "go"}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tags (id, owner_id, name) VALUES (?, ?, ?)
	`, winner.ID, winner.OwnerID, winner.Name)
	require.NoError(t, err)

	q := &blindFirstTagLookup{inner: db.conn}
	tags, err := getOrCreateTags(ctx, q, user.ID, []string{"go"})
	require.NoError(t, err)
	require.True(t, q.blinded, "first lookup was never made to miss")

	// The insert must have hit the unique constraint and fallen back to
	// the existing row instead of failing or minting a second id.
	require.Len(t, tags, 1)
	assert.Equal(t, winner.ID, tags[0].ID)

	var n int
	require.NoError(t, db.conn.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM tags WHERE owner_id = ? AND name = ?
	`, user.ID, "go").Scan(&n))
	assert.Equal(t, 1, n)
}
