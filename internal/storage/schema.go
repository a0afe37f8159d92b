package storage

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- The scheduling fields (review_count, mastery_score, next_review_at)
-- are NOT NULL: a brand-new question is due immediately.
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    question_text TEXT NOT NULL,
    answer_body TEXT NOT NULL DEFAULT '',
    difficulty INTEGER NOT NULL DEFAULT 3,
    source TEXT NOT NULL DEFAULT '',
    is_flagged INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    mastery_score REAL NOT NULL DEFAULT 0,
    next_review_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_owner ON questions(owner_id);

-- Imported questions carry a content hash so a re-import is a no-op.
CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_owner_content_hash
    ON questions(owner_id, content_hash) WHERE content_hash IS NOT NULL;

-- Tag names are unique per owner; concurrent get-or-create relies on
-- this constraint rather than application-level locking.
CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS question_tags (
    question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (question_id, tag_id)
);
`
