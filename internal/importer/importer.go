// Package importer bulk-loads questions from markdown sources into one
// user's bank. A source is either a local directory or a git URL; git
// sources are checked out under the data directory and refreshed on
// every import. Identical questions (by normalized content hash) are
// skipped so imports can be re-run safely.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conorfennell/qbank/internal/domain"
	"github.com/conorfennell/qbank/internal/gitsource"
	"github.com/conorfennell/qbank/internal/parser"
	"github.com/conorfennell/qbank/internal/qhash"
)

// minQuestionLen mirrors the create-question validation rule; shorter
// parsed questions are reported as errors instead of being stored.
const minQuestionLen = 3

// Store is the slice of the question repository the importer needs.
type Store interface {
	HasQuestionWithContentHash(ctx context.Context, ownerID, hash string) (bool, error)
	InsertQuestion(ctx context.Context, q *domain.Question, tagNames []string) error
}

// Result summarizes one import run. Per-file and per-entry problems
// land in Errors; they never abort the rest of the run.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Run imports every `.md` file reachable from source for the given
// owner. dataDir is where git sources keep their checkouts.
func Run(ctx context.Context, store Store, ownerID, source, dataDir string) (*Result, error) {
	root := source
	if IsGitSource(source) {
		localPath, err := localRepoPath(filepath.Join(dataDir, "repos"), source)
		if err != nil {
			return nil, err
		}
		if err := gitsource.CloneOrPull(source, localPath); err != nil {
			return nil, err
		}
		root = localPath
	}

	res := &Result{Errors: []string{}}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		entries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
			return nil
		}
		for _, entry := range entries {
			if err := importEntry(ctx, store, ownerID, source, entry, res); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk source %s: %w", root, walkErr)
	}

	slog.Info("import complete",
		"source", source,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)
	return res, nil
}

func importEntry(ctx context.Context, store Store, ownerID, source string, entry parser.Entry, res *Result) error {
	if len(strings.TrimSpace(entry.Question)) < minQuestionLen {
		res.Errors = append(res.Errors, fmt.Sprintf("question %q too short, skipped", entry.Question))
		return nil
	}

	hash := qhash.Hash(entry.Question, entry.Answer, entry.Context)
	exists, err := store.HasQuestionWithContentHash(ctx, ownerID, hash)
	if err != nil {
		return err
	}
	if exists {
		res.Skipped++
		return nil
	}

	q := &domain.Question{
		OwnerID:      ownerID,
		QuestionText: entry.Question,
		AnswerBody:   entry.Answer,
		Difficulty:   3,
		Source:       source,
		ContentHash:  hash,
	}
	if err := store.InsertQuestion(ctx, q, nil); err != nil {
		return err
	}
	res.Imported++
	return nil
}

// IsGitSource reports whether the source string points at a git remote
// rather than a local directory.
func IsGitSource(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}

// localRepoPath maps a git URL to a stable checkout path under
// baseDir, e.g. github.com/alice/notes. Supports both http(s) and
// scp-style git@host:owner/repo.git forms.
func localRepoPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		return filepath.Join(baseDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}

	if at := strings.IndexByte(repoURL, '@'); at >= 0 {
		if colon := strings.IndexByte(repoURL[at:], ':'); colon >= 0 {
			host := repoURL[at+1 : at+colon]
			repoPath := strings.TrimSuffix(repoURL[at+colon+1:], ".git")
			return filepath.Join(baseDir, host, repoPath), nil
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
