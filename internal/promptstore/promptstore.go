// Package promptstore implements the persistent prompt database (§6.3):
// a `modernc.org/sqlite`-backed index rebuilt from the finalized
// authorship logs of a range of commits, feeding the `blame`/`stats` CLI
// commands without having to replay every commit's log on every query.
//
// Grounded on the teacher's internal/index.Rebuild/Open/IsStale
// (drop-and-recreate-from-source-of-truth, HEAD-SHA staleness check), here
// rebuilt from authorship logs loaded through a Store rather than from the
// teacher's ad hoc JSONL reason files.
package promptstore

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/project"
)

// Store mirrors rewrite.Store's read side: anything that can load an
// authorship log by commit SHA. Declared locally so promptstore doesn't
// need to import internal/rewrite just for this one method shape.
type Store interface {
	Load(commitSHA string) (*Log, error)
}

// Log is the minimal shape promptstore reads out of an authorship log —
// declared structurally so this package doesn't need to import
// internal/authorshiplog's full type just to read it back out. Callers
// pass a loader that adapts *authorshiplog.Log into this shape (see
// internal/promptstore/adapter.go).
type Log struct {
	BaseCommitSHA string
	Files         []FileAttestation
	Prompts       map[string]PromptRecord
}

// FileAttestation is one file's attestation entries, flattened for storage.
type FileAttestation struct {
	FilePath string
	Entries  []Entry
}

// Entry is one attestation entry: a session hash and its compact line
// ranges notation (e.g. "5,7-8,12"), already rendered by the caller via
// lineset.LineSet.String so this package has no lineset dependency.
type Entry struct {
	Hash   string
	Ranges string
}

// PromptRecord is the per-session analytics record, flattened for storage.
type PromptRecord struct {
	Tool            string
	AgentSessionID  string
	Model           string
	HumanAuthor     string
	MessageCount    int
	TotalAdditions  int
	TotalDeletions  int
	AcceptedLines   int
	OverriddenLines int
}

// Rebuild drops and recreates the SQLite database at paths.IndexDB,
// loading commitSHAs (oldest first) through store and inserting one row
// per attestation entry into `attestations` and one row per distinct
// (commit, session) pair into `sessions`.
func Rebuild(paths project.Paths, store Store, commitSHAs []string) (*sql.DB, error) {
	if err := os.MkdirAll(paths.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("promptstore: create cache dir %s: %w", paths.CacheDir, err)
	}
	_ = os.Remove(paths.IndexDB)

	db, err := sql.Open("sqlite", paths.IndexDB)
	if err != nil {
		return nil, fmt.Errorf("promptstore: open db %s: %w", paths.IndexDB, err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := insertCommits(db, store, commitSHAs); err != nil {
		db.Close()
		return nil, err
	}

	storeHeadSHA(db, paths.Root)

	return db, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE attestations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			commit_sha TEXT NOT NULL,
			file_path TEXT NOT NULL,
			session_hash TEXT NOT NULL,
			ranges TEXT NOT NULL
		)`,
		`CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			commit_sha TEXT NOT NULL,
			session_hash TEXT NOT NULL,
			tool TEXT,
			agent_session_id TEXT,
			model TEXT,
			human_author TEXT,
			message_count INTEGER,
			total_additions INTEGER,
			total_deletions INTEGER,
			accepted_lines INTEGER,
			overridden_lines INTEGER
		)`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE INDEX idx_attestations_file ON attestations(file_path)`,
		`CREATE INDEX idx_attestations_commit ON attestations(commit_sha)`,
		`CREATE INDEX idx_attestations_session ON attestations(session_hash)`,
		`CREATE INDEX idx_sessions_commit ON sessions(commit_sha)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("promptstore: create schema: %w", err)
		}
	}
	return nil
}

func insertCommits(db *sql.DB, store Store, commitSHAs []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("promptstore: begin tx: %w", err)
	}

	attStmt, err := tx.Prepare(`INSERT INTO attestations (commit_sha, file_path, session_hash, ranges) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("promptstore: prepare attestation insert: %w", err)
	}
	defer attStmt.Close()

	sessStmt, err := tx.Prepare(`INSERT INTO sessions
		(commit_sha, session_hash, tool, agent_session_id, model, human_author,
		 message_count, total_additions, total_deletions, accepted_lines, overridden_lines)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("promptstore: prepare session insert: %w", err)
	}
	defer sessStmt.Close()

	for _, sha := range commitSHAs {
		log, err := store.Load(sha)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("promptstore: load %s: %w", sha, err)
		}
		for _, fa := range log.Files {
			for _, e := range fa.Entries {
				if _, err := attStmt.Exec(sha, fa.FilePath, e.Hash, e.Ranges); err != nil {
					tx.Rollback()
					return fmt.Errorf("promptstore: insert attestation: %w", err)
				}
			}
		}
		for hash, pr := range log.Prompts {
			if _, err := sessStmt.Exec(sha, hash, pr.Tool, pr.AgentSessionID, pr.Model, pr.HumanAuthor,
				pr.MessageCount, pr.TotalAdditions, pr.TotalDeletions, pr.AcceptedLines, pr.OverriddenLines); err != nil {
				tx.Rollback()
				return fmt.Errorf("promptstore: insert session: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("promptstore: commit: %w", err)
	}
	return nil
}

// Open returns a database connection, rebuilding the index first if
// IsStale reports HEAD has moved since the last rebuild.
func Open(paths project.Paths, store Store, commitSHAs []string) (*sql.DB, error) {
	if IsStale(paths) {
		return Rebuild(paths, store, commitSHAs)
	}
	db, err := sql.Open("sqlite", paths.IndexDB)
	if err != nil {
		return nil, fmt.Errorf("promptstore: open db %s: %w", paths.IndexDB, err)
	}
	return db, nil
}

// IsStale returns true if the database doesn't exist yet or HEAD has
// moved since the last rebuild (a rewrite happened, or new commits landed).
func IsStale(paths project.Paths) bool {
	if _, err := os.Stat(paths.IndexDB); err != nil {
		return true
	}
	db, err := sql.Open("sqlite", paths.IndexDB)
	if err != nil {
		return true
	}
	defer db.Close()

	var storedSHA string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'head_sha'").Scan(&storedSHA); err != nil {
		return true
	}
	current := git.HeadSHA(paths.Root)
	return current != "" && current != storedSHA
}

func storeHeadSHA(db *sql.DB, root string) {
	sha := git.HeadSHA(root)
	if sha == "" {
		return
	}
	db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('head_sha', ?)", sha)
}

// SessionStats aggregates accepted-line totals across stored sessions by
// session hash, the query backing the `stats` CLI command.
func SessionStats(db *sql.DB) (map[string]int, error) {
	rows, err := db.Query(`SELECT session_hash, SUM(accepted_lines) FROM sessions GROUP BY session_hash`)
	if err != nil {
		return nil, fmt.Errorf("promptstore: query session stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var hash string
		var total int
		if err := rows.Scan(&hash, &total); err != nil {
			return nil, fmt.Errorf("promptstore: scan session stats: %w", err)
		}
		out[hash] = total
	}
	return out, rows.Err()
}

// AttributionsForFile returns every attestation entry recorded for path
// across all indexed commits, newest commit_sha first is not guaranteed —
// callers needing commit order should filter by commit_sha themselves.
func AttributionsForFile(db *sql.DB, path string) ([]Entry, error) {
	rows, err := db.Query(`SELECT session_hash, ranges FROM attestations WHERE file_path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("promptstore: query attestations for %s: %w", path, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Hash, &e.Ranges); err != nil {
			return nil, fmt.Errorf("promptstore: scan attestation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
