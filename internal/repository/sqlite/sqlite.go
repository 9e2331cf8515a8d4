// Package sqlite implements the repository interfaces on top of SQLite.
//
// WHY SQLITE?
// The application is a single-instance collaboration server: one process, one
// database file. modernc.org/sqlite is a pure Go build of SQLite, so the binary
// cross-compiles without a C toolchain and tests can run against ":memory:".
//
// DOCUMENT SHAPE:
// The domain is document oriented (a project embeds its members, a task embeds
// its comments and assignee list). List-valued fields are stored as JSON text
// columns and decoded on read; members live in their own table because they
// are queried by user ("which projects am I in?").
//
// The pool is limited to one connection. SQLite serialises writers anyway, and
// with ":memory:" every extra connection would open a different, empty database.
// Never issue a query while iterating *sql.Rows from another one.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/unityboard.db" → file-based database
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// schema is applied in order; every statement is idempotent.
var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			email              TEXT NOT NULL UNIQUE,
			password_hash      TEXT NOT NULL DEFAULT '',
			avatar_url         TEXT NOT NULL DEFAULT '',
			github_id          INTEGER UNIQUE,
			projects_created   INTEGER NOT NULL DEFAULT 0,
			tasks_completed    INTEGER NOT NULL DEFAULT 0,
			contributions      INTEGER NOT NULL DEFAULT 0,
			lifetime_solutions INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL
		);`},
	{"projects", `
		CREATE TABLE IF NOT EXISTS projects (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL UNIQUE,
			description      TEXT NOT NULL DEFAULT '',
			visibility       TEXT NOT NULL DEFAULT 'public',
			password         TEXT NOT NULL DEFAULT '',
			chat_single_room INTEGER NOT NULL DEFAULT 0,
			created_by       TEXT NOT NULL,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);`},
	{"project_members", `
		CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			role       TEXT NOT NULL,
			joined_at  DATETIME NOT NULL,
			PRIMARY KEY (project_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);`},
	{"tasks", `
		CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT PRIMARY KEY,
			project_id   TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			priority     TEXT NOT NULL DEFAULT 'medium',
			status       TEXT NOT NULL DEFAULT 'todo',
			due_at       INTEGER,
			assignees    TEXT NOT NULL DEFAULT '[]',
			labels       TEXT NOT NULL DEFAULT '[]',
			comments     TEXT NOT NULL DEFAULT '[]',
			created_by   TEXT NOT NULL,
			due_notified INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);`},
	{"threads", `
		CREATE TABLE IF NOT EXISTS threads (
			id               TEXT PRIMARY KEY,
			project_id       TEXT NOT NULL,
			title            TEXT NOT NULL,
			tags             TEXT NOT NULL DEFAULT '[]',
			pinned           INTEGER NOT NULL DEFAULT 0,
			locked           INTEGER NOT NULL DEFAULT 0,
			created_by       TEXT NOT NULL,
			last_activity_at DATETIME NOT NULL,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_threads_project ON threads(project_id);`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			thread_id  TEXT NOT NULL,
			project_id TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			deleted    INTEGER NOT NULL DEFAULT 0,
			deleted_by TEXT NOT NULL DEFAULT '',
			deleted_at DATETIME,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id);`},
	{"resources", `
		CREATE TABLE IF NOT EXISTS resources (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			uploaded_by TEXT NOT NULL,
			title       TEXT NOT NULL,
			provider    TEXT NOT NULL,
			url         TEXT NOT NULL,
			storage_key TEXT NOT NULL DEFAULT '',
			mime_type   TEXT NOT NULL DEFAULT '',
			size        INTEGER NOT NULL DEFAULT 0,
			file_name   TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_resources_project ON resources(project_id);`},
	{"learning", `
		CREATE TABLE IF NOT EXISTS learning (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			created_by TEXT NOT NULL,
			topic      TEXT NOT NULL,
			notes      TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT '',
			resources  TEXT NOT NULL DEFAULT '[]',
			tags       TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_learning_project_creator ON learning(project_id, created_by);`},
	{"snippets", `
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			created_by  TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_project ON snippets(project_id, created_at);`},
	{"solutions", `
		CREATE TABLE IF NOT EXISTS solutions (
			id               TEXT PRIMARY KEY,
			project_id       TEXT NOT NULL,
			created_by       TEXT NOT NULL,
			title            TEXT NOT NULL,
			problem          TEXT NOT NULL DEFAULT '',
			approach         TEXT NOT NULL DEFAULT '',
			code             TEXT NOT NULL DEFAULT '',
			language         TEXT NOT NULL DEFAULT '',
			difficulty       TEXT NOT NULL DEFAULT '',
			time_complexity  TEXT NOT NULL DEFAULT '',
			space_complexity TEXT NOT NULL DEFAULT '',
			tags             TEXT NOT NULL DEFAULT '[]',
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_solutions_project ON solutions(project_id);`},
	{"invitations", `
		CREATE TABLE IF NOT EXISTS invitations (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			code       TEXT NOT NULL UNIQUE,
			token      TEXT NOT NULL UNIQUE,
			role       TEXT NOT NULL,
			expires_at DATETIME,
			max_uses   INTEGER NOT NULL DEFAULT 0,
			uses       INTEGER NOT NULL DEFAULT 0,
			enabled    INTEGER NOT NULL DEFAULT 1,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invitations_project ON invitations(project_id);`},
	{"notifications", `
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			is_read    INTEGER NOT NULL DEFAULT 0,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);`},
}

func (db *DB) migrate() error {
	for _, step := range schema {
		if _, err := db.conn.Exec(step.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

// encodeList stores a string slice as JSON text. nil encodes as "[]".
func encodeList(v []string) string {
	if v == nil {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decoding list column: %w", err)
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// checkAffected turns "0 rows affected" into a NotFound-style signal for callers.
func checkAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// clampList applies default and maximum page sizes.
func clampList(opts repository.ListOptions, def, maxLimit int) (int, int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
