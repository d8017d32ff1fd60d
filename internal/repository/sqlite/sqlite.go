// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works, including in tests with
// an in-memory database.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface. One struct for all of them keeps the wiring in server.go
// simple; the service layer still only sees the narrow interfaces.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path surfaces here,
	// not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — important for a
	// web server where sync uploads and discovery queries overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite for legacy reasons.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this right after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates all tables. CREATE TABLE IF NOT EXISTS keeps this
// idempotent — safe to run on every startup against an existing file.
func (db *DB) migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE,
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL DEFAULT '',
				github_id     INTEGER NOT NULL DEFAULT 0,
				display_name  TEXT NOT NULL DEFAULT '',
				avatar_url    TEXT NOT NULL DEFAULT '',
				bio           TEXT NOT NULL DEFAULT '',
				private       INTEGER NOT NULL DEFAULT 0,
				created_at    DATETIME NOT NULL,
				updated_at    DATETIME NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
				ON users(github_id) WHERE github_id != 0;
		`},
		{"installed_apps", `
			CREATE TABLE IF NOT EXISTS installed_apps (
				id             TEXT PRIMARY KEY,
				user_id        TEXT NOT NULL REFERENCES users(id),
				package_name   TEXT NOT NULL,
				app_name       TEXT NOT NULL DEFAULT '',
				icon_url       TEXT NOT NULL DEFAULT '',
				platform       TEXT NOT NULL DEFAULT 'android',
				visible        INTEGER NOT NULL DEFAULT 0,
				discover_count INTEGER NOT NULL DEFAULT 0,
				installed_at   DATETIME NOT NULL,
				created_at     DATETIME NOT NULL,
				UNIQUE(user_id, package_name)
			);
			CREATE INDEX IF NOT EXISTS idx_installed_apps_package
				ON installed_apps(package_name) WHERE visible = 1;
			CREATE INDEX IF NOT EXISTS idx_installed_apps_installed_at
				ON installed_apps(installed_at) WHERE visible = 1;
		`},
		{"apps_catalog", `
			CREATE TABLE IF NOT EXISTS apps_catalog (
				id           TEXT PRIMARY KEY,
				package_name TEXT NOT NULL UNIQUE,
				app_name     TEXT NOT NULL DEFAULT '',
				category     TEXT NOT NULL DEFAULT '',
				icon_url     TEXT NOT NULL DEFAULT '',
				store_url    TEXT NOT NULL DEFAULT '',
				created_at   DATETIME NOT NULL
			);
		`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				id           TEXT PRIMARY KEY,
				follower_id  TEXT NOT NULL REFERENCES users(id),
				following_id TEXT NOT NULL REFERENCES users(id),
				created_at   DATETIME NOT NULL,
				UNIQUE(follower_id, following_id),
				CHECK(follower_id != following_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_following
				ON follows(following_id);
		`},
		{"friend_requests", `
			CREATE TABLE IF NOT EXISTS friend_requests (
				id           TEXT PRIMARY KEY,
				from_user_id TEXT NOT NULL REFERENCES users(id),
				to_user_id   TEXT NOT NULL REFERENCES users(id),
				status       TEXT NOT NULL DEFAULT 'pending',
				created_at   DATETIME NOT NULL,
				responded_at DATETIME
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_pending
				ON friend_requests(from_user_id, to_user_id) WHERE status = 'pending';
			CREATE INDEX IF NOT EXISTS idx_friend_requests_to
				ON friend_requests(to_user_id) WHERE status = 'pending';
		`},
		{"notifications", `
			CREATE TABLE IF NOT EXISTS notifications (
				id              TEXT PRIMARY KEY,
				user_id         TEXT NOT NULL REFERENCES users(id),
				type            TEXT NOT NULL,
				content         TEXT NOT NULL DEFAULT '',
				related_user_id TEXT NOT NULL DEFAULT '',
				related_app_id  TEXT NOT NULL DEFAULT '',
				metadata        TEXT NOT NULL DEFAULT '',
				is_read         INTEGER NOT NULL DEFAULT 0,
				created_at      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_user
				ON notifications(user_id, created_at);
		`},
		{"profile_likes", `
			CREATE TABLE IF NOT EXISTS profile_likes (
				liker_id      TEXT NOT NULL REFERENCES users(id),
				liked_user_id TEXT NOT NULL REFERENCES users(id),
				created_at    DATETIME NOT NULL,
				PRIMARY KEY(liker_id, liked_user_id)
			);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id           TEXT PRIMARY KEY,
				package_name TEXT NOT NULL,
				user_id      TEXT NOT NULL REFERENCES users(id),
				body         TEXT NOT NULL,
				created_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_package
				ON comments(package_name, created_at);
		`},
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}

	return nil
}

// inPlaceholders builds a "?, ?, ?" list for IN clauses and the matching
// args slice. SQLite has no array bind, so this is the standard workaround.
func inPlaceholders(values []string) (string, []any) {
	args := make([]any, len(values))
	placeholders := ""
	for i, v := range values {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = v
	}
	return placeholders, args
}
