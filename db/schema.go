package db

import (
	"database/sql"
	"fmt"
)

// EnsureSchema creates every table the chat service relies on. Statements are
// idempotent so the call is safe on every startup.
func EnsureSchema(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			description TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			is_writable INTEGER NOT NULL DEFAULT 1,
			requires_approval INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_members (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS join_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			requested_at TEXT NOT NULL,
			reviewed_by INTEGER,
			reviewed_at TEXT,
			UNIQUE (user_id, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			body TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			is_pinned INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel_time ON messages(channel_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS bans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			admin_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel_id INTEGER REFERENCES channels(id) ON DELETE CASCADE,
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			expires_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bans_scope ON bans(user_id, IFNULL(channel_id, 0))`,
		`CREATE TABLE IF NOT EXISTS mutes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			admin_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel_id INTEGER REFERENCES channels(id) ON DELETE CASCADE,
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			expires_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_mutes_scope ON mutes(user_id, IFNULL(channel_id, 0))`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stickers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uploader_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL UNIQUE,
			is_approved INTEGER NOT NULL DEFAULT 0,
			uploaded_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema exec failed: %w", err)
		}
	}

	return nil
}

// EnsureColumnExists runs alterStmt when the named column is missing, so new
// columns can be added to databases created by older builds.
func EnsureColumnExists(conn *sql.DB, tableName, columnName, alterStmt string) error {
	rows, err := conn.Query("PRAGMA table_info(" + tableName + ")")
	if err != nil {
		return fmt.Errorf("table_info query failed for %s: %w", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notNull int
		var defaultValue interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return fmt.Errorf("table_info scan failed for %s: %w", tableName, err)
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table_info row error for %s: %w", tableName, err)
	}

	if _, err := conn.Exec(alterStmt); err != nil {
		return fmt.Errorf("alter table failed for %s.%s: %w", tableName, columnName, err)
	}
	return nil
}
