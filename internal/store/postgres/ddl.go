package postgres

import (
	"context"
	"database/sql"
)

// EnsureSchema applies the core schema. All statements are idempotent so the
// function is safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            display_name TEXT NOT NULL,
            role TEXT NOT NULL,
            avatar_url TEXT,
            bio TEXT,
            reset_token TEXT,
            reset_token_expires TIMESTAMPTZ,
            creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS memoirs (
            memoir_id TEXT PRIMARY KEY,
            author_id TEXT NOT NULL REFERENCES users(user_id),
            title TEXT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            cover_url TEXT,
            status TEXT NOT NULL,
            chapters JSONB NOT NULL DEFAULT '[]',
            creation_time TIMESTAMPTZ NOT NULL DEFAULT now(),
            update_time TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS memoirs_author_idx ON memoirs(author_id)`,
		`CREATE TABLE IF NOT EXISTS memoir_collaborators (
            position BIGSERIAL PRIMARY KEY,
            memoir_id TEXT NOT NULL,
            user_id TEXT,
            role TEXT NOT NULL,
            invite_status TEXT NOT NULL,
            invite_email TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS memoir_collaborators_memoir_idx ON memoir_collaborators(memoir_id)`,
		`CREATE TABLE IF NOT EXISTS invitations (
            invitation_id TEXT PRIMARY KEY,
            memoir_id TEXT NOT NULL,
            invitee_email TEXT NOT NULL,
            role TEXT NOT NULL,
            token TEXT NOT NULL UNIQUE,
            status TEXT NOT NULL,
            expires_at TIMESTAMPTZ NOT NULL,
            invited_by TEXT NOT NULL,
            creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		// One pending invitation per (memoir, email); closes the duplicate
		// invite race at the storage level.
		`CREATE UNIQUE INDEX IF NOT EXISTS invitations_pending_idx
            ON invitations (memoir_id, lower(invitee_email)) WHERE status = 'pending'`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
