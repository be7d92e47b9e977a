// Package migrations holds the database schema. Statements are idempotent
// (CREATE ... IF NOT EXISTS) and applied in order on startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT PRIMARY KEY,
		username        TEXT NOT NULL,
		email           TEXT NOT NULL,
		hashed_password TEXT NOT NULL,
		points          BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,

	`CREATE TABLE IF NOT EXISTS bets (
		id                 TEXT PRIMARY KEY,
		creator_id         TEXT NOT NULL REFERENCES users(id),
		title              TEXT NOT NULL,
		criteria           TEXT NOT NULL DEFAULT '',
		amount             BIGINT NOT NULL CHECK (amount >= 0),
		deadline           TIMESTAMPTZ NOT NULL,
		proof_deadline     TIMESTAMPTZ,
		status             TEXT NOT NULL,
		stars              BIGINT NOT NULL DEFAULT 0,
		proof_comment      TEXT NOT NULL DEFAULT '',
		proof_media_url    TEXT NOT NULL DEFAULT '',
		proof_submitted_at TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS bets_creator_id_idx ON bets (creator_id)`,

	`CREATE INDEX IF NOT EXISTS bets_due_idx ON bets (status, deadline)`,

	`CREATE TABLE IF NOT EXISTS challenges (
		id            TEXT PRIMARY KEY,
		bet_id        TEXT NOT NULL REFERENCES bets(id),
		challenger_id TEXT NOT NULL REFERENCES users(id),
		amount        BIGINT NOT NULL CHECK (amount > 0),
		status        TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS challenges_bet_id_idx ON challenges (bet_id)`,

	`CREATE TABLE IF NOT EXISTS proof_votes (
		id         TEXT PRIMARY KEY,
		bet_id     TEXT NOT NULL REFERENCES bets(id),
		voter_id   TEXT NOT NULL REFERENCES users(id),
		value      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT proof_votes_bet_id_voter_id_key UNIQUE (bet_id, voter_id)
	)`,

	`CREATE TABLE IF NOT EXISTS stars (
		id         TEXT PRIMARY KEY,
		bet_id     TEXT NOT NULL REFERENCES bets(id),
		user_id    TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT stars_bet_id_user_id_key UNIQUE (bet_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		bet_id     TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS notifications_user_id_idx ON notifications (user_id, read)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
