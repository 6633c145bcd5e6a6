package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the meetup schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			email            VARCHAR(100),
			hashed_password  VARCHAR(255) NOT NULL,
			bio              TEXT,
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			is_online        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL    PRIMARY KEY,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_participants (
			user_id         BIGINT       NOT NULL REFERENCES users(id),
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			joined_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, conversation_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL    PRIMARY KEY,
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT       NOT NULL REFERENCES users(id),
			content         TEXT         NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL,
			is_read         BOOLEAN      NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS activities (
			id               BIGSERIAL    PRIMARY KEY,
			user_id          BIGINT       NOT NULL REFERENCES users(id),
			title            VARCHAR(255) NOT NULL,
			description      TEXT         NOT NULL,
			category         VARCHAR(50)  NOT NULL DEFAULT '',
			date_time        TIMESTAMPTZ  NOT NULL,
			location         VARCHAR(255) NOT NULL,
			max_participants INTEGER      NOT NULL,
			status           VARCHAR(50)  NOT NULL DEFAULT 'active'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, is_read)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
