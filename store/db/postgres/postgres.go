package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Open the PostgreSQL connection
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}

	// Return the DB struct
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation (
			id          SERIAL PRIMARY KEY,
			uid         TEXT    NOT NULL UNIQUE,
			name        TEXT    NOT NULL DEFAULT '',
			course_name TEXT    NOT NULL DEFAULT '',
			model_id    TEXT    NOT NULL DEFAULT '',
			prompt      TEXT    NOT NULL DEFAULT '',
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
			user_email  TEXT    NOT NULL DEFAULT '',
			created_ts  BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
			updated_ts  BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_course ON conversation(course_name)`,
		`CREATE TABLE IF NOT EXISTS conversation_message (
			id              SERIAL PRIMARY KEY,
			conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
			uid             TEXT    NOT NULL DEFAULT '',
			role            TEXT    NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content         TEXT    NOT NULL,
			contexts        TEXT    NOT NULL DEFAULT '',
			tools           TEXT    NOT NULL DEFAULT '',
			final_prompt    TEXT    NOT NULL DEFAULT '',
			system_prompt   TEXT    NOT NULL DEFAULT '',
			created_ts      BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message(conversation_id)`,
		`CREATE TABLE IF NOT EXISTS course_metadata (
			course_name TEXT   PRIMARY KEY,
			payload     TEXT   NOT NULL,
			updated_ts  BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "failed to migrate postgres schema")
		}
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
