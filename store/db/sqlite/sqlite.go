package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: it's currently disabled by default, but it's a
	// good practice to be explicit and prevent future surprises on SQLite upgrades.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	//
	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	db, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: db, profile: profile}

	return &driver, nil
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
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			uid         TEXT    NOT NULL UNIQUE,
			name        TEXT    NOT NULL DEFAULT '',
			course_name TEXT    NOT NULL DEFAULT '',
			model_id    TEXT    NOT NULL DEFAULT '',
			prompt      TEXT    NOT NULL DEFAULT '',
			temperature REAL    NOT NULL DEFAULT 0,
			user_email  TEXT    NOT NULL DEFAULT '',
			created_ts  BIGINT  NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts  BIGINT  NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_course ON conversation(course_name)`,
		`CREATE TABLE IF NOT EXISTS conversation_message (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversation(id) ON DELETE CASCADE,
			uid             TEXT    NOT NULL DEFAULT '',
			role            TEXT    NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content         TEXT    NOT NULL,
			contexts        TEXT    NOT NULL DEFAULT '',
			tools           TEXT    NOT NULL DEFAULT '',
			final_prompt    TEXT    NOT NULL DEFAULT '',
			system_prompt   TEXT    NOT NULL DEFAULT '',
			created_ts      BIGINT  NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation ON conversation_message(conversation_id)`,
		`CREATE TABLE IF NOT EXISTS course_metadata (
			course_name TEXT   NOT NULL PRIMARY KEY,
			payload     TEXT   NOT NULL,
			updated_ts  BIGINT NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "failed to migrate sqlite schema")
		}
	}
	return nil
}
