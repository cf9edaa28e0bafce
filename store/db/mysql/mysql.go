package mysql

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/go-sql-driver/mysql"
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
	config, err := mysql.ParseDSN(profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse DSN: %s", profile.DSN)
	}
	// Timestamps are stored as unix seconds, so time parsing stays off.
	config.ParseTime = false

	driver := DB{profile: profile}
	driver.db, err = sql.Open("mysql", config.FormatDSN())
	if err != nil {
		slog.Error("failed to open database", "err", err)
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}

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
		"CREATE TABLE IF NOT EXISTS `conversation` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`uid` VARCHAR(256) NOT NULL UNIQUE," +
			"`name` TEXT NOT NULL," +
			"`course_name` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`model_id` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`prompt` TEXT NOT NULL," +
			"`temperature` DOUBLE NOT NULL DEFAULT 0," +
			"`user_email` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`created_ts` BIGINT NOT NULL DEFAULT (UNIX_TIMESTAMP())," +
			"`updated_ts` BIGINT NOT NULL DEFAULT (UNIX_TIMESTAMP())," +
			"INDEX `idx_conversation_course` (`course_name`)" +
			")",
		"CREATE TABLE IF NOT EXISTS `conversation_message` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`conversation_id` INT NOT NULL," +
			"`uid` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`role` VARCHAR(256) NOT NULL CHECK (`role` IN ('user', 'assistant', 'system'))," +
			"`content` LONGTEXT NOT NULL," +
			"`contexts` LONGTEXT NOT NULL," +
			"`tools` LONGTEXT NOT NULL," +
			"`final_prompt` LONGTEXT NOT NULL," +
			"`system_prompt` LONGTEXT NOT NULL," +
			"`created_ts` BIGINT NOT NULL DEFAULT (UNIX_TIMESTAMP())," +
			"INDEX `idx_conversation_message_conversation` (`conversation_id`)," +
			"CONSTRAINT `fk_conversation_message_conversation` FOREIGN KEY (`conversation_id`) REFERENCES `conversation`(`id`) ON DELETE CASCADE" +
			")",
		"CREATE TABLE IF NOT EXISTS `course_metadata` (" +
			"`course_name` VARCHAR(256) NOT NULL PRIMARY KEY," +
			"`payload` LONGTEXT NOT NULL," +
			"`updated_ts` BIGINT NOT NULL DEFAULT (UNIX_TIMESTAMP())" +
			")",
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "failed to migrate mysql schema")
		}
	}
	return nil
}
