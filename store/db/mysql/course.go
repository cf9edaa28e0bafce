package mysql

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/store"
)

func (d *DB) UpsertCourseMetadata(ctx context.Context, upsert *store.CourseMetadata) (*store.CourseMetadata, error) {
	stmt := "INSERT INTO `course_metadata` (`course_name`, `payload`) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE `payload` = VALUES(`payload`), `updated_ts` = UNIX_TIMESTAMP()"
	if _, err := d.db.ExecContext(ctx, stmt, upsert.CourseName, upsert.Payload); err != nil {
		return nil, err
	}
	return d.GetCourseMetadata(ctx, upsert.CourseName)
}

func (d *DB) GetCourseMetadata(ctx context.Context, courseName string) (*store.CourseMetadata, error) {
	c := &store.CourseMetadata{}
	err := d.db.QueryRowContext(ctx, "SELECT `course_name`, `payload`, `updated_ts` FROM `course_metadata` WHERE `course_name` = ?", courseName).
		Scan(&c.CourseName, &c.Payload, &c.UpdatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
