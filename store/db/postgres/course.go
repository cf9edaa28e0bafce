package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/store"
)

func (d *DB) UpsertCourseMetadata(ctx context.Context, upsert *store.CourseMetadata) (*store.CourseMetadata, error) {
	stmt := `INSERT INTO course_metadata (course_name, payload) VALUES ($1, $2)
	         ON CONFLICT (course_name) DO UPDATE SET payload = EXCLUDED.payload, updated_ts = EXTRACT(EPOCH FROM NOW())
	         RETURNING updated_ts`
	c := *upsert
	if err := d.db.QueryRowContext(ctx, stmt, upsert.CourseName, upsert.Payload).Scan(&c.UpdatedTs); err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) GetCourseMetadata(ctx context.Context, courseName string) (*store.CourseMetadata, error) {
	c := &store.CourseMetadata{}
	err := d.db.QueryRowContext(ctx, `SELECT course_name, payload, updated_ts FROM course_metadata WHERE course_name = $1`, courseName).
		Scan(&c.CourseName, &c.Payload, &c.UpdatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
