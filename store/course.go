package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/uiucchat/chatcore/internal/chat"
)

// CourseMetadata is the stored per-course configuration. Payload is the JSON form of
// chat.CourseMetadata.
type CourseMetadata struct {
	CourseName string
	Payload    string
	UpdatedTs  int64
}

func (s *Store) UpsertCourseMetadata(ctx context.Context, course *chat.CourseMetadata) error {
	if course == nil || course.CourseName == "" {
		return errors.New("course name is required")
	}
	payload, err := json.Marshal(course)
	if err != nil {
		return errors.Wrap(err, "failed to encode course metadata")
	}
	_, err = s.driver.UpsertCourseMetadata(ctx, &CourseMetadata{CourseName: course.CourseName, Payload: string(payload)})
	return err
}

// GetCourseMetadata returns the course configuration, or nil when none is stored.
func (s *Store) GetCourseMetadata(ctx context.Context, courseName string) (*chat.CourseMetadata, error) {
	row, err := s.driver.GetCourseMetadata(ctx, courseName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	course := &chat.CourseMetadata{}
	if err := json.Unmarshal([]byte(row.Payload), course); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata of course %s", courseName)
	}
	course.CourseName = courseName
	return course, nil
}
