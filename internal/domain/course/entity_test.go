package course

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

func TestLesson_Validate(t *testing.T) {
	valid := Lesson{
		ID:         "lesson-1",
		CourseID:   "course-1",
		Title:      "Intro",
		OrderIndex: 1,
	}

	t.Run("valid lesson", func(t *testing.T) {
		l := valid
		assert.NoError(t, l.Validate())
	})

	t.Run("empty lesson ID", func(t *testing.T) {
		l := valid
		l.ID = ""
		err := l.Validate()
		assert.ErrorIs(t, err, shared.ErrInvalidLessonID)
		assert.ErrorIs(t, err, shared.ErrInvalidID)
	})

	t.Run("empty course ID", func(t *testing.T) {
		l := valid
		l.CourseID = "   "
		err := l.Validate()
		assert.ErrorIs(t, err, shared.ErrInvalidCourseID)
		assert.ErrorIs(t, err, shared.ErrInvalidID)
	})

	t.Run("order index below one", func(t *testing.T) {
		l := valid
		l.OrderIndex = 0
		assert.ErrorIs(t, l.Validate(), shared.ErrValueOutOfRange)
	})
}
