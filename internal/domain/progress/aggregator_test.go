package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

func TestComputeCourseProgress(t *testing.T) {
	manifest := []shared.LessonID{"l1", "l2", "l3"}

	tests := []struct {
		name          string
		completed     map[shared.LessonID]bool
		wantCompleted int
		wantPercent   float64
		wantDone      bool
	}{
		{"nothing completed", nil, 0, 0, false},
		{"one of three", map[shared.LessonID]bool{"l1": true}, 1, 33.33, false},
		{"two of three", map[shared.LessonID]bool{"l1": true, "l3": true}, 2, 66.67, false},
		{"all three", map[shared.LessonID]bool{"l1": true, "l2": true, "l3": true}, 3, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeCourseProgress("course-1", manifest, tt.completed)

			assert.Equal(t, 3, p.TotalLessons)
			assert.Equal(t, tt.wantCompleted, p.CompletedLessons)
			assert.Equal(t, tt.wantPercent, p.Percent)
			assert.Equal(t, tt.wantDone, p.Completed())
		})
	}
}

func TestComputeCourseProgress_EmptyCourse(t *testing.T) {
	p := ComputeCourseProgress("course-1", nil, nil)

	assert.Equal(t, 0, p.TotalLessons)
	assert.Equal(t, float64(0), p.Percent)
	assert.False(t, p.Completed(), "empty course is never completed")
}

func TestComputeCourseProgress_IgnoresForeignLessons(t *testing.T) {
	// Завершения уроков вне манифеста (например, из удалённого курса)
	// не участвуют в проценте.
	manifest := []shared.LessonID{"l1", "l2"}
	completed := map[shared.LessonID]bool{"l1": true, "other": true}

	p := ComputeCourseProgress("course-1", manifest, completed)

	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, float64(50), p.Percent)
}

func TestComputeCourseProgress_Rounding(t *testing.T) {
	manifest := make([]shared.LessonID, 7)
	for i := range manifest {
		manifest[i] = shared.LessonID(string(rune('a' + i)))
	}
	completed := map[shared.LessonID]bool{"a": true}

	p := ComputeCourseProgress("course-1", manifest, completed)

	// 1/7 = 14.2857... -> 14.29
	assert.Equal(t, 14.29, p.Percent)
}

func TestComputeLessonStatuses(t *testing.T) {
	lessons := []course.Lesson{
		{ID: "l1", CourseID: "c1", Title: "Введение", OrderIndex: 1, IsFree: true},
		{ID: "l2", CourseID: "c1", Title: "Основы", OrderIndex: 2, IsFree: false},
		{ID: "l3", CourseID: "c1", Title: "Практика", OrderIndex: 3, IsFree: false},
	}
	completed := map[shared.LessonID]bool{"l1": true}

	t.Run("signed in learner", func(t *testing.T) {
		statuses := ComputeLessonStatuses(lessons, completed, true)

		assert.Len(t, statuses, 3)
		assert.True(t, statuses[0].Completed)
		assert.False(t, statuses[0].Locked)
		assert.False(t, statuses[1].Locked, "signed in learners see paid lessons")
	})

	t.Run("anonymous visitor", func(t *testing.T) {
		statuses := ComputeLessonStatuses(lessons, nil, false)

		assert.False(t, statuses[0].Locked, "free lesson stays open")
		assert.True(t, statuses[1].Locked)
		assert.True(t, statuses[2].Locked)
		for _, s := range statuses {
			assert.False(t, s.Completed)
		}
	})
}
