package course

import (
	"context"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// Repository - read-only доступ к каталогу курсов.
type Repository interface {
	// GetCourse возвращает курс или shared.ErrCourseNotFound.
	GetCourse(ctx context.Context, id shared.CourseID) (*Course, error)

	// GetLesson возвращает урок или shared.ErrLessonNotFound.
	GetLesson(ctx context.Context, id shared.LessonID) (*Lesson, error)

	// ListLessons возвращает уроки курса, отсортированные по order_index.
	ListLessons(ctx context.Context, courseID shared.CourseID) ([]Lesson, error)

	// ListCourses возвращает все курсы каталога.
	ListCourses(ctx context.Context) ([]Course, error)

	// LessonCount возвращает число уроков в курсе.
	LessonCount(ctx context.Context, courseID shared.CourseID) (int, error)
}
