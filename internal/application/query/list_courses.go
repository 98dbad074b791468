package query

import (
	"context"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST COURSES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// CourseDTO - курс каталога для отдачи наружу.
type CourseDTO struct {
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LessonCount int    `json:"lesson_count"`
}

// ListCoursesHandler возвращает каталог курсов.
type ListCoursesHandler struct {
	courseRepo course.Repository
}

// NewListCoursesHandler создаёт обработчик.
func NewListCoursesHandler(courseRepo course.Repository) *ListCoursesHandler {
	return &ListCoursesHandler{courseRepo: courseRepo}
}

// Handle выполняет запрос.
func (h *ListCoursesHandler) Handle(ctx context.Context) ([]CourseDTO, error) {
	courses, err := h.courseRepo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		count, err := h.courseRepo.LessonCount(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, CourseDTO{
			CourseID:    c.ID.String(),
			Title:       c.Title,
			Description: c.Description,
			LessonCount: count,
		})
	}
	return result, nil
}
