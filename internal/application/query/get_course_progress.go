package query

import (
	"context"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE PROGRESS QUERY
// Прогресс по курсу всегда вычисляется из записей о завершении и манифеста
// уроков. Никакого хранимого счётчика, который мог бы разойтись с правдой.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseProgressQuery содержит параметры запроса.
type GetCourseProgressQuery struct {
	// LearnerID - чей прогресс. Пустое значение - анонимный просмотр
	// манифеста (все уроки не завершены, платные заблокированы).
	LearnerID shared.LearnerID

	// CourseID - какой курс.
	CourseID shared.CourseID
}

// LessonDTO - урок с его статусом для учащегося.
type LessonDTO struct {
	LessonID   string `json:"lesson_id"`
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
	IsFree     bool   `json:"is_free"`
	Completed  bool   `json:"completed"`
	Locked     bool   `json:"locked"`
}

// CourseProgressDTO - прогресс курса для отдачи наружу.
type CourseProgressDTO struct {
	CourseID         string      `json:"course_id"`
	Title            string      `json:"title"`
	TotalLessons     int         `json:"total_lessons"`
	CompletedLessons int         `json:"completed_lessons"`
	Percent          float64     `json:"percent"`
	Completed        bool        `json:"completed"`
	Lessons          []LessonDTO `json:"lessons"`
}

// GetCourseProgressHandler обрабатывает GetCourseProgressQuery.
type GetCourseProgressHandler struct {
	courseRepo  course.Repository
	completions progress.CompletionStore
}

// NewGetCourseProgressHandler создаёт обработчик.
func NewGetCourseProgressHandler(courseRepo course.Repository, completions progress.CompletionStore) *GetCourseProgressHandler {
	return &GetCourseProgressHandler{
		courseRepo:  courseRepo,
		completions: completions,
	}
}

// Handle выполняет запрос.
func (h *GetCourseProgressHandler) Handle(ctx context.Context, q GetCourseProgressQuery) (*CourseProgressDTO, error) {
	if q.CourseID.IsEmpty() {
		return nil, shared.NewDomainError("course", "GetProgress", shared.ErrInvalidID, "course ID is required")
	}

	c, err := h.courseRepo.GetCourse(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}
	lessons, err := h.courseRepo.ListLessons(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}

	signedIn := !q.LearnerID.IsEmpty()
	completed := make(map[shared.LessonID]bool)
	if signedIn {
		records, err := h.completions.ListByLearnerCourse(ctx, q.LearnerID, q.CourseID)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			completed[r.LessonID] = true
		}
	}

	manifest := make([]shared.LessonID, 0, len(lessons))
	for _, l := range lessons {
		manifest = append(manifest, l.ID)
	}
	p := progress.ComputeCourseProgress(q.CourseID, manifest, completed)
	statuses := progress.ComputeLessonStatuses(lessons, completed, signedIn)

	dto := &CourseProgressDTO{
		CourseID:         c.ID.String(),
		Title:            c.Title,
		TotalLessons:     p.TotalLessons,
		CompletedLessons: p.CompletedLessons,
		Percent:          p.Percent,
		Completed:        p.Completed(),
		Lessons:          make([]LessonDTO, 0, len(statuses)),
	}
	for i, s := range statuses {
		dto.Lessons = append(dto.Lessons, LessonDTO{
			LessonID:   s.LessonID.String(),
			Title:      s.Title,
			OrderIndex: s.OrderIndex,
			IsFree:     lessons[i].IsFree,
			Completed:  s.Completed,
			Locked:     s.Locked,
		})
	}
	return dto, nil
}
