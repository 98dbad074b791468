package query

import (
	"context"
	"sort"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Сводка для личного кабинета: статистика плюс прогресс по каждому курсу,
// в котором у учащегося есть хотя бы одно завершение.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery содержит параметры запроса.
type GetDashboardQuery struct {
	// LearnerID - чей кабинет.
	LearnerID shared.LearnerID

	// Today - сегодняшняя дата в поясе учащегося.
	Today shared.Date
}

// DashboardCourseDTO - сжатый прогресс одного курса в кабинете.
type DashboardCourseDTO struct {
	CourseID         string  `json:"course_id"`
	Title            string  `json:"title"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	Percent          float64 `json:"percent"`
	Completed        bool    `json:"completed"`
}

// DashboardDTO - сводка личного кабинета.
type DashboardDTO struct {
	Stats   *StatsDTO            `json:"stats"`
	Courses []DashboardCourseDTO `json:"courses"`
}

// GetDashboardHandler обрабатывает GetDashboardQuery.
type GetDashboardHandler struct {
	stats       *GetStatsHandler
	courseRepo  course.Repository
	completions progress.CompletionStore
}

// NewGetDashboardHandler создаёт обработчик.
func NewGetDashboardHandler(stats *GetStatsHandler, courseRepo course.Repository, completions progress.CompletionStore) *GetDashboardHandler {
	return &GetDashboardHandler{
		stats:       stats,
		courseRepo:  courseRepo,
		completions: completions,
	}
}

// Handle выполняет запрос.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*DashboardDTO, error) {
	if err := q.LearnerID.Validate(); err != nil {
		return nil, err
	}

	statsDTO, err := h.stats.Handle(ctx, GetStatsQuery{LearnerID: q.LearnerID, Today: q.Today})
	if err != nil {
		return nil, err
	}

	records, err := h.completions.ListByLearner(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	// Группируем завершения по курсам; прогресс каждого курса - производный.
	byCourse := make(map[shared.CourseID]map[shared.LessonID]bool)
	for _, r := range records {
		if byCourse[r.CourseID] == nil {
			byCourse[r.CourseID] = make(map[shared.LessonID]bool)
		}
		byCourse[r.CourseID][r.LessonID] = true
	}

	dashboard := &DashboardDTO{
		Stats:   statsDTO,
		Courses: make([]DashboardCourseDTO, 0, len(byCourse)),
	}
	for courseID, completed := range byCourse {
		c, err := h.courseRepo.GetCourse(ctx, courseID)
		if err != nil {
			if shared.IsNotFound(err) {
				// Курс снят с каталога; завершения остаются в журнале.
				continue
			}
			return nil, err
		}
		lessons, err := h.courseRepo.ListLessons(ctx, courseID)
		if err != nil {
			return nil, err
		}
		manifest := make([]shared.LessonID, 0, len(lessons))
		for _, l := range lessons {
			manifest = append(manifest, l.ID)
		}
		p := progress.ComputeCourseProgress(courseID, manifest, completed)
		dashboard.Courses = append(dashboard.Courses, DashboardCourseDTO{
			CourseID:         c.ID.String(),
			Title:            c.Title,
			TotalLessons:     p.TotalLessons,
			CompletedLessons: p.CompletedLessons,
			Percent:          p.Percent,
			Completed:        p.Completed(),
		})
	}
	sort.Slice(dashboard.Courses, func(i, j int) bool {
		return dashboard.Courses[i].Title < dashboard.Courses[j].Title
	})
	return dashboard, nil
}
