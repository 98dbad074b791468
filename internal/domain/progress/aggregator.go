package progress

import (
	"math"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS AGGREGATION
// Процент прохождения курса - чистая функция от записей о завершении и
// манифеста уроков. Никаких денормализованных счётчиков: это осознанное
// архитектурное решение, исключающее целый класс багов со stale-счётчиками
// при конкурентных завершениях.
// ══════════════════════════════════════════════════════════════════════════════

// CourseProgress - производный (не хранимый) прогресс по курсу.
type CourseProgress struct {
	// CourseID - идентификатор курса.
	CourseID shared.CourseID

	// TotalLessons - всего уроков в курсе.
	TotalLessons int

	// CompletedLessons - завершено уроков.
	CompletedLessons int

	// Percent - процент прохождения, округлён до двух знаков.
	// Для курса без уроков определён как 0, а не ошибка деления.
	Percent float64
}

// Completed возвращает true, если завершены все уроки непустого курса.
func (p CourseProgress) Completed() bool {
	return p.TotalLessons > 0 && p.CompletedLessons == p.TotalLessons
}

// LessonProgress - статус одного урока в манифесте курса.
type LessonProgress struct {
	LessonID   shared.LessonID
	Title      string
	OrderIndex int

	// Completed - завершён ли урок учащимся.
	Completed bool

	// Locked - true, если урок требует входа, а учащийся не аутентифицирован.
	Locked bool
}

// ComputeCourseProgress вычисляет прогресс по манифесту уроков и множеству
// завершённых уроков. Уроки вне манифеста игнорируются.
func ComputeCourseProgress(courseID shared.CourseID, manifest []shared.LessonID, completed map[shared.LessonID]bool) CourseProgress {
	p := CourseProgress{
		CourseID:     courseID,
		TotalLessons: len(manifest),
	}
	for _, lessonID := range manifest {
		if completed[lessonID] {
			p.CompletedLessons++
		}
	}
	p.Percent = percent(p.CompletedLessons, p.TotalLessons)
	return p
}

// ComputeLessonStatuses возвращает постатусный список уроков курса в порядке
// манифеста. signedIn=false блокирует платные уроки (is_free=false).
func ComputeLessonStatuses(lessons []course.Lesson, completed map[shared.LessonID]bool, signedIn bool) []LessonProgress {
	statuses := make([]LessonProgress, 0, len(lessons))
	for _, l := range lessons {
		statuses = append(statuses, LessonProgress{
			LessonID:   l.ID,
			Title:      l.Title,
			OrderIndex: l.OrderIndex,
			Completed:  completed[l.ID],
			Locked:     !l.IsFree && !signedIn,
		})
	}
	return statuses
}

// percent возвращает completed/total*100 с округлением до сотых.
// total=0 даёт 0.
func percent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}
