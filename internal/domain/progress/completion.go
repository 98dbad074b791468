// Package progress contains the completion records, the XP ledger and the
// derived course-progress calculations.
package progress

import (
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION RECORD
// Ровно одна запись на пару (учащийся, урок). CompletedAt неизменяем:
// повторное завершение - no-op, а не обновление. Именно это делает
// начисление XP идемпотентным.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRecord представляет факт завершения урока учащимся.
type CompletionRecord struct {
	// ID - внутренний идентификатор записи.
	ID string

	// LearnerID - кто завершил урок.
	LearnerID shared.LearnerID

	// LessonID - какой урок завершён.
	LessonID shared.LessonID

	// CourseID - курс, к которому относится урок (денормализовано для
	// агрегации прогресса).
	CourseID shared.CourseID

	// CompletedAt - когда урок был завершён. Неизменяемо после записи.
	CompletedAt time.Time

	// CreditedXP - true, когда все downstream-шаги (XP, серия, бейджи)
	// применены. false помечает запись для reconciliation-прохода.
	CreditedXP bool
}

// NewCompletionRecord создаёт запись о завершении урока.
func NewCompletionRecord(id string, learnerID shared.LearnerID, lessonID shared.LessonID, courseID shared.CourseID, completedAt time.Time) (*CompletionRecord, error) {
	if err := learnerID.Validate(); err != nil {
		return nil, err
	}
	if lessonID.IsEmpty() {
		return nil, shared.NewDomainError("progress", "NewCompletionRecord", shared.ErrInvalidID, "lesson ID is required")
	}
	if courseID.IsEmpty() {
		return nil, shared.NewDomainError("progress", "NewCompletionRecord", shared.ErrInvalidID, "course ID is required")
	}
	return &CompletionRecord{
		ID:          id,
		LearnerID:   learnerID,
		LessonID:    lessonID,
		CourseID:    courseID,
		CompletedAt: completedAt.UTC(),
		CreditedXP:  false,
	}, nil
}

// NeedsReconciliation возвращает true, если запись долговечна, но
// downstream-начисления ещё не завершены.
func (r *CompletionRecord) NeedsReconciliation() bool {
	return !r.CreditedXP
}
