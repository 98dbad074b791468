// Package course описывает каталог курсов и уроков - read-only
// коллаборатор движка прогресса. Контент курсов управляется отдельной
// системой; здесь только то, что нужно для валидации завершений и
// вычисления прогресса.
package course

import (
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс с упорядоченным списком уроков.
type Course struct {
	ID          shared.CourseID
	Title       string
	Description string
	CreatedAt   time.Time
}

// Lesson - урок внутри курса. OrderIndex уникален в пределах курса.
type Lesson struct {
	ID       shared.LessonID
	CourseID shared.CourseID
	Title    string

	// OrderIndex - позиция урока в курсе, начиная с 1.
	OrderIndex int

	// IsFree - true, если урок доступен без входа.
	IsFree bool

	CreatedAt time.Time
}

// Validate проверяет инварианты урока.
func (l *Lesson) Validate() error {
	if err := l.ID.Validate(); err != nil {
		return err
	}
	if err := l.CourseID.Validate(); err != nil {
		return err
	}
	if l.OrderIndex < 1 {
		return shared.NewDomainError("course", "Lesson.Validate", shared.ErrValueOutOfRange, "order_index must be >= 1")
	}
	return nil
}
