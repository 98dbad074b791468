package progress

import (
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// Append-only журнал начислений с уникальным ключом (учащийся, урок).
// Уникальность ключа - и есть механизм защиты от двойного начисления:
// credit реализуется как атомарный insert-if-absent, а итог поддерживается
// атомарным инкрементом, никогда - чтением-модификацией-записью.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerEntry - одна запись журнала начислений. Никогда не изменяется
// и не удаляется.
type LedgerEntry struct {
	// LearnerID - кому начислено.
	LearnerID shared.LearnerID

	// LessonID - за какой урок. Пара (LearnerID, LessonID) уникальна.
	LessonID shared.LessonID

	// Amount - начисленные очки.
	Amount shared.XP

	// CreatedAt - когда запись добавлена.
	CreatedAt time.Time
}

// NewLedgerEntry создаёт запись журнала.
func NewLedgerEntry(learnerID shared.LearnerID, lessonID shared.LessonID, amount shared.XP) (*LedgerEntry, error) {
	if err := learnerID.Validate(); err != nil {
		return nil, err
	}
	if lessonID.IsEmpty() {
		return nil, shared.NewDomainError("progress", "NewLedgerEntry", shared.ErrInvalidID, "lesson ID is required")
	}
	if amount <= 0 {
		return nil, shared.NewDomainError("progress", "NewLedgerEntry", shared.ErrValueOutOfRange, "credit amount must be positive")
	}
	return &LedgerEntry{
		LearnerID: learnerID,
		LessonID:  lessonID,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CreditResult - результат попытки начисления.
type CreditResult struct {
	// Applied - true, если запись журнала была добавлена и итог увеличен.
	// false означает, что урок уже был начислен ранее; итог не менялся.
	Applied bool

	// NewTotal - итог учащегося после операции.
	NewTotal shared.XP
}
