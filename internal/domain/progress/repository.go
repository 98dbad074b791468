package progress

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// CompletionStore - хранилище записей о завершении уроков.
// Уникальность пары (learner_id, lesson_id) обеспечивается на уровне
// хранилища, а не проверкой read-then-write.
type CompletionStore interface {
	// Put вставляет запись, если её ещё нет. Возвращает актуальную запись
	// и inserted=true, если вставка произошла в этом вызове. Повторный
	// вызов для той же пары возвращает существующую запись и inserted=false.
	Put(ctx context.Context, record *CompletionRecord) (*CompletionRecord, bool, error)

	// Get возвращает запись о завершении или shared.ErrCompletionNotFound.
	Get(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) (*CompletionRecord, error)

	// ListByLearner возвращает все завершения учащегося.
	ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*CompletionRecord, error)

	// ListByLearnerCourse возвращает завершения учащегося внутри курса.
	ListByLearnerCourse(ctx context.Context, learnerID shared.LearnerID, courseID shared.CourseID) ([]*CompletionRecord, error)

	// ListUncredited возвращает записи с credited_xp=false старше olderThan.
	// Используется воркером сверки для дозачисления XP.
	ListUncredited(ctx context.Context, olderThan time.Time, limit int) ([]*CompletionRecord, error)

	// MarkCredited выставляет credited_xp=true. Идемпотентна.
	MarkCredited(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) error

	// CountByLearner возвращает общее число завершённых уроков учащегося.
	CountByLearner(ctx context.Context, learnerID shared.LearnerID) (int, error)

	// CompletedCoursesCount возвращает число курсов, в которых учащийся
	// завершил все уроки. Курсы без уроков не считаются.
	CompletedCoursesCount(ctx context.Context, learnerID shared.LearnerID) (int, error)
}

// Ledger - append-only журнал начислений XP.
type Ledger interface {
	// Credit атомарно вставляет запись журнала и увеличивает xp_total,
	// если записи для пары (learner_id, lesson_id) ещё нет. Повторный
	// вызов возвращает Applied=false без изменения баланса.
	Credit(ctx context.Context, entry *LedgerEntry) (CreditResult, error)

	// Entries возвращает записи журнала учащегося, новые первыми.
	Entries(ctx context.Context, learnerID shared.LearnerID, limit int) ([]*LedgerEntry, error)
}
