package learner

import (
	"context"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository определяет операции над записью LearnerStats.
//
// Требования к реализации: атомарный insert-if-absent для ленивого
// создания записи и блокировка строки (или retry-on-conflict) для
// TouchStreak, чтобы конкурентные завершения разных уроков одного
// учащегося не теряли обновлений.
type StatsRepository interface {
	// Get возвращает статистику учащегося.
	// Возвращает ErrStatsNotFound, если записи ещё нет.
	Get(ctx context.Context, learnerID shared.LearnerID) (*LearnerStats, error)

	// GetOrCreate возвращает статистику, лениво создавая пустую запись.
	GetOrCreate(ctx context.Context, learnerID shared.LearnerID) (*LearnerStats, error)

	// TouchStreak применяет активность за календарную дату под блокировкой
	// строки статистики, создавая запись при необходимости.
	// Операция идемпотентна в пределах одного дня (same-day - no-op).
	TouchStreak(ctx context.Context, learnerID shared.LearnerID, date shared.Date) (TouchResult, error)

	// UnlockBadges добавляет бейджи через insert-if-absent и возвращает
	// только фактически добавленные. Бейджи никогда не удаляются.
	UnlockBadges(ctx context.Context, learnerID shared.LearnerID, badges []shared.BadgeID) ([]shared.BadgeID, error)
}
