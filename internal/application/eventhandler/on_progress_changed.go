// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: они реагируют на изменения
// и запускают побочные эффекты вроде инвалидации кэшей.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/oqu-hub/oqu-learning-hub/internal/application/query"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS CHANGED HANDLER
// Любая мутация статистики (XP, серия, бейдж) делает кэшированную
// статистику учащегося устаревшей. Инвалидация - best effort: кэш
// read-through, промах просто дороже, не опаснее.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressChangedHandler инвалидирует кэш статистики по событиям прогресса.
type OnProgressChangedHandler struct {
	cache  query.StatsCache
	logger *slog.Logger
}

// NewOnProgressChangedHandler создаёт обработчик.
func NewOnProgressChangedHandler(cache query.StatsCache, logger *slog.Logger) *OnProgressChangedHandler {
	return &OnProgressChangedHandler{
		cache:  cache,
		logger: logger,
	}
}

// EventTypes возвращает типы событий, на которые подписан обработчик.
func (h *OnProgressChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventXPCredited,
		shared.EventStreakExtended,
		shared.EventStreakBroken,
		shared.EventBadgeUnlocked,
		shared.EventReconciliationApplied,
	}
}

// Handle обрабатывает событие.
func (h *OnProgressChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}
	learnerID := shared.LearnerID(event.AggregateID())
	if learnerID.IsEmpty() {
		return nil
	}

	if err := h.cache.InvalidateStats(context.Background(), learnerID); err != nil {
		h.logger.Warn("stats cache invalidation failed",
			slog.String("event", string(event.EventType())),
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil
	}

	h.logger.Debug("stats cache invalidated",
		slog.String("event", string(event.EventType())),
		slog.String("learner_id", learnerID.String()))
	return nil
}
