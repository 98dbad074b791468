// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Статистика учащегося: XP, серия, бейджи. Читается сквозь кэш;
// промах или недоступность кэша прозрачно уходит в хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache - read-through кэш статистики. Реализация - Redis;
// недоступность кэша никогда не является ошибкой запроса.
type StatsCache interface {
	// GetStats возвращает закэшированную статистику или (nil, nil) при промахе.
	GetStats(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error)

	// SetStats сохраняет статистику с TTL реализации.
	SetStats(ctx context.Context, stats *learner.LearnerStats) error

	// InvalidateStats сбрасывает запись кэша.
	InvalidateStats(ctx context.Context, learnerID shared.LearnerID) error
}

// GetStatsQuery содержит параметры запроса статистики.
type GetStatsQuery struct {
	// LearnerID - чья статистика.
	LearnerID shared.LearnerID

	// Today - сегодняшняя дата в поясе учащегося, для флага StreakAtRisk.
	// Zero value - сегодня по UTC.
	Today shared.Date
}

// BadgeDTO - бейдж для отдачи наружу.
type BadgeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// StatsDTO - статистика учащегося для отдачи наружу.
type StatsDTO struct {
	LearnerID        string     `json:"learner_id"`
	XPTotal          int        `json:"xp_total"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate string     `json:"last_activity_date,omitempty"`
	StreakAtRisk     bool       `json:"streak_at_risk"`
	Badges           []BadgeDTO `json:"badges"`
}

// GetStatsHandler обрабатывает GetStatsQuery.
type GetStatsHandler struct {
	statsRepo   learner.StatsRepository
	cache       StatsCache
	badgeEngine *learner.BadgeEngine
}

// NewGetStatsHandler создаёт обработчик.
func NewGetStatsHandler(statsRepo learner.StatsRepository, cache StatsCache, badgeEngine *learner.BadgeEngine) *GetStatsHandler {
	return &GetStatsHandler{
		statsRepo:   statsRepo,
		cache:       cache,
		badgeEngine: badgeEngine,
	}
}

// Handle выполняет запрос. Учащийся без активности получает нулевую
// статистику, а не ошибку.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsDTO, error) {
	if err := q.LearnerID.Validate(); err != nil {
		return nil, err
	}
	today := q.Today
	if today.IsZero() {
		today = shared.DateOf(time.Now().UTC())
	}

	stats, err := h.loadStats(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	return h.toDTO(stats, today), nil
}

// loadStats читает статистику сквозь кэш.
func (h *GetStatsHandler) loadStats(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	if h.cache != nil {
		if cached, err := h.cache.GetStats(ctx, learnerID); err == nil && cached != nil {
			return cached, nil
		}
	}

	stats, err := h.statsRepo.Get(ctx, learnerID)
	if shared.IsNotFound(err) {
		// Нулевая статистика для учащегося без активности.
		return learner.NewLearnerStats(learnerID), nil
	}
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		_ = h.cache.SetStats(ctx, stats)
	}
	return stats, nil
}

// toDTO собирает DTO, разворачивая бейджи через каталог движка.
func (h *GetStatsHandler) toDTO(stats *learner.LearnerStats, today shared.Date) *StatsDTO {
	dto := &StatsDTO{
		LearnerID:     stats.LearnerID.String(),
		XPTotal:       stats.XPTotal.Int(),
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
		StreakAtRisk:  stats.StreakAtRisk(today),
		Badges:        make([]BadgeDTO, 0, len(stats.Badges)),
	}
	if !stats.LastActivityDate.IsZero() {
		dto.LastActivityDate = stats.LastActivityDate.String()
	}
	for _, badgeID := range stats.Badges {
		def, ok := learner.FindDefinition(h.badgeEngine.Catalog(), badgeID)
		if !ok {
			// Бейдж из каталога прошлой версии; отдаём как есть.
			dto.Badges = append(dto.Badges, BadgeDTO{ID: badgeID.String()})
			continue
		}
		dto.Badges = append(dto.Badges, BadgeDTO{
			ID:          def.ID.String(),
			Name:        def.Name,
			Description: def.Description,
			Emoji:       def.Emoji,
		})
	}
	return dto
}
