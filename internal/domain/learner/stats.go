package learner

import (
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER STATS
// Единственная разделяемая изменяемая запись на учащегося. Мутируется
// только журналом XP (итог), streak-трекером (поля серии) и движком
// бейджей (набор бейджей); внешней прямой записи нет.
// ══════════════════════════════════════════════════════════════════════════════

// LearnerStats представляет агрегированную статистику учащегося.
// Создаётся лениво при первом завершении урока.
type LearnerStats struct {
	// LearnerID - идентификатор учащегося.
	LearnerID shared.LearnerID

	// XPTotal - суммарные очки опыта. Инвариант: равно сумме записей
	// журнала начислений, никогда не уменьшается.
	XPTotal shared.XP

	// CurrentStreak - текущая серия дней с активностью.
	CurrentStreak int

	// LongestStreak - лучшая серия. Инвариант: CurrentStreak <= LongestStreak.
	LongestStreak int

	// LastActivityDate - календарная дата последней активности.
	// Zero value означает, что активности ещё не было.
	LastActivityDate shared.Date

	// Badges - полученные бейджи. Только растёт, бейджи не отзываются.
	Badges []shared.BadgeID

	// CreatedAt - когда запись создана.
	CreatedAt time.Time

	// UpdatedAt - когда запись последний раз изменялась.
	UpdatedAt time.Time
}

// NewLearnerStats создаёт пустую статистику для учащегося.
func NewLearnerStats(learnerID shared.LearnerID) *LearnerStats {
	now := time.Now().UTC()
	return &LearnerStats{
		LearnerID:     learnerID,
		XPTotal:       0,
		CurrentStreak: 0,
		LongestStreak: 0,
		Badges:        make([]shared.BadgeID, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasBadge проверяет, получен ли бейдж.
func (s *LearnerStats) HasBadge(id shared.BadgeID) bool {
	for _, b := range s.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// GrantBadge добавляет бейдж, если его ещё нет.
// Возвращает true, если бейдж был добавлен.
func (s *LearnerStats) GrantBadge(id shared.BadgeID) bool {
	if s.HasBadge(id) {
		return false
	}
	s.Badges = append(s.Badges, id)
	s.UpdatedAt = time.Now().UTC()
	return true
}

// Validate проверяет инварианты записи.
func (s *LearnerStats) Validate() error {
	if err := s.LearnerID.Validate(); err != nil {
		return err
	}
	if !s.XPTotal.IsValid() {
		return shared.ErrNegativeXP
	}
	if s.CurrentStreak < 0 || s.LongestStreak < 0 {
		return shared.NewDomainError("learner", "Validate", shared.ErrNegativeValue, "streak cannot be negative")
	}
	if s.CurrentStreak > s.LongestStreak {
		return shared.NewDomainError("learner", "Validate", shared.ErrInvalidState, "current streak exceeds longest streak")
	}
	return nil
}

// Snapshot возвращает срез статистики для оценки правил бейджей.
func (s *LearnerStats) Snapshot(completedLessons, completedCourses int) Snapshot {
	return Snapshot{
		XPTotal:          s.XPTotal,
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
		CompletedLessons: completedLessons,
		CompletedCourses: completedCourses,
	}
}
