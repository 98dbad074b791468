package learner

import (
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
// Детерминированная машина состояний над (LastActivityDate, CurrentStreak,
// LongestStreak). Трекер никогда не читает настенные часы: дату активности
// передаёт вызывающая сторона, что делает переходы тестируемыми.
// ══════════════════════════════════════════════════════════════════════════════

// StreakCase именует переход streak-машины.
type StreakCase int

const (
	// StreakFirstActivity - первая активность учащегося.
	StreakFirstActivity StreakCase = iota

	// StreakSameDay - повторная активность в тот же день, серия не меняется.
	StreakSameDay

	// StreakNextDay - активность на следующий календарный день, серия растёт.
	StreakNextDay

	// StreakGap - пропущен хотя бы один день, серия сбрасывается до 1.
	StreakGap

	// StreakOutOfOrder - дата раньше последней активности (replay),
	// серия движется только вперёд по календарю.
	StreakOutOfOrder
)

// String возвращает имя перехода.
func (c StreakCase) String() string {
	switch c {
	case StreakFirstActivity:
		return "first_activity"
	case StreakSameDay:
		return "same_day"
	case StreakNextDay:
		return "next_day"
	case StreakGap:
		return "gap"
	case StreakOutOfOrder:
		return "out_of_order"
	default:
		return "unknown"
	}
}

// ClassifyActivity определяет переход для пары (последняя дата, новая дата).
func ClassifyActivity(last, activity shared.Date) StreakCase {
	if last.IsZero() {
		return StreakFirstActivity
	}
	if activity.Before(last) {
		return StreakOutOfOrder
	}
	switch activity.DaysSince(last) {
	case 0:
		return StreakSameDay
	case 1:
		return StreakNextDay
	default:
		return StreakGap
	}
}

// TouchResult содержит результат применения активности к серии.
type TouchResult struct {
	// Changed - true, если состояние серии было изменено.
	Changed bool

	// Case - применённый переход.
	Case StreakCase

	// CurrentStreak - текущая серия после перехода.
	CurrentStreak int

	// LongestStreak - лучшая серия после перехода.
	LongestStreak int

	// PreviousStreak - серия до перехода (для события streak.broken).
	PreviousStreak int

	// DaysMissed - пропущено дней (только для StreakGap).
	DaysMissed int
}

// Broken возвращает true, если серия была сброшена этим переходом.
func (r TouchResult) Broken() bool {
	return r.Case == StreakGap && r.PreviousStreak > 0
}

// TouchStreak применяет активность за указанную календарную дату.
// После любого изменяющего перехода выполняется
// LongestStreak = max(LongestStreak, CurrentStreak) и LastActivityDate = date.
func (s *LearnerStats) TouchStreak(date shared.Date) TouchResult {
	result := TouchResult{
		Case:           ClassifyActivity(s.LastActivityDate, date),
		PreviousStreak: s.CurrentStreak,
	}

	switch result.Case {
	case StreakFirstActivity:
		s.CurrentStreak = 1
		result.Changed = true
	case StreakSameDay, StreakOutOfOrder:
		// Серия не двигается; дата тоже остаётся прежней.
		result.CurrentStreak = s.CurrentStreak
		result.LongestStreak = s.LongestStreak
		return result
	case StreakNextDay:
		s.CurrentStreak++
		result.Changed = true
	case StreakGap:
		result.DaysMissed = date.DaysSince(s.LastActivityDate) - 1
		s.CurrentStreak = 1
		result.Changed = true
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = date
	s.UpdatedAt = time.Now().UTC()

	result.CurrentStreak = s.CurrentStreak
	result.LongestStreak = s.LongestStreak
	return result
}

// StreakAtRisk возвращает true, если серия сгорит без активности сегодня.
func (s *LearnerStats) StreakAtRisk(today shared.Date) bool {
	if s.CurrentStreak == 0 || s.LastActivityDate.IsZero() {
		return false
	}
	return today.DaysSince(s.LastActivityDate) == 1
}
