package learner

import (
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGES (Бейджи)
// Каталог - статическая конфигурация, не данные учащегося. Каждое правило -
// чистый предикат над Snapshot; правила независимы, порядок оценки не важен.
// Бейджи однонаправленные: полученный бейдж никогда не отзывается, даже если
// статистика "откатилась" (сброс серии не снимает streak-бейдж).
// ══════════════════════════════════════════════════════════════════════════════

// Идентификаторы бейджей каталога по умолчанию.
const (
	BadgeFirstLesson shared.BadgeID = "first_lesson"
	BadgeXP100       shared.BadgeID = "xp_100"
	BadgeXP500       shared.BadgeID = "xp_500"
	BadgeStreak7     shared.BadgeID = "streak_7"
	BadgeStreak30    shared.BadgeID = "streak_30"
	BadgeCourse1     shared.BadgeID = "course_1"
	BadgeCourse5     shared.BadgeID = "course_5"
)

// Snapshot - срез статистики учащегося для оценки правил.
type Snapshot struct {
	// XPTotal - суммарные очки опыта.
	XPTotal shared.XP

	// CurrentStreak - текущая серия дней.
	CurrentStreak int

	// LongestStreak - лучшая серия дней.
	LongestStreak int

	// CompletedLessons - всего завершено уроков.
	CompletedLessons int

	// CompletedCourses - всего завершено курсов (все уроки курса).
	CompletedCourses int
}

// Rule - чистый предикат: выполняется ли условие бейджа для среза статистики.
type Rule func(s Snapshot) bool

// BadgeDefinition описывает бейдж каталога.
type BadgeDefinition struct {
	ID          shared.BadgeID
	Name        string
	Description string
	Emoji       string
	Rule        Rule
}

// DefaultCatalog возвращает каталог бейджей по умолчанию.
func DefaultCatalog() []BadgeDefinition {
	return []BadgeDefinition{
		{BadgeFirstLesson, "Первый шаг", "Завершён первый урок", "🎯",
			func(s Snapshot) bool { return s.CompletedLessons >= 1 }},
		{BadgeXP100, "Сотня", "Накоплено 100 XP", "⚡",
			func(s Snapshot) bool { return s.XPTotal >= 100 }},
		{BadgeXP500, "Пять сотен", "Накоплено 500 XP", "🚀",
			func(s Snapshot) bool { return s.XPTotal >= 500 }},
		{BadgeStreak7, "Неделя огня", "7 дней подряд", "🔥",
			func(s Snapshot) bool { return s.CurrentStreak >= 7 }},
		{BadgeStreak30, "Железная воля", "30 дней подряд", "💪",
			func(s Snapshot) bool { return s.CurrentStreak >= 30 }},
		{BadgeCourse1, "Финишёр", "Завершён первый курс", "🏁",
			func(s Snapshot) bool { return s.CompletedCourses >= 1 }},
		{BadgeCourse5, "Коллекционер", "Завершено 5 курсов", "🏆",
			func(s Snapshot) bool { return s.CompletedCourses >= 5 }},
	}
}

// FindDefinition возвращает определение бейджа по идентификатору.
func FindDefinition(catalog []BadgeDefinition, id shared.BadgeID) (BadgeDefinition, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return BadgeDefinition{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// BadgeEngine оценивает правила каталога против среза статистики.
type BadgeEngine struct {
	catalog []BadgeDefinition
}

// NewBadgeEngine создаёт движок с каталогом по умолчанию.
func NewBadgeEngine() *BadgeEngine {
	return &BadgeEngine{catalog: DefaultCatalog()}
}

// NewBadgeEngineWithCatalog создаёт движок с пользовательским каталогом.
func NewBadgeEngineWithCatalog(catalog []BadgeDefinition) *BadgeEngine {
	return &BadgeEngine{catalog: catalog}
}

// Catalog возвращает каталог движка.
func (e *BadgeEngine) Catalog() []BadgeDefinition {
	return e.catalog
}

// Evaluate возвращает бейджи, правила которых выполнились и которых ещё
// нет в existing. Порядок - порядок каталога; правила без побочных эффектов.
func (e *BadgeEngine) Evaluate(snapshot Snapshot, existing []shared.BadgeID) []shared.BadgeID {
	have := make(map[shared.BadgeID]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}

	var unlocked []shared.BadgeID
	for _, def := range e.catalog {
		if have[def.ID] {
			continue
		}
		if def.Rule(snapshot) {
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}
