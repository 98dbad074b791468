package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

func TestBadgeEngine_Evaluate_Thresholds(t *testing.T) {
	engine := NewBadgeEngine()

	tests := []struct {
		name     string
		snapshot Snapshot
		want     []shared.BadgeID
	}{
		{
			"empty snapshot unlocks nothing",
			Snapshot{},
			nil,
		},
		{
			"first lesson",
			Snapshot{XPTotal: 10, CompletedLessons: 1},
			[]shared.BadgeID{BadgeFirstLesson},
		},
		{
			"xp 100 exactly",
			Snapshot{XPTotal: 100, CompletedLessons: 10},
			[]shared.BadgeID{BadgeFirstLesson, BadgeXP100},
		},
		{
			"xp 99 stays below",
			Snapshot{XPTotal: 99, CompletedLessons: 9},
			[]shared.BadgeID{BadgeFirstLesson},
		},
		{
			"streak 7",
			Snapshot{XPTotal: 70, CompletedLessons: 7, CurrentStreak: 7},
			[]shared.BadgeID{BadgeFirstLesson, BadgeStreak7},
		},
		{
			"course completion",
			Snapshot{XPTotal: 50, CompletedLessons: 5, CompletedCourses: 1},
			[]shared.BadgeID{BadgeFirstLesson, BadgeCourse1},
		},
		{
			"everything at once",
			Snapshot{XPTotal: 600, CompletedLessons: 60, CurrentStreak: 30, CompletedCourses: 5},
			[]shared.BadgeID{BadgeFirstLesson, BadgeXP100, BadgeXP500, BadgeStreak7, BadgeStreak30, BadgeCourse1, BadgeCourse5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Evaluate(tt.snapshot, nil))
		})
	}
}

func TestBadgeEngine_Evaluate_SkipsExisting(t *testing.T) {
	engine := NewBadgeEngine()
	snapshot := Snapshot{XPTotal: 150, CompletedLessons: 15}

	unlocked := engine.Evaluate(snapshot, []shared.BadgeID{BadgeFirstLesson})

	assert.Equal(t, []shared.BadgeID{BadgeXP100}, unlocked)
}

func TestBadgeEngine_Evaluate_Monotonic(t *testing.T) {
	// Сброс серии не отзывает streak-бейдж: движок только добавляет.
	engine := NewBadgeEngine()

	earned := engine.Evaluate(Snapshot{XPTotal: 70, CompletedLessons: 7, CurrentStreak: 7}, nil)
	assert.Contains(t, earned, BadgeStreak7)

	// Статистика "откатилась", бейдж уже есть - повторной выдачи и отзыва нет.
	after := engine.Evaluate(Snapshot{XPTotal: 80, CompletedLessons: 8, CurrentStreak: 1}, earned)
	assert.NotContains(t, after, BadgeStreak7)
}

func TestBadgeEngine_CustomCatalog(t *testing.T) {
	catalog := []BadgeDefinition{
		{ID: "night_owl", Name: "Сова", Rule: func(s Snapshot) bool { return s.CompletedLessons >= 3 }},
	}
	engine := NewBadgeEngineWithCatalog(catalog)

	assert.Empty(t, engine.Evaluate(Snapshot{CompletedLessons: 2}, nil))
	assert.Equal(t, []shared.BadgeID{"night_owl"}, engine.Evaluate(Snapshot{CompletedLessons: 3}, nil))
}

func TestFindDefinition(t *testing.T) {
	catalog := DefaultCatalog()

	def, ok := FindDefinition(catalog, BadgeStreak7)
	assert.True(t, ok)
	assert.Equal(t, BadgeStreak7, def.ID)
	assert.NotEmpty(t, def.Name)

	_, ok = FindDefinition(catalog, "no_such_badge")
	assert.False(t, ok)
}

func TestGrantBadge_Idempotent(t *testing.T) {
	stats := NewLearnerStats("learner-1")

	assert.True(t, stats.GrantBadge(BadgeFirstLesson))
	assert.False(t, stats.GrantBadge(BadgeFirstLesson), "duplicate grant is a no-op")
	assert.True(t, stats.HasBadge(BadgeFirstLesson))
	assert.Len(t, stats.Badges, 1)
}
