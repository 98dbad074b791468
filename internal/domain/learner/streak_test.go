package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

func date(y int, m time.Month, d int) shared.Date {
	return shared.NewDate(y, m, d)
}

func TestClassifyActivity(t *testing.T) {
	tests := []struct {
		name     string
		last     shared.Date
		activity shared.Date
		want     StreakCase
	}{
		{"first activity", shared.Date{}, date(2024, time.January, 1), StreakFirstActivity},
		{"same day", date(2024, time.January, 1), date(2024, time.January, 1), StreakSameDay},
		{"next day", date(2024, time.January, 1), date(2024, time.January, 2), StreakNextDay},
		{"one day gap", date(2024, time.January, 1), date(2024, time.January, 3), StreakGap},
		{"long gap", date(2024, time.January, 1), date(2024, time.March, 1), StreakGap},
		{"out of order", date(2024, time.January, 5), date(2024, time.January, 2), StreakOutOfOrder},
		{"month boundary", date(2024, time.January, 31), date(2024, time.February, 1), StreakNextDay},
		{"year boundary", date(2023, time.December, 31), date(2024, time.January, 1), StreakNextDay},
		{"leap day", date(2024, time.February, 28), date(2024, time.February, 29), StreakNextDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyActivity(tt.last, tt.activity))
		})
	}
}

func TestTouchStreak_FirstActivity(t *testing.T) {
	stats := NewLearnerStats("learner-1")

	result := stats.TouchStreak(date(2024, time.January, 1))

	assert.True(t, result.Changed)
	assert.Equal(t, StreakFirstActivity, result.Case)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.Equal(t, 1, result.LongestStreak)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, date(2024, time.January, 1), stats.LastActivityDate)
}

func TestTouchStreak_Sequence(t *testing.T) {
	// День 1 -> день 2 -> повтор дня 2 -> день 5 (разрыв).
	stats := NewLearnerStats("learner-1")

	r1 := stats.TouchStreak(date(2024, time.January, 1))
	assert.Equal(t, 1, r1.CurrentStreak)

	r2 := stats.TouchStreak(date(2024, time.January, 2))
	assert.Equal(t, StreakNextDay, r2.Case)
	assert.Equal(t, 2, r2.CurrentStreak)
	assert.Equal(t, 2, r2.LongestStreak)

	r3 := stats.TouchStreak(date(2024, time.January, 2))
	assert.Equal(t, StreakSameDay, r3.Case)
	assert.False(t, r3.Changed)
	assert.Equal(t, 2, r3.CurrentStreak)

	r4 := stats.TouchStreak(date(2024, time.January, 5))
	assert.Equal(t, StreakGap, r4.Case)
	assert.True(t, r4.Broken())
	assert.Equal(t, 2, r4.PreviousStreak)
	assert.Equal(t, 2, r4.DaysMissed)
	assert.Equal(t, 1, r4.CurrentStreak)
	assert.Equal(t, 2, r4.LongestStreak, "longest streak survives the reset")
}

func TestTouchStreak_OutOfOrder(t *testing.T) {
	stats := NewLearnerStats("learner-1")
	stats.TouchStreak(date(2024, time.January, 1))
	stats.TouchStreak(date(2024, time.January, 2))

	// Replay события за прошлую дату не двигает серию назад.
	result := stats.TouchStreak(date(2024, time.January, 1))

	assert.Equal(t, StreakOutOfOrder, result.Case)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, date(2024, time.January, 2), stats.LastActivityDate)
}

func TestTouchStreak_GapAfterLongRun(t *testing.T) {
	stats := NewLearnerStats("learner-1")
	day := date(2024, time.March, 1)
	for i := 0; i < 10; i++ {
		stats.TouchStreak(day.AddDays(i))
	}
	assert.Equal(t, 10, stats.CurrentStreak)

	result := stats.TouchStreak(day.AddDays(30))

	assert.True(t, result.Broken())
	assert.Equal(t, 10, result.PreviousStreak)
	assert.Equal(t, 19, result.DaysMissed)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 10, stats.LongestStreak)
}

func TestStreakAtRisk(t *testing.T) {
	stats := NewLearnerStats("learner-1")
	assert.False(t, stats.StreakAtRisk(date(2024, time.January, 2)), "no streak, nothing at risk")

	stats.TouchStreak(date(2024, time.January, 1))

	assert.False(t, stats.StreakAtRisk(date(2024, time.January, 1)), "already active today")
	assert.True(t, stats.StreakAtRisk(date(2024, time.January, 2)), "burns without activity today")
	assert.False(t, stats.StreakAtRisk(date(2024, time.January, 3)), "already burned")
}
