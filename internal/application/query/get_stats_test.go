package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

type stubStatsRepo struct {
	stats map[shared.LearnerID]*learner.LearnerStats
}

func (r *stubStatsRepo) Get(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	if s, ok := r.stats[learnerID]; ok {
		return s, nil
	}
	return nil, shared.ErrStatsNotFound
}

func (r *stubStatsRepo) GetOrCreate(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	return r.Get(ctx, learnerID)
}

func (r *stubStatsRepo) TouchStreak(ctx context.Context, learnerID shared.LearnerID, date shared.Date) (learner.TouchResult, error) {
	return learner.TouchResult{}, nil
}

func (r *stubStatsRepo) UnlockBadges(ctx context.Context, learnerID shared.LearnerID, badges []shared.BadgeID) ([]shared.BadgeID, error) {
	return nil, nil
}

type recordingCache struct {
	stored map[shared.LearnerID]*learner.LearnerStats
	hits   int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{stored: make(map[shared.LearnerID]*learner.LearnerStats)}
}

func (c *recordingCache) GetStats(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	if s, ok := c.stored[learnerID]; ok {
		c.hits++
		return s, nil
	}
	return nil, nil
}

func (c *recordingCache) SetStats(ctx context.Context, stats *learner.LearnerStats) error {
	c.stored[stats.LearnerID] = stats
	return nil
}

func (c *recordingCache) InvalidateStats(ctx context.Context, learnerID shared.LearnerID) error {
	delete(c.stored, learnerID)
	return nil
}

func TestGetStats_UnknownLearnerGetsZeroStats(t *testing.T) {
	handler := NewGetStatsHandler(&stubStatsRepo{}, nil, learner.NewBadgeEngine())

	dto, err := handler.Handle(context.Background(), GetStatsQuery{LearnerID: "learner-1"})

	require.NoError(t, err)
	assert.Equal(t, "learner-1", dto.LearnerID)
	assert.Zero(t, dto.XPTotal)
	assert.Zero(t, dto.CurrentStreak)
	assert.Empty(t, dto.LastActivityDate)
	assert.False(t, dto.StreakAtRisk)
	assert.NotNil(t, dto.Badges, "empty slice, not null in JSON")
	assert.Empty(t, dto.Badges)
}

func TestGetStats_ExpandsBadgesFromCatalog(t *testing.T) {
	stats := learner.NewLearnerStats("learner-1")
	stats.XPTotal = 120
	stats.CurrentStreak = 3
	stats.LongestStreak = 5
	stats.Badges = []shared.BadgeID{learner.BadgeFirstLesson, learner.BadgeXP100}
	repo := &stubStatsRepo{stats: map[shared.LearnerID]*learner.LearnerStats{"learner-1": stats}}

	handler := NewGetStatsHandler(repo, nil, learner.NewBadgeEngine())
	dto, err := handler.Handle(context.Background(), GetStatsQuery{LearnerID: "learner-1"})

	require.NoError(t, err)
	assert.Equal(t, 120, dto.XPTotal)
	require.Len(t, dto.Badges, 2)
	assert.Equal(t, "first_lesson", dto.Badges[0].ID)
	assert.NotEmpty(t, dto.Badges[0].Name)
	assert.NotEmpty(t, dto.Badges[0].Emoji)
	assert.Equal(t, "xp_100", dto.Badges[1].ID)
}

func TestGetStats_StreakAtRisk(t *testing.T) {
	stats := learner.NewLearnerStats("learner-1")
	stats.CurrentStreak = 4
	stats.LongestStreak = 4
	stats.LastActivityDate = shared.NewDate(2024, 1, 15)
	repo := &stubStatsRepo{stats: map[shared.LearnerID]*learner.LearnerStats{"learner-1": stats}}
	handler := NewGetStatsHandler(repo, nil, learner.NewBadgeEngine())

	// На следующий день серия под угрозой, через день - уже потеряна.
	atRisk, err := handler.Handle(context.Background(), GetStatsQuery{
		LearnerID: "learner-1",
		Today:     shared.NewDate(2024, 1, 16),
	})
	require.NoError(t, err)
	assert.True(t, atRisk.StreakAtRisk)

	sameDay, err := handler.Handle(context.Background(), GetStatsQuery{
		LearnerID: "learner-1",
		Today:     shared.NewDate(2024, 1, 15),
	})
	require.NoError(t, err)
	assert.False(t, sameDay.StreakAtRisk)
}

func TestGetStats_ReadThroughCache(t *testing.T) {
	stats := learner.NewLearnerStats("learner-1")
	stats.XPTotal = 50
	repo := &stubStatsRepo{stats: map[shared.LearnerID]*learner.LearnerStats{"learner-1": stats}}
	cache := newRecordingCache()
	handler := NewGetStatsHandler(repo, cache, learner.NewBadgeEngine())

	first, err := handler.Handle(context.Background(), GetStatsQuery{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Equal(t, 50, first.XPTotal)
	assert.Zero(t, cache.hits, "first read misses and fills the cache")

	second, err := handler.Handle(context.Background(), GetStatsQuery{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Equal(t, 50, second.XPTotal)
	assert.Equal(t, 1, cache.hits, "second read is served from the cache")
}

func TestGetStats_InvalidLearnerID(t *testing.T) {
	handler := NewGetStatsHandler(&stubStatsRepo{}, nil, learner.NewBadgeEngine())

	_, err := handler.Handle(context.Background(), GetStatsQuery{LearnerID: "  "})

	assert.ErrorIs(t, err, shared.ErrInvalidLearnerID)
}
