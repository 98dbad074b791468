package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
	"github.com/oqu-hub/oqu-learning-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS CACHE
// Кэш статистики учащегося. Все операции идут через circuit breaker:
// лежащий Redis не должен тянуть за собой каждый запрос, промах кэша
// дешевле таймаута.
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches learner stats in Redis. Implements query.StatsCache.
type StatsCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *StatsCache {
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil)
	}
	return &StatsCache{
		cache:   cache,
		breaker: breaker,
		ttl:     TTLStatsCache,
	}
}

// statsEnvelope is the wire form of LearnerStats in Redis.
type statsEnvelope struct {
	LearnerID        string    `json:"learner_id"`
	XPTotal          int       `json:"xp_total"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate string    `json:"last_activity_date,omitempty"`
	Badges           []string  `json:"badges"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetStats returns the cached stats, or (nil, nil) on a miss.
// Breaker-open and connection errors are reported but should be treated
// as misses by callers.
func (c *StatsCache) GetStats(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	var envelope statsEnvelope
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, statsKey(learnerID), &envelope)
	})
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.WrapError("cache", "GetStats", shared.ErrServiceUnavailable, "redis read failed", err)
	}
	return envelope.toStats()
}

// SetStats stores the stats with the cache TTL.
func (c *StatsCache) SetStats(ctx context.Context, stats *learner.LearnerStats) error {
	envelope := toEnvelope(stats)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, statsKey(stats.LearnerID), envelope, c.ttl)
	})
	if err != nil {
		return shared.WrapError("cache", "SetStats", shared.ErrServiceUnavailable, "redis write failed", err)
	}
	return nil
}

// InvalidateStats drops the cache entry.
func (c *StatsCache) InvalidateStats(ctx context.Context, learnerID shared.LearnerID) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, statsKey(learnerID))
	})
	if err != nil {
		return shared.WrapError("cache", "InvalidateStats", shared.ErrServiceUnavailable, "redis delete failed", err)
	}
	return nil
}

// statsKey builds the Redis key for a learner's stats.
func statsKey(learnerID shared.LearnerID) string {
	return PrefixStats + learnerID.String()
}

// toEnvelope converts domain stats to the wire form.
func toEnvelope(stats *learner.LearnerStats) statsEnvelope {
	envelope := statsEnvelope{
		LearnerID:     stats.LearnerID.String(),
		XPTotal:       stats.XPTotal.Int(),
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
		Badges:        make([]string, 0, len(stats.Badges)),
		CreatedAt:     stats.CreatedAt,
		UpdatedAt:     stats.UpdatedAt,
	}
	if !stats.LastActivityDate.IsZero() {
		envelope.LastActivityDate = stats.LastActivityDate.String()
	}
	for _, badge := range stats.Badges {
		envelope.Badges = append(envelope.Badges, badge.String())
	}
	return envelope
}

// toStats converts the wire form back to domain stats.
func (e statsEnvelope) toStats() (*learner.LearnerStats, error) {
	stats := &learner.LearnerStats{
		LearnerID:     shared.LearnerID(e.LearnerID),
		XPTotal:       shared.XP(e.XPTotal),
		CurrentStreak: e.CurrentStreak,
		LongestStreak: e.LongestStreak,
		Badges:        make([]shared.BadgeID, 0, len(e.Badges)),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.LastActivityDate != "" {
		date, err := shared.ParseDate(e.LastActivityDate)
		if err != nil {
			return nil, err
		}
		stats.LastActivityDate = date
	}
	for _, badge := range e.Badges {
		stats.Badges = append(stats.Badges, shared.BadgeID(badge))
	}
	return stats, nil
}
