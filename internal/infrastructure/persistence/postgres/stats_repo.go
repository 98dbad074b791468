package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER STATS REPOSITORY
// Each method is its own atomic unit; there is no cross-repository
// transaction. TouchStreak runs in one transaction under
// SELECT ... FOR UPDATE so concurrent completions of different lessons
// by the same learner serialize on the stats row and the streak
// transition is applied exactly once per calendar day. Badge unlocks
// are per-badge ON CONFLICT inserts.
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements learner.StatsRepository using PostgreSQL.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// Get returns the learner's stats with badges, or shared.ErrStatsNotFound.
func (r *StatsRepository) Get(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	query := `
		SELECT learner_id, xp_total, current_streak, longest_streak,
		       last_activity_date, created_at, updated_at
		FROM learner_stats
		WHERE learner_id = $1`

	stats, err := scanStats(r.conn.QueryRow(ctx, query, learnerID.String()))
	if IsNoRows(err) {
		return nil, shared.ErrStatsNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("stats.Get", err)
	}

	badges, err := r.listBadges(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	stats.Badges = badges
	return stats, nil
}

// GetOrCreate returns the stats row, lazily creating an empty one.
func (r *StatsRepository) GetOrCreate(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	insertQuery := `
		INSERT INTO learner_stats (learner_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (learner_id) DO NOTHING`

	if _, err := r.conn.Exec(ctx, insertQuery, learnerID.String()); err != nil {
		return nil, wrapStoreErr("stats.GetOrCreate", err)
	}
	return r.Get(ctx, learnerID)
}

// TouchStreak applies an activity date to the streak state under a row lock.
func (r *StatsRepository) TouchStreak(ctx context.Context, learnerID shared.LearnerID, date shared.Date) (learner.TouchResult, error) {
	var result learner.TouchResult

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		// Ленивое создание; ON CONFLICT делает гонку создания безопасной.
		createQuery := `
			INSERT INTO learner_stats (learner_id, created_at, updated_at)
			VALUES ($1, NOW(), NOW())
			ON CONFLICT (learner_id) DO NOTHING`
		if _, err := tx.Exec(ctx, createQuery, learnerID.String()); err != nil {
			return err
		}

		lockQuery := `
			SELECT learner_id, xp_total, current_streak, longest_streak,
			       last_activity_date, created_at, updated_at
			FROM learner_stats
			WHERE learner_id = $1
			FOR UPDATE`

		stats, err := scanStats(tx.QueryRow(ctx, lockQuery, learnerID.String()))
		if err != nil {
			return err
		}

		result = stats.TouchStreak(date)
		if !result.Changed {
			return nil
		}

		updateQuery := `
			UPDATE learner_stats
			SET current_streak = $2, longest_streak = $3,
			    last_activity_date = $4, updated_at = NOW()
			WHERE learner_id = $1`
		_, err = tx.Exec(ctx, updateQuery,
			learnerID.String(),
			stats.CurrentStreak,
			stats.LongestStreak,
			stats.LastActivityDate.Time(),
		)
		return err
	})
	if err != nil {
		return learner.TouchResult{}, wrapStoreErr("stats.TouchStreak", err)
	}
	return result, nil
}

// UnlockBadges inserts badges if absent and returns the ones actually added.
func (r *StatsRepository) UnlockBadges(ctx context.Context, learnerID shared.LearnerID, badges []shared.BadgeID) ([]shared.BadgeID, error) {
	if len(badges) == 0 {
		return nil, nil
	}

	insertQuery := `
		INSERT INTO learner_badges (learner_id, badge_id, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (learner_id, badge_id) DO NOTHING`

	unlocked := make([]shared.BadgeID, 0, len(badges))
	for _, badgeID := range badges {
		tag, err := r.conn.Exec(ctx, insertQuery, learnerID.String(), badgeID.String())
		if err != nil {
			return unlocked, wrapStoreErr("stats.UnlockBadges", err)
		}
		if tag.RowsAffected() > 0 {
			unlocked = append(unlocked, badgeID)
		}
	}
	return unlocked, nil
}

// listBadges returns the learner's badges in unlock order.
func (r *StatsRepository) listBadges(ctx context.Context, learnerID shared.LearnerID) ([]shared.BadgeID, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT badge_id FROM learner_badges WHERE learner_id = $1 ORDER BY unlocked_at`,
		learnerID.String(),
	)
	if err != nil {
		return nil, wrapStoreErr("stats.listBadges", err)
	}
	defer rows.Close()

	badges := make([]shared.BadgeID, 0)
	for rows.Next() {
		var badgeID string
		if err := rows.Scan(&badgeID); err != nil {
			return nil, wrapStoreErr("stats.listBadges", err)
		}
		badges = append(badges, shared.BadgeID(badgeID))
	}
	return badges, rows.Err()
}

// scanStats scans a learner_stats row.
func scanStats(row rowScanner) (*learner.LearnerStats, error) {
	var (
		stats        learner.LearnerStats
		learnerID    string
		xpTotal      int
		lastActivity *time.Time
	)
	if err := row.Scan(
		&learnerID,
		&xpTotal,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&lastActivity,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	); err != nil {
		return nil, err
	}
	stats.LearnerID = shared.LearnerID(learnerID)
	stats.XPTotal = shared.XP(xpTotal)
	if lastActivity != nil {
		stats.LastActivityDate = shared.DateOf(lastActivity.UTC())
	}
	stats.Badges = make([]shared.BadgeID, 0)
	return &stats, nil
}
