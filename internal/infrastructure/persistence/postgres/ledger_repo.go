package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER REPOSITORY
// Credit is one transaction: insert-if-absent into the ledger plus an
// atomic increment of the running total. The total is never computed by
// reading it first, so concurrent credits for different lessons cannot
// lose updates.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements progress.Ledger using PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Credit atomically appends a ledger entry and bumps the learner's total.
// A duplicate (learner, lesson) pair returns Applied=false and leaves the
// total untouched.
func (r *LedgerRepository) Credit(ctx context.Context, entry *progress.LedgerEntry) (progress.CreditResult, error) {
	var result progress.CreditResult

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		insertQuery := `
			INSERT INTO xp_ledger (learner_id, lesson_id, amount, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id, lesson_id) DO NOTHING`

		tag, err := tx.Exec(ctx, insertQuery,
			entry.LearnerID.String(),
			entry.LessonID.String(),
			entry.Amount.Int(),
			entry.CreatedAt,
		)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			// Уже начислено; возвращаем текущий итог.
			var total int
			err := tx.QueryRow(ctx,
				`SELECT COALESCE((SELECT xp_total FROM learner_stats WHERE learner_id = $1), 0)`,
				entry.LearnerID.String(),
			).Scan(&total)
			result.NewTotal = shared.XP(total)
			return err
		}

		result.Applied = true

		// Атомарный upsert-инкремент: итог двигается выражением в базе,
		// никогда - вычислением в приложении.
		updateQuery := `
			INSERT INTO learner_stats (learner_id, xp_total, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (learner_id) DO UPDATE
			SET xp_total = learner_stats.xp_total + EXCLUDED.xp_total,
			    updated_at = NOW()
			RETURNING xp_total`

		var total int
		err = tx.QueryRow(ctx, updateQuery,
			entry.LearnerID.String(),
			entry.Amount.Int(),
		).Scan(&total)
		result.NewTotal = shared.XP(total)
		return err
	})
	if err != nil {
		return progress.CreditResult{}, wrapStoreErr("ledger.Credit", err)
	}
	return result, nil
}

// Entries returns the learner's ledger entries, newest first.
func (r *LedgerRepository) Entries(ctx context.Context, learnerID shared.LearnerID, limit int) ([]*progress.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT learner_id, lesson_id, amount, created_at
		FROM xp_ledger
		WHERE learner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn.Query(ctx, query, learnerID.String(), limit)
	if err != nil {
		return nil, wrapStoreErr("ledger.Entries", err)
	}
	defer rows.Close()

	entries := make([]*progress.LedgerEntry, 0, limit)
	for rows.Next() {
		var (
			entry     progress.LedgerEntry
			learner   string
			lesson    string
			amount    int
			createdAt time.Time
		)
		if err := rows.Scan(&learner, &lesson, &amount, &createdAt); err != nil {
			return nil, wrapStoreErr("ledger.Entries", err)
		}
		entry.LearnerID = shared.LearnerID(learner)
		entry.LessonID = shared.LessonID(lesson)
		entry.Amount = shared.XP(amount)
		entry.CreatedAt = createdAt.UTC()
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
