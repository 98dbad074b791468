package postgres

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION REPOSITORY
// Put is an atomic insert-if-absent on UNIQUE(learner_id, lesson_id).
// The existing row's completed_at is never overwritten: re-completing a
// lesson is a no-op, which is what makes crediting idempotent.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements progress.CompletionStore using PostgreSQL.
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

const completionColumns = `id, learner_id, lesson_id, course_id, completed_at, credited_xp`

// Put inserts a completion record if absent and returns the current row.
func (r *CompletionRepository) Put(ctx context.Context, record *progress.CompletionRecord) (*progress.CompletionRecord, bool, error) {
	insertQuery := `
		INSERT INTO completions (id, learner_id, lesson_id, course_id, completed_at, credited_xp)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (learner_id, lesson_id) DO NOTHING
		RETURNING ` + completionColumns

	row := r.conn.QueryRow(ctx, insertQuery,
		record.ID,
		record.LearnerID.String(),
		record.LessonID.String(),
		record.CourseID.String(),
		record.CompletedAt,
	)

	inserted, err := scanCompletion(row)
	if err == nil {
		return inserted, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, wrapStoreErr("completions.Put", err)
	}

	// Конфликт: запись уже существует, возвращаем её как есть.
	existing, err := r.Get(ctx, record.LearnerID, record.LessonID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns a completion record by its natural key.
func (r *CompletionRepository) Get(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) (*progress.CompletionRecord, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE learner_id = $1 AND lesson_id = $2`

	record, err := scanCompletion(r.conn.QueryRow(ctx, query, learnerID.String(), lessonID.String()))
	if IsNoRows(err) {
		return nil, shared.ErrCompletionNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("completions.Get", err)
	}
	return record, nil
}

// ListByLearner returns all completions of a learner.
func (r *CompletionRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*progress.CompletionRecord, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE learner_id = $1 ORDER BY completed_at`
	return r.list(ctx, "completions.ListByLearner", query, learnerID.String())
}

// ListByLearnerCourse returns a learner's completions within a course.
func (r *CompletionRepository) ListByLearnerCourse(ctx context.Context, learnerID shared.LearnerID, courseID shared.CourseID) ([]*progress.CompletionRecord, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE learner_id = $1 AND course_id = $2 ORDER BY completed_at`
	return r.list(ctx, "completions.ListByLearnerCourse", query, learnerID.String(), courseID.String())
}

// ListUncredited returns completions with credited_xp=false older than the cutoff.
func (r *CompletionRepository) ListUncredited(ctx context.Context, olderThan time.Time, limit int) ([]*progress.CompletionRecord, error) {
	query := `
		SELECT ` + completionColumns + `
		FROM completions
		WHERE credited_xp = FALSE AND completed_at < $1
		ORDER BY completed_at
		LIMIT $2`
	return r.list(ctx, "completions.ListUncredited", query, olderThan, limit)
}

// MarkCredited sets credited_xp=true. The update is idempotent.
func (r *CompletionRepository) MarkCredited(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) error {
	query := `UPDATE completions SET credited_xp = TRUE WHERE learner_id = $1 AND lesson_id = $2`

	tag, err := r.conn.Exec(ctx, query, learnerID.String(), lessonID.String())
	if err != nil {
		return wrapStoreErr("completions.MarkCredited", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCompletionNotFound
	}
	return nil
}

// CountByLearner returns the total number of completed lessons.
func (r *CompletionRepository) CountByLearner(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM completions WHERE learner_id = $1`,
		learnerID.String(),
	).Scan(&count)
	if err != nil {
		return 0, wrapStoreErr("completions.CountByLearner", err)
	}
	return count, nil
}

// CompletedCoursesCount returns the number of courses where the learner has
// completed every lesson. Courses with zero lessons never count.
func (r *CompletionRepository) CompletedCoursesCount(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM (
			SELECT l.course_id
			FROM lessons l
			LEFT JOIN completions c
				ON c.lesson_id = l.id AND c.learner_id = $1
			GROUP BY l.course_id
			HAVING COUNT(l.id) > 0 AND COUNT(l.id) = COUNT(c.id)
		) AS finished`

	var count int
	if err := r.conn.QueryRow(ctx, query, learnerID.String()).Scan(&count); err != nil {
		return 0, wrapStoreErr("completions.CompletedCoursesCount", err)
	}
	return count, nil
}

// list runs a query returning completion rows.
func (r *CompletionRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*progress.CompletionRecord, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr(op, err)
	}
	defer rows.Close()

	records := make([]*progress.CompletionRecord, 0)
	for rows.Next() {
		record, err := scanCompletion(rows)
		if err != nil {
			return nil, wrapStoreErr(op, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCompletion scans a completion row.
func scanCompletion(row rowScanner) (*progress.CompletionRecord, error) {
	var (
		record      progress.CompletionRecord
		learnerID   string
		lessonID    string
		courseID    string
		completedAt time.Time
	)
	if err := row.Scan(&record.ID, &learnerID, &lessonID, &courseID, &completedAt, &record.CreditedXP); err != nil {
		return nil, err
	}
	record.LearnerID = shared.LearnerID(learnerID)
	record.LessonID = shared.LessonID(lessonID)
	record.CourseID = shared.CourseID(courseID)
	record.CompletedAt = completedAt.UTC()
	return &record, nil
}

// wrapStoreErr maps a driver error to the domain's storage error taxonomy.
func wrapStoreErr(op string, err error) error {
	return shared.WrapError("store", op, shared.ErrServiceUnavailable, "query failed", err)
}
