package postgres

import (
	"context"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository using PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// GetCourse returns a course by ID.
func (r *CourseRepository) GetCourse(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	query := `SELECT id, title, description, created_at FROM courses WHERE id = $1`

	var (
		c        course.Course
		courseID string
	)
	err := r.conn.QueryRow(ctx, query, id.String()).Scan(&courseID, &c.Title, &c.Description, &c.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("courses.GetCourse", err)
	}
	c.ID = shared.CourseID(courseID)
	return &c, nil
}

// GetLesson returns a lesson by ID.
func (r *CourseRepository) GetLesson(ctx context.Context, id shared.LessonID) (*course.Lesson, error) {
	query := `SELECT id, course_id, title, order_index, is_free, created_at FROM lessons WHERE id = $1`

	lesson, err := scanLesson(r.conn.QueryRow(ctx, query, id.String()))
	if IsNoRows(err) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("courses.GetLesson", err)
	}
	return lesson, nil
}

// ListLessons returns the lessons of a course ordered by order_index.
func (r *CourseRepository) ListLessons(ctx context.Context, courseID shared.CourseID) ([]course.Lesson, error) {
	query := `
		SELECT id, course_id, title, order_index, is_free, created_at
		FROM lessons
		WHERE course_id = $1
		ORDER BY order_index`

	rows, err := r.conn.Query(ctx, query, courseID.String())
	if err != nil {
		return nil, wrapStoreErr("courses.ListLessons", err)
	}
	defer rows.Close()

	lessons := make([]course.Lesson, 0)
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, wrapStoreErr("courses.ListLessons", err)
		}
		lessons = append(lessons, *lesson)
	}
	return lessons, rows.Err()
}

// ListCourses returns the whole catalog.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]course.Course, error) {
	query := `SELECT id, title, description, created_at FROM courses ORDER BY title`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, wrapStoreErr("courses.ListCourses", err)
	}
	defer rows.Close()

	courses := make([]course.Course, 0)
	for rows.Next() {
		var (
			c        course.Course
			courseID string
		)
		if err := rows.Scan(&courseID, &c.Title, &c.Description, &c.CreatedAt); err != nil {
			return nil, wrapStoreErr("courses.ListCourses", err)
		}
		c.ID = shared.CourseID(courseID)
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// LessonCount returns the number of lessons in a course.
func (r *CourseRepository) LessonCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM lessons WHERE course_id = $1`,
		courseID.String(),
	).Scan(&count)
	if err != nil {
		return 0, wrapStoreErr("courses.LessonCount", err)
	}
	return count, nil
}

// scanLesson scans a lesson row.
func scanLesson(row rowScanner) (*course.Lesson, error) {
	var (
		lesson   course.Lesson
		lessonID string
		courseID string
	)
	if err := row.Scan(&lessonID, &courseID, &lesson.Title, &lesson.OrderIndex, &lesson.IsFree, &lesson.CreatedAt); err != nil {
		return nil, err
	}
	lesson.ID = shared.LessonID(lessonID)
	lesson.CourseID = shared.CourseID(courseID)
	return &lesson, nil
}
