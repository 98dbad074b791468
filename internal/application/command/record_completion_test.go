package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// Повторяют контракты хранилищ: insert-if-absent, идемпотентные шаги.
// ══════════════════════════════════════════════════════════════════════════════

type completionKey struct {
	learner shared.LearnerID
	lesson  shared.LessonID
}

type fakeCompletionStore struct {
	mu      sync.Mutex
	records map[completionKey]*progress.CompletionRecord
	courses *fakeCourseRepo

	failPut          bool
	failMarkCredited bool
}

func newFakeCompletionStore() *fakeCompletionStore {
	return &fakeCompletionStore{records: make(map[completionKey]*progress.CompletionRecord)}
}

func (s *fakeCompletionStore) Put(ctx context.Context, record *progress.CompletionRecord) (*progress.CompletionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return nil, false, shared.ErrStoreUnavailable
	}
	key := completionKey{record.LearnerID, record.LessonID}
	if existing, ok := s.records[key]; ok {
		copied := *existing
		return &copied, false, nil
	}
	copied := *record
	s.records[key] = &copied
	out := copied
	return &out, true, nil
}

func (s *fakeCompletionStore) Get(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) (*progress.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[completionKey{learnerID, lessonID}]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, shared.ErrCompletionNotFound
}

func (s *fakeCompletionStore) ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*progress.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.CompletionRecord
	for _, r := range s.records {
		if r.LearnerID == learnerID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeCompletionStore) ListByLearnerCourse(ctx context.Context, learnerID shared.LearnerID, courseID shared.CourseID) ([]*progress.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.CompletionRecord
	for _, r := range s.records {
		if r.LearnerID == learnerID && r.CourseID == courseID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeCompletionStore) ListUncredited(ctx context.Context, olderThan time.Time, limit int) ([]*progress.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*progress.CompletionRecord
	for _, r := range s.records {
		if !r.CreditedXP && r.CompletedAt.Before(olderThan) {
			copied := *r
			out = append(out, &copied)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeCompletionStore) MarkCredited(ctx context.Context, learnerID shared.LearnerID, lessonID shared.LessonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkCredited {
		return shared.ErrStoreUnavailable
	}
	r, ok := s.records[completionKey{learnerID, lessonID}]
	if !ok {
		return shared.ErrCompletionNotFound
	}
	r.CreditedXP = true
	return nil
}

func (s *fakeCompletionStore) CountByLearner(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.LearnerID == learnerID {
			count++
		}
	}
	return count, nil
}

func (s *fakeCompletionStore) CompletedCoursesCount(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCourse := make(map[shared.CourseID]int)
	for _, r := range s.records {
		if r.LearnerID == learnerID {
			byCourse[r.CourseID]++
		}
	}
	completed := 0
	for courseID, done := range byCourse {
		total := 0
		for _, l := range s.courses.lessons {
			if l.CourseID == courseID {
				total++
			}
		}
		if total > 0 && done >= total {
			completed++
		}
	}
	return completed, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[completionKey]*progress.LedgerEntry
	totals  map[shared.LearnerID]shared.XP

	failCredit bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		entries: make(map[completionKey]*progress.LedgerEntry),
		totals:  make(map[shared.LearnerID]shared.XP),
	}
}

func (l *fakeLedger) Credit(ctx context.Context, entry *progress.LedgerEntry) (progress.CreditResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit {
		return progress.CreditResult{}, shared.ErrStoreUnavailable
	}
	key := completionKey{entry.LearnerID, entry.LessonID}
	if _, ok := l.entries[key]; ok {
		return progress.CreditResult{Applied: false, NewTotal: l.totals[entry.LearnerID]}, nil
	}
	copied := *entry
	l.entries[key] = &copied
	l.totals[entry.LearnerID] = l.totals[entry.LearnerID].Add(entry.Amount)
	return progress.CreditResult{Applied: true, NewTotal: l.totals[entry.LearnerID]}, nil
}

func (l *fakeLedger) Entries(ctx context.Context, learnerID shared.LearnerID, limit int) ([]*progress.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*progress.LedgerEntry
	for _, e := range l.entries {
		if e.LearnerID == learnerID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeStatsRepo struct {
	mu    sync.Mutex
	stats map[shared.LearnerID]*learner.LearnerStats

	failTouch bool
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: make(map[shared.LearnerID]*learner.LearnerStats)}
}

func (r *fakeStatsRepo) getOrCreateLocked(learnerID shared.LearnerID) *learner.LearnerStats {
	if s, ok := r.stats[learnerID]; ok {
		return s
	}
	s := learner.NewLearnerStats(learnerID)
	r.stats[learnerID] = s
	return s
}

func (r *fakeStatsRepo) Get(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[learnerID]
	if !ok {
		return nil, shared.ErrStatsNotFound
	}
	copied := *s
	copied.Badges = append([]shared.BadgeID(nil), s.Badges...)
	return &copied, nil
}

func (r *fakeStatsRepo) GetOrCreate(ctx context.Context, learnerID shared.LearnerID) (*learner.LearnerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreateLocked(learnerID)
	copied := *s
	copied.Badges = append([]shared.BadgeID(nil), s.Badges...)
	return &copied, nil
}

func (r *fakeStatsRepo) TouchStreak(ctx context.Context, learnerID shared.LearnerID, d shared.Date) (learner.TouchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTouch {
		return learner.TouchResult{}, shared.ErrStoreUnavailable
	}
	return r.getOrCreateLocked(learnerID).TouchStreak(d), nil
}

func (r *fakeStatsRepo) UnlockBadges(ctx context.Context, learnerID shared.LearnerID, badges []shared.BadgeID) ([]shared.BadgeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreateLocked(learnerID)
	var unlocked []shared.BadgeID
	for _, id := range badges {
		if s.GrantBadge(id) {
			unlocked = append(unlocked, id)
		}
	}
	return unlocked, nil
}

// setXP синхронизирует xp_total статистики с журналом, как это делает
// атомарный upsert в настоящем хранилище.
func (r *fakeStatsRepo) setXP(learnerID shared.LearnerID, total shared.XP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreateLocked(learnerID).XPTotal = total
}

type fakeCourseRepo struct {
	courses map[shared.CourseID]*course.Course
	lessons map[shared.LessonID]*course.Lesson
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses: make(map[shared.CourseID]*course.Course),
		lessons: make(map[shared.LessonID]*course.Lesson),
	}
}

func (r *fakeCourseRepo) addCourse(id shared.CourseID, lessonIDs ...shared.LessonID) {
	r.courses[id] = &course.Course{ID: id, Title: string(id)}
	for i, lessonID := range lessonIDs {
		r.lessons[lessonID] = &course.Lesson{
			ID:         lessonID,
			CourseID:   id,
			Title:      string(lessonID),
			OrderIndex: i + 1,
			IsFree:     i == 0,
		}
	}
}

func (r *fakeCourseRepo) GetCourse(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	if c, ok := r.courses[id]; ok {
		return c, nil
	}
	return nil, shared.ErrCourseNotFound
}

func (r *fakeCourseRepo) GetLesson(ctx context.Context, id shared.LessonID) (*course.Lesson, error) {
	if l, ok := r.lessons[id]; ok {
		return l, nil
	}
	return nil, shared.ErrLessonNotFound
}

func (r *fakeCourseRepo) ListLessons(ctx context.Context, courseID shared.CourseID) ([]course.Lesson, error) {
	var out []course.Lesson
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) ListCourses(ctx context.Context) ([]course.Course, error) {
	var out []course.Course
	for _, c := range r.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCourseRepo) LessonCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	count := 0
	for _, l := range r.lessons {
		if l.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturedEvents) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturedEvents) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.EventType
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type fixture struct {
	completions *fakeCompletionStore
	ledger      *ledgerWithStats
	statsRepo   *fakeStatsRepo
	courseRepo  *fakeCourseRepo
	events      *capturedEvents
	handler     *RecordCompletionHandler
}

// ledgerWithStats пробрасывает итог из журнала в статистику, имитируя
// атомарный upsert xp_total в одной транзакции с записью журнала.
type ledgerWithStats struct {
	*fakeLedger
	stats *fakeStatsRepo

	// creditMu делает пару "запись в журнал + upsert итога" атомарной,
	// иначе конкурентные вызовы могли бы записать устаревший итог.
	creditMu sync.Mutex
}

func (l *ledgerWithStats) Credit(ctx context.Context, entry *progress.LedgerEntry) (progress.CreditResult, error) {
	l.creditMu.Lock()
	defer l.creditMu.Unlock()
	result, err := l.fakeLedger.Credit(ctx, entry)
	if err != nil {
		return result, err
	}
	l.stats.setXP(entry.LearnerID, result.NewTotal)
	return result, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	completions := newFakeCompletionStore()
	statsRepo := newFakeStatsRepo()
	ledger := &ledgerWithStats{fakeLedger: newFakeLedger(), stats: statsRepo}
	courseRepo := newFakeCourseRepo()
	completions.courses = courseRepo
	events := &capturedEvents{}

	handler := NewRecordCompletionHandler(
		completions,
		ledger,
		statsRepo,
		courseRepo,
		learner.NewBadgeEngine(),
		events,
		10,
	)

	return &fixture{
		completions: completions,
		ledger:      ledger,
		statsRepo:   statsRepo,
		courseRepo:  courseRepo,
		events:      events,
		handler:     handler,
	}
}

func cmdFor(learnerID, lessonID, courseID string, completedAt time.Time) RecordCompletionCommand {
	return RecordCompletionCommand{
		LearnerID:   shared.LearnerID(learnerID),
		LessonID:    shared.LessonID(lessonID),
		CourseID:    shared.CourseID(courseID),
		CompletedAt: completedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordCompletion_FirstCompletion(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2")
	completedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	result, err := f.handler.Handle(context.Background(), cmdFor("learner-1", "lesson-1", "go-basics", completedAt))

	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, 10, result.XPAwarded.Int())
	assert.Equal(t, 10, result.XPTotal.Int())
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.Equal(t, []shared.BadgeID{learner.BadgeFirstLesson}, result.NewBadges)
	assert.Equal(t, 1, result.CourseProgress.CompletedLessons)
	assert.Equal(t, float64(50), result.CourseProgress.Percent)
	assert.False(t, result.CourseCompleted)
	assert.True(t, result.Completion.CreditedXP)
}

func TestRecordCompletion_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2")
	completedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	cmd := cmdFor("learner-1", "lesson-1", "go-basics", completedAt)

	first, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, 10, first.XPAwarded.Int())

	second, err := f.handler.Handle(context.Background(), cmd)

	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 0, second.XPAwarded.Int(), "repeat awards nothing")
	assert.Equal(t, 10, second.XPTotal.Int(), "total unchanged")
	assert.Equal(t, 1, second.Streak.CurrentStreak)
	assert.Empty(t, second.NewBadges)

	count, _ := f.completions.CountByLearner(context.Background(), "learner-1")
	assert.Equal(t, 1, count, "exactly one completion record")
}

func TestRecordCompletion_CourseCompleted(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2")
	day := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	_, err := f.handler.Handle(context.Background(), cmdFor("learner-1", "lesson-1", "go-basics", day))
	require.NoError(t, err)

	result, err := f.handler.Handle(context.Background(), cmdFor("learner-1", "lesson-2", "go-basics", day.Add(time.Hour)))

	require.NoError(t, err)
	assert.True(t, result.CourseCompleted)
	assert.Equal(t, float64(100), result.CourseProgress.Percent)
	assert.Contains(t, result.NewBadges, learner.BadgeCourse1)
	assert.Contains(t, f.events.types(), shared.EventCourseCompleted)
}

func TestRecordCompletion_StreakGrowsAcrossDays(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2", "lesson-3")
	day1 := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)

	_, err := f.handler.Handle(context.Background(), cmdFor("learner-1", "lesson-1", "go-basics", day1))
	require.NoError(t, err)

	result, err := f.handler.Handle(context.Background(), cmdFor("learner-1", "lesson-2", "go-basics", day2))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Streak.CurrentStreak)
	assert.Equal(t, learner.StreakNextDay, result.Streak.Case)
}

func TestRecordCompletion_TimezoneShiftsActivityDate(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2")

	// 23:30 UTC 15-го - это уже 16-е в поясе Алматы (UTC+5).
	utcEvening := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	cmd := cmdFor("learner-1", "lesson-1", "go-basics", utcEvening)
	cmd.Timezone = "Asia/Almaty"

	_, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	stats, err := f.statsRepo.Get(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16", stats.LastActivityDate.String())
}

func TestRecordCompletion_LessonNotInCourse(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	f.courseRepo.addCourse("sql-basics", "lesson-sql")

	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-sql", "go-basics", time.Now()))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	count, _ := f.completions.CountByLearner(context.Background(), "learner-1")
	assert.Zero(t, count, "nothing stored")
}

func TestRecordCompletion_UnknownLesson(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")

	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "no-such-lesson", "go-basics", time.Now()))

	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordCompletion_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.handler.Handle(context.Background(), cmdFor("", "lesson-1", "go-basics", time.Now()))
	assert.ErrorIs(t, err, shared.ErrInvalidLearnerID)

	_, err = f.handler.Handle(context.Background(), cmdFor("learner-1", "", "go-basics", time.Now()))
	assert.True(t, shared.IsValidation(err))
}

func TestRecordCompletion_FutureCompletedAtRejected(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")

	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now().Add(30*24*time.Hour)))

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, getErr := f.completions.Get(context.Background(), "learner-1", "lesson-1")
	assert.True(t, shared.IsNotFound(getErr), "nothing stored")

	// Дата активности не уехала в будущее: настоящее завершение
	// засчитывается как обычно, серия не заморожена.
	result, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now()))
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
}

func TestRecordCompletion_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	f.statsRepo.failTouch = true

	result, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now()))

	require.Error(t, err)
	assert.True(t, shared.IsPartialCompletion(err))
	require.NotNil(t, result, "partial result is returned alongside the error")
	assert.NotNil(t, result.Completion)
	assert.False(t, result.Completion.CreditedXP)

	// Запись о завершении долговременна и ждёт сверки.
	stored, getErr := f.completions.Get(context.Background(), "learner-1", "lesson-1")
	require.NoError(t, getErr)
	assert.True(t, stored.NeedsReconciliation())
}

func TestRecordCompletion_PartialFailureThenRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	f.statsRepo.failTouch = true

	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now()))
	require.True(t, shared.IsPartialCompletion(err))

	// Хранилище ожило; повторный вызов дозачисляет без дубликата XP.
	f.statsRepo.failTouch = false

	result, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now()))

	require.NoError(t, err)
	assert.True(t, result.AlreadyCompleted, "repeat stays a repeat even while crediting")
	assert.Equal(t, 10, result.XPTotal.Int(), "XP credited exactly once")
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.True(t, result.Completion.CreditedXP)
}

func TestRecordCompletion_ConcurrentSameLesson(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	completedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]*RecordCompletionResult, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.handler.Handle(context.Background(),
				cmdFor("learner-1", "lesson-1", "go-basics", completedAt))
		}(i)
	}
	wg.Wait()

	awarded, fresh := 0, 0
	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		if results[i].XPAwarded > 0 {
			awarded++
		}
		if !results[i].AlreadyCompleted {
			fresh++
		}
	}

	assert.Equal(t, 1, awarded, "XP awarded by exactly one call")
	assert.Equal(t, 1, fresh, "exactly one call observes a fresh completion")

	stats, err := f.statsRepo.Get(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.XPTotal.Int())
	assert.Equal(t, 1, stats.CurrentStreak)

	count, _ := f.completions.CountByLearner(context.Background(), "learner-1")
	assert.Equal(t, 1, count)
}

func TestRecordCompletion_ConcurrentDistinctLessons(t *testing.T) {
	f := newFixture(t)
	lessons := []shared.LessonID{"lesson-1", "lesson-2", "lesson-3", "lesson-4", "lesson-5", "lesson-6"}
	f.courseRepo.addCourse("go-basics", lessons...)
	completedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, len(lessons))

	for i, lessonID := range lessons {
		wg.Add(1)
		go func(i int, lessonID shared.LessonID) {
			defer wg.Done()
			_, errs[i] = f.handler.Handle(context.Background(),
				cmdFor("learner-1", string(lessonID), "go-basics", completedAt))
		}(i, lessonID)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
	}

	// Ни одно начисление не потеряно: каждый урок добавил свои 10 XP.
	stats, err := f.statsRepo.Get(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 10*len(lessons), stats.XPTotal.Int())
	assert.Equal(t, 1, stats.CurrentStreak, "same day counts once")

	count, _ := f.completions.CountByLearner(context.Background(), "learner-1")
	assert.Equal(t, len(lessons), count)
}

func TestRecordCompletion_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1", "lesson-2")

	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	types := f.events.types()
	assert.Contains(t, types, shared.EventLessonCompleted)
	assert.Contains(t, types, shared.EventXPCredited)
	assert.Contains(t, types, shared.EventStreakExtended)
	assert.Contains(t, types, shared.EventBadgeUnlocked)
	assert.NotContains(t, types, shared.EventCourseCompleted)
}

func TestReconcileCompletions_CreditsStalledRecords(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	f.statsRepo.failTouch = true

	completedAt := time.Now().Add(-time.Hour)
	_, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", completedAt))
	require.True(t, shared.IsPartialCompletion(err))

	f.statsRepo.failTouch = false

	reconciler := NewReconcileCompletionsHandler(f.completions, f.handler, f.events)
	result, err := reconciler.Handle(context.Background(), ReconcileCompletionsCommand{
		GracePeriod: 5 * time.Minute,
		BatchSize:   10,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Credited)
	assert.Zero(t, result.Failed)

	stored, err := f.completions.Get(context.Background(), "learner-1", "lesson-1")
	require.NoError(t, err)
	assert.True(t, stored.CreditedXP)

	stats, err := f.statsRepo.Get(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.XPTotal.Int())
}

func TestReconcileCompletions_NothingToDo(t *testing.T) {
	f := newFixture(t)
	reconciler := NewReconcileCompletionsHandler(f.completions, f.handler, f.events)

	result, err := reconciler.Handle(context.Background(), ReconcileCompletionsCommand{})

	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Zero(t, result.Credited)
}

func TestRecordCompletion_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.courseRepo.addCourse("go-basics", "lesson-1")
	f.completions.failPut = true

	result, err := f.handler.Handle(context.Background(),
		cmdFor("learner-1", "lesson-1", "go-basics", time.Now()))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, shared.ErrServiceUnavailable))
	assert.False(t, shared.IsPartialCompletion(err), "nothing durable, not a partial success")
}
