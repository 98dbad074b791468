// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/course"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/learner"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
	"github.com/oqu-hub/oqu-learning-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COMPLETION COMMAND
// Оркестрация завершения урока: запись о завершении -> начисление XP ->
// обновление серии -> оценка бейджей -> прогресс курса. Порядок фиксирован:
// запись о завершении долговременна ДО любых downstream-эффектов, поэтому
// сбой на любом шаге оставляет систему в состоянии, которое доводит до
// конца reconciliation-воркер, а не теряет завершение.
// ══════════════════════════════════════════════════════════════════════════════

// completedAtSkew - допуск на рассинхрон часов клиента: completed_at
// дальше этого порога в будущем отклоняется.
const completedAtSkew = 5 * time.Minute

// RecordCompletionCommand содержит данные для фиксации завершения урока.
type RecordCompletionCommand struct {
	// LearnerID - кто завершил урок.
	LearnerID shared.LearnerID

	// LessonID - какой урок завершён.
	LessonID shared.LessonID

	// CourseID - курс урока. Проверяется против каталога.
	CourseID shared.CourseID

	// CompletedAt - момент завершения (zero value - сейчас).
	CompletedAt time.Time

	// Timezone - часовой пояс учащегося для вычисления календарной даты
	// серии. Пустое значение означает UTC.
	Timezone string

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет команду.
func (c RecordCompletionCommand) Validate() error {
	if err := c.LearnerID.Validate(); err != nil {
		return err
	}
	if c.LessonID.IsEmpty() {
		return shared.NewDomainError("progress", "RecordCompletion", shared.ErrInvalidID, "lesson ID is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("progress", "RecordCompletion", shared.ErrInvalidID, "course ID is required")
	}
	return nil
}

// activityDate возвращает календарную дату завершения в поясе учащегося.
func (c RecordCompletionCommand) activityDate(completedAt time.Time) shared.Date {
	return shared.DateOf(timeutil.InZone(completedAt, c.Timezone))
}

// RecordCompletionResult содержит развёрнутый результат завершения урока.
type RecordCompletionResult struct {
	// AlreadyCompleted - true, если запись о завершении уже существовала
	// до этого вызова. Из N конкурентных вызовов ровно один получает
	// false - тот, чья вставка прошла.
	AlreadyCompleted bool

	// Completion - запись о завершении (существующая или новая).
	Completion *progress.CompletionRecord

	// XPAwarded - начислено очков этим вызовом (0 при повторе).
	XPAwarded shared.XP

	// XPTotal - итог учащегося после операции.
	XPTotal shared.XP

	// Streak - результат применения активности к серии.
	Streak learner.TouchResult

	// NewBadges - бейджи, полученные этим вызовом.
	NewBadges []shared.BadgeID

	// CourseProgress - производный прогресс курса после завершения.
	CourseProgress progress.CourseProgress

	// CourseCompleted - true, если это завершение довело курс до 100%.
	CourseCompleted bool

	// Events - доменные события, порождённые операцией.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordCompletionHandler обрабатывает RecordCompletionCommand.
type RecordCompletionHandler struct {
	completions    progress.CompletionStore
	ledger         progress.Ledger
	statsRepo      learner.StatsRepository
	courseRepo     course.Repository
	badgeEngine    *learner.BadgeEngine
	eventPublisher shared.EventPublisher

	// xpPerLesson - очки за один урок.
	xpPerLesson shared.XP
}

// NewRecordCompletionHandler создаёт обработчик.
func NewRecordCompletionHandler(
	completions progress.CompletionStore,
	ledger progress.Ledger,
	statsRepo learner.StatsRepository,
	courseRepo course.Repository,
	badgeEngine *learner.BadgeEngine,
	eventPublisher shared.EventPublisher,
	xpPerLesson shared.XP,
) *RecordCompletionHandler {
	if xpPerLesson <= 0 {
		xpPerLesson = 10
	}
	return &RecordCompletionHandler{
		completions:    completions,
		ledger:         ledger,
		statsRepo:      statsRepo,
		courseRepo:     courseRepo,
		badgeEngine:    badgeEngine,
		eventPublisher: eventPublisher,
		xpPerLesson:    xpPerLesson,
	}
}

// Handle выполняет команду завершения урока.
//
// Идемпотентность: N вызовов с той же парой (учащийся, урок) дают ровно
// одну запись о завершении, одно начисление XP и один учтённый день серии.
// Повторы возвращают AlreadyCompleted=true и не трогают состояние.
func (h *RecordCompletionHandler) Handle(ctx context.Context, cmd RecordCompletionCommand) (*RecordCompletionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Урок должен существовать и принадлежать заявленному курсу.
	lesson, err := h.courseRepo.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != cmd.CourseID {
		return nil, shared.ErrLessonNotInCourse
	}

	// Будущий completedAt сдвинул бы last_activity_date вперёд, и все
	// последующие реальные завершения классифицировались бы как
	// StreakOutOfOrder - серия замёрзла бы. Допускаем лишь небольшой
	// рассинхрон часов клиента.
	completedAt := cmd.CompletedAt
	switch {
	case completedAt.IsZero():
		completedAt = time.Now().UTC()
	case completedAt.After(time.Now().Add(completedAtSkew)):
		return nil, shared.NewDomainError("progress", "RecordCompletion",
			shared.ErrValueOutOfRange, "completed_at cannot be in the future")
	}

	record, err := progress.NewCompletionRecord(uuid.NewString(), cmd.LearnerID, cmd.LessonID, cmd.CourseID, completedAt)
	if err != nil {
		return nil, err
	}

	// Шаг 1: долговременная запись о завершении. Insert-if-absent:
	// при повторе возвращается существующая запись с её CompletedAt.
	stored, inserted, err := h.completions.Put(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("record_completion: store completion: %w", err)
	}

	// Повтор остаётся повтором и когда у существующей записи ещё
	// CreditedXP=false: дозачисление идемпотентно повторяется ниже,
	// но XP начислил ровно один вызов - тот, что вставил запись.
	result := &RecordCompletionResult{
		AlreadyCompleted: !inserted,
		Completion:       stored,
		Events:           make([]shared.Event, 0, 4),
	}

	if !inserted && stored.CreditedXP {
		// Полностью обработанный повтор: отвечаем текущим состоянием.
		return h.fillReadModel(ctx, cmd, result)
	}

	if inserted {
		result.Events = append(result.Events,
			shared.NewLessonCompletedEvent(cmd.LearnerID, cmd.LessonID, cmd.CourseID))
	}

	// Шаги 2-5 идемпотентны по паре (учащийся, урок) каждый сам по себе,
	// поэтому их безопасно повторять для записи с CreditedXP=false.
	if err := h.credit(ctx, cmd, stored, result); err != nil {
		// Завершение уже долговременно; сообщаем частичный успех,
		// дозачисление сделает reconciliation-воркер.
		return result, shared.WrapError("progress", "RecordCompletion",
			shared.ErrPartialCompletion, "completion stored, crediting incomplete", err)
	}

	if err := h.completions.MarkCredited(ctx, cmd.LearnerID, cmd.LessonID); err != nil {
		return result, shared.WrapError("progress", "RecordCompletion",
			shared.ErrPartialCompletion, "completion credited, flag not persisted", err)
	}
	result.Completion.CreditedXP = true

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}
	return result, nil
}

// credit выполняет downstream-шаги: XP, серия, бейджи, прогресс курса.
// Используется и обычным вызовом, и reconciliation-воркером.
func (h *RecordCompletionHandler) credit(ctx context.Context, cmd RecordCompletionCommand, record *progress.CompletionRecord, result *RecordCompletionResult) error {
	// Шаг 2: начисление XP. Атомарный insert-if-absent в журнал плюс
	// атомарный инкремент итога - чтения-модификации-записи нет.
	entry, err := progress.NewLedgerEntry(record.LearnerID, record.LessonID, h.xpPerLesson)
	if err != nil {
		return err
	}
	credit, err := h.ledger.Credit(ctx, entry)
	if err != nil {
		return fmt.Errorf("credit xp: %w", err)
	}
	result.XPTotal = credit.NewTotal
	if credit.Applied {
		result.XPAwarded = h.xpPerLesson
		result.Events = append(result.Events,
			shared.NewXPCreditedEvent(record.LearnerID, record.LessonID, h.xpPerLesson, credit.NewTotal))
	}

	// Шаг 3: серия. Применяется под блокировкой строки статистики.
	touch, err := h.statsRepo.TouchStreak(ctx, record.LearnerID, cmd.activityDate(record.CompletedAt))
	if err != nil {
		return fmt.Errorf("touch streak: %w", err)
	}
	result.Streak = touch
	if touch.Broken() {
		result.Events = append(result.Events,
			shared.NewStreakBrokenEvent(record.LearnerID, touch.PreviousStreak, touch.DaysMissed))
	}
	if touch.Changed {
		result.Events = append(result.Events,
			shared.NewStreakExtendedEvent(record.LearnerID, touch.CurrentStreak, touch.LongestStreak))
	}

	// Шаг 4: прогресс курса + счётчики для правил бейджей.
	courseProgress, err := h.courseProgress(ctx, record.LearnerID, record.CourseID)
	if err != nil {
		return fmt.Errorf("course progress: %w", err)
	}
	result.CourseProgress = courseProgress
	if courseProgress.Completed() && result.XPAwarded > 0 {
		result.CourseCompleted = true
		result.Events = append(result.Events,
			shared.NewCourseCompletedEvent(record.LearnerID, record.CourseID))
	}

	lessonsDone, err := h.completions.CountByLearner(ctx, record.LearnerID)
	if err != nil {
		return fmt.Errorf("count completions: %w", err)
	}
	coursesDone, err := h.completions.CompletedCoursesCount(ctx, record.LearnerID)
	if err != nil {
		return fmt.Errorf("count completed courses: %w", err)
	}

	// Шаг 5: бейджи. Оценка чистая, вставка - insert-if-absent,
	// поэтому повтор не породит ни дубликата, ни повторного события.
	stats, err := h.statsRepo.Get(ctx, record.LearnerID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	candidates := h.badgeEngine.Evaluate(stats.Snapshot(lessonsDone, coursesDone), stats.Badges)
	if len(candidates) > 0 {
		unlocked, err := h.statsRepo.UnlockBadges(ctx, record.LearnerID, candidates)
		if err != nil {
			return fmt.Errorf("unlock badges: %w", err)
		}
		result.NewBadges = unlocked
		for _, badgeID := range unlocked {
			result.Events = append(result.Events,
				shared.NewBadgeUnlockedEvent(record.LearnerID, badgeID))
		}
	}

	result.XPTotal = stats.XPTotal
	if credit.Applied && stats.XPTotal < credit.NewTotal {
		// Get мог прочитать состояние до видимости инкремента; итог
		// из Credit авторитетнее.
		result.XPTotal = credit.NewTotal
	}
	return nil
}

// fillReadModel заполняет результат повторного вызова текущим состоянием.
func (h *RecordCompletionHandler) fillReadModel(ctx context.Context, cmd RecordCompletionCommand, result *RecordCompletionResult) (*RecordCompletionResult, error) {
	result.XPAwarded = 0

	stats, err := h.statsRepo.GetOrCreate(ctx, cmd.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("record_completion: load stats: %w", err)
	}
	result.XPTotal = stats.XPTotal
	result.Streak = learner.TouchResult{
		Case:          learner.StreakSameDay,
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
	}

	courseProgress, err := h.courseProgress(ctx, cmd.LearnerID, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("record_completion: course progress: %w", err)
	}
	result.CourseProgress = courseProgress
	return result, nil
}

// courseProgress вычисляет производный прогресс по манифесту курса.
func (h *RecordCompletionHandler) courseProgress(ctx context.Context, learnerID shared.LearnerID, courseID shared.CourseID) (progress.CourseProgress, error) {
	lessons, err := h.courseRepo.ListLessons(ctx, courseID)
	if err != nil {
		return progress.CourseProgress{}, err
	}
	manifest := make([]shared.LessonID, 0, len(lessons))
	for _, l := range lessons {
		manifest = append(manifest, l.ID)
	}

	records, err := h.completions.ListByLearnerCourse(ctx, learnerID, courseID)
	if err != nil {
		return progress.CourseProgress{}, err
	}
	completed := make(map[shared.LessonID]bool, len(records))
	for _, r := range records {
		completed[r.LessonID] = true
	}

	return progress.ComputeCourseProgress(courseID, manifest, completed), nil
}
