package command

import (
	"context"
	"fmt"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/progress"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE COMPLETIONS COMMAND
// Сверочный проход: находит записи о завершении с credited_xp=false
// (частичные сбои) и доводит начисления до конца. Каждый downstream-шаг
// идемпотентен, поэтому проход безопасно повторять сколько угодно раз.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileCompletionsCommand содержит параметры сверочного прохода.
type ReconcileCompletionsCommand struct {
	// GracePeriod - минимальный возраст записи. Свежие записи с
	// credited_xp=false могут ещё обрабатываться обычным путём.
	GracePeriod time.Duration

	// BatchSize - максимум записей за один проход.
	BatchSize int
}

// ReconcileCompletionsResult содержит итог прохода.
type ReconcileCompletionsResult struct {
	// Scanned - сколько незачисленных записей найдено.
	Scanned int

	// Credited - сколько записей успешно дозачислено.
	Credited int

	// Failed - сколько записей не удалось дозачислить (остаются на
	// следующий проход).
	Failed int
}

// ReconcileCompletionsHandler обрабатывает ReconcileCompletionsCommand.
type ReconcileCompletionsHandler struct {
	completions    progress.CompletionStore
	recorder       *RecordCompletionHandler
	eventPublisher shared.EventPublisher
}

// NewReconcileCompletionsHandler создаёт обработчик.
func NewReconcileCompletionsHandler(
	completions progress.CompletionStore,
	recorder *RecordCompletionHandler,
	eventPublisher shared.EventPublisher,
) *ReconcileCompletionsHandler {
	return &ReconcileCompletionsHandler{
		completions:    completions,
		recorder:       recorder,
		eventPublisher: eventPublisher,
	}
}

// Handle выполняет один сверочный проход.
func (h *ReconcileCompletionsHandler) Handle(ctx context.Context, cmd ReconcileCompletionsCommand) (*ReconcileCompletionsResult, error) {
	if cmd.GracePeriod <= 0 {
		cmd.GracePeriod = 5 * time.Minute
	}
	if cmd.BatchSize <= 0 {
		cmd.BatchSize = 100
	}

	olderThan := time.Now().UTC().Add(-cmd.GracePeriod)
	records, err := h.completions.ListUncredited(ctx, olderThan, cmd.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list uncredited: %w", err)
	}

	result := &ReconcileCompletionsResult{Scanned: len(records)}
	for _, record := range records {
		if err := h.reconcileOne(ctx, record); err != nil {
			result.Failed++
			continue
		}
		result.Credited++
		_ = h.eventPublisher.Publish(
			shared.NewReconciliationAppliedEvent(record.LearnerID, record.LessonID))
	}
	return result, nil
}

// reconcileOne дозачисляет одну запись теми же идемпотентными шагами,
// что и обычное завершение.
func (h *ReconcileCompletionsHandler) reconcileOne(ctx context.Context, record *progress.CompletionRecord) error {
	cmd := RecordCompletionCommand{
		LearnerID: record.LearnerID,
		LessonID:  record.LessonID,
		CourseID:  record.CourseID,
	}
	partial := &RecordCompletionResult{
		Completion: record,
		Events:     make([]shared.Event, 0, 4),
	}
	if err := h.recorder.credit(ctx, cmd, record, partial); err != nil {
		return err
	}
	if err := h.recorder.completions.MarkCredited(ctx, record.LearnerID, record.LessonID); err != nil {
		return err
	}
	for _, event := range partial.Events {
		_ = h.eventPublisher.Publish(event)
	}
	return nil
}
