// Package shared contains common domain types, errors, events, and value objects.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventLessonCompleted EventType = "progress.lesson_completed"
	EventXPCredited      EventType = "progress.xp_credited"
	EventCourseCompleted EventType = "progress.course_completed"

	// Streak events
	EventStreakExtended EventType = "streak.extended"
	EventStreakBroken   EventType = "streak.broken"

	// Badge events
	EventBadgeUnlocked EventType = "badge.unlocked"

	// System events
	EventStatsCreated          EventType = "system.stats_created"
	EventReconciliationApplied EventType = "system.reconciliation_applied"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes domain events.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus extends EventPublisher with subscription management.
type EventBus interface {
	EventPublisher
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewBaseEvent creates a base event for the given aggregate.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// WithCorrelationID returns a copy of the event with the correlation ID set.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// MarshalJSON serializes the base event.
func (e BaseEvent) MarshalJSON() ([]byte, error) {
	type alias BaseEvent
	return json.Marshal(alias(e))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted when a learner completes a lesson for
// the first time. Duplicate completions do not emit this event.
type LessonCompletedEvent struct {
	BaseEvent
	LearnerID LearnerID `json:"learner_id"`
	LessonID  LessonID  `json:"lesson_id"`
	CourseID  CourseID  `json:"course_id"`
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(learnerID LearnerID, lessonID LessonID, courseID CourseID) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, learnerID.String()),
		LearnerID: learnerID,
		LessonID:  lessonID,
		CourseID:  courseID,
	}
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID.String(),
		"lesson_id":  e.LessonID.String(),
		"course_id":  e.CourseID.String(),
	}
}

// XPCreditedEvent is emitted when the ledger applies a credit.
type XPCreditedEvent struct {
	BaseEvent
	LearnerID LearnerID `json:"learner_id"`
	LessonID  LessonID  `json:"lesson_id"`
	Amount    XP        `json:"amount"`
	NewTotal  XP        `json:"new_total"`
}

// NewXPCreditedEvent creates a new XPCreditedEvent.
func NewXPCreditedEvent(learnerID LearnerID, lessonID LessonID, amount, newTotal XP) XPCreditedEvent {
	return XPCreditedEvent{
		BaseEvent: NewBaseEvent(EventXPCredited, learnerID.String()),
		LearnerID: learnerID,
		LessonID:  lessonID,
		Amount:    amount,
		NewTotal:  newTotal,
	}
}

// Payload implements Event interface.
func (e XPCreditedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID.String(),
		"lesson_id":  e.LessonID.String(),
		"amount":     e.Amount.Int(),
		"new_total":  e.NewTotal.Int(),
	}
}

// CourseCompletedEvent is emitted when a completion brings a course to 100%.
type CourseCompletedEvent struct {
	BaseEvent
	LearnerID LearnerID `json:"learner_id"`
	CourseID  CourseID  `json:"course_id"`
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(learnerID LearnerID, courseID CourseID) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent: NewBaseEvent(EventCourseCompleted, learnerID.String()),
		LearnerID: learnerID,
		CourseID:  courseID,
	}
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID.String(),
		"course_id":  e.CourseID.String(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// StreakExtendedEvent is emitted when a streak starts or grows.
type StreakExtendedEvent struct {
	BaseEvent
	LearnerID     LearnerID `json:"learner_id"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(learnerID LearnerID, current, longest int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:     NewBaseEvent(EventStreakExtended, learnerID.String()),
		LearnerID:     learnerID,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID.String(),
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// StreakBrokenEvent is emitted when a gap in activity resets the streak.
type StreakBrokenEvent struct {
	BaseEvent
	LearnerID      LearnerID `json:"learner_id"`
	PreviousStreak int       `json:"previous_streak"`
	DaysMissed     int       `json:"days_missed"`
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(learnerID LearnerID, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, learnerID.String()),
		LearnerID:      learnerID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID.String(),
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// BadgeUnlockedEvent is emitted once per badge per learner. Badges are
// never revoked, so there is no counterpart event.
type BadgeUnlockedEvent struct {
	BaseEvent
	LearnerID LearnerID `json:"learner_id"`
	BadgeID   BadgeID   `json:"badge_id"`
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(learnerID LearnerID, badgeID BadgeID) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, learnerID.String()),
		LearnerID: learnerID,
		BadgeID:   badgeID,
	}
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID.String(),
		"badge_id":   e.BadgeID.String(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// ReconciliationAppliedEvent is emitted when the reconciliation pass
// finishes crediting a completion that was left partially applied.
type ReconciliationAppliedEvent struct {
	BaseEvent
	LearnerID LearnerID `json:"learner_id"`
	LessonID  LessonID  `json:"lesson_id"`
}

// NewReconciliationAppliedEvent creates a new ReconciliationAppliedEvent.
func NewReconciliationAppliedEvent(learnerID LearnerID, lessonID LessonID) ReconciliationAppliedEvent {
	return ReconciliationAppliedEvent{
		BaseEvent: NewBaseEvent(EventReconciliationApplied, learnerID.String()),
		LearnerID: learnerID,
		LessonID:  lessonID,
	}
}

// Payload implements Event interface.
func (e ReconciliationAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID.String(),
		"lesson_id":  e.LessonID.String(),
	}
}
