package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	config := DefaultInMemoryEventBusConfig()
	config.AsyncMode = false
	return NewInMemoryEventBus(config)
}

func TestInMemoryEventBus_SubscribeAndPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var received []shared.EventType
	err := bus.Subscribe(shared.EventXPCredited, func(event shared.Event) error {
		received = append(received, event.EventType())
		return nil
	})
	require.NoError(t, err)

	event := shared.NewXPCreditedEvent("learner-1", "lesson-1", 10, 10)
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventXPCredited, received[0])
}

func TestInMemoryEventBus_RoutesByEventType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var xpCalls, streakCalls int
	_ = bus.Subscribe(shared.EventXPCredited, func(shared.Event) error {
		xpCalls++
		return nil
	})
	_ = bus.Subscribe(shared.EventStreakExtended, func(shared.Event) error {
		streakCalls++
		return nil
	})

	require.NoError(t, bus.Publish(shared.NewXPCreditedEvent("learner-1", "lesson-1", 10, 10)))
	require.NoError(t, bus.Publish(shared.NewXPCreditedEvent("learner-1", "lesson-2", 10, 20)))
	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("learner-1", 2, 2)))

	assert.Equal(t, 2, xpCalls)
	assert.Equal(t, 1, streakCalls)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var all []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		all = append(all, event.EventType())
		return nil
	}))

	_ = bus.Publish(shared.NewLessonCompletedEvent("learner-1", "lesson-1", "go-basics"))
	_ = bus.Publish(shared.NewBadgeUnlockedEvent("learner-1", "first_lesson"))

	assert.Equal(t, []shared.EventType{shared.EventLessonCompleted, shared.EventBadgeUnlocked}, all)
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var secondCalled bool
	_ = bus.Subscribe(shared.EventXPCredited, func(shared.Event) error {
		return errors.New("handler failed")
	})
	_ = bus.Subscribe(shared.EventXPCredited, func(shared.Event) error {
		secondCalled = true
		return nil
	})

	err := bus.Publish(shared.NewXPCreditedEvent("learner-1", "lesson-1", 10, 10))

	assert.NoError(t, err, "handler errors are logged, not propagated")
	assert.True(t, secondCalled)
}

func TestInMemoryEventBus_NoHandlers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.NoError(t, bus.Publish(shared.NewCourseCompletedEvent("learner-1", "go-basics")))
}

func TestInMemoryEventBus_NilEvent(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	config := DefaultInMemoryEventBusConfig()
	config.WorkerPoolSize = 4
	bus := NewInMemoryEventBus(config)

	var delivered atomic.Int32
	var wg sync.WaitGroup
	wg.Add(5)
	_ = bus.Subscribe(shared.EventXPCredited, func(shared.Event) error {
		delivered.Add(1)
		wg.Done()
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewXPCreditedEvent("learner-1", "lesson-1", 10, 10)))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, int32(5), delivered.Load())
	require.NoError(t, bus.Close())
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewXPCreditedEvent("learner-1", "lesson-1", 10, 10))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventXPCredited, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_CloseIsIdempotent(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(shared.NewCourseCompletedEvent("learner-1", "go-basics")))
}
