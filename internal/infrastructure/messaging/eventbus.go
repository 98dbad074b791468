// Package messaging implements the event bus that connects command handlers
// to event subscribers. Events are notifications about state that is already
// durable; losing one degrades freshness (a stale cache entry), never
// correctness, so the in-process bus is the default.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
)

// ErrEventBusClosed is returned when operations are attempted on a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// slowHandlerThreshold is how long a subscriber may run before it gets
// logged. Subscribers do cache invalidation and similar cheap work; a
// second means something is stuck.
const slowHandlerThreshold = time.Second

// delivery is one (event, handler) pair queued for async execution.
type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// InMemoryEventBus routes events to subscribers within a single process.
// In async mode deliveries go through a fixed pool of worker goroutines,
// so a slow subscriber delays other events instead of piling up
// goroutines.
type InMemoryEventBus struct {
	mu      sync.RWMutex
	byType  map[shared.EventType][]shared.EventHandler
	global  []shared.EventHandler
	async   bool
	queue   chan delivery
	workers sync.WaitGroup
	logger  *slog.Logger
	closed  bool
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode enables asynchronous event processing.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent workers for async processing.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		async:  config.AsyncMode,
		logger: config.Logger,
	}

	if bus.async {
		bus.queue = make(chan delivery, config.WorkerPoolSize*16)
		bus.workers.Add(config.WorkerPoolSize)
		for i := 0; i < config.WorkerPoolSize; i++ {
			go bus.worker()
		}
	}
	return bus
}

func (b *InMemoryEventBus) worker() {
	defer b.workers.Done()
	for d := range b.queue {
		if err := b.dispatch(d.event, d.handler); err != nil {
			b.logger.Error("async handler error",
				"event_type", d.event.EventType(),
				"error", err,
			)
		}
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.byType[eventType] = append(b.byType[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.global = append(b.global, handler)
	return nil
}

// Publish delivers event to every matching subscriber. In sync mode a
// failing handler is logged and the rest still run; Publish itself only
// fails for a nil event or a closed bus.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	// The read lock is held across the enqueue so Close cannot shut the
	// queue between the closed check and the send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrEventBusClosed
	}

	targets := b.byType[event.EventType()]
	if len(targets) == 0 && len(b.global) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	if b.async {
		for _, h := range targets {
			b.queue <- delivery{event: event, handler: h}
		}
		for _, h := range b.global {
			b.queue <- delivery{event: event, handler: h}
		}
		return nil
	}

	for _, h := range targets {
		if err := b.dispatch(event, h); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	for _, h := range b.global {
		if err := b.dispatch(event, h); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

func (b *InMemoryEventBus) dispatch(event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(event)
	if elapsed := time.Since(start); elapsed > slowHandlerThreshold {
		b.logger.Warn("slow event handler",
			"event_type", event.EventType(),
			"duration", elapsed,
		)
	}
	return err
}

// Close stops accepting publishes and waits for queued deliveries to
// finish. Safe to call more than once.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.async {
		close(b.queue)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// NoopPublisher discards all events. Used in tests and tools that do not
// care about downstream subscribers.
type NoopPublisher struct{}

// Publish implements shared.EventPublisher.
func (NoopPublisher) Publish(shared.Event) error { return nil }
