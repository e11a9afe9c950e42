// internal/events/bus.go
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes a delivered event. Handlers run on the dispatch
// goroutine and must return quickly.
type Handler func(ctx context.Context, event Event) error

// Subscription identifies a registered handler and can detach it.
type Subscription struct {
	id  string
	typ EventType
	bus *Bus
}

// Unsubscribe removes the handler from the bus.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}

// Bus is an in-memory publish/subscribe bus. Publishing is non-blocking;
// a full buffer drops the event rather than stalling a trading loop.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	events   chan Event
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("event_bus"),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, bufferSize),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	return &Subscription{id: id, typ: eventType, bus: b}
}

// Publish queues an event for asynchronous delivery.
func (b *Bus) Publish(event Event) error {
	if b.ctx.Err() != nil {
		return fmt.Errorf("event bus is shutting down")
	}
	select {
	case b.events <- event:
		return nil
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event buffer full")
	}
}

// deliver invokes every handler registered for the event's type.
func (b *Bus) deliver(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
		}
	}
}

func (b *Bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Drain whatever was queued before shutdown.
			for {
				select {
				case event := <-b.events:
					b.deliver(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.events:
			b.deliver(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Shutdown stops delivery after draining queued events.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}
