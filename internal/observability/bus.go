package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// Handler processes one published event. A handler panic/error is logged
// and does not interrupt delivery to other subscribers (fire-and-forget).
type Handler func(event brain.Event)

// Middleware may transform an event before delivery, or return ok=false to
// suppress it entirely.
type Middleware func(event brain.Event) (brain.Event, bool)

type subscription struct {
	pattern string
	handler Handler
	async   bool
}

// EventBus is an in-process pub/sub bus with wildcard subscription
// (`prefix.*`), synchronous and asynchronous handlers, middleware, and a
// bounded history ring. Publication is best-effort: handler failures never
// propagate to the publisher.
type EventBus struct {
	mu         sync.RWMutex
	subs       []subscription
	middleware []Middleware
	history    []brain.Event
	historyCap int
	logger     *Logger
}

// NewEventBus creates a bus with a bounded history ring of historyCap events
// (default 1000 if <= 0).
func NewEventBus(historyCap int, logger *Logger) *EventBus {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &EventBus{historyCap: historyCap, logger: logger}
}

// Subscribe registers a synchronous handler for pattern ("tool.executed",
// "tool.*", or "*" for everything).
func (b *EventBus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler})
}

// SubscribeAsync registers a handler dispatched on its own goroutine so a
// slow subscriber cannot block Publish.
func (b *EventBus) SubscribeAsync(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler, async: true})
}

// SubscribeAll is shorthand for Subscribe("*", handler).
func (b *EventBus) SubscribeAll(handler Handler) {
	b.Subscribe("*", handler)
}

// AddMiddleware appends a transform applied, in registration order, to every
// event before it reaches subscribers.
func (b *EventBus) AddMiddleware(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Publish records an event to history, then delivers it synchronously to
// every matching sync subscriber and fires async subscribers on their own
// goroutines. Handler panics are recovered and logged; they never propagate.
func (b *EventBus) Publish(eventType string, data map[string]any, source, correlationID string) {
	event := brain.Event{
		EventType:     eventType,
		Data:          data,
		Timestamp:     time.Now(),
		Source:        source,
		CorrelationID: correlationID,
	}
	b.dispatch(event)
}

// PublishAsync is Publish on its own goroutine, for callers that must not
// block on synchronous subscribers.
func (b *EventBus) PublishAsync(eventType string, data map[string]any, source, correlationID string) {
	go b.Publish(eventType, data, source, correlationID)
}

func (b *EventBus) dispatch(event brain.Event) {
	b.mu.RLock()
	middleware := append([]Middleware(nil), b.middleware...)
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	ok := true
	for _, mw := range middleware {
		event, ok = mw(event)
		if !ok {
			return
		}
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !matchesPattern(event.EventType, sub.pattern) {
			continue
		}
		if sub.async {
			go b.invoke(sub.handler, event)
		} else {
			b.invoke(sub.handler, event)
		}
	}
}

func (b *EventBus) invoke(h Handler, event brain.Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error(context.Background(), "event handler panicked", "event_type", event.EventType, "panic", r)
		}
	}()
	h(event)
}

// matchesPattern supports exact match and a single trailing-wildcard prefix
// ("tool.*" matches "tool.executed", "tool.failed", ...; bare "*" matches
// everything).
func matchesPattern(eventType, pattern string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(eventType, prefix)
	}
	return false
}

// GetHistory returns up to limit most-recent events, optionally filtered by
// exact event type (limit <= 0 means no cap).
func (b *EventBus) GetHistory(eventType string, limit int) []brain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []brain.Event
	for i := len(b.history) - 1; i >= 0; i-- {
		e := b.history[i]
		if eventType != "" && e.EventType != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
