// Package event is the in-process event bus. Domain services fire events
// such as "order.created" or "stock.changed"; listeners fan them out to the
// activity log, the websocket hub, mail jobs and Kafka.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

// Event is what listeners receive.
type Event struct {
	Name       string      `json:"name"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Handler receives an event.
type Handler func(ctx context.Context, e Event)

// Bus routes events by name. Listeners added with ListenAll see everything.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers h for one event name.
func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// ListenAll registers h for every event.
func (b *Bus) ListenAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

func (b *Bus) listeners(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, 0, len(b.handlers[name])+len(b.all))
	hs = append(hs, b.handlers[name]...)
	return append(hs, b.all...)
}

// Fire calls every listener in the caller's goroutine.
func (b *Bus) Fire(ctx context.Context, name string, payload interface{}) {
	e := Event{Name: name, Payload: payload, OccurredAt: time.Now()}
	for _, h := range b.listeners(name) {
		b.call(ctx, h, e)
	}
}

// FireAsync calls listeners in background goroutines detached from ctx
// cancellation. Wait blocks until they finish.
func (b *Bus) FireAsync(ctx context.Context, name string, payload interface{}) {
	e := Event{Name: name, Payload: payload, OccurredAt: time.Now()}
	ctx = context.WithoutCancel(ctx)
	for _, h := range b.listeners(name) {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.call(ctx, h, e)
		}()
	}
}

// Wait blocks until in-flight async listeners return.
func (b *Bus) Wait() { b.wg.Wait() }

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
	b.all = nil
}

func (b *Bus) call(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", e.Name, "panic", r)
		}
	}()
	h(ctx, e)
}

// Default is the process-wide bus.
var Default = NewBus()

func Listen(name string, h Handler) { Default.Listen(name, h) }
func ListenAll(h Handler)           { Default.ListenAll(h) }
func Flush()                        { Default.Flush() }
func Fire(ctx context.Context, name string, payload interface{}) {
	Default.Fire(ctx, name, payload)
}
func FireAsync(ctx context.Context, name string, payload interface{}) {
	Default.FireAsync(ctx, name, payload)
}
