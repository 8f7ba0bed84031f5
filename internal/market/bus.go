package market

import (
	"log/slog"
	"sync"

	"alpha-arena/pkg/types"
)

// Handler consumes a price event. Handlers run synchronously on the
// publisher's goroutine and must not block; handlers that need to do real
// work dispatch it to their own workers.
type Handler func(types.PriceEvent)

// Bus is a synchronous publish/subscribe fan-out for price events. Handlers
// are keyed by name (func values are not comparable) and invoked in
// subscription order. A panicking handler is logged and swallowed so it
// cannot suppress later handlers.
type Bus struct {
	mu       sync.Mutex
	order    []string
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "bus"),
	}
}

// Subscribe registers a named handler. Re-subscribing an existing name
// replaces the handler but keeps its position in the dispatch order.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[name]; !ok {
		b.order = append(b.order, name)
	}
	b.handlers[name] = h
}

// Unsubscribe removes a handler by name. Unknown names are a no-op.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[name]; !ok {
		return
	}
	delete(b.handlers, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every handler in subscription order. The
// handler list is snapshotted under the lock so dispatch never holds it.
func (b *Bus) Publish(event types.PriceEvent) {
	b.mu.Lock()
	snapshot := make([]namedHandler, 0, len(b.order))
	for _, name := range b.order {
		snapshot = append(snapshot, namedHandler{name, b.handlers[name]})
	}
	b.mu.Unlock()

	for _, nh := range snapshot {
		b.dispatch(nh, event)
	}
}

type namedHandler struct {
	name string
	h    Handler
}

func (b *Bus) dispatch(nh namedHandler, event types.PriceEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", "handler", nh.name, "symbol", event.Symbol, "panic", r)
		}
	}()
	nh.h(event)
}
