package bus

import (
	"fmt"
	"reflect"
	"sync"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// Handler receives a published domain event. Handlers must treat the
// event as read-only.
type Handler func(ev domain.DomainEvent)

// Bus is an in-process publish-subscribe dispatcher. Publish runs
// handlers synchronously, in registration order, for the event's
// concrete type. A handler failure (panic) is logged and swallowed; it
// never affects other handlers or the publisher. No replay, no
// persistence: the failure mode is log-and-drop.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]Handler)}
}

// Subscribe registers a handler for the concrete type of the prototype
// event value.
func (b *Bus) Subscribe(prototype domain.DomainEvent, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf(prototype)
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish dispatches the event to every handler registered for its type.
func (b *Bus) Publish(ev domain.DomainEvent) {
	b.mu.RLock()
	hs := b.handlers[reflect.TypeOf(ev)]
	b.mu.RUnlock()

	for i, h := range hs {
		b.dispatch(ev, i, h)
	}
}

func (b *Bus) dispatch(ev domain.DomainEvent, idx int, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("event handler panicked", fmt.Errorf("%v", r),
				"event_type", fmt.Sprintf("%T", ev), "handler_index", idx)
		}
	}()
	h(ev)
}
