// Package events provides a small typed publish/subscribe bus.
package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Listener receives published events.
type Listener[T any] func(T)

// Bus fans events out to subscribers synchronously. Publish returns only
// after every listener has run.
type Bus[T any] struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener[T]
	logger    *log.Logger
}

// NewBus creates an empty bus. A nil logger uses the package default.
func NewBus[T any](logger *log.Logger) *Bus[T] {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus[T]{
		listeners: make(map[int]Listener[T]),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish delivers ev to every subscriber. A panicking listener is logged and
// does not stop delivery to the others.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	snapshot := make([]Listener[T], 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range snapshot {
		b.deliver(fn, ev)
	}
}

func (b *Bus[T]) deliver(fn Listener[T], ev T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", "event", fmt.Sprintf("%+v", ev), "panic", r)
		}
	}()
	fn(ev)
}
