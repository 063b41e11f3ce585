package event

import (
	"reflect"
	"sync"
)

// Bus delivers events synchronously to subscribers, on the emitting
// goroutine. Subscribers must not block.
type Bus struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type][]func(any))}
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	b.subs[t] = append(b.subs[t], func(ev any) { fn(ev.(T)) })
	b.mu.Unlock()
}

// Emit calls every subscriber of T in registration order. A nil bus drops
// the event.
func Emit[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	fns := b.subs[reflect.TypeFor[T]()]
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
