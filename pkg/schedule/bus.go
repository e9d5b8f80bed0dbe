package schedule

import (
	"sync"
	"time"
)

// Update is a committed schedule as published on the Bus.
type Update struct {
	Schedule    []Block   `json:"schedule"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Bus fans committed schedules out to in-process subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Update]struct{}
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Update]struct{})}
}

// Publish delivers u to every subscriber without blocking.
func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			// subscriber is behind; drop to avoid blocking the planner
		}
	}
}

// Subscribe returns a buffered channel that receives every new schedule.
func (b *Bus) Subscribe() chan Update {
	ch := make(chan Update, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}
