package auth

import "sync"

// Event describes one auth state transition for a user.
type Event struct {
	UserID   string
	SignedIn bool
}

// Broadcaster fans auth state changes out to subscribers. Subscribers are
// invoked synchronously in Publish order; anything slow belongs in the
// subscriber's own goroutine.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[int]func(Event){}}
}

// Subscribe registers fn and returns a cancel func. Cancel is idempotent.
func (b *Broadcaster) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber. Callbacks run
// outside the lock so a subscriber may unsubscribe from within its callback.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
