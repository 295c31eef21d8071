package tracker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/auth"
	"github.com/ANANT0908/lessonwatch/internal/player"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/store"
)

// Registry hands out one Tracker per signed-in user and tears it down when
// the user signs out. It subscribes to the identity broadcaster so session
// lifecycle follows auth state rather than request handling.
type Registry struct {
	cfg     Config
	users   store.UserStore
	players player.Provider
	emitter progress.Emitter
	clock   Clock
	logger  *zap.Logger

	mu          sync.Mutex
	trackers    map[string]*Tracker
	closed      bool
	unsubscribe func()
}

// NewRegistry builds the registry and subscribes it to broadcaster events.
// A nil broadcaster is allowed; trackers are then created on demand only.
func NewRegistry(
	cfg Config,
	users store.UserStore,
	players player.Provider,
	emitter progress.Emitter,
	clk Clock,
	broadcaster *auth.Broadcaster,
	logger *zap.Logger,
) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		cfg:      cfg,
		users:    users,
		players:  players,
		emitter:  emitter,
		clock:    clk,
		logger:   logger,
		trackers: map[string]*Tracker{},
	}
	if broadcaster != nil {
		r.unsubscribe = broadcaster.Subscribe(r.onAuthChange)
	}
	return r
}

func (r *Registry) onAuthChange(ev auth.Event) {
	if ev.SignedIn {
		t := r.Get(ev.UserID)
		if t != nil {
			// Hydrate off the auth path; the dashboard renders empty
			// maps until the fetch lands.
			go t.EnsureLoaded(context.Background())
		}
		return
	}
	r.mu.Lock()
	t, ok := r.trackers[ev.UserID]
	if ok {
		delete(r.trackers, ev.UserID)
	}
	r.mu.Unlock()
	if ok {
		t.Teardown()
		r.logger.Debug("tracker torn down on sign-out", zap.String("user_id", ev.UserID))
	}
}

// Get returns the user's tracker, creating one if needed. Returns nil after
// Close.
func (r *Registry) Get(userID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if t, ok := r.trackers[userID]; ok {
		return t
	}
	t := New(userID, r.cfg, r.users, r.players, r.emitter, r.clock, r.logger)
	r.trackers[userID] = t
	return t
}

// Lookup returns the user's tracker without creating one.
func (r *Registry) Lookup(userID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[userID]
	return t, ok
}

// Close releases the broadcaster subscription and tears down every tracker.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	trackers := r.trackers
	r.trackers = map[string]*Tracker{}
	unsub := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, t := range trackers {
		t.Teardown()
	}
}
