package player

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// Telemetry is one heartbeat reported by the browser-embedded widget.
type Telemetry struct {
	CurrentTime float64
	Duration    float64
	State       State
}

// Remote is a server-side stand-in for a widget running in the browser. The
// web client feeds it telemetry heartbeats; the tracker polls it like a local
// player. A Remote is not ready until the first heartbeat arrives, and its
// duration stays unknown until the widget reports a positive, finite value.
type Remote struct {
	mu        sync.Mutex
	lessonID  string
	sample    Telemetry
	hasSample bool
	destroyed bool
	pendSeek  float64
	hasSeek   bool
	observers map[int]func(State)
	nextObs   int
	onDestroy func()
}

// NewRemote constructs a Remote handle for one lesson's embed element.
// onDestroy, when non-nil, runs once when the handle is destroyed.
func NewRemote(lessonID string, onDestroy func()) *Remote {
	return &Remote{
		lessonID:  lessonID,
		observers: map[int]func(State){},
		onDestroy: onDestroy,
	}
}

// Feed applies a heartbeat and notifies state observers on transitions.
func (r *Remote) Feed(sample Telemetry) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	prev := r.sample.State
	first := !r.hasSample
	r.sample = sample
	r.hasSample = true
	var toNotify []func(State)
	if first || sample.State != prev {
		for _, fn := range r.observers {
			toNotify = append(toNotify, fn)
		}
	}
	state := sample.State
	r.mu.Unlock()

	for _, fn := range toNotify {
		fn(state)
	}
}

// Ready reports whether at least one heartbeat has arrived.
func (r *Remote) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasSample && !r.destroyed
}

// Duration returns the reported length once it is positive and finite.
func (r *Remote) Duration() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.sample.Duration
	if !r.hasSample || r.destroyed || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// CurrentTime returns the reported position once it is finite.
func (r *Remote) CurrentTime() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.sample.CurrentTime
	if !r.hasSample || r.destroyed || t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, false
	}
	return t, true
}

// SeekTo records a seek directive for the web client to pick up with its next
// heartbeat response. Later seeks replace earlier unclaimed ones.
func (r *Remote) SeekTo(seconds float64, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.pendSeek = seconds
	r.hasSeek = true
}

// TakePendingSeek claims the outstanding seek directive, if any.
func (r *Remote) TakePendingSeek() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSeek {
		return 0, false
	}
	r.hasSeek = false
	return r.pendSeek, true
}

// OnStateChange registers an observer; the returned func cancels it. An
// observer registered after the first heartbeat is immediately replayed the
// current state, so a widget that started playing before the tracker attached
// is still tracked.
func (r *Remote) OnStateChange(fn func(State)) (cancel func()) {
	r.mu.Lock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = fn
	replay, state := r.hasSample && !r.destroyed, r.sample.State
	r.mu.Unlock()
	if replay {
		fn(state)
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, id)
	}
}

// Destroy releases the handle and detaches all observers.
func (r *Remote) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.observers = map[int]func(State){}
	onDestroy := r.onDestroy
	r.onDestroy = nil
	r.mu.Unlock()
	if onDestroy != nil {
		onDestroy()
	}
}

type handleKey struct {
	userID   string
	lessonID string
}

// RemoteProvider hands out Remote players and routes telemetry heartbeats to
// them. One handle exists per (user, lesson) at a time; destroying the handle
// removes it from the routing table.
type RemoteProvider struct {
	mu      sync.Mutex
	handles map[handleKey]*Remote
	logger  *zap.Logger
}

// NewRemoteProvider builds an empty provider.
func NewRemoteProvider(logger *zap.Logger) *RemoteProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteProvider{
		handles: map[handleKey]*Remote{},
		logger:  logger,
	}
}

// Acquire returns the live handle for the pair, constructing one on demand.
func (p *RemoteProvider) Acquire(userID, lessonID string) (Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := handleKey{userID: userID, lessonID: lessonID}
	if h, ok := p.handles[key]; ok {
		return h, nil
	}
	h := NewRemote(lessonID, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handles, key)
	})
	p.handles[key] = h
	return h, nil
}

// Feed routes a heartbeat to the live handle and returns it so the caller can
// claim pending directives. Heartbeats for unknown pairs are dropped.
func (p *RemoteProvider) Feed(userID, lessonID string, sample Telemetry) (*Remote, bool) {
	p.mu.Lock()
	h, ok := p.handles[handleKey{userID: userID, lessonID: lessonID}]
	p.mu.Unlock()
	if !ok {
		p.logger.Debug("telemetry for unknown player dropped",
			zap.String("user_id", userID),
			zap.String("lesson_id", lessonID),
		)
		return nil, false
	}
	h.Feed(sample)
	return h, true
}
