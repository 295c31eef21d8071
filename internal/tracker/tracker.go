// Package tracker implements the video watch-progress state machine: it binds
// lessons to player handles, samples playback on an interval, applies the
// monotonic persistence policy, and restores playback position from the last
// recorded percent.
package tracker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/clock/system"
	"github.com/ANANT0908/lessonwatch/internal/metrics"
	"github.com/ANANT0908/lessonwatch/internal/player"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/store"
)

// Clock supplies time to the tracker so polling logic is testable.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) system.Ticker
	After(d time.Duration) <-chan time.Time
}

// Config holds the polling cadences. Zero values fall back to the defaults
// observed in the dashboard: 3s progress polls, 200ms readiness probes, 300ms
// duration probes before the initial seek.
type Config struct {
	PollInterval      time.Duration
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
	SeekPollInterval  time.Duration
	SeekPollAttempts  int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.ReadyPollInterval <= 0 {
		c.ReadyPollInterval = 200 * time.Millisecond
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 15 * time.Second
	}
	if c.SeekPollInterval <= 0 {
		c.SeekPollInterval = 300 * time.Millisecond
	}
	if c.SeekPollAttempts <= 0 {
		c.SeekPollAttempts = 20
	}
	return c
}

// session is the live binding between one lesson and its player handle plus
// polling timer. At most one session exists per lesson id.
type session struct {
	lessonID       string
	ctx            context.Context
	cancel         context.CancelFunc
	player         player.Player
	cancelObserver func()
	pollStop       chan struct{} // non-nil iff playback is being polled
	lastPersisted  int
}

// Tracker owns one user's dashboard state: the progress and completed maps,
// the active lesson, and every player session. All mutation goes through its
// mutex; the rendering layer only ever sees snapshots.
type Tracker struct {
	cfg     Config
	userID  string
	users   store.UserStore
	players player.Provider
	emitter progress.Emitter
	clock   Clock
	logger  *zap.Logger

	mu        sync.Mutex
	expanded  string
	progress  map[string]int
	completed map[string]bool
	sessions  map[string]*session
	closed    bool

	wg       sync.WaitGroup
	loadOnce sync.Once
}

// New constructs a Tracker for one user. The emitter receives fire-and-forget
// persistence events; completion toggles are written synchronously so they
// can be rolled back.
func New(
	userID string,
	cfg Config,
	users store.UserStore,
	players player.Provider,
	emitter progress.Emitter,
	clk Clock,
	logger *zap.Logger,
) *Tracker {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clk == nil {
		clk = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:       cfg.withDefaults(),
		userID:    userID,
		users:     users,
		players:   players,
		emitter:   emitter,
		clock:     clk,
		logger:    logger.With(zap.String("user_id", userID)),
		progress:  map[string]int{},
		completed: map[string]bool{},
		sessions:  map[string]*session{},
	}
}

// LoadInitialState fetches the persisted progress and completed maps. It
// fails soft: on any error (including a missing document) the maps stay empty
// and the dashboard renders with zero progress.
func (t *Tracker) LoadInitialState(ctx context.Context) {
	doc, err := t.users.GetUser(ctx, t.userID)
	if err != nil {
		if err == store.ErrNotFound {
			t.logger.Debug("no user document yet, starting empty")
		} else {
			t.logger.Warn("initial state fetch failed", zap.Error(err))
		}
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for lessonID, percent := range doc.Progress {
		t.progress[lessonID] = percent
	}
	for lessonID, flag := range doc.Completed {
		t.completed[lessonID] = flag
	}
}

// EnsureLoaded runs LoadInitialState at most once, so both the sign-in event
// and the first dashboard request can trigger hydration without racing.
func (t *Tracker) EnsureLoaded(ctx context.Context) {
	t.loadOnce.Do(func() { t.LoadInitialState(ctx) })
}

// Expand marks a lesson as the active one and kicks off player attachment.
// It is an idempotent toggle: expanding the already-active lesson collapses
// it, and expanding a different lesson destroys the previous session first.
// The returned bool reports whether the lesson is expanded afterwards.
func (t *Tracker) Expand(lessonID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if t.expanded == lessonID {
		t.expanded = ""
		t.destroySessionLocked(lessonID)
		return false
	}
	if t.expanded != "" {
		t.destroySessionLocked(t.expanded)
	}
	t.expanded = lessonID
	if _, exists := t.sessions[lessonID]; !exists {
		t.attachLocked(lessonID, t.progress[lessonID])
	}
	return true
}

// Expanded returns the currently active lesson id, or "".
func (t *Tracker) Expanded() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expanded
}

// attachLocked creates the session shell and starts the asynchronous attach:
// wait for widget readiness, register the state observer, then seek to the
// resume position once duration is known. Caller holds t.mu.
func (t *Tracker) attachLocked(lessonID string, initialPercent int) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		lessonID:      lessonID,
		ctx:           ctx,
		cancel:        cancel,
		lastPersisted: initialPercent,
	}
	t.sessions[lessonID] = s
	t.wg.Add(1)
	go t.attach(s, initialPercent)
}

func (t *Tracker) attach(s *session, initialPercent int) {
	defer t.wg.Done()

	p, err := t.players.Acquire(t.userID, s.lessonID)
	if err != nil {
		t.logger.Warn("player acquire failed", zap.String("lesson_id", s.lessonID), zap.Error(err))
		t.dropSession(s)
		return
	}
	if err := t.awaitReady(s.ctx, p); err != nil {
		t.logger.Debug("player never became ready",
			zap.String("lesson_id", s.lessonID), zap.Error(err))
		p.Destroy()
		t.dropSession(s)
		return
	}

	t.mu.Lock()
	if t.closed || t.sessions[s.lessonID] != s {
		t.mu.Unlock()
		p.Destroy()
		return
	}
	s.player = p
	t.mu.Unlock()

	// Registered outside the lock: the handle may replay the current state
	// synchronously, and that path takes the lock again via StartTracking.
	cancelObs := p.OnStateChange(func(state player.State) {
		switch state {
		case player.StatePlaying:
			t.StartTracking(s.lessonID, p)
		case player.StateEnded:
			t.StopTracking(s.lessonID)
		}
	})

	t.mu.Lock()
	if t.closed || t.sessions[s.lessonID] != s {
		t.mu.Unlock()
		cancelObs()
		p.Destroy()
		return
	}
	s.cancelObserver = cancelObs
	t.mu.Unlock()

	t.seekToResume(s.ctx, p, initialPercent)
}

// awaitReady polls the widget at the readiness cadence until it comes up,
// the attach is canceled, or the bounded wait expires.
func (t *Tracker) awaitReady(ctx context.Context, p player.Player) error {
	if p.Ready() {
		return nil
	}
	ticker := t.clock.NewTicker(t.cfg.ReadyPollInterval)
	defer ticker.Stop()
	timeout := t.clock.After(t.cfg.ReadyTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("player not ready after %s", t.cfg.ReadyTimeout)
		case <-ticker.C():
			if p.Ready() {
				return nil
			}
		}
	}
}

// seekToResume retries at the seek cadence until duration is known, then
// seeks once to floor(initialPercent/100*duration) seconds. A zero target is
// not seeked. The retry count is bounded.
func (t *Tracker) seekToResume(ctx context.Context, p player.Player, initialPercent int) {
	if d, ok := p.Duration(); ok {
		t.applySeek(p, initialPercent, d)
		return
	}
	ticker := t.clock.NewTicker(t.cfg.SeekPollInterval)
	defer ticker.Stop()
	for attempt := 0; attempt < t.cfg.SeekPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if d, ok := p.Duration(); ok {
				t.applySeek(p, initialPercent, d)
				return
			}
		}
	}
	t.logger.Debug("duration never reported, skipping resume seek")
}

func (t *Tracker) applySeek(p player.Player, initialPercent int, duration float64) {
	seekTime := math.Floor(float64(initialPercent) / 100 * duration)
	if seekTime > 0 {
		p.SeekTo(seekTime, true)
	}
}

// StartTracking begins the 3-second progress poll for a lesson. It is a no-op
// when a poll already exists (idempotent start) or the session is gone.
func (t *Tracker) StartTracking(lessonID string, p player.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	s, ok := t.sessions[lessonID]
	if !ok || s.pollStop != nil {
		return
	}
	s.pollStop = make(chan struct{})
	metrics.SessionStarted()
	t.emitter.Emit(progress.Event{
		UserID:   t.userID,
		LessonID: lessonID,
		TS:       t.clock.Now(),
		Stage:    progress.StageSessionStart,
	})
	t.wg.Add(1)
	go t.pollLoop(s, p, s.pollStop)
}

// StopTracking clears the poll for a lesson. It is idempotent and a no-op for
// lessons with no active poll.
func (t *Tracker) StopTracking(lessonID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[lessonID]
	if !ok {
		return
	}
	t.stopPollLocked(s)
}

func (t *Tracker) stopPollLocked(s *session) {
	if s.pollStop == nil {
		return
	}
	close(s.pollStop)
	s.pollStop = nil
	metrics.SessionStopped()
	t.emitter.Emit(progress.Event{
		UserID:   t.userID,
		LessonID: s.lessonID,
		TS:       t.clock.Now(),
		Stage:    progress.StageSessionStop,
	})
}

// pollLoop consumes ticks one at a time, so a slow tick can never overlap the
// next one.
func (t *Tracker) pollLoop(s *session, p player.Player, stop <-chan struct{}) {
	defer t.wg.Done()
	ticker := t.clock.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			t.tick(s, p)
		}
	}
}

// tick samples the player once. Unusable samples (duration or position not
// yet reported) are skipped silently; that is expected while buffering.
func (t *Tracker) tick(s *session, p player.Player) {
	duration, okD := p.Duration()
	current, okT := p.CurrentTime()
	if !okD || !okT || duration <= 0 {
		metrics.RecordTick("skipped")
		return
	}
	percent := int(math.Floor(current / duration * 100))
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	t.mu.Lock()
	if t.closed || t.sessions[s.lessonID] != s {
		t.mu.Unlock()
		return
	}
	t.progress[s.lessonID] = percent
	shouldPersist := percent > s.lastPersisted
	if shouldPersist {
		if t.userID == "" {
			t.logger.Warn("user not authenticated, skipping progress write",
				zap.String("lesson_id", s.lessonID))
			shouldPersist = false
		} else {
			s.lastPersisted = percent
		}
	}
	t.mu.Unlock()

	metrics.RecordTick("sampled")
	if shouldPersist {
		t.emitter.Emit(progress.Event{
			UserID:   t.userID,
			LessonID: s.lessonID,
			TS:       t.clock.Now(),
			Stage:    progress.StageAdvance,
			Percent:  percent,
		})
	}
	if percent >= 100 {
		t.StopTracking(s.lessonID)
	}
}

// ToggleComplete flips the completion flag, optimistically updates the
// in-memory map, and persists the flag synchronously. On persistence failure
// the in-memory flag is rolled back and the error returned, so the UI can
// offer a retry. The flag is independent of percent in both directions.
func (t *Tracker) ToggleComplete(ctx context.Context, lessonID string) (bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, fmt.Errorf("tracker is shut down")
	}
	if t.userID == "" {
		t.mu.Unlock()
		t.logger.Warn("user not authenticated, completion toggle aborted")
		return false, fmt.Errorf("user not authenticated")
	}
	newValue := !t.completed[lessonID]
	t.completed[lessonID] = newValue
	t.mu.Unlock()

	fields := map[string]any{store.CompletedField(lessonID): newValue}
	if err := t.users.UpdateFields(ctx, t.userID, fields); err != nil {
		t.mu.Lock()
		t.completed[lessonID] = !newValue
		t.mu.Unlock()
		t.logger.Error("completion toggle write failed",
			zap.String("lesson_id", lessonID), zap.Error(err))
		return !newValue, fmt.Errorf("persist completion for %s: %w", lessonID, err)
	}

	metrics.RecordCompletionToggle(lessonID, newValue)
	t.emitter.Emit(progress.Event{
		UserID:    t.userID,
		LessonID:  lessonID,
		TS:        t.clock.Now(),
		Stage:     progress.StageCompletion,
		Completed: newValue,
	})
	return newValue, nil
}

// Snapshot returns read-only copies of the progress and completed maps.
func (t *Tracker) Snapshot() (map[string]int, map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	progressCopy := make(map[string]int, len(t.progress))
	for k, v := range t.progress {
		progressCopy[k] = v
	}
	completedCopy := make(map[string]bool, len(t.completed))
	for k, v := range t.completed {
		completedCopy[k] = v
	}
	return progressCopy, completedCopy
}

// Teardown destroys every active player handle and clears every poll. It is
// safe to call multiple times and blocks until all background goroutines have
// exited, so no orphaned timer can keep writing after shutdown.
func (t *Tracker) Teardown() {
	t.mu.Lock()
	t.closed = true
	for lessonID := range t.sessions {
		t.destroySessionLocked(lessonID)
	}
	t.expanded = ""
	t.mu.Unlock()
	t.wg.Wait()
}

// destroySessionLocked tears down one session: poll first, then observer,
// then the player handle. Caller holds t.mu.
func (t *Tracker) destroySessionLocked(lessonID string) {
	s, ok := t.sessions[lessonID]
	if !ok {
		return
	}
	t.stopPollLocked(s)
	s.cancel()
	if s.cancelObserver != nil {
		s.cancelObserver()
		s.cancelObserver = nil
	}
	if s.player != nil {
		s.player.Destroy()
		s.player = nil
	}
	delete(t.sessions, lessonID)
}

// dropSession removes a session whose attach failed before a player was bound.
func (t *Tracker) dropSession(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[s.lessonID] == s {
		delete(t.sessions, s.lessonID)
		if t.expanded == s.lessonID {
			t.expanded = ""
		}
	}
}
