package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ANANT0908/lessonwatch/internal/auth"
	"github.com/ANANT0908/lessonwatch/internal/catalog"
	"github.com/ANANT0908/lessonwatch/internal/player"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/storage/memory"
	"github.com/ANANT0908/lessonwatch/internal/tracker"
)

type testEnv struct {
	server   *Server
	users    *memory.UserStore
	registry *tracker.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUserStore()
	bc := auth.NewBroadcaster()
	authSvc, err := auth.NewService(auth.Config{JWTSecret: "test-secret", AccessTTL: time.Hour}, users, users, bc, nil)
	require.NoError(t, err)

	cat, err := catalog.New([]catalog.Lesson{
		{ID: "lesson1", SourceURL: "https://www.youtube.com/watch?v=abc123"},
		{ID: "lesson2", SourceURL: "https://www.youtube.com/watch?v=def456"},
	})
	require.NoError(t, err)

	players := player.NewRemoteProvider(nil)
	registry := tracker.NewRegistry(tracker.Config{
		PollInterval:      10 * time.Millisecond,
		ReadyPollInterval: 5 * time.Millisecond,
		ReadyTimeout:      2 * time.Second,
		SeekPollInterval:  5 * time.Millisecond,
		SeekPollAttempts:  100,
	}, users, players, progress.NopEmitter{}, nil, bc, nil)
	t.Cleanup(registry.Close)

	srv := NewServer(authSvc, registry, players, cat, 10*time.Second, nil)
	return &testEnv{server: srv, users: users, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, email string) auth.Session {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", "", nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestSignupAndLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "kim@example.com")
	require.NotEmpty(t, sess.Token)

	rec := env.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email": "kim@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email": "bad", "password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "kim@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "kim@example.com", "password": "wrong-pass",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/dashboard", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/dashboard", "not-a-token", nil).Code)
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "dash@example.com")

	rec := env.do(t, http.MethodGet, "/v1/dashboard", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lessons, 2)
	require.Equal(t, "lesson1", resp.Lessons[0].ID)
	require.Equal(t, "https://www.youtube.com/embed/abc123?enablejsapi=1", resp.Lessons[0].EmbedURL)
	require.Equal(t, "yt-player-lesson1", resp.Lessons[0].ElementID)
	require.Zero(t, resp.Lessons[0].Percent)
	require.Empty(t, resp.Expanded)
}

func TestExpandAndTelemetryRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "watch@example.com")

	rec := env.do(t, http.MethodPost, "/v1/lessons/nope/expand", sess.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/lessons/lesson1/expand", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"expanded":true`)

	heartbeat := map[string]any{"current_time": 30.0, "duration": 120.0, "state": "playing"}
	require.Eventually(t, func() bool {
		return env.do(t, http.MethodPost, "/v1/lessons/lesson1/telemetry", sess.Token, heartbeat).Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond, "handle appears once the tracker acquires it")

	// The 10ms poll picks the sample up and the write lands in storage.
	require.Eventually(t, func() bool {
		progressMap, _ := env.registry.Get(sess.UserID).Snapshot()
		return progressMap["lesson1"] == 25
	}, 2*time.Second, 10*time.Millisecond, "watch percent tracked from telemetry")

	// Collapsing removes the handle; further heartbeats are rejected.
	rec = env.do(t, http.MethodPost, "/v1/lessons/lesson1/expand", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"expanded":false`)
	require.Eventually(t, func() bool {
		return env.do(t, http.MethodPost, "/v1/lessons/lesson1/telemetry", sess.Token, heartbeat).Code == http.StatusConflict
	}, 2*time.Second, 10*time.Millisecond, "telemetry rejected after collapse")
}

func TestTelemetryReturnsPendingSeek(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "resume@example.com")

	// Previously watched half the lesson.
	require.NoError(t, env.users.UpdateFields(context.Background(), sess.UserID,
		map[string]any{"progress.lesson1": 50}))

	rec := env.do(t, http.MethodPost, "/v1/lessons/lesson1/expand", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Once the widget reports its duration the tracker computes the resume
	// position (floor(50/100*120) = 60s) and parks it as a seek directive.
	heartbeat := map[string]any{"current_time": 0.0, "duration": 120.0, "state": "paused"}
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodPost, "/v1/lessons/lesson1/telemetry", sess.Token, heartbeat)
		return resp.Code == http.StatusOK && bytes.Contains(resp.Body.Bytes(), []byte(`"seek_to":60`))
	}, 2*time.Second, 10*time.Millisecond, "seek directive delivered to the widget")
}

func TestToggleComplete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "done@example.com")

	rec := env.do(t, http.MethodPost, "/v1/lessons/lesson2/complete", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"completed":true`)

	rec = env.do(t, http.MethodGet, "/v1/dashboard", sess.Token, nil)
	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Lessons[1].Completed)

	rec = env.do(t, http.MethodPost, "/v1/lessons/lesson2/complete", sess.Token, nil)
	require.Contains(t, rec.Body.String(), `"completed":false`)

	rec = env.do(t, http.MethodPost, "/v1/lessons/nope/complete", sess.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutTearsDownTracker(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.signup(t, "bye@example.com")

	rec := env.do(t, http.MethodGet, "/v1/dashboard", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := env.registry.Lookup(sess.UserID)
	require.True(t, ok)

	rec = env.do(t, http.MethodPost, "/v1/auth/logout", sess.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok = env.registry.Lookup(sess.UserID)
	require.False(t, ok)
}

func TestTranslations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, lang := range []string{"en", "de"} {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/v1/i18n/%s", lang), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "auth.login")
	}
	rec := env.do(t, http.MethodGet, "/v1/i18n/fr", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
