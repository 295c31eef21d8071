package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ANANT0908/lessonwatch/internal/auth"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/storage/memory"
	"github.com/ANANT0908/lessonwatch/internal/store"
)

func newTestRegistry(t *testing.T, bc *auth.Broadcaster) (*Registry, *memory.UserStore) {
	t.Helper()
	users := memory.NewUserStore()
	r := NewRegistry(Config{}, users, newFakeProvider(), progress.NopEmitter{}, newFakeClock(), bc, nil)
	t.Cleanup(r.Close)
	return r, users
}

func TestRegistryGetReusesTracker(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t, nil)
	a := r.Get("u1")
	require.NotNil(t, a)
	require.Same(t, a, r.Get("u1"))
	require.NotSame(t, a, r.Get("u2"))
}

func TestRegistryFollowsAuthEvents(t *testing.T) {
	t.Parallel()

	bc := auth.NewBroadcaster()
	r, users := newTestRegistry(t, bc)

	require.NoError(t, users.CreateUser(context.Background(), store.UserDocument{
		UserID:   "u1",
		Email:    "u1@example.com",
		Progress: map[string]int{"lesson1": 40},
	}))

	bc.Publish(auth.Event{UserID: "u1", SignedIn: true})
	tr, ok := r.Lookup("u1")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		progressMap, _ := tr.Snapshot()
		return progressMap["lesson1"] == 40
	}, 2*time.Second, 5*time.Millisecond, "initial state hydrated after sign-in")

	bc.Publish(auth.Event{UserID: "u1", SignedIn: false})
	_, ok = r.Lookup("u1")
	require.False(t, ok, "sign-out must tear the tracker down")
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()

	bc := auth.NewBroadcaster()
	r, _ := newTestRegistry(t, bc)
	r.Get("u1")

	r.Close()
	r.Close() // safe twice
	require.Nil(t, r.Get("u1"))

	// The subscription is gone: a late sign-in creates nothing.
	bc.Publish(auth.Event{UserID: "u2", SignedIn: true})
	_, ok := r.Lookup("u2")
	require.False(t, ok)
}
