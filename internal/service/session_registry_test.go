package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mockauth "github.com/gpchangipur/portal/internal/mocks/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

func newTestRegistry(t *testing.T, idle time.Duration) (*SessionRegistry, *mockauth.FakeIdentityProvider) {
	t.Helper()
	idp := mockauth.NewFakeIdentityProvider(adminAccount)
	reg, err := NewSessionRegistry(SessionRegistryOptions{
		Identity:  idp,
		Profiles:  mockauth.NewMemoryProfiles(adminProfile),
		Notifiers: func(string) ports.Notifier { return &mockauth.RecordingNotifier{} },
		IdleTTL:   idle,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg, idp
}

func TestSessionRegistry_GetReusesStore(t *testing.T) {
	reg, idp := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	stores := make([]*SessionStore, 8)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Get(ctx, "client-a")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, idp.Fake("client-a").Subscribers())

	other, err := reg.Get(ctx, "client-b")
	require.NoError(t, err)
	assert.NotSame(t, stores[0], other)
	assert.Equal(t, "client-b", other.ClientID())
}

func TestSessionRegistry_GetRequiresClientID(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	_, err := reg.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestSessionRegistry_PeekDoesNotCreate(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	_, ok := reg.Peek("client-a")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestSessionRegistry_IdleStoreIsClosed(t *testing.T) {
	reg, idp := newTestRegistry(t, 50*time.Millisecond)

	_, err := reg.Get(context.Background(), "client-a")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := reg.Peek("client-a")
		return !ok
	}, time.Second, 10*time.Millisecond)

	// The janitor runs at least once a second and closes expired stores.
	require.Eventually(t, func() bool {
		return idp.Fake("client-a").Subscribers() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSessionRegistry_EvictionClosesStore(t *testing.T) {
	reg, idp := newTestRegistry(t, time.Minute)
	_, err := reg.Get(context.Background(), "client-a")
	require.NoError(t, err)
	require.Equal(t, 1, idp.Fake("client-a").Subscribers())

	reg.stores.Delete("client-a")

	require.Eventually(t, func() bool {
		return idp.Fake("client-a").Subscribers() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionRegistry_RefetchedStoreSurvivesEviction(t *testing.T) {
	reg, idp := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	store, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)

	// The janitor dropped the entry but Get put the same store back before
	// the eviction callback ran.
	reg.evicted("client-a", store)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, store.isClosed())
	assert.Equal(t, 1, idp.Fake("client-a").Subscribers())

	again, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)
	assert.Same(t, store, again)
}

func TestSessionRegistry_GetNeverReturnsClosedStore(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	store, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)

	store.Close()

	fresh, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)
	assert.NotSame(t, store, fresh)
	assert.False(t, fresh.isClosed())
	assert.Equal(t, 1, reg.Len())
}

func TestSessionRegistry_ExpiredStoreIsReplaced(t *testing.T) {
	reg, idp := newTestRegistry(t, 50*time.Millisecond)
	ctx := context.Background()
	first, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	second, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)
	require.NotSame(t, first, second)

	require.Eventually(t, first.isClosed, 3*time.Second, 20*time.Millisecond)
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, idp.Fake("client-a").Subscribers())
}

func TestSessionRegistry_CloseDuringCreateClosesNewStore(t *testing.T) {
	reg, idp := newTestRegistry(t, time.Minute)
	ctx := context.Background()

	fake := idp.Fake("client-a")
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.BeforeSubscribe = func() {
		close(entered)
		<-release
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := reg.Get(ctx, "client-a")
		errCh <- err
	}()

	<-entered
	require.NoError(t, reg.Close(ctx))
	close(release)

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrRegistryClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not return after Close")
	}
	assert.Zero(t, reg.Len())
	assert.Zero(t, fake.Subscribers())
}

func TestSessionRegistry_Close(t *testing.T) {
	reg, idp := newTestRegistry(t, time.Minute)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Get(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, reg.Close(ctx))
	require.NoError(t, reg.Close(ctx))

	for _, id := range []string{"a", "b", "c"} {
		assert.Zero(t, idp.Fake(id).Subscribers())
	}
	_, err := reg.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestNavigationRecorder(t *testing.T) {
	rec := NewNavigationRecorder()
	nav := rec.For("client-a")

	_, ok := rec.Take("client-a")
	assert.False(t, ok)

	nav.Redirect(context.Background(), "/admin", ports.RedirectOptions{})
	nav.Redirect(context.Background(), "/login", ports.RedirectOptions{ReplaceHistory: true})

	got, ok := rec.Take("client-a")
	require.True(t, ok)
	assert.Equal(t, PendingRedirect{Path: "/login", ReplaceHistory: true}, got)

	_, ok = rec.Take("client-a")
	assert.False(t, ok)

	nav.Redirect(context.Background(), "/login", ports.RedirectOptions{})
	rec.Forget("client-a")
	_, ok = rec.Take("client-a")
	assert.False(t, ok)
}

func TestSessionRegistry_RotateWithoutMoverKeepsID(t *testing.T) {
	idp := mockauth.NewFakeIdentityProvider(adminAccount)
	reg, err := NewSessionRegistry(SessionRegistryOptions{
		// Embedding the interface hides MoveSession.
		Identity: struct{ ports.IdentityProvider }{idp},
		Profiles: mockauth.NewMemoryProfiles(adminProfile),
		IdleTTL:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	ctx := context.Background()
	first, err := reg.Get(ctx, "client-a")
	require.NoError(t, err)

	id, store, err := reg.Rotate(ctx, "client-a")
	require.NoError(t, err)
	assert.Equal(t, "client-a", id)
	assert.Same(t, first, store)
	assert.Empty(t, idp.Moves())
}

func TestSessionRegistry_RotateWithoutSession(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)

	_, _, err := reg.Rotate(context.Background(), "client-a")
	assert.ErrorIs(t, err, ports.ErrNoSession)
}
