package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	mockauth "github.com/gpchangipur/portal/internal/mocks/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock { return &manualClock{now: time.Now()} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(c *manualClock) func(*SessionStoreOptions) {
	return func(o *SessionStoreOptions) { o.Now = c.Now }
}

func expiringAdmin(token string, exp time.Time) *domainauth.Identity {
	id := adminSession(token)
	id.ExpiresAt = exp
	return id
}

func revalidate(t *testing.T, s *SessionStore) domainauth.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Revalidate(ctx)
	require.NoError(t, err)
	return snap
}

func TestSessionStore_RevalidateEndsLapsedSession(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(10*time.Minute)))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile), withClock(clock))

	snap := h.start(t)
	require.Equal(t, domainauth.StateAuthorized, snap.State)

	clock.Advance(11 * time.Minute)
	snap = revalidate(t, h.store)

	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, 1, idp.SignOutCalls())
	assert.Zero(t, idp.RefreshCalls())
	sent := h.notifier.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, titleSessionExpired, sent[len(sent)-1].Title)
}

func TestSessionStore_RevalidateEndsRevokedSession(t *testing.T) {
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(adminSession("t1"))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile))
	require.Equal(t, domainauth.StateAuthorized, h.start(t).State)

	// Another tab signed out; this store never heard about it.
	idp.SetSession(nil)
	snap := revalidate(t, h.store)

	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
}

func TestSessionStore_RevalidateKeepsLiveSession(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(time.Hour)))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile), withClock(clock))
	h.start(t)

	snap := revalidate(t, h.store)

	assert.Equal(t, domainauth.StateAuthorized, snap.State)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "t1", snap.Identity.Token)
	assert.Zero(t, idp.RefreshCalls())
	assert.Zero(t, idp.SignOutCalls())
}

func TestSessionStore_RevalidateRefreshesNearExpiry(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(2*time.Minute)))
	profiles := mockauth.NewMemoryProfiles(adminProfile)
	h := newStoreHarness(t, idp, profiles, withClock(clock))
	h.start(t)
	lookups := len(profiles.Gets())

	snap := revalidate(t, h.store)

	assert.Equal(t, 1, idp.RefreshCalls())
	assert.Equal(t, domainauth.StateAuthorized, snap.State)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "token-1", snap.Identity.Token)
	assert.True(t, snap.Identity.ExpiresAt.After(clock.Now().Add(30*time.Minute)))
	// A renewed credential for the same user does not re-run authorization.
	assert.Len(t, profiles.Gets(), lookups)

	// TOKEN_REFRESHED echoes back through the subscription without changing anything.
	h.flush(t)
	assert.Equal(t, "token-1", h.store.Snapshot().Identity.Token)

	snap = revalidate(t, h.store)
	assert.Equal(t, 1, idp.RefreshCalls())
	assert.Equal(t, "token-1", snap.Identity.Token)
}

func TestSessionStore_RevalidateRefreshRevoked(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(time.Minute)))
	idp.RefreshFunc = func(context.Context) (domainauth.Identity, error) {
		return domainauth.Identity{}, ports.ErrNoSession
	}
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile), withClock(clock))
	h.start(t)

	snap := revalidate(t, h.store)

	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Identity)
}

func TestSessionStore_RevalidateRefreshFailureKeepsSession(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(time.Minute)))
	idp.RefreshFunc = func(context.Context) (domainauth.Identity, error) {
		return domainauth.Identity{}, errors.New("redis unavailable")
	}
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile), withClock(clock))
	h.start(t)

	snap := revalidate(t, h.store)

	assert.Equal(t, domainauth.StateAuthorized, snap.State)
	assert.Equal(t, "t1", snap.Identity.Token)
}

func TestSessionStore_RevalidateRefreshDisabled(t *testing.T) {
	clock := newManualClock()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", clock.Now().Add(time.Minute)))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile), withClock(clock),
		func(o *SessionStoreOptions) { o.RefreshWindow = -1 })
	h.start(t)

	snap := revalidate(t, h.store)

	assert.Zero(t, idp.RefreshCalls())
	assert.Equal(t, "t1", snap.Identity.Token)
}

func TestSessionStore_RevalidateIgnoresSignedOut(t *testing.T) {
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	var reads int
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile))
	h.start(t)
	idp.CurrentSessionFunc = func(context.Context) (*domainauth.Identity, error) {
		reads++
		return nil, nil
	}

	snap := revalidate(t, h.store)

	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Zero(t, reads)
	assert.Zero(t, idp.SignOutCalls())
}

func TestSessionStore_ExpiryTimerEndsSession(t *testing.T) {
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", time.Now().Add(300*time.Millisecond)))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile))
	require.Equal(t, domainauth.StateAuthorized, h.start(t).State)

	require.Eventually(t, func() bool {
		snap := h.store.Snapshot()
		return snap.State == domainauth.StateUnauthenticated && snap.Identity == nil
	}, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, idp.SignOutCalls(), 1)
}

func TestSessionStore_LogoutStopsExpiryTimer(t *testing.T) {
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(expiringAdmin("t1", time.Now().Add(200*time.Millisecond)))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile))
	h.start(t)

	require.True(t, h.store.Logout(context.Background()))
	time.Sleep(400 * time.Millisecond)
	h.flush(t)

	// Only the logout signed out; the timer never fired an expiry.
	assert.Equal(t, 1, idp.SignOutCalls())
	for _, n := range h.notifier.Sent() {
		assert.NotEqual(t, titleSessionExpired, n.Title)
	}
}
