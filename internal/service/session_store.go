package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

// User-facing notification texts.
const (
	titleAccessDenied   = "Access denied"
	titleLoginFailed    = "Login failed"
	titleLoginSucceeded = "Login successful"
	titleLogoutError    = "Logout error"
	titleLoggedOut      = "Logged out successfully"
	titleSessionExpired = "Session expired"

	msgAdminsOnly         = "Only administrators can access this portal."
	msgProfileNotFound    = "User profile not found."
	msgInvalidCredentials = "Invalid credentials. Please check your email and password."
	msgMissingCredentials = "Email and password are required."
	msgWelcomeAdmin       = "Welcome back! You are now logged in as admin."
	msgLogoutError        = "An error occurred while logging out."
	msgLoggedOut          = "You have been logged out of your account."
	msgSessionExpired     = "Your session has ended. Please log in again."
)

const (
	defaultLoginPath     = "/login"
	defaultTouchTimeout  = 5 * time.Second
	defaultRefreshWindow = 5 * time.Minute
)

var (
	// ErrStoreNotStarted is returned by commands issued before Start.
	ErrStoreNotStarted = errors.New("session store not started")
	// ErrStoreClosed is returned by commands issued after Close.
	ErrStoreClosed = errors.New("session store closed")
)

// AuthMetrics receives auth outcome observations. Implementations must be safe for concurrent use.
type AuthMetrics interface {
	LoginAttempt(outcome string)
	Denied(reason string)
	Settled(state string, took time.Duration)
}

type noopAuthMetrics struct{}

func (noopAuthMetrics) LoginAttempt(string)           {}
func (noopAuthMetrics) Denied(string)                 {}
func (noopAuthMetrics) Settled(string, time.Duration) {}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domainauth.Notification) {}

type noopNavigator struct{}

func (noopNavigator) Redirect(context.Context, string, ports.RedirectOptions) {}

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	ClientID  string
	Identity  ports.IdentityClient
	Profiles  ports.ProfileRepository
	Notifier  ports.Notifier
	Navigator ports.Navigator
	Metrics   AuthMetrics
	Logger    *slog.Logger
	// Policy defaults to domainauth.AdminOnly.
	Policy domainauth.RolePolicy
	// LoginPath is where Logout navigates; defaults to /login.
	LoginPath string
	// TouchTimeout bounds the best-effort last-login update; defaults to 5s.
	TouchTimeout time.Duration
	// RefreshWindow is how close to expiry Revalidate renews the token;
	// defaults to 5m. A negative window disables renewal.
	RefreshWindow time.Duration
	Now           func() time.Time
}

// SessionStore owns the authenticated identity and authorization profile of one browser client.
//
// All state transitions run on a single loop goroutine fed by a mailbox: identity-provider
// notifications, the one-shot startup read, expiry timers and the Login/Logout/Revalidate/
// RefreshProfile commands are applied one at a time in arrival order. Readers get copies
// through Snapshot.
type SessionStore struct {
	clientID     string
	identity     ports.IdentityClient
	profiles     ports.ProfileRepository
	notifier     ports.Notifier
	navigator    ports.Navigator
	metrics      AuthMetrics
	logger       *slog.Logger
	policy       domainauth.RolePolicy
	loginPath     string
	touchTimeout  time.Duration
	refreshWindow time.Duration
	now           func() time.Time

	mu    sync.RWMutex
	state domainauth.Snapshot

	// Loop-owned bookkeeping; only touched from the loop goroutine.
	changesApplied int
	denied         map[string]struct{}
	hasSettled     bool
	createdAt      time.Time
	expiry         *time.Timer

	settled     chan struct{}
	mail        *mailbox
	stop        chan struct{}
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	sideEffects sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	startMu   sync.Mutex
	started   bool
}

// NewSessionStore constructs a SessionStore in the Initializing state with loading set.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Identity == nil {
		return nil, errors.New("identity client is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}

	s := &SessionStore{
		clientID:     opts.ClientID,
		identity:     opts.Identity,
		profiles:     opts.Profiles,
		notifier:     opts.Notifier,
		navigator:    opts.Navigator,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		policy:       opts.Policy,
		loginPath:     opts.LoginPath,
		touchTimeout:  opts.TouchTimeout,
		refreshWindow: opts.RefreshWindow,
		now:           opts.Now,
		state:         domainauth.Snapshot{Loading: true, State: domainauth.StateInitializing},
		denied:        make(map[string]struct{}),
		settled:       make(chan struct{}),
		mail:          newMailbox(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.navigator == nil {
		s.navigator = noopNavigator{}
	}
	if s.metrics == nil {
		s.metrics = noopAuthMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("client_id", s.clientID)
	if s.policy.Required == domainauth.RoleNone {
		s.policy = domainauth.AdminOnly
	}
	if s.loginPath == "" {
		s.loginPath = defaultLoginPath
	}
	if s.touchTimeout <= 0 {
		s.touchTimeout = defaultTouchTimeout
	}
	if s.refreshWindow == 0 {
		s.refreshWindow = defaultRefreshWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.createdAt = s.now()
	return s, nil
}

// ClientID returns the browser client id this store serves.
func (s *SessionStore) ClientID() string { return s.clientID }

// Start subscribes to identity-provider changes, reads the current session once and
// begins processing. The store outlives ctx; call Close to tear it down.
func (s *SessionStore) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

		s.startMu.Lock()
		s.started = true
		s.startMu.Unlock()
		go s.run()

		unsub, subErr := s.identity.Subscribe(s.ctx, func(change domainauth.SessionChange) {
			// Only enqueue here: profile lookups must not run inside the provider's callback.
			s.mail.push(func() { s.handleChange(change) })
		})
		if subErr != nil {
			err = fmt.Errorf("subscribe to session changes: %w", subErr)
			return
		}
		s.unsubscribe = unsub

		s.sideEffects.Add(1)
		go func() {
			defer s.sideEffects.Done()
			id, readErr := s.identity.CurrentSession(s.ctx)
			s.mail.push(func() { s.handleStartupRead(id, readErr) })
		}()
	})
	if err != nil {
		s.Close()
	}
	return err
}

// Close unsubscribes from the provider, stops the loop and waits for side effects.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.mail.close()
		if s.cancel != nil {
			s.cancel()
		}
		close(s.stop)

		s.startMu.Lock()
		started := s.started
		s.startMu.Unlock()
		if started {
			<-s.done
			s.stopExpiry()
		}
		s.sideEffects.Wait()
	})
}

func (s *SessionStore) isClosed() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() domainauth.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Settled is closed once the first settled outcome (unauthenticated or authorized) is reached.
func (s *SessionStore) Settled() <-chan struct{} { return s.settled }

// WaitSettled blocks until the store has settled or ctx is done, and returns the latest snapshot.
func (s *SessionStore) WaitSettled(ctx context.Context) (domainauth.Snapshot, error) {
	select {
	case <-s.settled:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Login authenticates with the identity provider and admits only profiles that satisfy the policy.
// Failures are reported through the notifier; the return value says whether the session is authorized.
func (s *SessionStore) Login(ctx context.Context, email, password string) bool {
	var ok bool
	if err := s.do(ctx, func() { ok = s.login(ctx, email, password) }); err != nil {
		s.logger.WarnContext(ctx, "login command not applied", "error", err)
		return false
	}
	return ok
}

// Logout signs out, clears the session and navigates to the login page.
// A failed sign-out is reported through the notifier and leaves the session untouched.
func (s *SessionStore) Logout(ctx context.Context) bool {
	var ok bool
	if err := s.do(ctx, func() { ok = s.logout(ctx) }); err != nil {
		s.logger.WarnContext(ctx, "logout command not applied", "error", err)
		return false
	}
	return ok
}

// Revalidate checks an authorized session against the identity provider and
// returns the resulting snapshot. A session past its expiry or no longer held by
// the provider is cleared; one expiring within the refresh window is renewed.
// Sessions that are not authorized are returned unchanged.
func (s *SessionStore) Revalidate(ctx context.Context) (domainauth.Snapshot, error) {
	if err := s.do(ctx, func() { s.revalidate(ctx) }); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// RefreshProfile re-reads the profile of the held identity and replaces it when found.
// It does not re-apply the role policy.
func (s *SessionStore) RefreshProfile(ctx context.Context) error {
	var err error
	if doErr := s.do(ctx, func() { err = s.refreshProfile(ctx) }); doErr != nil {
		return doErr
	}
	return err
}

// UpdatePassword changes the password of the held identity.
func (s *SessionStore) UpdatePassword(ctx context.Context, newPassword string) error {
	var err error
	if doErr := s.do(ctx, func() {
		if s.state.Identity == nil {
			err = ports.ErrNoSession
			return
		}
		err = s.identity.UpdatePassword(ctx, newPassword)
	}); doErr != nil {
		return doErr
	}
	return err
}

// do runs fn on the loop goroutine and waits for it to finish.
func (s *SessionStore) do(ctx context.Context, fn func()) error {
	s.startMu.Lock()
	started := s.started
	s.startMu.Unlock()
	if !started {
		return ErrStoreNotStarted
	}

	finished := make(chan struct{})
	if !s.mail.push(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStoreClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStoreClosed
	}
}

func (s *SessionStore) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.mail.signal:
			for {
				select {
				case <-s.stop:
					return
				default:
				}
				task, ok := s.mail.next()
				if !ok {
					break
				}
				task()
			}
		}
	}
}

func (s *SessionStore) handleChange(change domainauth.SessionChange) {
	s.changesApplied++
	s.logger.DebugContext(s.ctx, "session change", "event", change.Event, "has_identity", change.Identity != nil)
	s.resolve(s.ctx, change.Identity)
}

func (s *SessionStore) handleStartupRead(id *domainauth.Identity, err error) {
	if err != nil {
		s.logger.WarnContext(s.ctx, "read current session failed", "error", err)
		id = nil
	}
	if s.changesApplied > 0 {
		// A provider notification already described a session at least as recent.
		s.logger.DebugContext(s.ctx, "startup session read superseded")
		return
	}
	s.resolve(s.ctx, id)
}

// resolve runs the authorization sub-procedure for an identity reported by the provider.
func (s *SessionStore) resolve(ctx context.Context, id *domainauth.Identity) {
	if id == nil {
		s.clear()
		return
	}
	if s.isDenied(*id) {
		s.logger.DebugContext(ctx, "ignoring change for denied session", "user_id", id.UserID)
		return
	}

	cur := s.state
	if cur.State == domainauth.StateAuthorized && cur.Identity != nil && cur.Identity.UserID == id.UserID {
		held := *id
		s.update(func(st *domainauth.Snapshot) { st.Identity = &held })
		s.armExpiry(held)
		return
	}

	held := *id
	s.update(func(st *domainauth.Snapshot) {
		st.Identity = &held
		st.Profile = nil
		st.State = domainauth.StateAuthorizingProfile
	})

	verdict := s.policy.Evaluate(s.lookup(ctx, id.UserID))
	if !verdict.Admitted {
		s.deny(ctx, *id, verdict, domainauth.Notification{
			Severity:    domainauth.SeverityDestructive,
			Title:       titleAccessDenied,
			Description: msgAdminsOnly,
		})
		return
	}
	s.admit(ctx, *id, verdict.Profile)
}

func (s *SessionStore) login(ctx context.Context, email, password string) bool {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.metrics.LoginAttempt("invalid_input")
		s.notify(ctx, domainauth.SeverityDestructive, titleLoginFailed, msgMissingCredentials)
		return false
	}

	s.update(func(st *domainauth.Snapshot) { st.Loading = true })
	defer func() {
		settled := s.hasSettled
		s.update(func(st *domainauth.Snapshot) { st.Loading = !settled })
	}()

	id, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.InfoContext(ctx, "sign in rejected", "error", err)
		s.metrics.LoginAttempt("rejected")
		desc := msgInvalidCredentials
		if m, ok := ports.UserMessage(err); ok {
			desc = m
		}
		s.notify(ctx, domainauth.SeverityDestructive, titleLoginFailed, desc)
		return false
	}

	held := id
	s.update(func(st *domainauth.Snapshot) {
		st.Identity = &held
		st.Profile = nil
		st.State = domainauth.StateAuthorizingProfile
	})

	verdict := s.policy.Evaluate(s.lookup(ctx, id.UserID))
	if !verdict.Admitted {
		s.metrics.LoginAttempt("denied")
		desc := msgAdminsOnly
		if verdict.Reason == domainauth.DenialProfileMissing {
			desc = msgProfileNotFound
		}
		s.deny(ctx, id, verdict, domainauth.Notification{
			Severity:    domainauth.SeverityDestructive,
			Title:       titleLoginFailed,
			Description: desc,
		})
		return false
	}

	s.metrics.LoginAttempt("success")
	s.admit(ctx, id, verdict.Profile)
	s.notify(ctx, domainauth.SeverityInfo, titleLoginSucceeded, msgWelcomeAdmin)
	return true
}

func (s *SessionStore) logout(ctx context.Context) bool {
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.ErrorContext(ctx, "sign out failed", "error", err)
		s.notify(ctx, domainauth.SeverityDestructive, titleLogoutError, msgLogoutError)
		return false
	}
	s.clear()
	s.navigator.Redirect(ctx, s.loginPath, ports.RedirectOptions{})
	s.notify(ctx, domainauth.SeverityInfo, titleLoggedOut, msgLoggedOut)
	return true
}

func (s *SessionStore) revalidate(ctx context.Context) {
	cur := s.state
	if cur.State != domainauth.StateAuthorized || cur.Identity == nil {
		return
	}
	held := *cur.Identity
	if held.Expired(s.now()) {
		s.expire(ctx, held, "expired")
		return
	}

	id, err := s.identity.CurrentSession(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "revalidate session read failed", "error", err)
		return
	}
	if id == nil {
		s.expire(ctx, held, "revoked")
		return
	}
	if id.Token != held.Token {
		s.resolve(ctx, id)
		return
	}
	if s.refreshWindow < 0 || held.ExpiresAt.IsZero() || held.ExpiresAt.Sub(s.now()) > s.refreshWindow {
		return
	}

	fresh, err := s.identity.RefreshSession(ctx)
	switch {
	case errors.Is(err, ports.ErrNoSession):
		s.expire(ctx, held, "revoked")
	case err != nil:
		s.logger.WarnContext(ctx, "token refresh failed", "user_id", held.UserID, "error", err)
	default:
		s.logger.DebugContext(ctx, "token refreshed", "user_id", fresh.UserID, "expires_at", fresh.ExpiresAt)
		s.resolve(ctx, &fresh)
	}
}

// expire ends a session the provider no longer backs. The provider is told to
// sign out so every subscriber of this client converges on no session.
func (s *SessionStore) expire(ctx context.Context, id domainauth.Identity, reason string) {
	s.logger.InfoContext(ctx, "session ended", "user_id", id.UserID, "reason", reason)
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.WarnContext(ctx, "sign out after session end failed", "user_id", id.UserID, "error", err)
	}
	s.clear()
	s.notify(ctx, domainauth.SeverityDestructive, titleSessionExpired, msgSessionExpired)
}

// armExpiry schedules an expiry check for id on the loop. Identities without
// an expiry never time out here.
func (s *SessionStore) armExpiry(id domainauth.Identity) {
	s.stopExpiry()
	if id.ExpiresAt.IsZero() {
		return
	}
	token := id.Token
	s.expiry = time.AfterFunc(max(id.ExpiresAt.Sub(s.now()), 0), func() {
		s.mail.push(func() { s.expireIfDue(token) })
	})
}

func (s *SessionStore) stopExpiry() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

func (s *SessionStore) expireIfDue(token string) {
	cur := s.state
	if cur.State != domainauth.StateAuthorized || cur.Identity == nil || cur.Identity.Token != token {
		return
	}
	if !cur.Identity.Expired(s.now()) {
		// The clock lags the timer; look again when it catches up.
		s.armExpiry(*cur.Identity)
		return
	}
	s.expire(s.ctx, *cur.Identity, "expired")
}

func (s *SessionStore) refreshProfile(ctx context.Context) error {
	if s.state.Identity == nil {
		return nil
	}
	userID := s.state.Identity.UserID
	prof, ok := s.lookup(ctx, userID).Profile()
	if !ok {
		return nil
	}
	s.update(func(st *domainauth.Snapshot) { st.Profile = &prof })
	return nil
}

func (s *SessionStore) lookup(ctx context.Context, userID string) domainauth.ProfileLookup {
	prof, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		return domainauth.RoleAssigned(prof)
	case errors.Is(err, ports.ErrProfileNotFound):
		return domainauth.NoProfile(nil)
	default:
		s.logger.ErrorContext(ctx, "profile lookup failed", "user_id", userID, "error", err)
		return domainauth.NoProfile(fmt.Errorf("get profile: %w", err))
	}
}

// deny signs the identity out, clears the session and reports a single notification.
func (s *SessionStore) deny(
	ctx context.Context,
	id domainauth.Identity,
	verdict domainauth.Verdict,
	n domainauth.Notification,
) {
	s.denied[deniedKey(id)] = struct{}{}
	s.stopExpiry()
	s.update(func(st *domainauth.Snapshot) { st.State = domainauth.StateDenied })
	s.logger.InfoContext(ctx, "session denied", "user_id", id.UserID, "reason", verdict.Reason.String())
	s.metrics.Denied(verdict.Reason.String())

	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.WarnContext(ctx, "sign out after denial failed", "user_id", id.UserID, "error", err)
	}
	s.update(func(st *domainauth.Snapshot) {
		st.Identity = nil
		st.Profile = nil
	})
	s.notifier.Notify(ctx, n)
	s.settle(domainauth.StateUnauthenticated)
}

func (s *SessionStore) admit(ctx context.Context, id domainauth.Identity, prof domainauth.Profile) {
	held := id
	p := prof
	s.update(func(st *domainauth.Snapshot) {
		st.Identity = &held
		st.Profile = &p
	})
	s.settle(domainauth.StateAuthorized)
	s.armExpiry(held)
	s.logger.InfoContext(ctx, "session authorized", "user_id", id.UserID)
	s.touchLastLogin(id.UserID)
}

func (s *SessionStore) clear() {
	s.stopExpiry()
	s.update(func(st *domainauth.Snapshot) {
		st.Identity = nil
		st.Profile = nil
	})
	s.settle(domainauth.StateUnauthenticated)
}

// settle records a resting state. Loading drops on the first settle and is never re-raised here.
func (s *SessionStore) settle(state domainauth.State) {
	first := !s.hasSettled
	s.hasSettled = true
	s.update(func(st *domainauth.Snapshot) {
		st.State = state
		st.Loading = false
	})
	if first {
		close(s.settled)
		s.metrics.Settled(state.String(), s.now().Sub(s.createdAt))
	}
}

func (s *SessionStore) touchLastLogin(userID string) {
	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.touchTimeout)
		defer cancel()
		if err := s.profiles.TouchLastLogin(ctx, userID, s.now().UTC()); err != nil {
			s.logger.WarnContext(ctx, "update last login failed", "user_id", userID, "error", err)
		}
	}()
}

func (s *SessionStore) notify(ctx context.Context, sev domainauth.Severity, title, desc string) {
	s.notifier.Notify(ctx, domainauth.Notification{Severity: sev, Title: title, Description: desc})
}

func (s *SessionStore) update(fn func(*domainauth.Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

func (s *SessionStore) isDenied(id domainauth.Identity) bool {
	_, ok := s.denied[deniedKey(id)]
	return ok
}

func deniedKey(id domainauth.Identity) string {
	return id.UserID + "\x00" + id.Token
}
