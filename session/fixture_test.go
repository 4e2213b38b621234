package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/memory"
)

var testNow = time.Unix(1_700_000_000, 0)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// fakeClock is a fixed clock whose timers only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		active := !t.stopped && !t.fired
		t.stopped = true
		return active
	}
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single pending timer after moving the clock to its deadline.
func (c *fakeClock) fire(t *testing.T) time.Duration {
	t.Helper()
	p := c.pending()
	require.Len(t, p, 1, "expected exactly one pending timer")

	c.mu.Lock()
	p[0].fired = true
	c.mu.Unlock()

	p[0].fn()
	return p[0].delay
}

// fakeAPI issues numbered sessions and records every call.
type fakeAPI struct {
	mu            sync.Mutex
	now           func() time.Time
	ttl           time.Duration
	refreshTokens []string
	signOutTokens []string
	refreshErrs   []error
	gate          chan struct{}

	signInSession *session.Session
	verifyTypes   []string
	updatedAttrs  []session.UserAttributes
	otpTargets    []string
}

func newFakeAPI(now func() time.Time) *fakeAPI {
	return &fakeAPI{now: now, ttl: time.Hour}
}

func (a *fakeAPI) issue(n int) *session.Session {
	return &session.Session{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		TokenType:    "bearer",
		ExpiresIn:    int64(a.ttl.Seconds()),
		ExpiresAt:    a.now().Add(a.ttl).Unix(),
		User:         testUser(),
	}
}

func (a *fakeAPI) RefreshAccessToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	a.mu.Lock()
	a.refreshTokens = append(a.refreshTokens, refreshToken)
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	n := len(a.refreshTokens)
	gate := a.gate
	var err error
	if len(a.refreshErrs) > 0 {
		err = a.refreshErrs[0]
		a.refreshErrs = a.refreshErrs[1:]
	}
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return a.issue(n), nil
}

func (a *fakeAPI) SignOut(_ context.Context, accessToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signOutTokens = append(a.signOutTokens, accessToken)
	return nil
}

func (a *fakeAPI) SignInWithPassword(_ context.Context, _ session.Credentials) (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signInSession.Clone(), nil
}

func (a *fakeAPI) SignUp(_ context.Context, creds session.Credentials, _ session.SignUpOptions) (*session.Session, *session.User, error) {
	return nil, &session.User{ID: "new-user", Email: creds.Email}, nil
}

func (a *fakeAPI) VerifyOTP(_ context.Context, params session.VerifyOTPParams) (*session.Session, error) {
	a.mu.Lock()
	a.verifyTypes = append(a.verifyTypes, params.Type)
	a.mu.Unlock()
	return a.issue(100), nil
}

func (a *fakeAPI) SendMagicLink(_ context.Context, email string, _ session.OTPOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.otpTargets = append(a.otpTargets, email)
	return nil
}

func (a *fakeAPI) SendMobileOTP(_ context.Context, phone string, _ session.OTPOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.otpTargets = append(a.otpTargets, phone)
	return nil
}

func (a *fakeAPI) SignInWithIDToken(_ context.Context, _ session.IDTokenCredentials) (*session.Session, error) {
	return a.issue(200), nil
}

func (a *fakeAPI) GetUser(_ context.Context, _ string) (*session.User, error) {
	u := testUser()
	u.Phone = "+441234567890"
	return u, nil
}

func (a *fakeAPI) UpdateUser(_ context.Context, _ string, attrs session.UserAttributes) (*session.User, error) {
	a.mu.Lock()
	a.updatedAttrs = append(a.updatedAttrs, attrs)
	a.mu.Unlock()
	u := testUser()
	u.Email = attrs.Email
	return u, nil
}

func (a *fakeAPI) refreshCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.refreshTokens...)
}

func (a *fakeAPI) failRefresh(errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshErrs = append(a.refreshErrs, errs...)
}

// refreshOnlyAPI hides the Authenticator methods of the wrapped API.
type refreshOnlyAPI struct {
	session.API
}

func testUser() *session.User {
	confirmed := testNow.Add(-24 * time.Hour)
	return &session.User{
		ID:               "user-1",
		Aud:              "authenticated",
		Role:             "authenticated",
		Email:            "john.doe@example.com",
		EmailConfirmedAt: &confirmed,
	}
}

// countingStore counts the writes a manager makes through one handle.
type countingStore struct {
	*memory.Store
	mu      sync.Mutex
	sets    int
	removes int
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(ctx, key, value)
}

func (s *countingStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	s.removes++
	s.mu.Unlock()
	return s.Store.Remove(ctx, key)
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets + s.removes
}

// asyncOnlyStore hides GetSync and Watch so only the asynchronous recovery path applies.
type asyncOnlyStore struct {
	inner storage.Store
}

func (s asyncOnlyStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, key)
}

func (s asyncOnlyStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, key, value)
}

func (s asyncOnlyStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

type eventRecorder struct {
	mu       sync.Mutex
	events   []session.Event
	sessions []*session.Session
}

func (r *eventRecorder) record(e session.Event, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.sessions = append(r.sessions, s)
}

func (r *eventRecorder) list() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Event(nil), r.events...)
}

func (r *eventRecorder) session(i int) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[i]
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.sessions = nil
}

type testFixture struct {
	clock   *fakeClock
	api     *fakeAPI
	backend *memory.Backend
}

func setupTestFixture() *testFixture {
	clock := newFakeClock()
	return &testFixture{
		clock:   clock,
		api:     newFakeAPI(clock.Now),
		backend: memory.NewBackend(),
	}
}

func (f *testFixture) options(opts ...session.Option) []session.Option {
	return append([]session.Option{
		session.WithNowFunc(f.clock.Now),
		session.WithTimerFunc(f.clock.AfterFunc),
		session.WithLogger(zerolog.Nop()),
	}, opts...)
}

// newManager builds a manager over store and waits for its background recovery.
func (f *testFixture) newManager(t *testing.T, api session.API, store storage.Store, opts ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.NewManager(api, store, f.options(opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	select {
	case <-m.Initialized():
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not finish recovery")
	}
	return m
}

func (f *testFixture) writeRecord(t *testing.T, s *session.Session) {
	t.Helper()
	raw := fmt.Sprintf(`{"currentSession":{"access_token":%q,"refresh_token":%q,"token_type":"bearer","expires_at":%d,"user":{"id":"user-1"}},"expiresAt":%d}`,
		s.AccessToken, s.RefreshToken, s.ExpiresAt, s.ExpiresAt)
	require.NoError(t, f.backend.Open().Set(context.Background(), session.DefaultStorageKey, raw))
}
