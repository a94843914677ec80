package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperecho/whisper-server/internal/config"
	"github.com/whisperecho/whisper-server/internal/domain/credential"
	"github.com/whisperecho/whisper-server/internal/domain/principal"
	"github.com/whisperecho/whisper-server/internal/repo"
	"go.uber.org/zap"
)

const (
	testAdminUser   = "superadmin"
	testAdminSecret = "WhisperEcho@2025"
)

// fakeUserStore is an in-memory UserStore; a non-nil fault is returned from
// every lookup to simulate store outages.
type fakeUserStore struct {
	byID   map[string]*repo.User
	byName map[string]*repo.User
	fault  error
}

func newFakeUserStore(users ...*repo.User) *fakeUserStore {
	s := &fakeUserStore{byID: map[string]*repo.User{}, byName: map[string]*repo.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
		s.byName[u.Username] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*repo.User, error) {
	if s.fault != nil {
		return nil, s.fault
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, username string) (*repo.User, error) {
	if s.fault != nil {
		return nil, s.fault
	}
	u, ok := s.byName[username]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return u, nil
}

func hashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func testAuthConfig(maxAge time.Duration) config.AuthConfig {
	return config.AuthConfig{
		BearerSecret:    "test-signing-secret",
		BearerTTL:       time.Hour,
		AdminUsername:   testAdminUser,
		AdminSecretHash: hashSecret(testAdminSecret),
		ElevatedMaxAge:  maxAge,
	}
}

func newTestAuthService(t *testing.T, store UserStore) *AuthService {
	t.Helper()
	svc, err := NewAuthService(zap.NewNop(), testAuthConfig(0), store)
	require.NoError(t, err)
	return svc
}

func elevatedHeaders(username, secret string, issuedAt int64) http.Header {
	h := http.Header{}
	h.Set(HeaderAdminMode, "true")
	h.Set(HeaderAdminToken, credential.EncodeElevated(username, secret, issuedAt))
	return h
}

func bearerHeaders(t *testing.T, svc *AuthService, userID string) http.Header {
	t.Helper()
	tok, err := svc.codec.SignBearer(userID)
	require.NoError(t, err)
	h := http.Header{}
	h.Set(HeaderAuthorization, "Bearer "+tok)
	return h
}

func TestResolveNoCredential(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore())

	_, err := svc.Resolve(context.Background(), http.Header{})
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestResolveElevatedMatch(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore())

	// Timestamp is carried but unchecked when no max age is configured.
	for _, ts := range []int64{0, -1, time.Now().UnixMilli(), 1} {
		p, err := svc.Resolve(context.Background(), elevatedHeaders(testAdminUser, testAdminSecret, ts))
		require.NoError(t, err, "timestamp %d", ts)
		assert.Equal(t, "admin", p.ID)
		assert.Equal(t, principal.RoleAdmin, p.Role)
	}
}

func TestResolveElevatedUndecodableFailsHard(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "u1", Username: "alice", Role: "user"})
	svc := newTestAuthService(t, store)

	// A valid bearer token rides along; the malformed elevated attempt must
	// still fail, never silently downgrade.
	h := bearerHeaders(t, svc, "u1")
	h.Set(HeaderAdminMode, "true")
	h.Set(HeaderAdminToken, "%%%not-base64%%%")

	_, err := svc.Resolve(context.Background(), h)
	assert.ErrorIs(t, err, ErrInvalidElevatedCredential)
}

func TestResolveElevatedMismatchFallsThrough(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore())

	// Well-formed triple, wrong secret, no bearer header: falls through to
	// step 4, not a decode failure.
	_, err := svc.Resolve(context.Background(), elevatedHeaders(testAdminUser, "wrong", time.Now().UnixMilli()))
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestResolveElevatedMismatchFallsThroughToBearer(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "u1", Username: "alice", Role: "user"})
	svc := newTestAuthService(t, store)

	h := bearerHeaders(t, svc, "u1")
	h.Set(HeaderAdminMode, "true")
	h.Set(HeaderAdminToken, credential.EncodeElevated(testAdminUser, "wrong", 1))

	p, err := svc.Resolve(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, principal.RoleUser, p.Role)
}

func TestResolveElevatedMarkerAbsentSkipsElevated(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore())

	// Token without the marker never enters the elevated path.
	h := http.Header{}
	h.Set(HeaderAdminToken, credential.EncodeElevated(testAdminUser, testAdminSecret, 1))

	_, err := svc.Resolve(context.Background(), h)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestResolveElevatedMaxAge(t *testing.T) {
	svc, err := NewAuthService(zap.NewNop(), testAuthConfig(time.Minute), newFakeUserStore())
	require.NoError(t, err)

	fresh := time.Now().UnixMilli()
	p, err := svc.Resolve(context.Background(), elevatedHeaders(testAdminUser, testAdminSecret, fresh))
	require.NoError(t, err)
	assert.Equal(t, principal.RoleAdmin, p.Role)

	stale := time.Now().Add(-2 * time.Minute).UnixMilli()
	_, err = svc.Resolve(context.Background(), elevatedHeaders(testAdminUser, testAdminSecret, stale))
	assert.ErrorIs(t, err, ErrInvalidElevatedCredential)
}

func TestResolveBearerRoundTrip(t *testing.T) {
	store := newFakeUserStore(&repo.User{
		ID: "u1", Username: "alice", Email: "alice@example.com", Role: "user",
		PasswordHash: hashSecret("pw"),
	})
	svc := newTestAuthService(t, store)

	p, err := svc.Resolve(context.Background(), bearerHeaders(t, svc, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, principal.RoleUser, p.Role)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@example.com", p.Email)
}

func TestResolveBearerPersistedAdminRole(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "mod1", Username: "mod", Role: "admin"})
	svc := newTestAuthService(t, store)

	p, err := svc.Resolve(context.Background(), bearerHeaders(t, svc, "mod1"))
	require.NoError(t, err)
	assert.Equal(t, principal.RoleAdmin, p.Role)
}

func TestResolveBearerTampered(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "u1", Username: "alice", Role: "user"})
	svc := newTestAuthService(t, store)

	h := bearerHeaders(t, svc, "u1")
	tok := h.Get(HeaderAuthorization)
	h.Set(HeaderAuthorization, tok[:len(tok)-2]+"xx")

	_, err := svc.Resolve(context.Background(), h)
	assert.ErrorIs(t, err, ErrInvalidBearerCredential)
}

func TestResolveBearerUserGone(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore())

	_, err := svc.Resolve(context.Background(), bearerHeaders(t, svc, "deleted-user"))
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestResolveStoreFaultIsNotCredentialFailure(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "u1", Username: "alice", Role: "user"})
	store.fault = errors.New("redis: connection refused")
	svc := newTestAuthService(t, store)

	_, err := svc.Resolve(context.Background(), bearerHeaders(t, svc, "u1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidBearerCredential)
	assert.NotErrorIs(t, err, ErrPrincipalNotFound)
	assert.NotErrorIs(t, err, ErrNoCredential)
}

func TestResolveCancelled(t *testing.T) {
	store := newFakeUserStore(&repo.User{ID: "u1", Username: "alice", Role: "user"})
	svc := newTestAuthService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Resolve(ctx, bearerHeaders(t, svc, "u1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIssueBearer(t *testing.T) {
	store := newFakeUserStore(&repo.User{
		ID: "u1", Username: "alice", Role: "user", PasswordHash: hashSecret("correct horse"),
	})
	svc := newTestAuthService(t, store)

	tok, p, err := svc.IssueBearer(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)

	// Issued token resolves back to the same principal.
	h := http.Header{}
	h.Set(HeaderAuthorization, "Bearer "+tok)
	rp, err := svc.Resolve(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, p.ID, rp.ID)
}

func TestIssueBearerRejectsBadLogin(t *testing.T) {
	store := newFakeUserStore(&repo.User{
		ID: "u1", Username: "alice", Role: "user", PasswordHash: hashSecret("correct horse"),
	})
	svc := newTestAuthService(t, store)

	_, _, err := svc.IssueBearer(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, _, err = svc.IssueBearer(context.Background(), "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidLogin)
}
