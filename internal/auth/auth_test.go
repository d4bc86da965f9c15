package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.NewMemory(), []byte("test-secret"))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", u.PasswordHash, "password must be stored hashed")

	token, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	got, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestRegister_EmailOptional(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	// Accounts without an email never collide on it.
	_, err = svc.Register(ctx, "mallory", "", "s3cret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "", "again")
	assert.True(t, errs.IsDuplicate(err))
}

func TestLogin_BadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.True(t, errs.IsPermissionDenied(err))

	_, err = svc.Login(ctx, "nobody", "hunter2")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc := newService(t)

	_, err := svc.VerifyToken(context.Background(), "not.a.token")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	issuer := NewService(m, []byte("secret-a"))
	verifier := NewService(m, []byte("secret-b"))

	_, err := issuer.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)
	token, err := issuer.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(ctx, token)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestAPIKeys(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	keyID, secret, err := svc.IssueAPIKey(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, keyID)
	require.NotEmpty(t, secret)

	got, err := svc.VerifyAPIKey(ctx, keyID, secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.VerifyAPIKey(ctx, keyID, "wrong")
	assert.True(t, errs.IsPermissionDenied(err))

	_, err = svc.VerifyAPIKey(ctx, "unknown", secret)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	u, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	keyID, secret, err := svc.IssueAPIKey(ctx, u)
	require.NoError(t, err)

	var seen *store.User
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantUser   bool
	}{
		{name: "bearer token", header: "Authorization", value: "Bearer " + token, wantStatus: 200, wantUser: true},
		{name: "api key", header: "X-Api-Key", value: keyID + ":" + secret, wantStatus: 200, wantUser: true},
		{name: "bad token", header: "Authorization", value: "Bearer garbage", wantStatus: 401},
		{name: "bad scheme", header: "Authorization", value: "Basic abc", wantStatus: 401},
		{name: "bad api key", header: "X-Api-Key", value: keyID + ":nope", wantStatus: 401},
		{name: "anonymous", wantStatus: 200, wantUser: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUser {
				require.NotNil(t, seen)
				assert.Equal(t, u.ID, seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), &store.User{Username: "alice"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
