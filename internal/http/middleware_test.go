package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/identity"
)

type provisionerStub struct {
	users []application.User
	err   error
}

func (p *provisionerStub) ProvisionUser(ctx context.Context, user application.User) error {
	if p.err != nil {
		return p.err
	}
	p.users = append(p.users, user)
	return nil
}

type failingVerifier struct{ err error }

func (f failingVerifier) VerifyCaller(string) (identity.Caller, error) {
	return identity.Caller{}, f.err
}

func newTestVerifier(t *testing.T) *identity.Verifier {
	t.Helper()
	verifier, err := identity.NewVerifier("test-secret", nil)
	require.NoError(t, err)
	return verifier
}

func issueToken(t *testing.T, verifier *identity.Verifier, caller identity.Caller) string {
	t.Helper()
	token, err := verifier.IssueCaller(caller, time.Hour)
	require.NoError(t, err)
	return token
}

func TestRequireIdentity(t *testing.T) {
	t.Parallel()

	verifier := newTestVerifier(t)
	caller := identity.Caller{UserID: "learner-1", Role: identity.RoleLearner, Email: "l@example.com", Name: "Lea"}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-Principal", principal.UserID+"/"+string(principal.Role))
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("verified callers are provisioned and forwarded", func(t *testing.T) {
		t.Parallel()
		users := &provisionerStub{}
		handler := RequireIdentity(verifier, users, nil)(next)

		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, verifier, caller))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "learner-1/learner", rec.Header().Get("X-Principal"))
		require.Len(t, users.users, 1)
		assert.Equal(t, application.User{ID: "learner-1", Email: "l@example.com", DisplayName: "Lea", Role: application.RoleLearner}, users.users[0])
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "malformed token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := RequireIdentity(verifier, &provisionerStub{}, nil)(next)
			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error_code":"unauthenticated"`)
		})
	}

	t.Run("verifier failures are internal errors", func(t *testing.T) {
		t.Parallel()
		handler := RequireIdentity(failingVerifier{err: errors.New("keys unavailable")}, nil, nil)(next)
		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("provisioning failures stop the request", func(t *testing.T) {
		t.Parallel()
		handler := RequireIdentity(verifier, &provisionerStub{err: errors.New("db down")}, nil)(next)
		req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, verifier, caller))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRequestLogger_RecordsStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"request completed"`)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"path":"/healthz"`)
}

func TestStatusRecorder_KeepsFirstStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	recorder := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	recorder.WriteHeader(http.StatusCreated)
	recorder.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, recorder.status)
	assert.Equal(t, rec, recorder.Unwrap())
}
