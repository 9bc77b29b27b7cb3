package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/identity"
	"github.com/example/tutorbook/internal/metrics"
)

// CallerVerifier validates bearer tokens issued by the identity service.
type CallerVerifier interface {
	VerifyCaller(token string) (identity.Caller, error)
}

// UserProvisioner records the caller's profile so bookings can reference it.
type UserProvisioner interface {
	ProvisionUser(ctx context.Context, user application.User) error
}

// RequireIdentity verifies the bearer token, provisions the caller's user record
// and stores the principal on the request context.
func RequireIdentity(verifier CallerVerifier, users UserProvisioner, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", errMissingIdentity)
				return
			}

			caller, err := verifier.VerifyCaller(token)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrExpiredToken) {
					responder.writeError(r.Context(), w, http.StatusUnauthorized, "unauthenticated", errInvalidIdentity)
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "identity verification failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{ErrorCode: "internal", Message: "identity verification failed"})
				return
			}

			principal := application.Principal{UserID: caller.UserID, Role: application.Role(caller.Role)}
			if users != nil {
				err := users.ProvisionUser(r.Context(), application.User{
					ID:          caller.UserID,
					Email:       caller.Email,
					DisplayName: caller.Name,
					Role:        principal.Role,
				})
				if err != nil {
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "failed to provision caller", "error", err, "user_id", caller.UserID)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{ErrorCode: "internal", Message: "failed to load caller profile"})
					return
				}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithLogger(ctx, responder.loggerFor(ctx).With("principal_id", principal.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequestLogger attaches a request scoped logger and logs request boundaries.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// Metrics observes request latency by method and status code.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, strconv.Itoa(recorder.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
