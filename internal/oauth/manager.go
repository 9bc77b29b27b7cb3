package oauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/tutorbook/internal/logging"
	"github.com/example/tutorbook/internal/metrics"
	"github.com/example/tutorbook/internal/retry"
)

// DefaultRefreshBuffer is how long before expiry a token is proactively refreshed.
const DefaultRefreshBuffer = 5 * time.Minute

// ManagerConfig tunes the refresh behaviour.
type ManagerConfig struct {
	RefreshBuffer time.Duration
	// CallTimeout bounds each refresh attempt.
	CallTimeout time.Duration
	Policy      retry.Policy
	// Revoked decides which terminal provider errors invalidate the stored
	// credential. Defaults to GrantRevoked.
	Revoked func(error) bool
}

// Manager produces valid access tokens for speakers, refreshing stale ones.
//
// Concurrent calls for the same speaker may each refresh; the provider accepts
// both and the last stored token wins.
type Manager struct {
	provider Provider
	store    Store
	cfg      ManagerConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager wires a Manager. A zero Policy falls back to retry.Default.
func NewManager(provider Provider, store Store, cfg ManagerConfig, now func() time.Time, logger *slog.Logger) *Manager {
	if cfg.RefreshBuffer <= 0 {
		cfg.RefreshBuffer = DefaultRefreshBuffer
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.Default("oauth-refresh")
	}
	if cfg.Policy.Classify == nil {
		cfg.Policy.Classify = ClassifyProviderError
	}
	if cfg.Revoked == nil {
		cfg.Revoked = GrantRevoked
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{provider: provider, store: store, cfg: cfg, now: now, logger: logger}
}

// NeedsRefresh reports whether the credential is inside the refresh buffer. A
// credential without a recorded expiry is always refreshed.
func (m *Manager) NeedsRefresh(cred Credential) bool {
	if cred.ExpiresAt == nil {
		return true
	}
	return !m.now().Before(cred.ExpiresAt.Add(-m.cfg.RefreshBuffer))
}

// ObtainValidToken returns an access token that is not within the refresh buffer
// of its expiry, refreshing and persisting a new one when needed.
func (m *Manager) ObtainValidToken(ctx context.Context, cred Credential) (string, error) {
	if m == nil {
		return "", errors.New("oauth: Manager is nil")
	}
	if !cred.Usable() {
		return "", &TokenError{Kind: KindNotConnected, SpeakerID: cred.SpeakerID}
	}
	if !m.NeedsRefresh(cred) {
		return cred.AccessToken, nil
	}

	logger := logging.FromContextOr(ctx, m.logger).With("component", "oauth", "speaker_id", cred.SpeakerID)
	if m.provider == nil {
		return "", &TokenError{Kind: KindUnavailable, SpeakerID: cred.SpeakerID, Err: errors.New("provider not configured")}
	}

	token, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		if !m.cfg.Revoked(err) {
			metrics.TokenRefresh.WithLabelValues("unavailable").Inc()
			logger.WarnContext(ctx, "token refresh unavailable", "error", err)
			return "", &TokenError{Kind: KindUnavailable, SpeakerID: cred.SpeakerID, Err: err}
		}

		metrics.TokenRefresh.WithLabelValues("invalid").Inc()
		logger.WarnContext(ctx, "refresh token rejected, disconnecting calendar", "error", err)
		if m.store != nil {
			if derr := m.store.MarkDisconnected(ctx, cred.SpeakerID); derr != nil {
				logger.ErrorContext(ctx, "failed to mark calendar disconnected", "error", derr)
			}
		}
		return "", &TokenError{Kind: KindTokenInvalid, SpeakerID: cred.SpeakerID, Err: err}
	}

	if token.RefreshToken == "" {
		token.RefreshToken = cred.RefreshToken
	}
	if m.store != nil {
		if err := m.store.SaveToken(ctx, cred.SpeakerID, token); err != nil {
			// The fresh token is still valid for this call.
			logger.ErrorContext(ctx, "failed to persist refreshed token", "error", err)
		}
	}

	metrics.TokenRefresh.WithLabelValues("success").Inc()
	logger.InfoContext(ctx, "access token refreshed", "expires_at", token.Expiry)
	return token.AccessToken, nil
}

// Exchange trades an authorization code for a token pair and stores it.
func (m *Manager) Exchange(ctx context.Context, speakerID, code string) (Token, error) {
	if m == nil {
		return Token{}, errors.New("oauth: Manager is nil")
	}
	if m.provider == nil {
		return Token{}, &TokenError{Kind: KindUnavailable, SpeakerID: speakerID, Err: errors.New("provider not configured")}
	}
	var token Token
	err := m.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		defer cancel()

		exchanged, err := m.provider.Exchange(callCtx, code)
		if err != nil {
			return err
		}
		token = exchanged
		return nil
	})
	if err != nil {
		// Only a rejected code means the speaker has to start over.
		if m.cfg.Revoked(err) {
			return Token{}, &TokenError{Kind: KindTokenInvalid, SpeakerID: speakerID, Err: err}
		}
		return Token{}, &TokenError{Kind: KindUnavailable, SpeakerID: speakerID, Err: err}
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return Token{}, &TokenError{Kind: KindTokenInvalid, SpeakerID: speakerID, Err: errors.New("provider returned an incomplete token pair")}
	}
	if m.store != nil {
		if err := m.store.SaveToken(ctx, speakerID, token); err != nil {
			return Token{}, err
		}
	}
	return token, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (Token, error) {
	var token Token
	err := m.cfg.Policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		defer cancel()

		refreshed, err := m.provider.Refresh(callCtx, refreshToken)
		if err != nil {
			return err
		}
		if refreshed.AccessToken == "" {
			return errors.New("provider returned an empty access token")
		}
		token = refreshed
		return nil
	})
	return token, err
}
