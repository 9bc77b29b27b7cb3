package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/example/tutorbook/internal/retry"
)

type providerStub struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErrs  []error
	refreshed    Token
	exchanged     Token
	exchangeErr   error
	exchangeCalls int
}

func (p *providerStub) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *providerStub) Exchange(ctx context.Context, code string) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return Token{}, p.exchangeErr
	}
	return p.exchanged, nil
}

func (p *providerStub) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if len(p.refreshErrs) > 0 {
		err := p.refreshErrs[0]
		p.refreshErrs = p.refreshErrs[1:]
		if err != nil {
			return Token{}, err
		}
	}
	return p.refreshed, nil
}

type storeStub struct {
	saved        map[string]Token
	disconnected []string
	saveErr      error
}

func (s *storeStub) SaveToken(ctx context.Context, speakerID string, token Token) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.saved == nil {
		s.saved = make(map[string]Token)
	}
	s.saved[speakerID] = token
	return nil
}

func (s *storeStub) MarkDisconnected(ctx context.Context, speakerID string) error {
	s.disconnected = append(s.disconnected, speakerID)
	return nil
}

var baseNow = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

func noSleepPolicy() retry.Policy {
	p := retry.Default("test-refresh")
	p.Classify = ClassifyProviderError
	p.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func newTestManager(provider Provider, store Store) *Manager {
	return NewManager(provider, store, ManagerConfig{Policy: noSleepPolicy()}, func() time.Time { return baseNow }, nil)
}

func credential(expiresIn time.Duration) Credential {
	expiry := baseNow.Add(expiresIn)
	return Credential{
		SpeakerID:    "speaker-1",
		AccessToken:  "access-old",
		RefreshToken: "refresh-1",
		ExpiresAt:    &expiry,
		Connected:    true,
	}
}

func TestManager_ObtainValidToken(t *testing.T) {
	t.Parallel()

	t.Run("fails when not connected", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{}
		mgr := newTestManager(provider, &storeStub{})

		cred := credential(time.Hour)
		cred.Connected = false
		_, err := mgr.ObtainValidToken(context.Background(), cred)
		require.ErrorIs(t, err, ErrNotConnected)

		cred = credential(time.Hour)
		cred.RefreshToken = ""
		_, err = mgr.ObtainValidToken(context.Background(), cred)
		require.ErrorIs(t, err, ErrNotConnected)
		assert.Zero(t, provider.refreshCalls)
	})

	t.Run("valid token is returned without refreshing", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{}
		mgr := newTestManager(provider, &storeStub{})
		cred := credential(time.Hour)

		first, err := mgr.ObtainValidToken(context.Background(), cred)
		require.NoError(t, err)
		second, err := mgr.ObtainValidToken(context.Background(), cred)
		require.NoError(t, err)

		assert.Equal(t, "access-old", first)
		assert.Equal(t, first, second)
		assert.Zero(t, provider.refreshCalls)
	})

	t.Run("refreshes inside the buffer and persists the new token", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{refreshed: Token{AccessToken: "access-new", Expiry: baseNow.Add(time.Hour)}}
		store := &storeStub{}
		mgr := newTestManager(provider, store)

		token, err := mgr.ObtainValidToken(context.Background(), credential(4*time.Minute))
		require.NoError(t, err)

		assert.Equal(t, "access-new", token)
		assert.Equal(t, 1, provider.refreshCalls)
		saved := store.saved["speaker-1"]
		assert.Equal(t, "access-new", saved.AccessToken)
		assert.Equal(t, "refresh-1", saved.RefreshToken, "refresh token is kept when the provider omits it")
	})

	t.Run("refreshes exactly at the buffer boundary", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{refreshed: Token{AccessToken: "access-new", Expiry: baseNow.Add(time.Hour)}}
		mgr := newTestManager(provider, &storeStub{})

		_, err := mgr.ObtainValidToken(context.Background(), credential(DefaultRefreshBuffer))
		require.NoError(t, err)
		assert.Equal(t, 1, provider.refreshCalls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{
			refreshErrs: []error{fmt.Errorf("dial: %w", syscall.ECONNRESET), nil},
			refreshed:   Token{AccessToken: "access-new", Expiry: baseNow.Add(time.Hour)},
		}
		mgr := newTestManager(provider, &storeStub{})

		token, err := mgr.ObtainValidToken(context.Background(), credential(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "access-new", token)
		assert.Equal(t, 2, provider.refreshCalls)
	})

	t.Run("surfaces unavailable after exhausting retries", func(t *testing.T) {
		t.Parallel()
		transient := fmt.Errorf("dial: %w", syscall.ECONNRESET)
		provider := &providerStub{refreshErrs: []error{transient, transient, transient}}
		store := &storeStub{}
		mgr := newTestManager(provider, store)

		_, err := mgr.ObtainValidToken(context.Background(), credential(-time.Minute))
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 3, provider.refreshCalls)
		assert.Empty(t, store.disconnected)
	})

	t.Run("terminal rejection fails fast and disconnects", func(t *testing.T) {
		t.Parallel()
		rejected := &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: http.StatusBadRequest},
			ErrorCode: "invalid_grant",
		}
		provider := &providerStub{refreshErrs: []error{rejected}}
		store := &storeStub{}
		mgr := newTestManager(provider, store)

		_, err := mgr.ObtainValidToken(context.Background(), credential(-time.Minute))
		require.ErrorIs(t, err, ErrTokenInvalid)
		assert.Equal(t, 1, provider.refreshCalls)
		assert.Equal(t, []string{"speaker-1"}, store.disconnected)
	})

	t.Run("client misconfiguration keeps the calendar connected", func(t *testing.T) {
		t.Parallel()
		misconfigured := &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: http.StatusUnauthorized},
			ErrorCode: "invalid_client",
		}
		provider := &providerStub{refreshErrs: []error{misconfigured}}
		store := &storeStub{}
		mgr := newTestManager(provider, store)

		_, err := mgr.ObtainValidToken(context.Background(), credential(-time.Minute))
		require.ErrorIs(t, err, ErrUnavailable)
		assert.False(t, errors.Is(err, ErrTokenInvalid))
		assert.Equal(t, 1, provider.refreshCalls)
		assert.Empty(t, store.disconnected)
	})

	t.Run("empty access token keeps the calendar connected", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{refreshed: Token{Expiry: baseNow.Add(time.Hour)}}
		store := &storeStub{}
		mgr := newTestManager(provider, store)

		_, err := mgr.ObtainValidToken(context.Background(), credential(-time.Minute))
		require.ErrorIs(t, err, ErrUnavailable)
		assert.Empty(t, store.disconnected)
		assert.Empty(t, store.saved)
	})

	t.Run("missing expiry forces a refresh", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{refreshed: Token{AccessToken: "access-new", Expiry: baseNow.Add(time.Hour)}}
		mgr := newTestManager(provider, &storeStub{})
		cred := credential(time.Hour)
		cred.ExpiresAt = nil

		_, err := mgr.ObtainValidToken(context.Background(), cred)
		require.NoError(t, err)
		assert.Equal(t, 1, provider.refreshCalls)
	})

	t.Run("store failure does not fail the call", func(t *testing.T) {
		t.Parallel()
		provider := &providerStub{refreshed: Token{AccessToken: "access-new", Expiry: baseNow.Add(time.Hour)}}
		mgr := newTestManager(provider, &storeStub{saveErr: errors.New("disk full")})

		token, err := mgr.ObtainValidToken(context.Background(), credential(0))
		require.NoError(t, err)
		assert.Equal(t, "access-new", token)
	})
}

func TestManager_Exchange(t *testing.T) {
	t.Parallel()

	provider := &providerStub{exchanged: Token{AccessToken: "a", RefreshToken: "r", Expiry: baseNow.Add(time.Hour)}}
	store := &storeStub{}
	mgr := newTestManager(provider, store)

	token, err := mgr.Exchange(context.Background(), "speaker-9", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)
	assert.Equal(t, token, store.saved["speaker-9"])

	provider.exchanged = Token{AccessToken: "a"}
	_, err = mgr.Exchange(context.Background(), "speaker-9", "code-2")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestManager_ExchangeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantKind  error
		wantCalls int
	}{
		{
			name:      "unreachable provider is retried then unavailable",
			err:       &net.DNSError{Err: "i/o timeout", Name: "oauth2.googleapis.com", IsTimeout: true},
			wantKind:  ErrUnavailable,
			wantCalls: 3,
		},
		{
			name:      "provider outage is unavailable",
			err:       &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}, ErrorCode: "server_error"},
			wantKind:  ErrUnavailable,
			wantCalls: 3,
		},
		{
			name:      "rejected code is invalid",
			err:       &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}, ErrorCode: "invalid_grant"},
			wantKind:  ErrTokenInvalid,
			wantCalls: 1,
		},
		{
			name:      "client misconfiguration is unavailable",
			err:       &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}, ErrorCode: "invalid_client"},
			wantKind:  ErrUnavailable,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := &providerStub{exchangeErr: tt.err}
			store := &storeStub{}
			mgr := newTestManager(provider, store)

			_, err := mgr.Exchange(context.Background(), "speaker-9", "code-1")
			require.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantCalls, provider.exchangeCalls)
			assert.Empty(t, store.saved)
		})
	}
}

func TestGrantRevoked(t *testing.T) {
	t.Parallel()
	assert.True(t, GrantRevoked(fmt.Errorf("refresh: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"})))
	assert.False(t, GrantRevoked(&oauth2.RetrieveError{ErrorCode: "invalid_client"}))
	assert.False(t, GrantRevoked(errors.New("invalid_grant")))
	assert.False(t, GrantRevoked(nil))
}

func TestGoogleProvider_AgainstTokenEndpoint(t *testing.T) {
	t.Parallel()

	var status int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		code := status
		mu.Unlock()
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch code {
		case http.StatusOK:
			if r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated"}`))
		default:
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
		}
	}))
	t.Cleanup(server.Close)

	provider := NewGoogleProvider(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://tutorbook.example.com/calendar/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   server.URL + "/auth",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		HTTPClient: server.Client(),
	})

	assert.Contains(t, provider.AuthCodeURL("state-1"), "access_type=offline")

	mu.Lock()
	status = http.StatusOK
	mu.Unlock()
	token, err := provider.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, "rotated", token.RefreshToken)
	assert.False(t, token.Expiry.IsZero())

	exchanged, err := provider.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "fresh", exchanged.AccessToken)

	_, err = provider.Refresh(context.Background(), "revoked")
	require.Error(t, err)
	assert.Equal(t, retry.Terminal, ClassifyProviderError(err))

	mu.Lock()
	status = http.StatusServiceUnavailable
	mu.Unlock()
	_, err = provider.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.Equal(t, retry.Transient, ClassifyProviderError(err))
}
