package oauth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/example/tutorbook/internal/retry"
)

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint, mainly for tests.
	Endpoint *oauth2.Endpoint
	// HTTPClient is used for token endpoint calls when set.
	HTTPClient *http.Client
}

// GoogleProvider talks to Google's OAuth token endpoint. Every call builds its
// own token source from the tokens passed in, so no client state is shared
// between speakers.
type GoogleProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewGoogleProvider builds a provider requesting calendar event access.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		httpClient: cfg.HTTPClient,
	}
}

// AuthCodeURL returns the consent URL. Offline access with forced consent makes
// Google return a refresh token on every connection.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Token, error) {
	tok, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return Token{}, err
	}
	return fromOAuth2(tok), nil
}

// Refresh obtains a new access token for refreshToken.
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, errors.New("oauth: refresh token is empty")
	}
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, err
	}
	out := fromOAuth2(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func fromOAuth2(tok *oauth2.Token) Token {
	if tok == nil {
		return Token{}
	}
	return Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
}

// ClassifyProviderError treats network failures, rate limiting and provider
// 5xx responses as transient. Rejections such as invalid_grant are terminal.
func ClassifyProviderError(err error) retry.Class {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			status := retrieveErr.Response.StatusCode
			if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
				return retry.Transient
			}
		}
		return retry.Terminal
	}
	return retry.NetworkClassifier(err)
}

// GrantRevoked reports whether the provider rejected the grant itself: the
// refresh token or authorization code is expired, revoked or already used.
// Other rejections, such as invalid_client, point at our own configuration.
func GrantRevoked(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant"
}
