// Package oauth keeps speakers' calendar access tokens valid, refreshing them
// through the identity provider when they are close to expiry.
package oauth

import (
	"context"
	"fmt"
	"time"
)

// Token is an access/refresh pair returned by the provider.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Credential is a speaker's stored calendar authorization.
type Credential struct {
	SpeakerID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Connected    bool
}

// Usable reports whether the credential can be used at all.
func (c Credential) Usable() bool {
	return c.Connected && c.AccessToken != "" && c.RefreshToken != ""
}

// Provider is the identity provider's token endpoint.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Token, error)
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

// Store persists refreshed tokens per speaker.
type Store interface {
	SaveToken(ctx context.Context, speakerID string, token Token) error
	MarkDisconnected(ctx context.Context, speakerID string) error
}

// ErrorKind classifies token failures.
type ErrorKind string

const (
	// KindNotConnected means the speaker has no usable credential.
	KindNotConnected ErrorKind = "not_connected"
	// KindTokenInvalid means the provider rejected the refresh token; the speaker
	// must reconnect.
	KindTokenInvalid ErrorKind = "token_invalid"
	// KindUnavailable means the provider stayed unreachable through every retry.
	KindUnavailable ErrorKind = "token_unavailable"
)

var (
	// ErrNotConnected matches TokenErrors of kind KindNotConnected.
	ErrNotConnected = &TokenError{Kind: KindNotConnected}
	// ErrTokenInvalid matches TokenErrors of kind KindTokenInvalid.
	ErrTokenInvalid = &TokenError{Kind: KindTokenInvalid}
	// ErrUnavailable matches TokenErrors of kind KindUnavailable.
	ErrUnavailable = &TokenError{Kind: KindUnavailable}
)

// TokenError reports why a valid access token could not be produced.
type TokenError struct {
	Kind      ErrorKind
	SpeakerID string
	Err       error
}

func (e *TokenError) Error() string {
	msg := fmt.Sprintf("oauth: %s", e.Kind)
	if e.SpeakerID != "" {
		msg += " for speaker " + e.SpeakerID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so the package sentinels work with errors.Is.
func (e *TokenError) Is(target error) bool {
	other, ok := target.(*TokenError)
	return ok && other.Kind == e.Kind
}
