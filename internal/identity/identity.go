// Package identity verifies caller bearer tokens issued by the platform's identity
// service and signs the OAuth state parameter used during calendar connection.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("identity: token has expired")
)

// Role values carried in caller tokens.
const (
	RoleLearner = "learner"
	RoleSpeaker = "speaker"
	RoleAdmin   = "admin"
)

// Caller is the authenticated identity extracted from a bearer token.
type Caller struct {
	UserID string
	Role   string
	Email  string
	Name   string
}

type callerClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type stateClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

const statePurpose = "calendar_connect"

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier constructs a verifier. now may be nil.
func NewVerifier(secret string, now func() time.Time) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), now: now}, nil
}

// VerifyCaller validates a bearer token and returns the caller it names.
func (v *Verifier) VerifyCaller(token string) (Caller, error) {
	claims := &callerClaims{}
	if err := v.parse(token, claims); err != nil {
		return Caller{}, err
	}
	if claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	switch claims.Role {
	case RoleLearner, RoleSpeaker, RoleAdmin:
	default:
		return Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Caller{UserID: claims.Subject, Role: claims.Role, Email: claims.Email, Name: claims.Name}, nil
}

// IssueCaller signs a caller token. The identity service owns issuance in
// production; this exists for tooling and tests.
func (v *Verifier) IssueCaller(caller Caller, ttl time.Duration) (string, error) {
	now := v.now()
	claims := callerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  caller.Role,
		Email: caller.Email,
		Name:  caller.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// IssueState signs the OAuth state for a speaker's calendar connection.
func (v *Verifier) IssueState(speakerID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   speakerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: statePurpose,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// VerifyState returns the speaker id carried by a state value.
func (v *Verifier) VerifyState(state string) (string, error) {
	claims := &stateClaims{}
	if err := v.parse(state, claims); err != nil {
		return "", err
	}
	if claims.Purpose != statePurpose || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (v *Verifier) parse(token string, claims jwt.Claims) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
