package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
}

func TestVerifier_CallerRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", fixedNow)
	require.NoError(t, err)

	token, err := v.IssueCaller(Caller{UserID: "learner-1", Role: RoleLearner, Email: "l@example.com", Name: "Lea"}, time.Hour)
	require.NoError(t, err)

	caller, err := v.VerifyCaller(token)
	require.NoError(t, err)
	assert.Equal(t, Caller{UserID: "learner-1", Role: RoleLearner, Email: "l@example.com", Name: "Lea"}, caller)
}

func TestVerifier_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", fixedNow)
	require.NoError(t, err)
	other, err := NewVerifier("other-secret", fixedNow)
	require.NoError(t, err)

	foreign, err := other.IssueCaller(Caller{UserID: "u", Role: RoleSpeaker}, time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyCaller(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := v.IssueCaller(Caller{UserID: "u", Role: RoleSpeaker}, -time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyCaller(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	badRole, err := v.IssueCaller(Caller{UserID: "u", Role: "guest"}, time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyCaller(badRole)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.VerifyCaller(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.VerifyCaller("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_State(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", fixedNow)
	require.NoError(t, err)

	state, err := v.IssueState("speaker-1", 10*time.Minute)
	require.NoError(t, err)

	speakerID, err := v.VerifyState(state)
	require.NoError(t, err)
	assert.Equal(t, "speaker-1", speakerID)

	callerToken, err := v.IssueCaller(Caller{UserID: "speaker-1", Role: RoleSpeaker}, time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyState(callerToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "caller tokens must not be accepted as state")
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier("  ", nil)
	assert.Error(t, err)
}
