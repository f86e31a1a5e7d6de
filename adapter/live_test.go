package adapter

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, mode string, expiresAt time.Time) string {
	t.Helper()
	claims := liveEnableClaims{
		Mode: mode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyEnableTokenAcceptsValidLiveToken(t *testing.T) {
	secret := "operator-supplied-secret"
	hashed, err := HashEnableSecret(secret)
	require.NoError(t, err)

	token := signToken(t, secret, "LIVE", time.Now().Add(time.Hour))
	assert.NoError(t, VerifyEnableToken(token, secret, hashed))
}

func TestVerifyEnableTokenRejectsWrongSecret(t *testing.T) {
	hashed, err := HashEnableSecret("correct-secret")
	require.NoError(t, err)

	token := signToken(t, "correct-secret", "LIVE", time.Now().Add(time.Hour))
	assert.Error(t, VerifyEnableToken(token, "wrong-secret", hashed))
}

func TestVerifyEnableTokenRejectsExpiredToken(t *testing.T) {
	secret := "operator-supplied-secret"
	hashed, err := HashEnableSecret(secret)
	require.NoError(t, err)

	token := signToken(t, secret, "LIVE", time.Now().Add(-time.Hour))
	assert.Error(t, VerifyEnableToken(token, secret, hashed))
}

func TestVerifyEnableTokenRejectsWrongModeClaim(t *testing.T) {
	secret := "operator-supplied-secret"
	hashed, err := HashEnableSecret(secret)
	require.NoError(t, err)

	token := signToken(t, secret, "DRYRUN", time.Now().Add(time.Hour))
	assert.Error(t, VerifyEnableToken(token, secret, hashed))
}

func TestLiveAdapterRefusesOrderFlowRegardlessOfEnabled(t *testing.T) {
	l := NewLiveAdapter(true)
	assert.True(t, l.Enabled())

	result := l.SubmitEntry("i1", "ESUSDT", 0, nil, 1, OrderKindMarket, time.Now().UTC())
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrLiveNotImplemented)
}
