package auth

import (
	"testing"
	"time"

	"bankgame/internal/game"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour, 8)
	require.NoError(t, err)

	token, exp, err := iss.Issue("acct-1", "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id.AccountID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, 1, iss.cache.Len())

	// second verification is served from the cache
	again, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour, 8)
	require.NoError(t, err)
	other, err := NewIssuer("other-secret", time.Hour, 8)
	require.NoError(t, err)
	foreign, _, err := other.Issue("acct-1", "alice")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "acct-1", "iss": tokenIssuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", foreign, unsigned} {
		_, err := iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, game.ErrUnauthorized)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour, 8)
	require.NoError(t, err)
	iss.ttl = -time.Minute
	token, _, err := iss.Issue("acct-1", "alice")
	require.NoError(t, err)
	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCachedTokenExpires(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour, 8)
	require.NoError(t, err)
	token, _, err := iss.Issue("acct-1", "alice")
	require.NoError(t, err)
	_, err = iss.Verify(token)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 0, iss.cache.Len())
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("  ", time.Hour, 8)
	assert.Error(t, err)

	secret, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)
}
