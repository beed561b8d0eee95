package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	svc, err := NewJWTService(JWTConfig{
		Secret:   "test-secret",
		Issuer:   "noderepo-test",
		TokenTTL: time.Minute,
		Clock:    clock,
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t, nil)

	token, err := svc.GenerateToken("alice", true)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.UserID)
	require.True(t, claims.IsAdmin)
	require.Equal(t, "noderepo-test", claims.Issuer)
}

func TestGenerateTokenRequiresUserID(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.GenerateToken("", false)
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	svc := newTestService(t, func() time.Time { return issued })

	token, err := svc.GenerateToken("alice", false)
	require.NoError(t, err)

	// Re-validate with a real clock: the minute TTL has long passed.
	current := newTestService(t, nil)
	_, err = current.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	other, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := other.GenerateToken("alice", false)
	require.NoError(t, err)

	svc := newTestService(t, nil)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestService(t, nil)

	token, err := svc.GenerateToken("alice", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	require.Error(t, err)
}
