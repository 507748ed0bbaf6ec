package auth

import (
	"testing"
	"time"

	"storefront/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager()

	token, err := m.Issue(42, "admin")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.Equal(t, "admin", claims.Role)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager()
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.Issue(1, "customer")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	token, err := NewManager(config.AuthConfig{JWTSecret: "one", TokenTTL: time.Hour}).Issue(1, "admin")
	require.NoError(t, err)

	_, err = NewManager(config.AuthConfig{JWTSecret: "two", TokenTTL: time.Hour}).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := newTestManager().Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
