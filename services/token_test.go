package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/photoshare/models"
)

func TestTokenScopes(t *testing.T) {
	svc := NewTokenService("k", time.Minute, time.Hour, time.Hour)
	user := &models.User{ID: 7, Email: "a@example.com", Role: models.RoleModerator}

	access, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	refresh, err := svc.IssueRefreshToken(user)
	require.NoError(t, err)
	email, err := svc.IssueEmailToken(user)
	require.NoError(t, err)

	claims, err := svc.DecodeAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "a@example.com", claims.Subject)
	assert.Equal(t, models.RoleModerator, claims.Role)
	assert.Equal(t, ScopeAccess, claims.Scope)
	assert.NotEmpty(t, claims.ID)

	_, err = svc.DecodeRefreshToken(refresh)
	assert.NoError(t, err)
	_, err = svc.DecodeEmailToken(email)
	assert.NoError(t, err)

	tests := []struct {
		name   string
		decode func(string) (*Claims, error)
		token  string
	}{
		{"refresh as access", svc.DecodeAccessToken, refresh},
		{"email as access", svc.DecodeAccessToken, email},
		{"access as refresh", svc.DecodeRefreshToken, access},
		{"access as email", svc.DecodeEmailToken, access},
		{"garbage", svc.DecodeAccessToken, "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decode(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenExpiredAndForeignSecret(t *testing.T) {
	svc := NewTokenService("k", time.Minute, time.Hour, time.Hour)
	user := &models.User{ID: 1, Email: "a@example.com"}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	stale, err := svc.IssueAccessToken(user)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.DecodeAccessToken(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService("other", time.Minute, time.Hour, time.Hour)
	foreign, err := other.IssueAccessToken(user)
	require.NoError(t, err)
	_, err = svc.DecodeAccessToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensIssuedTogetherDiffer(t *testing.T) {
	svc := NewTokenService("k", time.Minute, time.Hour, time.Hour)
	user := &models.User{ID: 1, Email: "a@example.com"}
	a, err := svc.IssueRefreshToken(user)
	require.NoError(t, err)
	b, err := svc.IssueRefreshToken(user)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
