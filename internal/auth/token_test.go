package auth

import (
	"testing"
	"time"

	gamebus_errors "gamebus/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)

	token, expiresAt, err := svc.Issue("lobby-1", []string{ScopePublish})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "lobby-1", claims.Subject)
	assert.True(t, claims.HasScope(ScopePublish))
	assert.False(t, claims.HasScope(ScopeSubscribe))

	t.Run("rejects other secret", func(t *testing.T) {
		_, err := NewTokenService("other", time.Minute).Parse(token)
		require.ErrorIs(t, err, gamebus_errors.ErrUnauthorized)
	})

	t.Run("rejects expired", func(t *testing.T) {
		expired, _, err := NewTokenService("secret", -time.Minute).Issue("lobby-1", nil)
		require.NoError(t, err)
		_, err = svc.Parse(expired)
		require.ErrorIs(t, err, gamebus_errors.ErrUnauthorized)
	})

	t.Run("rejects empty and garbage", func(t *testing.T) {
		_, err := svc.Parse("")
		require.ErrorIs(t, err, gamebus_errors.ErrUnauthorized)
		_, err = svc.Parse("not.a.token")
		require.ErrorIs(t, err, gamebus_errors.ErrUnauthorized)
	})
}
