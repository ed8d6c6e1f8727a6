package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gamebus/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "relay-secret")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"token", "--subject", "lobby-7", "--scope", "publish", "--ttl", "2m"})
	require.NoError(t, rootCmd.Execute())

	claims, err := auth.NewTokenService("relay-secret", time.Minute).Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "lobby-7", claims.Subject)
	assert.Equal(t, []string{auth.ScopePublish}, claims.Scopes)
	assert.Contains(t, errOut.String(), "expires")
}

func TestPublishCommandRejectsInvalidJSON(t *testing.T) {
	rootCmd.SetArgs([]string{"publish", "lobby.start", "{not json"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}
