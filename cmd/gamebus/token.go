package main

import (
	"fmt"
	"time"

	"gamebus/config"
	"gamebus/internal/auth"

	"github.com/spf13/cobra"
)

// TokenCmd mints a relay token signed with JWT_SECRET
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a relay access token",
	Args:  cobra.NoArgs,
	RunE:  issueToken,
}

var (
	tokenSubject string
	tokenScopes  []string
	tokenTTL     time.Duration
)

func init() {
	TokenCmd.Flags().StringVar(&tokenSubject, "subject", "gamebus-cli", "Subject the token is issued to")
	TokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{auth.ScopePublish, auth.ScopeSubscribe}, "Scopes granted by the token")
	TokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRY_MIN)")
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = time.Duration(cfg.JWTExpiryMin) * time.Minute
	}

	token, expiresAt, err := auth.NewTokenService(cfg.JWTSecret, ttl).Issue(tokenSubject, tokenScopes)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
