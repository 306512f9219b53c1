package commands

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/config"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

// tokenCmd signs a bearer token with the configured secret. Production
// tokens come from the identity provider; this is for local use.
var tokenCmd = &cobra.Command{
	Use:   "token <owner>",
	Short: "Issue a development bearer token for owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if len(cfg.AuthJWTSecret) == 0 {
			return errors.New("AUTH_JWT_SECRET is required")
		}
		v := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience)
		token, err := v.Issue(args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
