package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factoryd/internal/bridge"
	"github.com/nerrad567/factoryd/internal/infrastructure/config"
)

// newTokenCommand creates the token command, which issues the token a
// remote client presents on /ws/client.
func newTokenCommand(opts *rootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <client>",
		Short: "Issue an access token for a remote client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Security.ClientSecret == "" {
				return fmt.Errorf("security.client_secret is not set")
			}
			if ttl <= 0 {
				ttl = cfg.GetClientTokenTTL()
			}
			token, err := bridge.IssueToken(args[0], cfg.Security.ClientSecret, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.client_token_ttl)")
	return cmd
}
