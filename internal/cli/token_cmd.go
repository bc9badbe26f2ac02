package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/gridboard/internal/auth"
)

func newTokenCmd(cfg Config) *cobra.Command {
	var secret, userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (GRIDBOARD_SECRET or --secret)")
			}
			token, err := auth.NewVerifier(secret).Mint(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", cfg.Secret, "token signing secret")
	cmd.Flags().StringVar(&userID, "user", "", "user id (subject claim)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
